package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/catalog-scraper/pkg/config"
	"github.com/Sriram-PR/catalog-scraper/pkg/fetch"
	"github.com/Sriram-PR/catalog-scraper/pkg/log"
	"github.com/Sriram-PR/catalog-scraper/pkg/metrics"
	"github.com/Sriram-PR/catalog-scraper/pkg/models"
	"github.com/Sriram-PR/catalog-scraper/pkg/orchestrate"
	"github.com/Sriram-PR/catalog-scraper/pkg/scrape"
	"github.com/Sriram-PR/catalog-scraper/pkg/storage"
	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

const version = "1.0.0"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches a subcommand and returns the process exit code
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsageTo(stderr)
		return 1
	}

	switch args[0] {
	case "scrape":
		return runScrape(args[1:], stdout, stderr)
	case "status":
		return runStatus(args[1:], stdout, stderr)
	case "jobs":
		return runJobs(args[1:], stdout, stderr)
	case "serve":
		return runServe(args[1:], stdout, stderr)
	case "migrate":
		return runMigrate(args[1:], stdout, stderr)
	case "config":
		return runConfig(args[1:], stdout, stderr)
	case "version":
		fmt.Fprintf(stdout, "catalog-scraper %s\n", version)
		return 0
	case "-h", "--help", "help":
		printUsageTo(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", args[0])
		printUsageTo(stderr)
		return 1
	}
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `catalog-scraper - World of Books catalog ingester

Usage:
  catalog-scraper <command> [options]

Commands:
  scrape <type>   Create a scrape job and run it to completion
  status <id>     Show a job
  jobs            List jobs
  serve           Start the MCP server and metrics endpoint
  migrate         Apply (up) or inspect (status) the PostgreSQL schema
  config          Print the effective configuration
  version         Show version info

Job types: navigation, category, product, product_detail

Configuration is read from the environment after loading .env.
Run 'catalog-scraper <command> -h' for command-specific help.`)
}

// commonFlags are accepted by every subcommand that loads configuration
type commonFlags struct {
	envFile  *string
	logLevel *string
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		envFile:  fs.String("env", ".env", "Path to a .env file (skipped when missing)"),
		logLevel: fs.String("loglevel", "", "Log level override (debug, info, warn, error)"),
	}
}

// loadConfig loads the .env file and the environment, then validates.
// Warnings are logged once the logger exists.
func loadConfig(envFile string) (*config.AppConfig, []string, []string, error) {
	loaded, err := config.LoadEnvFiles(envFile)
	if err != nil {
		return nil, nil, nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, loaded, err
	}
	warnings, err := cfg.Validate()
	if err != nil {
		return nil, warnings, loaded, err
	}
	return cfg, warnings, loaded, nil
}

// setupLogger builds the process logger from cfg, applying a flag override
func setupLogger(cfg *config.AppConfig, levelOverride string, out io.Writer) *logrus.Logger {
	level := cfg.Log.Level
	if levelOverride != "" {
		level = levelOverride
	}
	return log.Setup(level, cfg.Log.Format, out)
}

// bootstrap loads configuration and returns it with a logger on logOut
func bootstrap(flags commonFlags, logOut, stderr io.Writer) (*config.AppConfig, *logrus.Logger, bool) {
	cfg, warnings, loaded, err := loadConfig(*flags.envFile)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading configuration: %v\n", err)
		return nil, nil, false
	}
	logger := setupLogger(cfg, *flags.logLevel, logOut)
	if len(loaded) == 0 {
		logger.Debugf("No env file loaded from %s", *flags.envFile)
	}
	for _, w := range warnings {
		logger.Warn(w)
	}
	return cfg, logger, true
}

// app holds the components shared by the job commands
type app struct {
	cfg     *config.AppConfig
	store   storage.Store
	source  fetch.PageSource
	metrics *metrics.Metrics
	locks   *fetch.TargetLocks
	orch    *orchestrate.Orchestrator
	log     *logrus.Entry
}

// openApp wires storage, the page source and the orchestrator. withSource
// is false for commands that only read jobs, so no browser is started.
func openApp(ctx context.Context, cfg *config.AppConfig, logger *logrus.Logger, withSource bool) (*app, error) {
	entry := logrus.NewEntry(logger)
	a := &app{cfg: cfg, metrics: metrics.New(), log: entry}

	store, err := storage.Open(ctx, cfg, entry)
	if err != nil {
		return nil, utils.WrapErrorf(err, "opening %s storage", cfg.Storage.Driver)
	}
	a.store = store

	if withSource {
		source, err := fetch.OpenSource(cfg, entry)
		if err != nil {
			a.Close()
			return nil, utils.WrapErrorf(err, "starting %s page source", cfg.Scraper.Driver)
		}
		a.source = source
	}

	base := scrape.NewBase(scrape.Deps{
		Config:  cfg.Scraper,
		Source:  a.source,
		Store:   store,
		Metrics: a.metrics,
		Logger:  entry,
	})
	a.locks = fetch.NewTargetLocks(entry)
	a.orch, err = orchestrate.NewOrchestrator(store, scrape.NewRegistry(base), entry, orchestrate.Options{
		CacheSize: cfg.Server.JobCacheSize,
		Metrics:   a.metrics,
		Locks:     a.locks,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Close releases the page source and the store
func (a *app) Close() {
	if a.source != nil {
		if err := a.source.Close(); err != nil {
			a.log.Warnf("Closing page source: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warnf("Closing store: %v", err)
		}
	}
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// scrapeFlags are the per-type inputs of the scrape command
type scrapeFlags struct {
	url          string
	navigationID string
	parentID     string
	categoryID   string
	productID    string
	maxPages     int
}

// jobParams builds the typed parameters for jobType from the flags
func (f scrapeFlags) jobParams(jobType models.JobType) models.JobParams {
	switch jobType {
	case models.JobTypeCategory:
		return models.CategoryParams{NavigationID: f.navigationID, ParentID: f.parentID}
	case models.JobTypeProduct:
		return models.ProductParams{CategoryID: f.categoryID, MaxPages: f.maxPages}
	case models.JobTypeProductDetail:
		return models.ProductDetailParams{ProductID: f.productID}
	default:
		return models.NavigationParams{}
	}
}

// runScrape handles the scrape subcommand
func runScrape(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprintln(stderr, "Usage: catalog-scraper scrape <navigation|category|product|product_detail> [options]")
		return 1
	}
	jobType, err := models.ParseJobType(args[0])
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fs := flag.NewFlagSet("scrape", flag.ContinueOnError)
	fs.SetOutput(stderr)
	common := addCommonFlags(fs)
	var sf scrapeFlags
	fs.StringVar(&sf.url, "url", "", "Page to scrape (defaults to the stored URL of the referenced entity)")
	fs.StringVar(&sf.navigationID, "navigation-id", "", "Navigation entry (category jobs)")
	fs.StringVar(&sf.parentID, "parent-id", "", "Parent category, collects subcategories (category jobs)")
	fs.StringVar(&sf.categoryID, "category-id", "", "Category (product jobs)")
	fs.IntVar(&sf.maxPages, "max-pages", 0, "Listing page budget (product jobs, 0 uses the configured default)")
	fs.StringVar(&sf.productID, "product-id", "", "Product (product_detail jobs)")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: catalog-scraper scrape %s [options]\n\nOptions:\n", jobType)
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  catalog-scraper scrape navigation\n")
		fmt.Fprintf(stderr, "  catalog-scraper scrape category -navigation-id <id>\n")
		fmt.Fprintf(stderr, "  catalog-scraper scrape product -category-id <id> -max-pages 3\n")
	}
	if err := fs.Parse(args[1:]); err != nil {
		return 1
	}

	cfg, logger, ok := bootstrap(common, stderr, stderr)
	if !ok {
		return 1
	}
	return doScrape(cfg, logger, jobType, sf, stdout, stderr)
}

// doScrape creates the job, executes it and prints the terminal record.
// A FAILED job exits 1.
func doScrape(cfg *config.AppConfig, logger *logrus.Logger, jobType models.JobType, sf scrapeFlags, stdout, stderr io.Writer) int {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx, cfg, logger, true)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()

	url := sf.url
	if url == "" && jobType == models.JobTypeNavigation {
		url = cfg.Scraper.BaseURL
	}
	job, err := a.orch.CreateJob(ctx, jobType, url, sf.jobParams(jobType))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	done, err := a.orch.ExecuteJob(ctx, job.ID)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if err := printJSON(stdout, done); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if done.Status == models.JobStatusFailed {
		return 1
	}
	return 0
}

// runStatus handles the status subcommand
func runStatus(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(stderr)
	common := addCommonFlags(fs)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: catalog-scraper status [options] <job-id>\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 1
	}

	cfg, logger, ok := bootstrap(common, stderr, stderr)
	if !ok {
		return 1
	}
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx, cfg, logger, false)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()
	return doStatus(ctx, a.orch, fs.Arg(0), stdout, stderr)
}

func doStatus(ctx context.Context, jobs *orchestrate.Orchestrator, id string, stdout, stderr io.Writer) int {
	job, err := jobs.GetJobStatus(ctx, id)
	if errors.Is(err, utils.ErrNotFound) {
		fmt.Fprintf(stderr, "Error: job '%s' not found\n", id)
		return 1
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if err := printJSON(stdout, job); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// runJobs handles the jobs subcommand
func runJobs(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("jobs", flag.ContinueOnError)
	fs.SetOutput(stderr)
	common := addCommonFlags(fs)
	typeFlag := fs.String("type", "", "Only jobs of this type")
	statusFlag := fs.String("status", "", "Only jobs in this status")
	limit := fs.Int("limit", 20, "Maximum number of jobs (0 for all)")
	asJSON := fs.Bool("json", false, "Print JSON instead of a table")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: catalog-scraper jobs [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 1
	}

	filter := storage.JobFilter{Limit: *limit}
	if *typeFlag != "" {
		jt, err := models.ParseJobType(*typeFlag)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		filter.Type = jt
	}
	if *statusFlag != "" {
		st, err := models.ParseJobStatus(*statusFlag)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		filter.Status = st
	}

	cfg, logger, ok := bootstrap(common, stderr, stderr)
	if !ok {
		return 1
	}
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx, cfg, logger, false)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()
	return doJobs(ctx, a.orch, filter, *asJSON, stdout, stderr)
}

func doJobs(ctx context.Context, jobs *orchestrate.Orchestrator, filter storage.JobFilter, asJSON bool, stdout, stderr io.Writer) int {
	list, err := jobs.ListJobs(ctx, filter)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if asJSON {
		if err := printJSON(stdout, list); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tSTATUS\tITEMS\tCREATED")
	for _, j := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%s\n", j.ID, j.Type, j.Status, j.ItemsProcessed, j.ItemsTotal, j.CreatedAt.Format(time.RFC3339))
	}
	if err := tw.Flush(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// runMigrate handles the migrate subcommand
func runMigrate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	common := addCommonFlags(fs)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: catalog-scraper migrate [options] [up|status]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 1
	}
	action := "up"
	if fs.NArg() > 0 {
		action = fs.Arg(0)
	}
	if action != "up" && action != "status" {
		fmt.Fprintf(stderr, "Unknown migrate action: %s\n", action)
		fs.Usage()
		return 1
	}

	cfg, logger, ok := bootstrap(common, stderr, stderr)
	if !ok {
		return 1
	}
	entry := logrus.NewEntry(logger)

	if action == "status" {
		v, dirty, err := storage.MigrationStatus(cfg.Database, entry)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "version: %d\ndirty: %t\n", v, dirty)
		return 0
	}

	ctx, cancel := signalContext()
	defer cancel()
	if err := storage.RunMigrations(ctx, cfg.Database, entry); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, "Migrations applied.")
	return 0
}

// runConfig handles the config subcommand
func runConfig(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(stderr)
	envFile := fs.String("env", ".env", "Path to a .env file (skipped when missing)")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: catalog-scraper config [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 1
	}
	return doConfig(*envFile, stdout, stderr)
}

// doConfig prints the validated configuration as YAML, warnings to stderr
func doConfig(envFile string, stdout, stderr io.Writer) int {
	cfg, warnings, _, err := loadConfig(envFile)
	for _, w := range warnings {
		fmt.Fprintf(stderr, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	out, err := cfg.YAML()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	_, _ = stdout.Write(out)
	return 0
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
