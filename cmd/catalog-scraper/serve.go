package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/catalog-scraper/pkg/config"
	"github.com/Sriram-PR/catalog-scraper/pkg/mcp"
	"github.com/Sriram-PR/catalog-scraper/pkg/orchestrate"
	"github.com/Sriram-PR/catalog-scraper/pkg/storage"
)

const (
	badgerGCInterval = 10 * time.Minute
	lockEvictEvery   = 5 * time.Minute
	shutdownTimeout  = 30 * time.Second
)

// runServe handles the serve subcommand
func runServe(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	common := addCommonFlags(fs)
	transport := fs.String("transport", "", "MCP transport, stdio or sse (defaults to MCP_TRANSPORT)")
	addr := fs.String("addr", "", "Listen address for the sse transport (defaults to MCP_ADDR)")
	metricsAddr := fs.String("metrics-addr", "", "Prometheus listen address (defaults to METRICS_ADDR, \"off\" disables)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: catalog-scraper serve [options]

Start an MCP (Model Context Protocol) server exposing the scrape job API.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(stderr, `
Examples:
  # Start with stdio transport
  catalog-scraper serve

  # Start with SSE transport on port 8090
  catalog-scraper serve -transport sse -addr :8090

Available MCP Tools:
  scrape_navigation      Scrape the site's navigation menu
  scrape_categories      Scrape categories of a navigation entry or parent
  scrape_products        Scrape a category's product listing
  scrape_product_detail  Scrape a product page and its reviews
  get_job_status         Show a job
  list_jobs              List jobs
`)
	}
	if err := fs.Parse(args); err != nil {
		return 1
	}

	// MCP protocol uses stdout, logs go to stderr
	cfg, logger, ok := bootstrap(common, stderr, stderr)
	if !ok {
		return 1
	}
	if *transport != "" {
		cfg.Server.MCPTransport = *transport
	}
	if *addr != "" {
		cfg.Server.MCPAddr = *addr
	}
	switch *metricsAddr {
	case "":
	case "off":
		cfg.Server.MetricsAddr = ""
	default:
		cfg.Server.MetricsAddr = *metricsAddr
	}
	return doServe(cfg, logger, stderr)
}

// doServe runs the MCP server until its transport ends or a signal arrives
func doServe(cfg *config.AppConfig, logger *logrus.Logger, stderr io.Writer) int {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx, cfg, logger, true)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()

	if badger, ok := a.store.(*storage.BadgerStore); ok {
		go badger.RunGC(ctx, badgerGCInterval)
	}
	go a.locks.RunEviction(ctx, lockEvictEvery)

	runner := orchestrate.NewRunner(ctx, a.orch, cfg.Server.JobQueueSize, a.log)
	defer runner.Close()
	go func() {
		for report := range runner.Errors() {
			a.log.WithField("job_id", report.JobID).Debugf("Runner reported: %v", report.Err)
		}
	}()

	var metricsSrv *http.Server
	if cfg.Server.MetricsAddr != "" {
		metricsSrv = startMetricsServer(cfg.Server.MetricsAddr, a)
	}

	srv, err := mcp.NewServer(&mcp.ServerConfig{
		Jobs:      a.orch,
		Runner:    runner,
		Catalog:   a.store,
		BaseURL:   cfg.Scraper.BaseURL,
		Transport: cfg.Server.MCPTransport,
		Addr:      cfg.Server.MCPAddr,
		Logger:    logger,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error creating MCP server: %v\n", err)
		return 1
	}

	logger.Infof("Starting MCP server (transport: %s)", cfg.Server.MCPTransport)
	runErr := make(chan error, 1)
	go func() { runErr <- srv.Run() }()

	exitCode := 0
	select {
	case err := <-runErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(stderr, "MCP server error: %v\n", err)
			exitCode = 1
		}
	case <-ctx.Done():
		logger.Warn("Received shutdown signal, stopping...")
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("MCP server shutdown: %v", err)
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("Metrics server shutdown: %v", err)
		}
	}
	return exitCode
}

// startMetricsServer serves /metrics in the background
func startMetricsServer(addr string, a *app) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				a.log.Errorf("PANIC in metrics server: %v", r)
			}
		}()
		a.log.Infof("Serving metrics on http://%s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Errorf("Metrics server failed on %s: %v", addr, err)
		}
	}()
	return srv
}
