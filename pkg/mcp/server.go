package mcp

import (
	"context"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/catalog-scraper/pkg/config"
	"github.com/Sriram-PR/catalog-scraper/pkg/models"
	"github.com/Sriram-PR/catalog-scraper/pkg/storage"
)

const (
	serverName    = "catalog-scraper"
	serverVersion = "1.0.0"
)

// JobService creates and reports scrape jobs
type JobService interface {
	CreateJob(ctx context.Context, jobType models.JobType, url string, params models.JobParams) (*models.ScrapeJob, error)
	GetJobStatus(ctx context.Context, id string) (*models.ScrapeJob, error)
	ListJobs(ctx context.Context, filter storage.JobFilter) ([]*models.ScrapeJob, error)
}

// Submitter queues a created job for background execution
type Submitter interface {
	Submit(id string) error
}

// Catalog resolves the stored entities a scrape tool refers to
type Catalog interface {
	GetNavigation(ctx context.Context, id string) (*models.Navigation, error)
	GetCategory(ctx context.Context, id string) (*models.Category, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
}

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	Jobs      JobService
	Runner    Submitter
	Catalog   Catalog
	BaseURL   string
	Transport string // "stdio" or "sse"
	Addr      string // SSE listen address
	Logger    *logrus.Logger
}

// Server exposes the scrape job API as MCP tools
type Server struct {
	mcpServer *server.MCPServer
	cfg       *ServerConfig
	log       *logrus.Entry

	mu  sync.Mutex
	sse *server.SSEServer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.Jobs == nil {
		return nil, fmt.Errorf("a job service is required")
	}
	if cfg.Runner == nil {
		return nil, fmt.Errorf("a job runner is required")
	}
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("a catalog store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithLogging(),
	)

	s := &Server{
		mcpServer: mcpServer,
		cfg:       cfg,
		log:       cfg.Logger.WithField("component", "mcp"),
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	tools := []struct {
		tool    mcp.Tool
		handler server.ToolHandlerFunc
	}{
		{
			mcp.NewTool("scrape_navigation",
				mcp.WithDescription("Scrape the site's top-level navigation menu. Returns immediately with a job ID."),
				mcp.WithString("url",
					mcp.Description("Page to read the menu from (defaults to the site root)"),
				),
			),
			s.handleScrapeNavigation,
		},
		{
			mcp.NewTool("scrape_categories",
				mcp.WithDescription("Scrape the categories under a navigation entry, or the subcategories of a category. Returns immediately with a job ID."),
				mcp.WithString("navigation_id",
					mcp.Required(),
					mcp.Description("ID of the navigation entry the categories belong to"),
				),
				mcp.WithString("url",
					mcp.Description("Page to scrape (defaults to the stored URL of the parent or navigation entry)"),
				),
				mcp.WithString("parent_id",
					mcp.Description("Collect subcategories of this category instead"),
				),
			),
			s.handleScrapeCategories,
		},
		{
			mcp.NewTool("scrape_products",
				mcp.WithDescription("Scrape the paginated product listing of a category. Returns immediately with a job ID."),
				mcp.WithString("category_id",
					mcp.Required(),
					mcp.Description("ID of the category whose listing is scraped"),
				),
				mcp.WithString("url",
					mcp.Description("Listing URL (defaults to the category's stored URL)"),
				),
				mcp.WithNumber("max_pages",
					mcp.Description(fmt.Sprintf("Maximum listing pages to visit (default: %d)", models.DefaultMaxPages)),
				),
			),
			s.handleScrapeProducts,
		},
		{
			mcp.NewTool("scrape_product_detail",
				mcp.WithDescription("Scrape a product page for its detail record and reviews. Returns immediately with a job ID."),
				mcp.WithString("product_id",
					mcp.Required(),
					mcp.Description("ID of the product to scrape"),
				),
				mcp.WithString("url",
					mcp.Description("Product page URL (defaults to the product's stored URL)"),
				),
			),
			s.handleScrapeProductDetail,
		},
		{
			mcp.NewTool("get_job_status",
				mcp.WithDescription("Get the status of a scrape job"),
				mcp.WithString("job_id",
					mcp.Required(),
					mcp.Description("The job ID returned by a scrape tool"),
				),
			),
			s.handleGetJobStatus,
		},
		{
			mcp.NewTool("list_jobs",
				mcp.WithDescription("List scrape jobs, newest first"),
				mcp.WithString("type",
					mcp.Description("Only jobs of this type (navigation, category, product, product_detail)"),
				),
				mcp.WithString("status",
					mcp.Description("Only jobs in this status (pending, running, completed, failed)"),
				),
				mcp.WithNumber("limit",
					mcp.Description(fmt.Sprintf("Maximum number of jobs to return (default: %d, max: %d)", defaultListLimit, maxListLimit)),
				),
			),
			s.handleListJobs,
		},
	}

	for _, t := range tools {
		s.mcpServer.AddTool(t.tool, t.handler)
	}
	s.log.Infof("Registered %d MCP tools", len(tools))
}

// Run starts the MCP server with the configured transport and blocks
func (s *Server) Run() error {
	switch s.cfg.Transport {
	case "", config.TransportStdio:
		s.log.Info("Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer)
	case config.TransportSSE:
		s.log.Infof("Starting MCP server with SSE transport on %s", s.cfg.Addr)
		sseServer := server.NewSSEServer(s.mcpServer)
		s.mu.Lock()
		s.sse = sseServer
		s.mu.Unlock()
		return sseServer.Start(s.cfg.Addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

// Shutdown stops the SSE listener. The stdio transport ends with its input.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down MCP server...")
	s.mu.Lock()
	sse := s.sse
	s.mu.Unlock()
	if sse == nil {
		return nil
	}
	return sse.Shutdown(ctx)
}
