package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/catalog-scraper/pkg/models"
	"github.com/Sriram-PR/catalog-scraper/pkg/storage"
	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// handleScrapeNavigation handles the scrape_navigation tool
func (s *Server) handleScrapeNavigation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url := request.GetString("url", s.cfg.BaseURL)
	if url == "" {
		return mcp.NewToolResultError("url parameter is required when no base URL is configured"), nil
	}
	return s.startJob(ctx, models.JobTypeNavigation, url, models.NavigationParams{}), nil
}

// handleScrapeCategories handles the scrape_categories tool
func (s *Server) handleScrapeCategories(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	navID := request.GetString("navigation_id", "")
	if navID == "" {
		return mcp.NewToolResultError("navigation_id parameter is required"), nil
	}
	parentID := request.GetString("parent_id", "")
	url := request.GetString("url", "")

	nav, err := s.cfg.Catalog.GetNavigation(ctx, navID)
	if err != nil {
		return lookupError("navigation", navID, err), nil
	}
	if parentID != "" {
		parent, err := s.cfg.Catalog.GetCategory(ctx, parentID)
		if err != nil {
			return lookupError("category", parentID, err), nil
		}
		if url == "" {
			url = parent.URL
		}
	}
	if url == "" {
		url = nav.URL
	}

	params := models.CategoryParams{NavigationID: navID, ParentID: parentID}
	return s.startJob(ctx, models.JobTypeCategory, url, params), nil
}

// handleScrapeProducts handles the scrape_products tool
func (s *Server) handleScrapeProducts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	catID := request.GetString("category_id", "")
	if catID == "" {
		return mcp.NewToolResultError("category_id parameter is required"), nil
	}
	maxPages := request.GetInt("max_pages", 0)
	if maxPages < 0 {
		return mcp.NewToolResultError(fmt.Sprintf("max_pages cannot be negative (%d)", maxPages)), nil
	}

	cat, err := s.cfg.Catalog.GetCategory(ctx, catID)
	if err != nil {
		return lookupError("category", catID, err), nil
	}
	url := request.GetString("url", cat.URL)

	params := models.ProductParams{CategoryID: catID, MaxPages: maxPages}
	return s.startJob(ctx, models.JobTypeProduct, url, params), nil
}

// handleScrapeProductDetail handles the scrape_product_detail tool
func (s *Server) handleScrapeProductDetail(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	productID := request.GetString("product_id", "")
	if productID == "" {
		return mcp.NewToolResultError("product_id parameter is required"), nil
	}

	product, err := s.cfg.Catalog.GetProduct(ctx, productID)
	if err != nil {
		return lookupError("product", productID, err), nil
	}
	url := request.GetString("url", product.URL)

	params := models.ProductDetailParams{ProductID: productID}
	return s.startJob(ctx, models.JobTypeProductDetail, url, params), nil
}

// handleGetJobStatus handles the get_job_status tool
func (s *Server) handleGetJobStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	job, err := s.cfg.Jobs.GetJobStatus(ctx, jobID)
	if err != nil {
		return lookupError("job", jobID, err), nil
	}
	return mcp.NewToolResultText(formatJSON(jobSummary(job))), nil
}

// handleListJobs handles the list_jobs tool
func (s *Server) handleListJobs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var filter storage.JobFilter
	if v := request.GetString("type", ""); v != "" {
		jt, err := models.ParseJobType(v)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		filter.Type = jt
	}
	if v := request.GetString("status", ""); v != "" {
		st, err := models.ParseJobStatus(v)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		filter.Status = st
	}
	filter.Limit = request.GetInt("limit", defaultListLimit)
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}

	jobs, err := s.cfg.Jobs.ListJobs(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list jobs: %v", err)), nil
	}

	summaries := make([]map[string]interface{}, 0, len(jobs))
	for _, job := range jobs {
		summaries = append(summaries, jobSummary(job))
	}
	result := map[string]interface{}{
		"jobs":  summaries,
		"total": len(summaries),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// startJob creates a job and hands it to the runner. A full queue leaves
// the job PENDING; its id is included so the caller can retry or inspect it.
func (s *Server) startJob(ctx context.Context, jobType models.JobType, url string, params models.JobParams) *mcp.CallToolResult {
	job, err := s.cfg.Jobs.CreateJob(ctx, jobType, url, params)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create %s job: %v", jobType, err))
	}
	jobLog := s.log.WithFields(logrus.Fields{"job_id": job.ID, "job_type": jobType})

	if err := s.cfg.Runner.Submit(job.ID); err != nil {
		jobLog.WithField("error_category", utils.CategorizeError(err)).Warnf("Job not queued: %v", err)
		return mcp.NewToolResultError(fmt.Sprintf("job %s was created but not queued: %v", job.ID, err))
	}
	jobLog.Debug("Job submitted from MCP tool")

	result := map[string]interface{}{
		"job_id": job.ID,
		"status": job.Status,
		"type":   job.Type,
		"url":    job.URL,
	}
	return mcp.NewToolResultText(formatJSON(result))
}

// jobSummary flattens a job into the tool response shape
func jobSummary(job *models.ScrapeJob) map[string]interface{} {
	result := map[string]interface{}{
		"job_id":          job.ID,
		"type":            job.Type,
		"status":          job.Status,
		"url":             job.URL,
		"items_total":     job.ItemsTotal,
		"items_processed": job.ItemsProcessed,
		"created_at":      job.CreatedAt.Format(time.RFC3339),
	}
	if job.StartedAt != nil {
		result["started_at"] = job.StartedAt.Format(time.RFC3339)
	}
	if job.CompletedAt != nil {
		result["completed_at"] = job.CompletedAt.Format(time.RFC3339)
		if job.StartedAt != nil {
			result["duration_seconds"] = job.CompletedAt.Sub(*job.StartedAt).Seconds()
		}
	}
	if job.ErrorMessage != "" {
		result["error_message"] = job.ErrorMessage
	}
	if job.Result != nil {
		result["result"] = job.Result
	}
	return result
}

func lookupError(kind, id string, err error) *mcp.CallToolResult {
	if errors.Is(err, utils.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("%s '%s' not found", kind, id))
	}
	return mcp.NewToolResultError(fmt.Sprintf("failed to load %s '%s': %v", kind, id, err))
}

// formatJSON formats a value as indented JSON
func formatJSON(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
