package storage

import (
	"context"

	"github.com/Sriram-PR/catalog-scraper/pkg/models"
)

// Lookups return utils.ErrNotFound when no row matches. Saves return
// utils.ErrDuplicateKey when the row's natural key is owned by another row.

// NavigationStore persists navigation entries, keyed by URL
type NavigationStore interface {
	FindNavigationByURL(ctx context.Context, url string) (*models.Navigation, error)
	GetNavigation(ctx context.Context, id string) (*models.Navigation, error)
	// SaveNavigation inserts or replaces the row with nav.ID
	SaveNavigation(ctx context.Context, nav *models.Navigation) error
	ListNavigations(ctx context.Context) ([]*models.Navigation, error)
}

// CategoryStore persists categories, keyed by slug
type CategoryStore interface {
	FindCategoryBySlug(ctx context.Context, slug string) (*models.Category, error)
	GetCategory(ctx context.Context, id string) (*models.Category, error)
	SaveCategory(ctx context.Context, cat *models.Category) error
	// ListCategories returns categories under navigationID, or all when empty
	ListCategories(ctx context.Context, navigationID string) ([]*models.Category, error)
}

// ProductStore persists products, keyed by SKU
type ProductStore interface {
	FindProductBySKU(ctx context.Context, sku string) (*models.Product, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	SaveProduct(ctx context.Context, p *models.Product) error
	// UpdateProductRating writes only the review aggregates
	UpdateProductRating(ctx context.Context, productID string, rating *float64, reviewCount int) error
	CountProductsByCategory(ctx context.Context, categoryID string) (int, error)
}

// DetailStore persists product details, one per product
type DetailStore interface {
	FindDetailByProductID(ctx context.Context, productID string) (*models.ProductDetail, error)
	SaveDetail(ctx context.Context, d *models.ProductDetail) error
}

// ReviewStore persists review sets
type ReviewStore interface {
	// ReplaceReviews deletes every review of productID, then stores reviews
	ReplaceReviews(ctx context.Context, productID string, reviews []*models.Review) error
	ListReviews(ctx context.Context, productID string) ([]*models.Review, error)
}

// JobFilter narrows ListJobs. Zero values match everything.
type JobFilter struct {
	Type   models.JobType
	Status models.JobStatus
	Limit  int
}

// Matches reports whether job passes the type and status filters
func (f JobFilter) Matches(job *models.ScrapeJob) bool {
	if f.Type != "" && job.Type != f.Type {
		return false
	}
	if f.Status != "" && job.Status != f.Status {
		return false
	}
	return true
}

// JobStore persists scrape jobs
type JobStore interface {
	// CreateJob inserts a new job; an existing id is ErrDuplicateKey
	CreateJob(ctx context.Context, job *models.ScrapeJob) error
	GetJob(ctx context.Context, id string) (*models.ScrapeJob, error)
	SaveJob(ctx context.Context, job *models.ScrapeJob) error
	// ListJobs returns matching jobs, newest first
	ListJobs(ctx context.Context, filter JobFilter) ([]*models.ScrapeJob, error)
}

// Store combines all stores for components that need full access
type Store interface {
	NavigationStore
	CategoryStore
	ProductStore
	DetailStore
	ReviewStore
	JobStore
	Close() error
}
