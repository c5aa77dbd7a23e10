package scrape

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Sriram-PR/catalog-scraper/pkg/extract"
	"github.com/Sriram-PR/catalog-scraper/pkg/models"
	"github.com/Sriram-PR/catalog-scraper/pkg/storage"
	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

// Reconciler merges extracted items into stored rows by natural key.
// Scraped fields are overwritten on every run; ids, createdAt and owned
// aggregates (productCount, rating, reviewCount) are never taken from a
// scraped item.
type Reconciler struct {
	store storage.Store
	now   func() time.Time
	newID func() string
}

// NewReconciler returns a Reconciler writing to store. A nil now uses time.Now.
func NewReconciler(store storage.Store, now func() time.Time) *Reconciler {
	if now == nil {
		now = time.Now
	}
	return &Reconciler{store: store, now: now, newID: uuid.NewString}
}

// stamp returns the reconcile time and a pointer to it for lastScrapedAt
func (r *Reconciler) stamp() (time.Time, *time.Time) {
	now := r.now().UTC()
	scraped := now
	return now, &scraped
}

// Navigation upserts item by URL
func (r *Reconciler) Navigation(ctx context.Context, item models.NavigationItem) (*models.Navigation, error) {
	now, scraped := r.stamp()
	nav, err := r.store.FindNavigationByURL(ctx, item.URL)
	switch {
	case err == nil:
	case errors.Is(err, utils.ErrNotFound):
		nav = &models.Navigation{ID: r.newID(), URL: item.URL, IsActive: true, CreatedAt: now}
	default:
		return nil, err
	}
	nav.Name = item.Name
	nav.Position = item.Position
	nav.UpdatedAt = now
	nav.LastScrapedAt = scraped
	if err := r.store.SaveNavigation(ctx, nav); err != nil {
		return nil, err
	}
	return nav, nil
}

// Category upserts item by slug. ProductCount is left alone, and a run
// without a parent scope keeps an existing parent link.
func (r *Reconciler) Category(ctx context.Context, item models.CategoryItem) (*models.Category, error) {
	now, scraped := r.stamp()
	cat, err := r.store.FindCategoryBySlug(ctx, item.Slug)
	switch {
	case err == nil:
	case errors.Is(err, utils.ErrNotFound):
		cat = &models.Category{ID: r.newID(), Slug: item.Slug, CreatedAt: now}
	default:
		return nil, err
	}
	cat.Name = item.Name
	cat.URL = item.URL
	cat.Description = item.Description
	cat.ImageURL = item.ImageURL
	if item.ParentID != nil {
		cat.ParentID = item.ParentID
	}
	cat.NavigationID = item.NavigationID
	cat.UpdatedAt = now
	cat.LastScrapedAt = scraped
	if err := r.store.SaveCategory(ctx, cat); err != nil {
		return nil, err
	}
	return cat, nil
}

// Product upserts item by SKU. Rating and ReviewCount belong to the stored
// review set and are only written by the detail scraper.
func (r *Reconciler) Product(ctx context.Context, item models.ProductItem) (*models.Product, error) {
	now, scraped := r.stamp()
	p, err := r.store.FindProductBySKU(ctx, item.SKU)
	switch {
	case err == nil:
	case errors.Is(err, utils.ErrNotFound):
		p = &models.Product{ID: r.newID(), SKU: item.SKU, CreatedAt: now}
	default:
		return nil, err
	}
	p.Title = item.Title
	p.URL = item.URL
	p.ImageURL = item.ImageURL
	p.Price = item.Price
	p.OriginalPrice = item.OriginalPrice
	p.Condition = item.Condition
	p.InStock = item.InStock
	p.Author = item.Author
	p.ISBN = item.ISBN
	p.CategoryID = item.CategoryID
	p.UpdatedAt = now
	p.LastScrapedAt = scraped
	if err := r.store.SaveProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Detail upserts item by product id
func (r *Reconciler) Detail(ctx context.Context, item models.ProductDetailItem) (*models.ProductDetail, error) {
	now, scraped := r.stamp()
	d, err := r.store.FindDetailByProductID(ctx, item.ProductID)
	switch {
	case err == nil:
	case errors.Is(err, utils.ErrNotFound):
		d = &models.ProductDetail{ID: r.newID(), ProductID: item.ProductID, CreatedAt: now}
	default:
		return nil, err
	}
	d.Description = item.Description
	d.Publisher = item.Publisher
	d.PublicationDate = item.PublicationDate
	d.Language = item.Language
	d.Pages = item.Pages
	d.Format = item.Format
	d.Dimensions = item.Dimensions
	d.Weight = item.Weight
	d.Images = item.Images
	d.Specifications = item.Specifications
	d.RelatedProducts = item.RelatedProducts
	d.DetailedConditionNotes = item.DetailedConditionNotes
	d.UpdatedAt = now
	d.LastScrapedAt = scraped
	if err := r.store.SaveDetail(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Reviews replaces the review set of productID with items and writes the
// derived aggregates back to the product: the mean rating rounded to two
// decimals and the count. An empty set clears the rating.
func (r *Reconciler) Reviews(ctx context.Context, productID string, items []models.ReviewItem) ([]*models.Review, error) {
	now, _ := r.stamp()
	reviews := make([]*models.Review, 0, len(items))
	for i, it := range items {
		reviews = append(reviews, &models.Review{
			ID:                 r.newID(),
			ProductID:          productID,
			ReviewerName:       it.ReviewerName,
			Rating:             it.Rating,
			Title:              it.Title,
			Content:            it.Content,
			ReviewDate:         it.ReviewDate,
			IsVerifiedPurchase: it.IsVerifiedPurchase,
			HelpfulCount:       it.HelpfulCount,
			Position:           i,
			CreatedAt:          now,
		})
	}
	if err := r.store.ReplaceReviews(ctx, productID, reviews); err != nil {
		return nil, err
	}

	stored, err := r.store.ListReviews(ctx, productID)
	if err != nil {
		return nil, err
	}
	rating, count := AggregateRating(stored)
	if err := r.store.UpdateProductRating(ctx, productID, rating, count); err != nil {
		return nil, err
	}
	return stored, nil
}

// AggregateRating returns the mean rating of reviews rounded to two
// decimals, or nil when there are none, and the review count.
func AggregateRating(reviews []*models.Review) (*float64, int) {
	if len(reviews) == 0 {
		return nil, 0
	}
	var sum float64
	for _, rv := range reviews {
		sum += rv.Rating
	}
	mean := extract.Round2(sum / float64(len(reviews)))
	return &mean, len(reviews)
}
