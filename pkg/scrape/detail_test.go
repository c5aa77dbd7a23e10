package scrape

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/catalog-scraper/pkg/config"
	"github.com/Sriram-PR/catalog-scraper/pkg/models"
	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

const productURL = siteURL + "/en-gb/product/9780141439518"

const detailHTML = `<html><body>
<div class="product-description"><p>A <strong>classic</strong> novel.</p></div>
<span class="publisher">Penguin</span>
<span class="publication-date">2003</span>
<span data-field="language">English</span>
<span class="pages">480 pages</span>
<span class="format">Paperback</span>
<div class="condition-notes">Light wear to cover</div>
<div class="product-images">
  <img src="/img/a.jpg"><img src="/img/b.jpg"><img src="/img/a.jpg">
</div>
<table class="specifications">
  <tr><th>ISBN</th><td>9780141439518</td></tr>
  <tr><th>Binding</th><td>Paperback</td></tr>
  <tr><th>Empty</th></tr>
</table>
<div class="related-products">
  <a href="/en-gb/product/1">One</a>
  <a href="https://www.example.test/en-gb/product/1">One again</a>
  <a href="/en-gb/product/2">Two</a>
</div>
<section class="reviews">
  <div class="review-item">
    <span class="reviewer-name">Ann</span>
    <span class="rating">4</span>
    <h4 class="review-title">Great</h4>
    <p class="review-content">Loved it</p>
    <span class="review-date">2024-01-02</span>
    <span class="verified">Verified purchase</span>
    <span class="helpful-count">3 people found this helpful</span>
  </div>
  <div class="review-item"><span class="reviewer-name">Bob</span><span class="rating">5</span></div>
  <div class="review-item"><span class="rating">3</span></div>
  <div class="review-item"><span class="reviewer-name">No Rating</span></div>
</section>
</body></html>`

const detailNoReviewsHTML = `<html><body>
<div class="product-description">Reissued edition.</div>
</body></html>`

func TestDetailScraper_DetailAndReviews(t *testing.T) {
	h := newHarness(t, map[string]string{productURL: detailHTML})
	product := h.seedProduct(t, "prod-1", "9780141439518", productURL, "cat-1")
	s := NewDetailScraper(h.base)
	ctx := context.Background()

	out, err := s.Scrape(ctx, runningJob(t, models.JobTypeProductDetail, "", models.ProductDetailParams{ProductID: product.ID}))
	require.NoError(t, err)
	assert.Equal(t, Outcome{Found: 1, Reconciled: 1}, out)

	d, err := h.store.FindDetailByProductID(ctx, product.ID)
	require.NoError(t, err)
	require.NotNil(t, d.Description)
	assert.Equal(t, "A classic novel.", *d.Description)
	assert.Equal(t, strPtr("Penguin"), d.Publisher)
	assert.Equal(t, strPtr("2003"), d.PublicationDate)
	assert.Equal(t, strPtr("English"), d.Language)
	assert.Equal(t, strPtr("Paperback"), d.Format)
	assert.Equal(t, strPtr("Light wear to cover"), d.DetailedConditionNotes)
	assert.Nil(t, d.Dimensions)
	assert.Nil(t, d.Weight)
	require.NotNil(t, d.Pages)
	assert.Equal(t, 480, *d.Pages)
	assert.Equal(t, []string{siteURL + "/img/a.jpg", siteURL + "/img/b.jpg"}, d.Images)
	assert.Equal(t, map[string]string{"ISBN": "9780141439518", "Binding": "Paperback"}, d.Specifications)
	assert.Equal(t, []string{siteURL + "/en-gb/product/1", siteURL + "/en-gb/product/2"}, d.RelatedProducts)

	reviews, err := h.store.ListReviews(ctx, product.ID)
	require.NoError(t, err)
	require.Len(t, reviews, 3, "the unrated block and the wrapping section are not reviews")

	var ann *models.Review
	for _, rv := range reviews {
		if rv.ReviewerName != nil && *rv.ReviewerName == "Ann" {
			ann = rv
		}
	}
	require.NotNil(t, ann)
	assert.Equal(t, 4.0, ann.Rating)
	assert.Equal(t, strPtr("Great"), ann.Title)
	assert.Equal(t, strPtr("Loved it"), ann.Content)
	assert.Equal(t, strPtr("2024-01-02"), ann.ReviewDate)
	assert.True(t, ann.IsVerifiedPurchase)
	assert.Equal(t, 3, ann.HelpfulCount)

	updated, err := h.store.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.Rating)
	assert.Equal(t, 4.0, *updated.Rating)
	assert.Equal(t, 3, updated.ReviewCount)
}

func TestDetailScraper_RescrapeReplacesReviews(t *testing.T) {
	h := newHarness(t, map[string]string{productURL: detailHTML})
	product := h.seedProduct(t, "prod-1", "9780141439518", productURL, "cat-1")
	s := NewDetailScraper(h.base)
	ctx := context.Background()
	params := models.ProductDetailParams{ProductID: product.ID}

	_, err := s.Scrape(ctx, runningJob(t, models.JobTypeProductDetail, "", params))
	require.NoError(t, err)
	first, err := h.store.FindDetailByProductID(ctx, product.ID)
	require.NoError(t, err)

	h.source.pages[productURL] = detailNoReviewsHTML
	_, err = s.Scrape(ctx, runningJob(t, models.JobTypeProductDetail, "", params))
	require.NoError(t, err)

	second, err := h.store.FindDetailByProductID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, strPtr("Reissued edition."), second.Description)
	assert.Nil(t, second.Publisher, "fields missing from the page are cleared")

	reviews, err := h.store.ListReviews(ctx, product.ID)
	require.NoError(t, err)
	assert.Empty(t, reviews)

	updated, err := h.store.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Nil(t, updated.Rating)
	assert.Zero(t, updated.ReviewCount)
}

func TestDetailScraper_MarkdownDescription(t *testing.T) {
	cfg := testConfig()
	cfg.DescriptionFormat = config.DescriptionMarkdown
	h := newHarnessWithConfig(t, cfg, map[string]string{productURL: detailHTML})
	product := h.seedProduct(t, "prod-1", "9780141439518", productURL, "cat-1")
	s := NewDetailScraper(h.base)

	_, err := s.Scrape(context.Background(), runningJob(t, models.JobTypeProductDetail, productURL, models.ProductDetailParams{ProductID: product.ID}))
	require.NoError(t, err)

	d, err := h.store.FindDetailByProductID(context.Background(), product.ID)
	require.NoError(t, err)
	require.NotNil(t, d.Description)
	assert.Contains(t, *d.Description, "**classic**")
}

func TestDetailScraper_UnknownProduct(t *testing.T) {
	h := newHarness(t, nil)
	s := NewDetailScraper(h.base)

	_, err := s.Scrape(context.Background(), runningJob(t, models.JobTypeProductDetail, "", models.ProductDetailParams{ProductID: "missing"}))
	assert.ErrorIs(t, err, utils.ErrNotFound)
	assert.Empty(t, h.source.Calls())
}
