package scrape

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/catalog-scraper/pkg/extract"
	"github.com/Sriram-PR/catalog-scraper/pkg/models"
	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

const (
	productCardSelector = `.product-grid .product-item, .products-list .product, [class*="product-card"]`

	productTitleSelector    = `.product-title, h3, h4, [class*="title"]`
	productLinkSelector     = "a[href]"
	productImageSelector    = "img[src]"
	productPriceSelector    = `.price, [class*="price"]`
	productWasPriceSelector = `.original-price, .rrp, [class*="was-price"]`
	productAuthorSelector   = `.author, [class*="author"]`
	productRatingSelector   = `[class*="rating"], .stars`
	productISBNSelector     = ".isbn"
	productSoldOutSelector  = `.out-of-stock, [class*="sold-out"]`

	defaultCondition = "Used"
)

// ProductScraper walks the paginated listing of a category
type ProductScraper struct {
	*Base
}

// NewProductScraper returns a ProductScraper over base
func NewProductScraper(base *Base) *ProductScraper {
	return &ProductScraper{Base: base}
}

// Scrape visits up to maxPages listing pages of the category, reconciling
// the cards of each page by SKU, then refreshes the category's product
// count. Every page from 1 to maxPages is visited once, in order. A page that
// fails to load or shows no cards counts as zero items and does not fail the
// job.
func (s *ProductScraper) Scrape(ctx context.Context, job *models.ScrapeJob) (Outcome, error) {
	logger := jobLogger(s.log, job).WithField("component", "product_scraper")
	params, err := jobParams[models.ProductParams](job)
	if err != nil {
		return Outcome{}, err
	}

	cat, err := s.store.GetCategory(ctx, params.CategoryID)
	if err != nil {
		return Outcome{}, fmt.Errorf("resolving category %s: %w", params.CategoryID, err)
	}
	logger = logger.WithField("category_id", cat.ID)

	target := job.URL
	if target == "" {
		target = cat.URL
	}
	maxPages := params.MaxPages
	if maxPages <= 0 {
		maxPages = s.cfg.DefaultMaxPages
	}
	if maxPages <= 0 {
		maxPages = models.DefaultMaxPages
	}

	// Hash-derived SKUs are scoped to this run
	suffix := skuSuffix(job)
	seen := make(map[string]bool)
	var out Outcome

	for n := 1; n <= maxPages; n++ {
		pageURL := listingPageURL(target, n)
		pageLog := logger.WithFields(logrus.Fields{"page": n, "url": pageURL})

		page, err := s.visit(ctx, pageURL, s.cfg.Settle.Product, pageLog)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			pageLog.WithField("error_category", utils.CategorizeError(err)).Warnf("Listing page failed, skipping: %v", err)
			continue
		}

		cards := page.Doc.Find(productCardSelector)
		if cards.Length() == 0 {
			pageLog.Info("No product cards on page")
			continue
		}

		items := s.extract(cards, page.URL, cat.ID, suffix, seen, pageLog)
		pageLog.Infof("Found %d new products", len(items))
		out.Found += len(items)

		for i, item := range items {
			if err := s.paceWrite(ctx); err != nil {
				return out, err
			}
			if _, err := s.reconcile.Product(ctx, item); err != nil {
				s.itemFailed(pageLog, entityProduct, i, err)
				continue
			}
			s.metrics.IncReconciled(entityProduct)
			out.Reconciled++
		}
	}

	if err := s.refreshProductCount(ctx, cat.ID); err != nil {
		return out, err
	}
	logger.Infof("Saved %d products", out.Reconciled)
	return out, nil
}

// refreshProductCount stores the number of products linked to the category
func (s *ProductScraper) refreshProductCount(ctx context.Context, categoryID string) error {
	n, err := s.store.CountProductsByCategory(ctx, categoryID)
	if err != nil {
		return err
	}
	cat, err := s.store.GetCategory(ctx, categoryID)
	if err != nil {
		return err
	}
	if cat.ProductCount == n {
		return nil
	}
	cat.ProductCount = n
	return s.store.SaveCategory(ctx, cat)
}

func (s *ProductScraper) extract(cards *goquery.Selection, pageURL, categoryID, suffix string, seen map[string]bool, logger *logrus.Entry) []models.ProductItem {
	found := innermost(cards, productCardSelector, func(i int, card *goquery.Selection) (models.ProductItem, bool) {
		item, ok, err := safeExtract(func() (models.ProductItem, bool) {
			return productItem(card, pageURL, suffix)
		})
		if err != nil {
			s.itemFailed(logger, entityProduct, i, err)
			return item, false
		}
		if !ok {
			logger.WithField("item_index", i).Debug("Product card without title or link, skipping")
		}
		return item, ok
	})

	var items []models.ProductItem
	for _, item := range found {
		if seen[item.SKU] {
			continue
		}
		seen[item.SKU] = true
		item.CategoryID = categoryID
		items = append(items, item)
	}
	return items
}

func productItem(card *goquery.Selection, pageURL, suffix string) (models.ProductItem, bool) {
	title, ok := extract.Text(card, productTitleSelector)
	if !ok {
		return models.ProductItem{}, false
	}
	href, ok := extract.Attr(card, productLinkSelector, "href")
	if !ok {
		return models.ProductItem{}, false
	}
	productURL := extract.AbsoluteURL(pageURL, href)

	item := models.ProductItem{
		SKU:       extract.ProductSKU(productURL, title, suffix),
		Title:     title,
		URL:       productURL,
		Condition: defaultCondition,
		InStock:   !extract.Exists(card, productSoldOutSelector),
	}
	if src, ok := extract.Attr(card, productImageSelector, "src"); ok {
		abs := extract.AbsoluteURL(pageURL, src)
		item.ImageURL = &abs
	}
	if text, ok := extract.Text(card, productPriceSelector); ok {
		item.Price = extract.OptionalFloat(extract.ParsePrice(text))
	}
	if text, ok := extract.Text(card, productWasPriceSelector); ok {
		item.OriginalPrice = extract.OptionalFloat(extract.ParsePrice(text))
	}
	if text, ok := extract.Text(card, productRatingSelector); ok {
		item.Rating = extract.OptionalFloat(extract.ParseRating(text))
	}
	item.Author = extract.Optional(extract.Text(card, productAuthorSelector))

	isbn, ok := extract.Attr(card, "[data-isbn]", "data-isbn")
	if !ok {
		isbn, ok = extract.Text(card, productISBNSelector)
	}
	item.ISBN = extract.Optional(isbn, ok)
	return item, true
}

// listingPageURL returns page n of a listing. Page 1 is the listing URL
// itself.
func listingPageURL(base string, n int) string {
	if n <= 1 {
		return base
	}
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(n))
	u.RawQuery = q.Encode()
	return u.String()
}

// skuSuffix is the job start time in Unix milliseconds
func skuSuffix(job *models.ScrapeJob) string {
	started := job.CreatedAt
	if job.StartedAt != nil {
		started = *job.StartedAt
	}
	return strconv.FormatInt(started.UnixMilli(), 10)
}
