package scrape

import (
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/catalog-scraper/pkg/config"
	"github.com/Sriram-PR/catalog-scraper/pkg/extract"
	"github.com/Sriram-PR/catalog-scraper/pkg/models"
)

const (
	descriptionSelector    = `.product-description, [class*="description"]`
	publisherSelector      = `.publisher, [data-field="publisher"]`
	publicationSelector    = `.publication-date, [data-field="publication"]`
	languageSelector       = `.language, [data-field="language"]`
	pagesSelector          = `.pages, [data-field="pages"]`
	formatSelector         = `.format, [data-field="format"]`
	dimensionsSelector     = `.dimensions, [data-field="dimensions"]`
	weightSelector         = `.weight, [data-field="weight"]`
	conditionNotesSelector = `.condition-notes, [data-field="condition"]`

	detailImageSelector   = ".product-images img, .gallery img"
	specRowSelector       = ".specifications tr, .product-specs li"
	specLabelSelector     = "th, .label"
	specValueSelector     = "td, .value"
	relatedLinkSelector   = ".related-products a, .recommendations a"
	reviewSelector        = `.review-item, [class*="review"]`
	reviewerSelector      = ".reviewer-name, .author"
	reviewRatingSelector  = `[class*="rating"], .stars`
	reviewTitleSelector   = ".review-title, h4"
	reviewContentSelector = ".review-content, .review-text"
	reviewDateSelector    = ".review-date, .date"
	verifiedSelector      = `.verified, [class*="verified"]`
	helpfulSelector       = ".helpful-count"
)

// DetailScraper reads a product page: the detail record and the review set
type DetailScraper struct {
	*Base
}

// NewDetailScraper returns a DetailScraper over base
func NewDetailScraper(base *Base) *DetailScraper {
	return &DetailScraper{Base: base}
}

// Scrape visits the product page, upserts its detail record, replaces its
// reviews and rewrites the product's rating aggregates from the stored set.
func (s *DetailScraper) Scrape(ctx context.Context, job *models.ScrapeJob) (Outcome, error) {
	logger := jobLogger(s.log, job).WithField("component", "detail_scraper")
	params, err := jobParams[models.ProductDetailParams](job)
	if err != nil {
		return Outcome{}, err
	}

	product, err := s.store.GetProduct(ctx, params.ProductID)
	if err != nil {
		return Outcome{}, fmt.Errorf("resolving product %s: %w", params.ProductID, err)
	}
	logger = logger.WithField("product_id", product.ID)

	target := job.URL
	if target == "" {
		target = product.URL
	}
	page, err := s.visit(ctx, target, s.cfg.Settle.Detail, logger)
	if err != nil {
		return Outcome{}, err
	}

	root := page.Doc.Selection
	detail, _, err := safeExtract(func() (models.ProductDetailItem, bool) {
		return s.detailItem(root, page.URL, product.ID, logger), true
	})
	if err != nil {
		return Outcome{}, err
	}
	reviews := s.reviews(root, product.ID, logger)
	logger.Infof("Found product detail with %d reviews", len(reviews))

	if err := s.paceWrite(ctx); err != nil {
		return Outcome{}, err
	}
	if _, err := s.reconcile.Detail(ctx, detail); err != nil {
		return Outcome{}, fmt.Errorf("saving detail of product %s: %w", product.ID, err)
	}
	s.metrics.IncReconciled(entityDetail)

	if err := s.paceWrite(ctx); err != nil {
		return Outcome{}, err
	}
	stored, err := s.reconcile.Reviews(ctx, product.ID, reviews)
	if err != nil {
		return Outcome{}, fmt.Errorf("replacing reviews of product %s: %w", product.ID, err)
	}
	for range stored {
		s.metrics.IncReconciled(entityReview)
	}
	logger.Infof("Saved product detail and %d reviews", len(stored))
	return Outcome{Found: 1, Reconciled: 1}, nil
}

func (s *DetailScraper) detailItem(root *goquery.Selection, pageURL, productID string, logger *logrus.Entry) models.ProductDetailItem {
	item := models.ProductDetailItem{
		ProductID:              productID,
		Description:            s.description(root, logger),
		Publisher:              extract.Optional(extract.Text(root, publisherSelector)),
		PublicationDate:        extract.Optional(extract.Text(root, publicationSelector)),
		Language:               extract.Optional(extract.Text(root, languageSelector)),
		Format:                 extract.Optional(extract.Text(root, formatSelector)),
		Dimensions:             extract.Optional(extract.Text(root, dimensionsSelector)),
		Weight:                 extract.Optional(extract.Text(root, weightSelector)),
		DetailedConditionNotes: extract.Optional(extract.Text(root, conditionNotesSelector)),
		Images:                 uniqueURLs(root.Find(detailImageSelector), "src", pageURL),
		RelatedProducts:        uniqueURLs(root.Find(relatedLinkSelector), "href", pageURL),
	}
	if text, ok := extract.Text(root, pagesSelector); ok {
		item.Pages = extract.OptionalInt(extract.ParseFirstInt(text))
	}

	root.Find(specRowSelector).Each(func(_ int, row *goquery.Selection) {
		label, hasLabel := extract.Text(row, specLabelSelector)
		value, hasValue := extract.Text(row, specValueSelector)
		if !hasLabel || !hasValue {
			return
		}
		if item.Specifications == nil {
			item.Specifications = make(map[string]string)
		}
		item.Specifications[label] = value
	})
	return item
}

// description reads the product description as plain text, or as Markdown
// when configured. A failed conversion falls back to plain text.
func (s *DetailScraper) description(root *goquery.Selection, logger *logrus.Entry) *string {
	text, ok := extract.Text(root, descriptionSelector)
	if !ok || s.cfg.DescriptionFormat != config.DescriptionMarkdown {
		return extract.Optional(text, ok)
	}
	html, err := root.Find(descriptionSelector).First().Html()
	if err != nil {
		logger.WithError(err).Warn("Reading description HTML failed, keeping plain text")
		return &text
	}
	converted, err := extract.Markdown(html)
	if err != nil {
		logger.WithError(err).Warn("Description Markdown conversion failed, keeping plain text")
		return &text
	}
	return extract.Optional(converted, true)
}

// reviews reads every rated review block. A reviews section wrapping the
// blocks is not itself a review.
func (s *DetailScraper) reviews(root *goquery.Selection, productID string, logger *logrus.Entry) []models.ReviewItem {
	return innermost(root.Find(reviewSelector), reviewSelector, func(i int, el *goquery.Selection) (models.ReviewItem, bool) {
		item, ok, err := safeExtract(func() (models.ReviewItem, bool) {
			return reviewItem(el, productID)
		})
		if err != nil {
			s.itemFailed(logger, entityReview, i, err)
			return item, false
		}
		return item, ok
	})
}

// reviewItem reads one review block. Blocks without a positive rating are
// rejected.
func reviewItem(el *goquery.Selection, productID string) (models.ReviewItem, bool) {
	text, ok := extract.Text(el, reviewRatingSelector)
	if !ok {
		return models.ReviewItem{}, false
	}
	rating, ok := extract.ParseRating(text)
	if !ok || rating <= 0 {
		return models.ReviewItem{}, false
	}
	item := models.ReviewItem{
		ProductID:          productID,
		Rating:             rating,
		ReviewerName:       extract.Optional(extract.Text(el, reviewerSelector)),
		Title:              extract.Optional(extract.Text(el, reviewTitleSelector)),
		Content:            extract.Optional(extract.Text(el, reviewContentSelector)),
		ReviewDate:         extract.Optional(extract.Text(el, reviewDateSelector)),
		IsVerifiedPurchase: extract.Exists(el, verifiedSelector),
	}
	if helpful, ok := extract.Text(el, helpfulSelector); ok {
		if n, ok := extract.ParseFirstInt(helpful); ok {
			item.HelpfulCount = n
		}
	}
	return item, true
}

// uniqueURLs resolves attr of every element in sel, in document order,
// without duplicates
func uniqueURLs(sel *goquery.Selection, attr, pageURL string) []string {
	var urls []string
	seen := make(map[string]bool)
	sel.Each(func(_ int, el *goquery.Selection) {
		v, ok := extract.Attr(el, "", attr)
		if !ok {
			return
		}
		abs := extract.AbsoluteURL(pageURL, v)
		if seen[abs] {
			return
		}
		seen[abs] = true
		urls = append(urls, abs)
	})
	return urls
}
