package scrape

import (
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/catalog-scraper/pkg/extract"
	"github.com/Sriram-PR/catalog-scraper/pkg/models"
)

const (
	categorySelector    = `.category-grid .category-item, .categories-list a, .category-card, [class*="category"]`
	subcategorySelector = `.subcategory-list a, .sub-categories a, [class*="subcategory"]`

	categoryNameSelector  = "h2, h3, .category-name, .title"
	categoryDescSelector  = "p, .description"
	categoryImageSelector = "img[src]"
	categoryLinkSelector  = "a[href]"
)

// CategoryScraper collects the categories linked from a navigation page,
// or the subcategories of a parent category when the job names one.
type CategoryScraper struct {
	*Base
}

// NewCategoryScraper returns a CategoryScraper over base
func NewCategoryScraper(base *Base) *CategoryScraper {
	return &CategoryScraper{Base: base}
}

// Scrape resolves the referenced navigation (and parent), visits the
// listing page and reconciles each category by slug.
func (s *CategoryScraper) Scrape(ctx context.Context, job *models.ScrapeJob) (Outcome, error) {
	logger := jobLogger(s.log, job).WithField("component", "category_scraper")
	params, err := jobParams[models.CategoryParams](job)
	if err != nil {
		return Outcome{}, err
	}

	nav, err := s.store.GetNavigation(ctx, params.NavigationID)
	if err != nil {
		return Outcome{}, fmt.Errorf("resolving navigation %s: %w", params.NavigationID, err)
	}

	target := job.URL
	if target == "" {
		target = nav.URL
	}
	scope := categoryScope{selector: categorySelector, navigationID: nav.ID}

	if params.ParentID != "" {
		parent, err := s.store.GetCategory(ctx, params.ParentID)
		if err != nil {
			return Outcome{}, fmt.Errorf("resolving parent category %s: %w", params.ParentID, err)
		}
		if job.URL == "" {
			target = parent.URL
		}
		scope.selector = subcategorySelector
		scope.parentID = parent.ID
		if parent.NavigationID != nil {
			scope.navigationID = *parent.NavigationID
		}
		logger = logger.WithField("parent_id", parent.ID)
	}

	page, err := s.visit(ctx, target, s.cfg.Settle.Category, logger)
	if err != nil {
		return Outcome{}, err
	}

	items := s.extract(page.Doc.Selection, page.URL, scope, logger)
	logger.Infof("Found %d categories", len(items))

	out := Outcome{Found: len(items)}
	for i, item := range items {
		if err := s.paceWrite(ctx); err != nil {
			return out, err
		}
		if _, err := s.reconcile.Category(ctx, item); err != nil {
			s.itemFailed(logger, entityCategory, i, err)
			continue
		}
		s.metrics.IncReconciled(entityCategory)
		out.Reconciled++
	}
	logger.Infof("Saved %d categories", out.Reconciled)
	return out, nil
}

// categoryScope is what a category page run links its items to
type categoryScope struct {
	selector     string
	navigationID string
	parentID     string
}

func (s *CategoryScraper) extract(root *goquery.Selection, pageURL string, scope categoryScope, logger *logrus.Entry) []models.CategoryItem {
	found := innermost(root.Find(scope.selector), scope.selector, func(i int, el *goquery.Selection) (models.CategoryItem, bool) {
		item, ok, err := safeExtract(func() (models.CategoryItem, bool) {
			return categoryItem(el, pageURL)
		})
		if err != nil {
			s.itemFailed(logger, entityCategory, i, err)
			return item, false
		}
		if !ok {
			logger.WithField("item_index", i).Debug("Category element without name or link, skipping")
		}
		return item, ok
	})

	var items []models.CategoryItem
	seen := make(map[string]bool)
	for _, item := range found {
		if seen[item.Slug] {
			continue
		}
		seen[item.Slug] = true

		navID := scope.navigationID
		item.NavigationID = &navID
		if scope.parentID != "" {
			parentID := scope.parentID
			item.ParentID = &parentID
		}
		items = append(items, item)
	}
	return items
}

// categoryItem reads one category card or link. The name falls back to the
// element's own text and the link to a nested anchor.
func categoryItem(el *goquery.Selection, pageURL string) (models.CategoryItem, bool) {
	name, ok := extract.Text(el, categoryNameSelector)
	if !ok {
		name, ok = extract.Text(el, "")
	}
	if !ok {
		return models.CategoryItem{}, false
	}
	href, ok := extract.Attr(el, "", "href")
	if !ok {
		href, ok = extract.Attr(el, categoryLinkSelector, "href")
	}
	if !ok {
		return models.CategoryItem{}, false
	}
	slug := extract.Slugify(name)
	if slug == "" {
		return models.CategoryItem{}, false
	}

	item := models.CategoryItem{
		Name: name,
		Slug: slug,
		URL:  extract.AbsoluteURL(pageURL, href),
	}
	if src, ok := extract.Attr(el, categoryImageSelector, "src"); ok {
		abs := extract.AbsoluteURL(pageURL, src)
		item.ImageURL = &abs
	}
	item.Description = extract.Optional(extract.Text(el, categoryDescSelector))
	return item, true
}
