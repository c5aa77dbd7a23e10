package scrape

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/catalog-scraper/pkg/extract"
	"github.com/Sriram-PR/catalog-scraper/pkg/models"
)

const navLinkSelector = "nav.main-navigation a, header nav a, .navigation-menu a"

// ignoredNavKeywords mark account and checkout links in the site menu
var ignoredNavKeywords = []string{"cart", "checkout", "login", "account", "sign in", "register", "search"}

// NavigationScraper collects the top-level menu of the site
type NavigationScraper struct {
	*Base
}

// NewNavigationScraper returns a NavigationScraper over base
func NewNavigationScraper(base *Base) *NavigationScraper {
	return &NavigationScraper{Base: base}
}

// Scrape visits job.URL, or the site root when empty, and reconciles every
// accepted menu link.
func (s *NavigationScraper) Scrape(ctx context.Context, job *models.ScrapeJob) (Outcome, error) {
	logger := jobLogger(s.log, job).WithField("component", "navigation_scraper")
	if _, err := jobParams[models.NavigationParams](job); err != nil {
		return Outcome{}, err
	}

	target := job.URL
	if target == "" {
		target = s.cfg.BaseURL
	}
	page, err := s.visit(ctx, target, s.cfg.Settle.Navigation, logger)
	if err != nil {
		return Outcome{}, err
	}

	items := s.extract(page.Doc.Selection, page.URL, logger)
	logger.Infof("Found %d navigation items", len(items))

	out := Outcome{Found: len(items)}
	for i, item := range items {
		if err := s.paceWrite(ctx); err != nil {
			return out, err
		}
		if _, err := s.reconcile.Navigation(ctx, item); err != nil {
			s.itemFailed(logger, entityNavigation, i, err)
			continue
		}
		s.metrics.IncReconciled(entityNavigation)
		out.Reconciled++
	}
	logger.Infof("Saved %d navigation items", out.Reconciled)
	return out, nil
}

func (s *NavigationScraper) extract(root *goquery.Selection, pageURL string, logger *logrus.Entry) []models.NavigationItem {
	var items []models.NavigationItem
	seen := make(map[string]bool)

	root.Find(navLinkSelector).Each(func(i int, link *goquery.Selection) {
		item, ok, err := safeExtract(func() (models.NavigationItem, bool) {
			name, hasName := extract.Text(link, "")
			href, hasHref := extract.Attr(link, "", "href")
			if !hasName || !hasHref || strings.HasPrefix(href, "#") {
				return models.NavigationItem{}, false
			}
			return models.NavigationItem{Name: name, URL: extract.AbsoluteURL(pageURL, href)}, true
		})
		if err != nil {
			s.itemFailed(logger, entityNavigation, i, err)
			return
		}
		if !ok {
			logger.WithField("item_index", i).Debug("Navigation link without name or href, skipping")
			return
		}
		if isIgnoredNavLink(item.Name, item.URL) {
			logger.WithFields(logrus.Fields{"name": item.Name, "url": item.URL}).Debug("Ignoring non-catalog link")
			return
		}
		if seen[item.URL] {
			return
		}
		seen[item.URL] = true
		item.Position = len(items)
		items = append(items, item)
	})
	return items
}

// isIgnoredNavLink reports whether the link name or URL names an account,
// cart or search page
func isIgnoredNavLink(name, linkURL string) bool {
	lowerName := strings.ToLower(name)
	lowerURL := strings.ToLower(linkURL)
	for _, kw := range ignoredNavKeywords {
		if strings.Contains(lowerName, kw) || strings.Contains(lowerURL, kw) {
			return true
		}
	}
	return false
}
