package scrape

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/catalog-scraper/pkg/extract"
	"github.com/Sriram-PR/catalog-scraper/pkg/models"
	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

func TestRegistry_CoversEveryJobType(t *testing.T) {
	h := newHarness(t, nil)
	reg := NewRegistry(h.base)

	for _, jt := range models.AllJobTypes {
		s, err := reg.Lookup(jt)
		require.NoError(t, err, jt)
		assert.NotNil(t, s)
	}

	_, err := reg.Lookup(models.JobType("SITEMAP"))
	assert.ErrorIs(t, err, utils.ErrUnknownJobType)
}

func TestSafeExtract_RecoversPanic(t *testing.T) {
	_, ok, err := safeExtract(func() (int, bool) {
		var m map[string]int
		m["boom"] = 1
		return 1, true
	})
	assert.False(t, ok)
	assert.ErrorIs(t, err, utils.ErrParsing)

	v, ok, err := safeExtract(func() (int, bool) { return 7, true })
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestInnermost_SkipsContainers(t *testing.T) {
	const html = `<div class="card-list">
  <div class="card"><a href="/a">A</a></div>
  <div class="card"><span class="card-label">no link</span><a href="/b">B</a></div>
  <div class="card"><span>no link either</span></div>
</div>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	const sel = `[class*="card"]`
	got := innermost(doc.Find(sel), sel, func(_ int, el *goquery.Selection) (string, bool) {
		return extract.Attr(el, "a[href]", "href")
	})
	assert.Equal(t, []string{"/a", "/b"}, got)
}

func TestJobParams(t *testing.T) {
	job := models.NewScrapeJob("j1", models.JobTypeProduct, "", models.ProductParams{CategoryID: "c1", MaxPages: 2}, testNow)
	p, err := jobParams[models.ProductParams](job)
	require.NoError(t, err)
	assert.Equal(t, 2, p.MaxPages)

	_, err = jobParams[models.ProductDetailParams](job)
	assert.ErrorIs(t, err, utils.ErrInvalidParams)

	job.Params = models.ProductParams{}
	_, err = jobParams[models.ProductParams](job)
	assert.ErrorIs(t, err, utils.ErrInvalidParams)
}
