package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"  plain  ", "plain"},
		{"The\n\t Hobbit   (Paperback)", "The Hobbit (Paperback)"},
		{"  nbsp  ", "nbsp"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanText(tt.in), "CleanText(%q)", tt.in)
	}
}

func TestText(t *testing.T) {
	doc := mustDoc(t, `
		<div class="card">
			<h3>  Dune
			   Messiah </h3>
			<span class="empty">   </span>
			<p class="a">first</p><p class="a">second</p>
		</div>`)
	card := doc.Find(".card")

	got, ok := Text(card, "h3")
	assert.True(t, ok)
	assert.Equal(t, "Dune Messiah", got)

	got, ok = Text(card, ".a")
	assert.True(t, ok)
	assert.Equal(t, "first", got, "first match wins")

	_, ok = Text(card, ".missing")
	assert.False(t, ok)

	_, ok = Text(card, ".empty")
	assert.False(t, ok, "whitespace-only text is absent")

	_, ok = Text(card, "[[[")
	assert.False(t, ok, "invalid selector degrades to absent")

	_, ok = Text(nil, "h3")
	assert.False(t, ok)

	got, ok = Text(doc.Find("p.a").Last(), "")
	assert.True(t, ok)
	assert.Equal(t, "second", got)
}

func TestAttr(t *testing.T) {
	doc := mustDoc(t, `<div><a href=" /en-gb/product/123 ">x</a><a>no href</a><img src=""></div>`)
	root := doc.Find("div")

	got, ok := Attr(root, "a", "href")
	assert.True(t, ok)
	assert.Equal(t, "/en-gb/product/123", got)

	_, ok = Attr(root, "img", "src")
	assert.False(t, ok, "empty attribute is absent")

	_, ok = Attr(root, "a", "title")
	assert.False(t, ok)

	_, ok = Attr(root, "video", "src")
	assert.False(t, ok)

	got, ok = Attr(doc.Find("a").First(), "", "href")
	assert.True(t, ok)
	assert.Equal(t, "/en-gb/product/123", got)
}

func TestExists(t *testing.T) {
	doc := mustDoc(t, `<div class="card"><span class="out-of-stock">Sold</span></div>`)
	assert.True(t, Exists(doc.Selection, ".out-of-stock, [class*=\"sold-out\"]"))
	assert.False(t, Exists(doc.Selection, ".in-stock"))
	assert.False(t, Exists(nil, ".x"))
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"£12,345.67 used", 12345.67, true},
		{"£3.49", 3.49, true},
		{"Now 1,000", 1000, true},
		{"RRP £8.99 Save 50%", 8.99, true},
		{"Free", 0, false},
		{"", 0, false},
		{", only commas ,", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParsePrice(tt.in)
		assert.Equal(t, tt.wantOK, ok, "ParsePrice(%q) ok", tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, "ParsePrice(%q)", tt.in)
	}
}

func TestParseRating(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"80", 4.0, true},
		{"4.3", 4.3, true},
		{"Rated 4.5 out of 5", 4.5, true},
		{"5", 5, true},
		{"92%", 4.6, true},
		{"100", 5, true},
		{"no stars", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseRating(tt.in)
		assert.Equal(t, tt.wantOK, ok, "ParseRating(%q) ok", tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, "ParseRating(%q)", tt.in)
	}
}

func TestParseFirstInt(t *testing.T) {
	n, ok := ParseFirstInt("320 pages")
	assert.True(t, ok)
	assert.Equal(t, 320, n)

	_, ok = ParseFirstInt("unknown")
	assert.False(t, ok)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 4.0, Round2(4.0))
	assert.Equal(t, 3.67, Round2(11.0/3.0))
	assert.Equal(t, 4.33, Round2(13.0/3.0))
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Fiction Books", "fiction-books"},
		{"  Children's & Young Adult ", "children-s-young-adult"},
		{"---Rare---", "rare"},
		{"Sci-Fi 2024", "sci-fi-2024"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in), "Slugify(%q)", tt.in)
	}
}

func TestAbsoluteURL(t *testing.T) {
	base := "https://www.worldofbooks.com/en-gb/books"
	tests := []struct {
		href, want string
	}{
		{"/en-gb/books/fiction", "https://www.worldofbooks.com/en-gb/books/fiction"},
		{"fiction", "https://www.worldofbooks.com/en-gb/fiction"},
		{"https://cdn.example.com/a.jpg", "https://cdn.example.com/a.jpg"},
		{"//cdn.example.com/b.jpg", "https://cdn.example.com/b.jpg"},
		{"  ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AbsoluteURL(base, tt.href), "AbsoluteURL(%q)", tt.href)
	}
	assert.Equal(t, "/relative", AbsoluteURL("not a base", "/relative"))
}

func TestProductSKU(t *testing.T) {
	assert.Equal(t, "GOR003456789", ProductSKU("https://www.worldofbooks.com/en-gb/product/GOR003456789?x=1", "Dune", "1"))

	a := ProductSKU("https://www.worldofbooks.com/en-gb/books/dune", "Dune: Part One", "1700000000000")
	b := ProductSKU("https://www.worldofbooks.com/en-gb/books/dune-2", "dune part one", "1700000000000")
	assert.Equal(t, a, b, "normalized titles collide within a run")
	assert.True(t, strings.HasPrefix(a, "WOB-"))
	assert.True(t, strings.HasSuffix(a, "-1700000000000"))
	assert.Len(t, a, len("WOB-")+12+len("-1700000000000"))

	c := ProductSKU("https://www.worldofbooks.com/en-gb/books/dune", "Dune: Part One", "1700000000001")
	assert.NotEqual(t, a, c, "different runs do not collide")
}

func TestOptionalHelpers(t *testing.T) {
	assert.Nil(t, Optional("", true))
	assert.Nil(t, Optional("x", false))
	require.NotNil(t, Optional("x", true))
	assert.Equal(t, "x", *Optional("x", true))

	assert.Nil(t, OptionalFloat(1, false))
	assert.Equal(t, 2.5, *OptionalFloat(2.5, true))
	assert.Nil(t, OptionalInt(1, false))
	assert.Equal(t, 7, *OptionalInt(7, true))
}

func TestMarkdown(t *testing.T) {
	out, err := Markdown(`<p>A <strong>classic</strong> novel.</p>`)
	require.NoError(t, err)
	assert.Equal(t, "A **classic** novel.", out)
}
