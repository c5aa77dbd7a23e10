// Package extract holds the DOM readers and text normalizers shared by the
// entity scrapers. Readers never fail: a missing or unreadable field is
// reported as absent.
package extract

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	priceRe      = regexp.MustCompile(`\d[\d,]*\.?\d*`)
	decimalRe    = regexp.MustCompile(`\d+(?:\.\d+)?`)
	integerRe    = regexp.MustCompile(`\d+`)
	nonSlugRe    = regexp.MustCompile(`[^a-z0-9]+`)
)

// CleanText trims s and collapses whitespace runs into single spaces
func CleanText(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// Text returns the cleaned text of the first element under sel matching
// selector. An empty selector reads sel itself.
func Text(sel *goquery.Selection, selector string) (text string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			text, ok = "", false
		}
	}()
	target := first(sel, selector)
	if target == nil {
		return "", false
	}
	text = CleanText(target.Text())
	return text, text != ""
}

// Attr returns the trimmed value of attr on the first element under sel
// matching selector. An empty selector reads sel itself.
func Attr(sel *goquery.Selection, selector, attr string) (value string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			value, ok = "", false
		}
	}()
	target := first(sel, selector)
	if target == nil {
		return "", false
	}
	v, exists := target.Attr(attr)
	v = strings.TrimSpace(v)
	return v, exists && v != ""
}

// Exists reports whether selector matches anything under sel
func Exists(sel *goquery.Selection, selector string) (found bool) {
	defer func() {
		if r := recover(); r != nil {
			found = false
		}
	}()
	return sel != nil && sel.Find(selector).Length() > 0
}

func first(sel *goquery.Selection, selector string) *goquery.Selection {
	if sel == nil {
		return nil
	}
	if selector == "" {
		if sel.Length() == 0 {
			return nil
		}
		return sel.First()
	}
	found := sel.Find(selector)
	if found.Length() == 0 {
		return nil
	}
	return found.First()
}

// ParsePrice reads the first number in s, allowing thousands separators.
// "£12,345.67 used" is 12345.67; text without digits is absent.
func ParsePrice(s string) (float64, bool) {
	m := priceRe.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseRating reads the first decimal number in s and maps it onto 0-5.
// Values above 5 are treated as percentages and divided by 20.
func ParseRating(s string) (float64, bool) {
	m := decimalRe.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	if v > 5 {
		v /= 20
	}
	return v, true
}

// ParseFirstInt reads the first run of digits in s
func ParseFirstInt(s string) (int, bool) {
	m := integerRe.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Round2 rounds v to two decimal places
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Slugify lowercases s and joins its alphanumeric runs with dashes
func Slugify(s string) string {
	return strings.Trim(nonSlugRe.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

// AbsoluteURL resolves href against base. Absolute hrefs are returned as is;
// unparsable input is returned unchanged.
func AbsoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if ref.IsAbs() {
		return ref.String()
	}
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return href
	}
	return b.ResolveReference(ref).String()
}

// Optional returns a pointer to s, or nil when s is empty
func Optional(s string, ok bool) *string {
	if !ok || s == "" {
		return nil
	}
	return &s
}

// OptionalFloat returns a pointer to v, or nil when absent
func OptionalFloat(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}

// OptionalInt returns a pointer to n, or nil when absent
func OptionalInt(n int, ok bool) *int {
	if !ok {
		return nil
	}
	return &n
}
