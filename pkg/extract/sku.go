package extract

import (
	"regexp"
	"strings"

	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

var (
	productSegmentRe = regexp.MustCompile(`/product/([^/?#]+)`)
	nonAlnumRe       = regexp.MustCompile(`[^a-z0-9]`)
)

// ProductSKU derives a product's natural key. The /product/<id> path
// segment is used when present; otherwise the key is a hash of the
// normalized title plus suffix. Callers pass one suffix per job run so
// identical titles within a run collide and dedup.
func ProductSKU(productURL, title, suffix string) string {
	if m := productSegmentRe.FindStringSubmatch(productURL); m != nil {
		return m[1]
	}
	normalized := nonAlnumRe.ReplaceAllString(strings.ToLower(title), "")
	sku := "WOB-" + utils.ShortHash(normalized, 12)
	if suffix != "" {
		sku += "-" + suffix
	}
	return sku
}
