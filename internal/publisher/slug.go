package publisher

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	defaultSitePrefix = "ficha"
	maxSlugLength     = 50
)

var reNonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Slug folds accents to ASCII, lower-cases and joins alphanumeric runs with hyphens.
// The result is at most 50 bytes and never starts or ends with a hyphen.
func Slug(s string) string {
	fold := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	folded, _, err := transform.String(fold, s)
	if err != nil {
		folded = s
	}

	slug := reNonAlnum.ReplaceAllString(strings.ToLower(folded), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxSlugLength {
		slug = slug[:maxSlugLength]
	}
	return strings.Trim(slug, "-")
}

// SiteName builds the hosting site name from a hint and a uniqueness suffix
func SiteName(hint, suffix string) string {
	slug := Slug(hint)
	if slug == "" {
		slug = defaultSitePrefix
	}
	return slug + "-" + suffix
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:4]
}
