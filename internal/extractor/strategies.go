package extractor

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/cuongbtq/listing-flyer/internal/browser"
)

var (
	reCurrency = regexp.MustCompile(`(?i)USD|\$|AR\$`)
	reAmount   = regexp.MustCompile(`[\d.,]+`)
	reBodyUSD  = regexp.MustCompile(`(?i)(?:USD|U\$S)\s*[\d.,]+`)
	reBodyPeso = regexp.MustCompile(`\$\s*[\d.,]+`)
)

// document is a parsed page snapshot
type document struct {
	doc  *goquery.Document
	html string
	text string
}

// elementText returns the visible text of s, one block per line
func elementText(s *goquery.Selection) string {
	return strings.TrimSpace(browser.VisibleText(s))
}

// flatten joins all lines and collapses whitespace
func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// firstMatch returns the first selector whose first element passes accept
func firstMatch(d *document, selectors []string, accept func(string) bool) (string, bool) {
	for _, sel := range selectors {
		t := elementText(d.doc.Find(sel).First())
		if t != "" && accept(t) {
			return t, true
		}
	}
	return "", false
}

func (p *SiteProfile) title(d *document) string {
	if t, ok := firstMatch(d, p.TitleSelectors, func(t string) bool {
		return runeLen(flatten(t)) > p.TitleMinLength
	}); ok {
		return flatten(t)
	}

	if name := jsonLDName(d.doc, p.TitleMinLength); name != "" {
		return name
	}
	return DefaultTitle
}

// jsonLDName returns the last structured-data name longer than minLength
func jsonLDName(doc *goquery.Document, minLength int) string {
	var name string
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var obj map[string]any
		if err := json.Unmarshal([]byte(s.Text()), &obj); err != nil {
			return
		}
		if n, ok := obj["name"].(string); ok {
			if n = strings.TrimSpace(n); runeLen(n) > minLength {
				name = n
			}
		}
	})
	return name
}

func (p *SiteProfile) price(d *document) string {
	if t, ok := firstMatch(d, p.PriceSelectors, func(t string) bool {
		return reCurrency.MatchString(t) && reAmount.MatchString(t)
	}); ok {
		return flatten(t)
	}

	if m := reBodyUSD.FindString(d.text); m != "" {
		return strings.TrimSpace(m)
	}
	if m := reBodyPeso.FindString(d.text); m != "" {
		return strings.TrimSpace(m)
	}
	return DefaultPrice
}

func (p *SiteProfile) location(d *document) string {
	if t, ok := firstMatch(d, p.LocationSelectors, func(t string) bool {
		n := runeLen(t)
		return n > p.LocationMinLength && n < p.LocationMaxLength
	}); ok {
		return flatten(t)
	}
	return DefaultLocation
}

func (p *SiteProfile) description(d *document) string {
	if t, ok := firstMatch(d, p.DescriptionSelectors, func(t string) bool {
		n := runeLen(t)
		return n > p.DescriptionMinLength && n < p.DescriptionMaxLength &&
			!containsAny(strings.ToLower(t), p.DescriptionBoilerplate)
	}); ok {
		return p.cleanDescription(t)
	}

	var best string
	d.doc.Find(p.DescriptionFallbackSelector).Each(func(_ int, s *goquery.Selection) {
		t := elementText(s)
		n := runeLen(t)
		if n <= p.DescriptionFallbackMinLength || n >= p.DescriptionFallbackMaxLength {
			return
		}
		if containsAny(strings.ToLower(t), p.DescriptionKeywords) && n > runeLen(best) {
			best = t
		}
	})
	if best == "" {
		return DefaultDescription
	}
	return p.cleanDescription(best)
}

// cleanDescription collapses whitespace inside lines, keeps line breaks and
// strips trailing "read more" links
func (p *SiteProfile) cleanDescription(t string) string {
	lines := strings.Split(t, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = flatten(line); line != "" {
			kept = append(kept, line)
		}
	}
	t = strings.Join(kept, "\n")

	for trimmed := true; trimmed; {
		trimmed = false
		for _, trailer := range p.DescriptionTrailers {
			if trailer != "" && len(t) >= len(trailer) && strings.EqualFold(t[len(t)-len(trailer):], trailer) {
				t = strings.TrimSpace(t[:len(t)-len(trailer)])
				trimmed = true
				break
			}
		}
	}

	if t == "" {
		return DefaultDescription
	}
	return t
}
