package extractor

import (
	"encoding/json"
	"html"
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	reBackgroundURL = regexp.MustCompile(`(?i)url\(['"]?(https?[^'")]+)`)
	reEmbeddedImage = regexp.MustCompile(`(?i)https?:.*\.(jpg|jpeg|png|webp)`)
)

// discoverPhotos gathers candidate image URLs from every place a gallery can
// hide them, then filters and normalizes them. Order of first discovery is kept.
func (p *SiteProfile) discoverPhotos(d *document) []string {
	var found []string

	d.doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		for _, attr := range p.PhotoAttributes {
			u := strings.TrimSpace(img.AttrOr(attr, ""))
			if strings.Contains(u, "http") && len(u) > 30 && !containsAny(u, p.PhotoSkipTokens) {
				found = append(found, u)
			}
		}
	})

	d.doc.Find("img[srcset], source[srcset]").Each(func(_ int, s *goquery.Selection) {
		found = append(found, srcsetURLs(s.AttrOr("srcset", ""))...)
	})

	d.doc.Find(`[style*="background-image"]`).Each(func(_ int, s *goquery.Selection) {
		if m := reBackgroundURL.FindStringSubmatch(s.AttrOr("style", "")); m != nil {
			found = append(found, m[1])
		}
	})

	for _, re := range p.compiled.photoMarkup {
		for _, u := range re.FindAllString(d.html, -1) {
			found = append(found, html.UnescapeString(u))
		}
	}

	d.doc.Find("script#__NEXT_DATA__").Each(func(_ int, s *goquery.Selection) {
		var v any
		if err := json.Unmarshal([]byte(s.Text()), &v); err == nil {
			collectImageStrings(v, &found)
		}
	})

	return p.Photos.Process(found)
}

func srcsetURLs(srcset string) []string {
	var urls []string
	for _, candidate := range strings.Split(srcset, ",") {
		fields := strings.Fields(candidate)
		if len(fields) > 0 && strings.Contains(fields[0], "http") {
			urls = append(urls, fields[0])
		}
	}
	return urls
}

// collectImageStrings walks decoded JSON. Object keys are visited in sorted
// order so results do not depend on map iteration.
func collectImageStrings(v any, out *[]string) {
	switch t := v.(type) {
	case string:
		if reEmbeddedImage.MatchString(t) {
			*out = append(*out, t)
		}
	case []any:
		for _, item := range t {
			collectImageStrings(item, out)
		}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			collectImageStrings(t[k], out)
		}
	}
}
