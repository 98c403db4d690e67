package extractor

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	reRooms     = regexp.MustCompile(`(\d+)\s*(?:ambientes?|amb\.?)`)
	reBedrooms  = regexp.MustCompile(`(\d+)\s*(?:dormitorios?|habitacion)`)
	reBathrooms = regexp.MustCompile(`(\d+)\s*(?:baños?|banos?)`)

	// most specific pattern first
	reTotalArea = []*regexp.Regexp{
		regexp.MustCompile(`(?:sup\.?\s*(?:total|tot\.?)?|superficie\s*total)\s*:?\s*([\d.,]+)\s*m[²2]`),
		regexp.MustCompile(`([\d.,]+)\s*m[²2]\s*(?:totales?|total)`),
		regexp.MustCompile(`([\d.,]+)\s*m[²2]`),
	}
	reCoveredArea = []*regexp.Regexp{
		regexp.MustCompile(`(?:sup\.?\s*(?:cubierta|cub\.?)?|superficie\s*cubierta)\s*:?\s*([\d.,]+)\s*m[²2]`),
		regexp.MustCompile(`([\d.,]+)\s*m[²2]\s*(?:cubiertos?|cubierta)`),
	}

	reAge            = regexp.MustCompile(`(?i)(?:antigüedad|antiguedad)\s*[:\-]?\s*(\d+\s*a[ñn]os?|a\s*estrenar|en\s*construcción|nuevo)`)
	reMaintenanceFee = regexp.MustCompile(`(?i)expensas?\s*[:\-]?\s*(USD|\$)?\s*([\d.,]+)`)
)

func firstGroup(text string, patterns ...*regexp.Regexp) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

func details(text string) Details {
	lower := strings.ToLower(text)
	return Details{
		Rooms:       firstGroup(lower, reRooms, reBedrooms),
		Bathrooms:   firstGroup(lower, reBathrooms),
		TotalArea:   firstGroup(lower, reTotalArea...),
		CoveredArea: firstGroup(lower, reCoveredArea...),
	}
}

func extra(text string) Extra {
	var e Extra
	if m := reAge.FindStringSubmatch(text); m != nil {
		e.Age = strings.TrimSpace(m[1])
	}
	if m := reMaintenanceFee.FindString(text); m != "" {
		e.MaintenanceFee = strings.TrimSpace(m)
	}
	return e
}

// validFeature accepts short amenity phrases such as "3 amb." or "con balcon"
func (p *SiteProfile) validFeature(t string) bool {
	l := strings.ToLower(strings.TrimSpace(t))
	if n := runeLen(l); n < p.FeatureMinLength || n > p.FeatureMaxLength {
		return false
	}
	if containsAny(l, p.FeatureDenylist) {
		return false
	}
	if p.compiled.featureReject != nil && p.compiled.featureReject.MatchString(l) {
		return false
	}
	for _, re := range p.compiled.featurePatterns {
		if re.MatchString(l) {
			return true
		}
	}
	return false
}

func (p *SiteProfile) features(d *document) []string {
	seen := make(map[string]struct{})
	out := []string{}
	add := func(t string) {
		t = flatten(t)
		if !p.validFeature(t) {
			return
		}
		key := strings.ToLower(t)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}

	for _, sel := range p.FeatureSelectors {
		d.doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			add(elementText(s))
		})
	}

	if len(out) < p.FeatureLineScanBelow {
		for _, line := range strings.Split(d.text, "\n") {
			add(line)
		}
	}

	if p.MaxFeatures > 0 && len(out) > p.MaxFeatures {
		out = out[:p.MaxFeatures]
	}
	return out
}
