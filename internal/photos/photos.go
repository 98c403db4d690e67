// Package photos filters, rewrites and deduplicates listing image URLs.
package photos

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultLimit is the maximum number of photos handed to the renderer
const DefaultLimit = 20

var (
	reImageExt = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|webp)`)
	reWidth    = regexp.MustCompile(`w_(\d+)`)
	reHeight   = regexp.MustCompile(`h_(\d+)`)

	reRewriteWidth   = regexp.MustCompile(`([/,])w_\d+`)
	reRewriteHeight  = regexp.MustCompile(`([/,])h_\d+`)
	reRewriteCrop    = regexp.MustCompile(`([/,])c_(?:limit|scale|thumb|fit|pad)([/,])`)
	reRewriteQuality = regexp.MustCompile(`([/,])q_\d+`)
)

// Rules configures discovery filtering and CDN normalization
type Rules struct {
	// Denylist rejects discovered URLs before normalization
	Denylist []string `yaml:"denylist"`
	// PostDenylist rejects URLs again after normalization
	PostDenylist []string `yaml:"post_denylist"`
	// SourceTokens are hosting/CDN markers that count as a positive signal
	SourceTokens []string `yaml:"source_tokens"`
	// RewriteTokens select URLs whose transform tokens get rewritten
	RewriteTokens []string `yaml:"rewrite_tokens"`

	MinExtensionOnlyLength int `yaml:"min_extension_only_length"`
	MinLength              int `yaml:"min_length"`
	MinDimension           int `yaml:"min_dimension"`

	TargetWidth   int    `yaml:"target_width"`
	TargetHeight  int    `yaml:"target_height"`
	TargetCrop    string `yaml:"target_crop"`
	TargetQuality int    `yaml:"target_quality"`
}

// DefaultRules returns the rules tuned for Cloudinary-hosted portal galleries
func DefaultRules() Rules {
	return Rules{
		Denylist: []string{
			"logo", "icon", "svg", "qr", "footer", "button", "app-store", "avatar", "badge",
			"tracking", "ads", "adserver", "marker", "map", "maps", "staticmap", "pin",
			"emoji", "sprite", "pixel", "spacer", "share",
		},
		PostDenylist: []string{
			"logo", "svg", "icon", "avatar", "banner", "tracking", "pixel", "marker",
			"whatsapp", "facebook", "twitter", "instagram", "youtube", "badge",
		},
		SourceTokens:           []string{"cloudinary", "zonaprop", "inmueble", "property"},
		RewriteTokens:          []string{"cloudinary", "zonaprop"},
		MinExtensionOnlyLength: 80,
		MinLength:              50,
		MinDimension:           200,
		TargetWidth:            1920,
		TargetHeight:           1080,
		TargetCrop:             "c_fill",
		TargetQuality:          90,
	}
}

// Process runs the full discovery pipeline over raw candidate URLs:
// dedup, accept filter, normalization, dedup and post-filter.
func (r Rules) Process(raw []string) []string {
	accepted := make([]string, 0, len(raw))
	for _, u := range Dedup(raw) {
		if r.Accept(u) {
			accepted = append(accepted, u)
		}
	}
	return r.NormalizeAll(accepted)
}

// NormalizeAll rewrites every URL, deduplicates and applies the post denylist.
// Applying it to its own output returns the same list.
func (r Rules) NormalizeAll(urls []string) []string {
	normalized := make([]string, 0, len(urls))
	for _, u := range urls {
		normalized = append(normalized, r.Normalize(u))
	}

	out := make([]string, 0, len(normalized))
	for _, u := range Dedup(normalized) {
		if !containsAny(strings.ToLower(u), r.PostDenylist) {
			out = append(out, u)
		}
	}
	return out
}

// Accept reports whether a discovered URL looks like a listing photo
func (r Rules) Accept(u string) bool {
	lower := strings.ToLower(u)
	if containsAny(lower, r.Denylist) {
		return false
	}

	positive := containsAny(lower, r.SourceTokens) ||
		(reImageExt.MatchString(u) && len(u) > r.MinExtensionOnlyLength)
	if !positive {
		return false
	}

	if w, h, ok := dimensions(u); ok {
		return max(w, h) >= r.MinDimension
	}
	return len(u) > r.MinLength
}

// Normalize rewrites CDN transform tokens to the high-resolution target.
// URLs outside RewriteTokens are returned unchanged.
func (r Rules) Normalize(u string) string {
	if !containsAny(strings.ToLower(u), r.RewriteTokens) {
		return u
	}

	u = reRewriteWidth.ReplaceAllString(u, "${1}w_"+strconv.Itoa(r.TargetWidth))
	u = reRewriteHeight.ReplaceAllString(u, "${1}h_"+strconv.Itoa(r.TargetHeight))
	u = replaceCrop(u, r.TargetCrop)
	u = reRewriteQuality.ReplaceAllString(u, "${1}q_"+strconv.Itoa(r.TargetQuality))
	return u
}

// replaceCrop loops because adjacent crop tokens share a separator
func replaceCrop(u, crop string) string {
	for {
		next := reRewriteCrop.ReplaceAllString(u, "${1}"+crop+"${2}")
		if next == u {
			return u
		}
		u = next
	}
}

// dimensions extracts w_/h_ transform tokens. ok is false when neither is present.
func dimensions(u string) (w, h int, ok bool) {
	if m := reWidth.FindStringSubmatch(u); m != nil {
		w, _ = strconv.Atoi(m[1])
		ok = true
	}
	if m := reHeight.FindStringSubmatch(u); m != nil {
		h, _ = strconv.Atoi(m[1])
		ok = true
	}
	return w, h, ok
}

// Dedup removes exact duplicates, keeping the first occurrence
func Dedup(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// Limit truncates the list to n entries
func Limit(urls []string, n int) []string {
	if n <= 0 || len(urls) <= n {
		return urls
	}
	return urls[:n]
}

// containsAny matches tokens of three letters or fewer on word boundaries and
// longer tokens as plain substrings. s must already be lower-cased.
func containsAny(s string, tokens []string) bool {
	for _, tok := range tokens {
		tok = strings.ToLower(tok)
		if tok == "" {
			continue
		}
		if len(tok) > 3 {
			if strings.Contains(s, tok) {
				return true
			}
			continue
		}
		if containsWord(s, tok) {
			return true
		}
	}
	return false
}

func containsWord(s, word string) bool {
	for i := 0; ; {
		idx := strings.Index(s[i:], word)
		if idx < 0 {
			return false
		}
		start := i + idx
		end := start + len(word)
		if (start == 0 || !isAlnum(s[start-1])) && (end == len(s) || !isAlnum(s[end])) {
			return true
		}
		i = start + 1
	}
}

func isAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
