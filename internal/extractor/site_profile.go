package extractor

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/cuongbtq/listing-flyer/internal/browser"
	"github.com/cuongbtq/listing-flyer/internal/photos"
)

// SiteProfile holds every portal-specific convention the extractor relies on.
// Supporting another portal means loading a different profile.
type SiteProfile struct {
	GalleryTriggers []browser.Trigger `yaml:"gallery_triggers"`

	TitleSelectors []string `yaml:"title_selectors"`
	TitleMinLength int      `yaml:"title_min_length"`

	PriceSelectors []string `yaml:"price_selectors"`

	LocationSelectors []string `yaml:"location_selectors"`
	LocationMinLength int      `yaml:"location_min_length"`
	LocationMaxLength int      `yaml:"location_max_length"`

	DescriptionSelectors         []string `yaml:"description_selectors"`
	DescriptionMinLength         int      `yaml:"description_min_length"`
	DescriptionMaxLength         int      `yaml:"description_max_length"`
	DescriptionBoilerplate       []string `yaml:"description_boilerplate"`
	DescriptionFallbackSelector  string   `yaml:"description_fallback_selector"`
	DescriptionFallbackMinLength int      `yaml:"description_fallback_min_length"`
	DescriptionFallbackMaxLength int      `yaml:"description_fallback_max_length"`
	DescriptionKeywords          []string `yaml:"description_keywords"`
	DescriptionTrailers          []string `yaml:"description_trailers"`

	FeatureSelectors     []string `yaml:"feature_selectors"`
	FeatureDenylist      []string `yaml:"feature_denylist"`
	FeatureRejectPattern string   `yaml:"feature_reject_pattern"`
	FeaturePatterns      []string `yaml:"feature_patterns"`
	FeatureMinLength     int      `yaml:"feature_min_length"`
	FeatureMaxLength     int      `yaml:"feature_max_length"`
	// FeatureLineScanBelow triggers a scan of every visible line when fewer features were found
	FeatureLineScanBelow int `yaml:"feature_line_scan_below"`
	MaxFeatures          int `yaml:"max_features"`

	PhotoAttributes     []string     `yaml:"photo_attributes"`
	PhotoSkipTokens     []string     `yaml:"photo_skip_tokens"`
	PhotoMarkupPatterns []string     `yaml:"photo_markup_patterns"`
	Photos              photos.Rules `yaml:"photos"`

	compiled *compiledProfile
}

type compiledProfile struct {
	featureReject   *regexp.Regexp
	featurePatterns []*regexp.Regexp
	photoMarkup     []*regexp.Regexp
}

// DefaultSiteProfile returns the conventions of the default listing portal
func DefaultSiteProfile() SiteProfile {
	return SiteProfile{
		GalleryTriggers: []browser.Trigger{
			{Selector: "button", Text: "fotos"},
			{Selector: `[data-qa*="gallery"]`},
			{Selector: `[data-qa*="GALLERY"]`},
			{Selector: `[class*="gallery"] button`},
			{Selector: `[class*="photo-count"]`},
		},

		TitleSelectors: []string{
			`h1[data-qa="POSTING_TITLE"]`,
			`[data-qa="POSTING_TITLE"]`,
			`h1[class*="posting"]`,
			`[class*="PostingTitle"]`,
			`h1[class*="title"]`,
			`h1`,
		},
		TitleMinLength: 10,

		PriceSelectors: []string{
			`[data-qa="POSTING_CARD_PRICE"]`,
			`[data-qa*="price"]`,
			`[class*="price-value"]`,
			`[class*="Price"]`,
			`.price`,
		},

		LocationSelectors: []string{
			`[data-qa="POSTING_CARD_LOCATION"]`,
			`[data-qa*="location"]`,
			`[class*="posting-location"]`,
			`[class*="PostingLocation"]`,
			`[itemprop="address"]`,
			`address`,
		},
		LocationMinLength: 5,
		LocationMaxLength: 150,

		DescriptionSelectors: []string{
			`[data-qa="POSTING_DESCRIPTION"]`,
			`[data-qa="posting-description"]`,
			`#posting-description`,
			`.posting-description`,
			`[class*="PostingDescription"]`,
			`[class*="postingDescription"]`,
			`[class*="description-content"]`,
		},
		DescriptionMinLength:         50,
		DescriptionMaxLength:         5000,
		DescriptionBoilerplate:       []string{"iniciar sesión", "cookie"},
		DescriptionFallbackSelector:  "p, div > span",
		DescriptionFallbackMinLength: 80,
		DescriptionFallbackMaxLength: 4000,
		DescriptionKeywords: []string{
			"ambiente", "baño", "cocina", "living", "dormitorio", "metros", "m²",
			"departamento", "propiedad", "piso", "balcón", "terraza",
		},
		DescriptionTrailers: []string{"Ver más", "Leer más"},

		FeatureSelectors: []string{
			`[class*="posting-features"] span`,
			`[class*="PostingFeatures"] span`,
			`[class*="icon-feature"] span`,
			`[class*="main-features"] span`,
		},
		FeatureDenylist: []string{
			"cód", "cod", "anunciante", "zonaprop", "ver más", "contactar", "whatsapp",
			"compartir", "favorito", "publicar", "ingresar", "registrate", "iniciar sesión",
			"barracas", "palermo", "recoleta", "belgrano", "caballito", "flores", "almagro",
			"villa", "san telmo", "puerto madero", "buscar", "filtrar",
		},
		FeatureRejectPattern: `\d+\s*ambientes?\s*:`,
		FeaturePatterns: []string{
			`(?i)^\d+\s*m[²2]\s*(tot|cub)\.?$`,
			`(?i)^\d+\s*amb\.?$`,
			`(?i)^\d+\s*baños?$`,
			`(?i)^\d+\s*dorm\.?$`,
			`(?i)^\d+\s*toilettes?$`,
			`(?i)^a\s*estrenar$`,
			`(?i)^\d+\s*cocheras?$`,
			`(?i)^\d+\s*dormitorios?$`,
			`(?i)^con\s+(balcon|terraza|patio|cochera|pileta)`,
			`(?i)^(balcon|terraza|patio|cochera|pileta|quincho|parrilla|gimnasio|sum|laundry|lavadero|baulera|ascensor|seguridad|portero)$`,
		},
		FeatureMinLength:     3,
		FeatureMaxLength:     30,
		FeatureLineScanBelow: 4,
		MaxFeatures:          10,

		PhotoAttributes: []string{"src", "data-src", "data-lazy-src", "data-original"},
		PhotoSkipTokens: []string{"logo", "icon", "svg"},
		PhotoMarkupPatterns: []string{
			`(?i)https://[^"'\s]+cloudinary[^"'\s]+\.(jpg|jpeg|png|webp)`,
			`(?i)https://[^"'\s]+zonaprop[^"'\s]+\.(jpg|jpeg|png|webp)`,
		},
		Photos: photos.DefaultRules(),
	}
}

// LoadSiteProfile reads a YAML file over the default profile. Keys missing from
// the file keep their default values; lists present in the file replace the defaults.
func LoadSiteProfile(path string) (*SiteProfile, error) {
	profile := DefaultSiteProfile()
	if path == "" {
		return &profile, profile.Compile()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read site profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse site profile: %w", err)
	}

	if err := profile.Compile(); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Compile validates and caches the profile's regular expressions
func (p *SiteProfile) Compile() error {
	c := &compiledProfile{}

	if p.FeatureRejectPattern != "" {
		re, err := regexp.Compile(p.FeatureRejectPattern)
		if err != nil {
			return fmt.Errorf("invalid feature_reject_pattern: %w", err)
		}
		c.featureReject = re
	}

	for _, pattern := range p.FeaturePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("invalid feature pattern %q: %w", pattern, err)
		}
		c.featurePatterns = append(c.featurePatterns, re)
	}

	for _, pattern := range p.PhotoMarkupPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("invalid photo markup pattern %q: %w", pattern, err)
		}
		c.photoMarkup = append(c.photoMarkup, re)
	}

	p.compiled = c
	return nil
}
