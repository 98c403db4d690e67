// Package flyer renders listing data into a self-contained HTML document.
package flyer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"github.com/cuongbtq/listing-flyer/internal/extractor"
	"github.com/cuongbtq/listing-flyer/internal/profile"
)

// FallbackLogo replaces missing photos when the agent has no logo
const FallbackLogo = "https://w7.pngwing.com/pngs/402/497/png-transparent-re-max-llc-estate-agent-re-max-alliance-pender-real-estate-house-house-balloon-logo-property.png"

const (
	minPhotos   = 3
	maxThumbs   = 12
	maxFeatures = 12
)

//go:embed templates/flyer.html.tmpl
var templateFS embed.FS

// Renderer turns ListingData into flyer HTML. It is safe for concurrent use.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the embedded flyer template
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("flyer.html.tmpl").
		Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
		ParseFS(templateFS, "templates/flyer.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse flyer template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

type view struct {
	Title          string
	Price          string
	Location       string
	Paragraphs     []string
	Photos         []string
	Thumbs         []string
	Features       []string
	Age            string
	MaintenanceFee string
	AgentName      string
	Contact        string
	Logo           string
	LeadURL        string
}

// Render produces the flyer document. Identical inputs yield identical bytes.
func (r *Renderer) Render(data *extractor.ListingData, agent profile.AgentProfile, formURL string) ([]byte, error) {
	logo := agent.LogoURL
	if logo == "" {
		logo = FallbackLogo
	}

	photos := padPhotos(data.Photos, logo)

	v := view{
		Title:          data.Title,
		Price:          data.Price,
		Location:       data.Location,
		Paragraphs:     paragraphs(data.Description),
		Photos:         photos,
		Thumbs:         photos[:min(len(photos), maxThumbs)],
		Features:       MergeFeatures(data.Features, data.Details),
		Age:            data.Extra.Age,
		MaintenanceFee: data.Extra.MaintenanceFee,
		AgentName:      agent.Name,
		Contact:        digits(agent.Contact),
		Logo:           logo,
		LeadURL:        leadURL(formURL, data),
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, v); err != nil {
		return nil, fmt.Errorf("failed to render flyer: %w", err)
	}
	return buf.Bytes(), nil
}

// padPhotos returns a copy with at least three entries
func padPhotos(photos []string, fill string) []string {
	out := make([]string, 0, max(len(photos), minPhotos))
	out = append(out, photos...)
	for len(out) < minPhotos {
		out = append(out, fill)
	}
	return out
}

// MergeFeatures adds the numeric details as feature labels unless an existing
// feature already covers them, then caps the list.
func MergeFeatures(features []string, d extractor.Details) []string {
	seen := make(map[string]struct{}, len(features))
	out := make([]string, 0, len(features)+4)
	for _, f := range features {
		key := strings.ToLower(strings.TrimSpace(f))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, f)
	}

	joined := strings.ToLower(strings.Join(out, " "))

	if d.TotalArea != "" && !strings.Contains(joined, "tot") {
		out = insertAt(out, 0, d.TotalArea+" m² tot.")
	}
	if d.CoveredArea != "" && !strings.Contains(joined, "cub") {
		idx := 0
		if d.TotalArea != "" {
			idx = 1
		}
		out = insertAt(out, idx, d.CoveredArea+" m² cub.")
	}
	if d.Rooms != "" && !strings.Contains(joined, "amb") {
		out = append(out, d.Rooms+" amb.")
	}
	if d.Bathrooms != "" && !strings.Contains(joined, "baño") && !strings.Contains(joined, "bano") {
		out = append(out, d.Bathrooms+" baños")
	}

	if len(out) > maxFeatures {
		out = out[:maxFeatures]
	}
	return out
}

func insertAt(s []string, idx int, v string) []string {
	idx = min(idx, len(s))
	s = append(s, "")
	copy(s[idx+1:], s[idx:])
	s[idx] = v
	return s
}

func paragraphs(description string) []string {
	var out []string
	for _, line := range strings.Split(description, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	if len(out) == 0 {
		return []string{description}
	}
	return out
}

// leadURL prefills the form's first field with the listing location
func leadURL(formURL string, data *extractor.ListingData) string {
	if formURL == "" {
		return ""
	}
	subject := data.Location
	if subject == "" {
		subject = data.Title
	}
	sep := "?"
	if strings.Contains(formURL, "?") {
		sep = "&"
	}
	return formURL + sep + "entry.0=" + strings.ReplaceAll(url.QueryEscape(subject), "+", "%20")
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
