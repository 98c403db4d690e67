// Package extractor reads structured listing data out of a rendered page.
//
// Every field is found by an ordered chain of strategies that falls back to a
// fixed default, so a page that defeats all heuristics still yields a
// complete ListingData. Only navigation failure is reported as an error.
package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/cuongbtq/listing-flyer/internal/browser"
)

// Progress receives human-readable status lines
type Progress func(line string)

// Extractor drives a page and applies a SiteProfile to its snapshot
type Extractor struct {
	profile *SiteProfile
	logger  *slog.Logger
}

// New creates an extractor. A nil profile selects DefaultSiteProfile.
func New(profile *SiteProfile, logger *slog.Logger) (*Extractor, error) {
	if profile == nil {
		def := DefaultSiteProfile()
		profile = &def
	}
	if err := profile.Compile(); err != nil {
		return nil, fmt.Errorf("invalid site profile: %w", err)
	}
	return &Extractor{profile: profile, logger: logger}, nil
}

// Extract navigates page to url, reveals the gallery and parses the result
func (e *Extractor) Extract(ctx context.Context, page browser.Page, url string, progress Progress) (*ListingData, error) {
	if progress == nil {
		progress = func(string) {}
	}

	progress("🌐 Abriendo página...")
	if err := page.Navigate(ctx, url); err != nil {
		return nil, fmt.Errorf("navigation failed: %w", err)
	}

	progress("📸 Buscando galería de fotos...")
	clicked, err := page.RevealGallery(ctx, e.profile.GalleryTriggers)
	if err != nil {
		e.logger.Warn("Gallery trigger failed", slog.String("url", url), slog.Any("error", err))
	} else if !clicked {
		e.logger.Debug("No gallery trigger found", slog.String("url", url))
	}

	progress("📊 Extrayendo datos de la propiedad...")
	snap, err := page.Snapshot(ctx)
	if err != nil {
		e.logger.Warn("Failed to capture page", slog.String("url", url), slog.Any("error", err))
		progress(fmt.Sprintf("⚠️ Error extrayendo: %v", err))
		return NewListingData(), nil
	}

	return e.Parse(snap, progress), nil
}

// Parse applies every strategy chain to a captured page
func (e *Extractor) Parse(snap *browser.Snapshot, progress Progress) *ListingData {
	if progress == nil {
		progress = func(string) {}
	}
	data := NewListingData()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snap.HTML))
	if err != nil {
		e.logger.Warn("Failed to parse page markup", slog.Any("error", err))
		progress(fmt.Sprintf("⚠️ Error extrayendo: %v", err))
		return data
	}

	d := &document{doc: doc, html: snap.HTML, text: snap.Text}
	if d.text == "" {
		d.text = browser.VisibleText(doc.Find("body"))
	}

	p := e.profile
	e.step("title", progress, func() { data.Title = p.title(d) })
	e.step("price", progress, func() { data.Price = p.price(d) })
	e.step("location", progress, func() { data.Location = p.location(d) })
	progress(fmt.Sprintf("✅ %s | %s", truncate(data.Title, 50), data.Price))

	progress("🖼️ Capturando fotos en alta resolución...")
	e.step("photos", progress, func() { data.Photos = p.discoverPhotos(d) })
	progress(fmt.Sprintf("✅ %d fotos capturadas", len(data.Photos)))

	e.step("description", progress, func() { data.Description = p.description(d) })
	e.step("details", progress, func() { data.Details = details(d.text) })
	e.step("features", progress, func() { data.Features = p.features(d) })
	e.step("extra", progress, func() { data.Extra = extra(d.text) })

	e.logger.Debug("Listing extracted",
		slog.String("title", data.Title),
		slog.String("price", data.Price),
		slog.Int("photos", len(data.Photos)),
		slog.Int("features", len(data.Features)),
	)

	return data
}

// step runs one strategy chain; a panic leaves that field at its default
func (e *Extractor) step(name string, progress Progress, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("Extraction step failed",
				slog.String("step", name),
				slog.Any("panic", r),
			)
			progress(fmt.Sprintf("⚠️ Error extrayendo %s: %v", name, r))
		}
	}()
	fn()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
