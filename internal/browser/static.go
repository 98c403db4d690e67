package browser

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

// StaticLauncher fetches pages over plain HTTP without running scripts.
// Listings rendered client-side come back mostly empty, so extraction falls
// back to its defaults.
type StaticLauncher struct {
	opts   Options
	logger *slog.Logger
}

// NewStaticLauncher creates a launcher backed by colly
func NewStaticLauncher(opts Options, logger *slog.Logger) *StaticLauncher {
	return &StaticLauncher{opts: opts, logger: logger}
}

func (l *StaticLauncher) Open(ctx context.Context) (Page, error) {
	return &staticPage{opts: l.opts, logger: l.logger}, nil
}

type staticPage struct {
	opts   Options
	logger *slog.Logger
	url    string
	body   []byte
}

func (p *staticPage) Navigate(ctx context.Context, url string) error {
	c := colly.NewCollector(
		colly.UserAgent(p.opts.userAgent()),
		colly.StdlibContext(ctx),
		colly.AllowURLRevisit(),
	)
	if p.opts.NavigationTimeout > 0 {
		c.SetRequestTimeout(p.opts.NavigationTimeout)
	}

	var (
		body     []byte
		finalURL string
		fetchErr error
	)
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
		finalURL = r.Request.URL.String()
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("request %s failed with status %d: %w", r.Request.URL, r.StatusCode, err)
	})

	if err := c.Visit(url); err != nil {
		if fetchErr != nil {
			return fetchErr
		}
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	c.Wait()

	if fetchErr != nil {
		return fetchErr
	}

	p.url = finalURL
	p.body = body

	p.logger.Debug("Fetched static page",
		slog.String("url", finalURL),
		slog.Int("bytes", len(body)),
	)

	return sleep(ctx, p.opts.SettleDelay)
}

// RevealGallery is a no-op because no scripts run on a static page
func (p *staticPage) RevealGallery(ctx context.Context, triggers []Trigger) (bool, error) {
	return false, nil
}

func (p *staticPage) Snapshot(ctx context.Context) (*Snapshot, error) {
	if p.body == nil {
		return nil, fmt.Errorf("no page loaded")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	html, err := doc.Html()
	if err != nil {
		return nil, fmt.Errorf("failed to render page: %w", err)
	}

	return &Snapshot{
		URL:  p.url,
		HTML: html,
		Text: VisibleText(doc.Find("body")),
	}, nil
}

func (p *staticPage) Close() error {
	p.body = nil
	return nil
}

// skippedElements never contribute visible text
var skippedElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"head": true, "svg": true, "iframe": true, "#comment": true,
}

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "dd": true,
	"div": true, "dl": true, "dt": true, "figcaption": true, "figure": true,
	"footer": true, "form": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "header": true, "li": true, "main": true, "nav": true,
	"ol": true, "p": true, "pre": true, "section": true, "table": true, "tr": true,
	"ul": true, "td": true, "th": true,
}

// VisibleText approximates the browser's innerText: script and hidden content
// is dropped, block elements start new lines, and whitespace inside each line
// is collapsed. Empty lines are removed.
func VisibleText(sel *goquery.Selection) string {
	var b strings.Builder
	walkText(sel, &b)

	lines := strings.Split(b.String(), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func walkText(sel *goquery.Selection, b *strings.Builder) {
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		name := goquery.NodeName(s)
		switch {
		case name == "#text":
			b.WriteString(s.Text())
		case skippedElements[name]:
		case name == "br":
			b.WriteByte('\n')
		case isHidden(s):
		default:
			block := blockElements[name]
			if block {
				b.WriteByte('\n')
			}
			walkText(s, b)
			if block {
				b.WriteByte('\n')
			}
		}
	})
}

func isHidden(s *goquery.Selection) bool {
	if _, ok := s.Attr("hidden"); ok {
		return true
	}
	style := strings.ReplaceAll(strings.ToLower(s.AttrOr("style", "")), " ", "")
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}
