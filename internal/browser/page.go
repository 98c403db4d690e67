// Package browser drives a page so listing data can be read from its rendered
// markup. Every job gets its own Page and never shares it.
package browser

import (
	"context"
	"time"
)

// Trigger identifies a clickable element that reveals the photo gallery.
// Text, when set, must appear in the element's text (case-insensitive).
type Trigger struct {
	Selector string `yaml:"selector" json:"selector"`
	Text     string `yaml:"text,omitempty" json:"text,omitempty"`
}

// Snapshot is the page state the extractor reads from
type Snapshot struct {
	URL  string
	HTML string
	// Text is the visible text of the body, one block per line
	Text string
}

// Page is a single browser tab or fetched document
type Page interface {
	// Navigate loads url and waits for the page to settle
	Navigate(ctx context.Context, url string) error
	// RevealGallery clicks the first visible trigger. It reports whether anything was clicked.
	RevealGallery(ctx context.Context, triggers []Trigger) (bool, error)
	// Snapshot captures the current markup and visible text
	Snapshot(ctx context.Context) (*Snapshot, error)
	Close() error
}

// Launcher opens a fresh Page
type Launcher interface {
	Open(ctx context.Context) (Page, error)
}

// Options holds page driver settings shared by all drivers
type Options struct {
	Headless          bool
	ExecPath          string
	UserAgent         string
	WindowWidth       int
	WindowHeight      int
	NavigationTimeout time.Duration
	SettleDelay       time.Duration
	GalleryDelay      time.Duration
	// TriggerWait bounds how long each gallery trigger may take to become visible
	TriggerWait time.Duration
}

// DefaultUserAgent is sent when no user agent is configured
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func (o Options) userAgent() string {
	if o.UserAgent == "" {
		return DefaultUserAgent
	}
	return o.UserAgent
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
