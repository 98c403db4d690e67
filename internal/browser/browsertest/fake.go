// Package browsertest provides an in-memory browser.Page for tests.
package browsertest

import (
	"context"
	"sync"

	"github.com/cuongbtq/listing-flyer/internal/browser"
)

// Page serves a fixed snapshot
type Page struct {
	HTML        string
	Text        string
	NavigateErr error
	SnapshotErr error
	// Clicked is returned from RevealGallery
	Clicked bool

	mu         sync.Mutex
	navigated  string
	triggers   []browser.Trigger
	closed     bool
	onNavigate func(ctx context.Context) error
}

// OnNavigate installs a hook that runs inside Navigate before it returns
func (p *Page) OnNavigate(fn func(ctx context.Context) error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onNavigate = fn
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	p.navigated = url
	hook := p.onNavigate
	p.mu.Unlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			return err
		}
	}
	return p.NavigateErr
}

func (p *Page) RevealGallery(ctx context.Context, triggers []browser.Trigger) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.triggers = triggers
	return p.Clicked, nil
}

func (p *Page) Snapshot(ctx context.Context) (*browser.Snapshot, error) {
	if p.SnapshotErr != nil {
		return nil, p.SnapshotErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return &browser.Snapshot{URL: p.navigated, HTML: p.HTML, Text: p.Text}, nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// NavigatedTo returns the last URL passed to Navigate
func (p *Page) NavigatedTo() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.navigated
}

// Triggers returns the gallery triggers passed to RevealGallery
func (p *Page) Triggers() []browser.Trigger {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.triggers
}

// Closed reports whether Close was called
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Launcher hands out Pages built by New
type Launcher struct {
	New     func() *Page
	OpenErr error

	mu     sync.Mutex
	opened []*Page
}

func (l *Launcher) Open(ctx context.Context) (browser.Page, error) {
	if l.OpenErr != nil {
		return nil, l.OpenErr
	}
	p := l.New()
	l.mu.Lock()
	l.opened = append(l.opened, p)
	l.mu.Unlock()
	return p, nil
}

// Opened returns every Page handed out so far
func (l *Launcher) Opened() []*Page {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Page(nil), l.opened...)
}
