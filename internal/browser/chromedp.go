package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/chromedp/chromedp"
)

// revealScript clicks the first visible element matching a trigger. %s is the JSON trigger list.
const revealScript = `(function(triggers) {
	for (const t of triggers) {
		let nodes;
		try { nodes = document.querySelectorAll(t.selector); } catch (e) { continue; }
		for (const el of nodes) {
			const rect = el.getBoundingClientRect();
			const style = window.getComputedStyle(el);
			if (rect.width === 0 || rect.height === 0 || style.visibility === 'hidden' || style.display === 'none') continue;
			if (t.text && !(el.innerText || '').toLowerCase().includes(t.text.toLowerCase())) continue;
			el.click();
			return true;
		}
	}
	return false;
})(%s)`

const visibleTextScript = `document.body ? document.body.innerText : ""`

// ChromeLauncher starts one headless Chrome per Page
type ChromeLauncher struct {
	opts   Options
	logger *slog.Logger
}

// NewChromeLauncher creates a launcher backed by chromedp
func NewChromeLauncher(opts Options, logger *slog.Logger) *ChromeLauncher {
	return &ChromeLauncher{opts: opts, logger: logger}
}

// Open allocates a browser process and a tab. The browser lives until Close
// or until ctx is canceled.
func (l *ChromeLauncher) Open(ctx context.Context) (Page, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(l.opts.userAgent()),
	)
	if l.opts.WindowWidth > 0 && l.opts.WindowHeight > 0 {
		allocOpts = append(allocOpts, chromedp.WindowSize(l.opts.WindowWidth, l.opts.WindowHeight))
	}
	if l.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(l.opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	// the first Run starts the browser bound to tabCtx
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	l.logger.Debug("Browser launched",
		slog.Bool("headless", l.opts.Headless),
		slog.Int("window_width", l.opts.WindowWidth),
	)

	return &chromePage{
		opts:        l.opts,
		tabCtx:      tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
	}, nil
}

type chromePage struct {
	opts        Options
	tabCtx      context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
}

// runCtx derives an action context from the tab that also ends with ctx
func (p *chromePage) runCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(p.tabCtx)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := p.runCtx(ctx)
	defer cancel()

	navCtx := runCtx
	if p.opts.NavigationTimeout > 0 {
		var navCancel context.CancelFunc
		navCtx, navCancel = context.WithTimeout(runCtx, p.opts.NavigationTimeout)
		defer navCancel()
	}

	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	return sleep(runCtx, p.opts.SettleDelay)
}

// RevealGallery tries each trigger in order: wait up to TriggerWait for it to
// become visible, then click it. Only the first trigger that clicks counts.
func (p *chromePage) RevealGallery(ctx context.Context, triggers []Trigger) (bool, error) {
	runCtx, cancel := p.runCtx(ctx)
	defer cancel()

	for _, t := range triggers {
		if p.opts.TriggerWait > 0 {
			waitCtx, cancelWait := context.WithTimeout(runCtx, p.opts.TriggerWait)
			err := chromedp.Run(waitCtx, chromedp.WaitVisible(t.Selector, chromedp.ByQuery))
			cancelWait()
			if err != nil {
				if runCtx.Err() != nil {
					return false, runCtx.Err()
				}
				continue
			}
		}

		expr, err := revealExpr(t)
		if err != nil {
			return false, err
		}

		var clicked bool
		if err := chromedp.Run(runCtx, chromedp.Evaluate(expr, &clicked)); err != nil {
			return false, fmt.Errorf("failed to reveal gallery: %w", err)
		}
		if clicked {
			return true, sleep(runCtx, p.opts.GalleryDelay)
		}
	}

	return false, nil
}

func revealExpr(t Trigger) (string, error) {
	payload, err := json.Marshal([]Trigger{t})
	if err != nil {
		return "", fmt.Errorf("failed to encode gallery trigger: %w", err)
	}
	return fmt.Sprintf(revealScript, payload), nil
}

func (p *chromePage) Snapshot(ctx context.Context) (*Snapshot, error) {
	runCtx, cancel := p.runCtx(ctx)
	defer cancel()

	var snap Snapshot
	err := chromedp.Run(runCtx,
		chromedp.Location(&snap.URL),
		chromedp.OuterHTML("html", &snap.HTML, chromedp.ByQuery),
		chromedp.Evaluate(visibleTextScript, &snap.Text),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to capture page: %w", err)
	}
	return &snap, nil
}

func (p *chromePage) Close() error {
	p.cancelTab()
	p.cancelAlloc()
	return nil
}
