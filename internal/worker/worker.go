// Package worker runs flyer jobs in the background and streams their progress.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cuongbtq/listing-flyer/internal/browser"
	"github.com/cuongbtq/listing-flyer/internal/extractor"
	"github.com/cuongbtq/listing-flyer/internal/profile"
	"github.com/cuongbtq/listing-flyer/internal/worker/domain"
)

// Extractor reads listing data from a page
type Extractor interface {
	Extract(ctx context.Context, page browser.Page, url string, progress extractor.Progress) (*extractor.ListingData, error)
}

// Renderer turns listing data into a flyer document
type Renderer interface {
	Render(data *extractor.ListingData, agent profile.AgentProfile, formURL string) ([]byte, error)
}

// Publisher hosts a flyer and returns its public URL
type Publisher interface {
	Publish(ctx context.Context, html []byte, token, siteNameHint string) (string, bool)
}

// Config holds job manager dependencies and settings
type Config struct {
	Logger    *slog.Logger
	Launcher  browser.Launcher
	Extractor Extractor
	Renderer  Renderer
	Publisher Publisher
	Profiles  profile.Store
	// Notifier is optional
	Notifier Notifier

	// Concurrency caps running pipelines. Zero means unlimited.
	Concurrency       int
	JobTimeout        time.Duration
	HeartbeatInterval time.Duration
	Retention         time.Duration
	SweepInterval     time.Duration
	MaxPhotos         int
}

// Manager owns the in-memory job table
type Manager struct {
	logger    *slog.Logger
	launcher  browser.Launcher
	extractor Extractor
	renderer  Renderer
	publisher Publisher
	profiles  profile.Store
	notifier  Notifier

	jobTimeout        time.Duration
	heartbeatInterval time.Duration
	retention         time.Duration
	sweepInterval     time.Duration
	maxPhotos         int

	// slots is nil when concurrency is unlimited
	slots chan struct{}

	mu     sync.RWMutex
	jobs   map[string]*job
	closed bool

	// ctx bounds every pipeline; cancelled when Shutdown gives up waiting
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// NewManager creates a job manager
func NewManager(cfg *Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		logger:            cfg.Logger,
		launcher:          cfg.Launcher,
		extractor:         cfg.Extractor,
		renderer:          cfg.Renderer,
		publisher:         cfg.Publisher,
		profiles:          cfg.Profiles,
		notifier:          cfg.Notifier,
		jobTimeout:        cfg.JobTimeout,
		heartbeatInterval: cfg.HeartbeatInterval,
		retention:         cfg.Retention,
		sweepInterval:     cfg.SweepInterval,
		maxPhotos:         cfg.MaxPhotos,
		jobs:              make(map[string]*job),
		ctx:               ctx,
		cancel:            cancel,
		stopChan:          make(chan struct{}),
		now:               time.Now,
	}

	if cfg.Concurrency > 0 {
		m.slots = make(chan struct{}, cfg.Concurrency)
	}
	if m.notifier == nil {
		m.notifier = NopNotifier{}
	}
	if m.heartbeatInterval <= 0 {
		m.heartbeatInterval = 30 * time.Second
	}
	return m
}

// Start runs the retention janitor until ctx is done or Shutdown is called
func (m *Manager) Start(ctx context.Context) {
	m.logger.Info("Starting job manager",
		slog.Int("concurrency", cap(m.slots)),
		slog.Duration("job_timeout", m.jobTimeout),
		slog.Duration("retention", m.retention),
	)

	if m.retention > 0 && m.sweepInterval > 0 {
		go m.janitor(ctx)
	}
}

// Shutdown rejects new jobs and waits for running pipelines. If ctx expires
// first, the remaining pipelines are cancelled.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Stopping job manager...")

	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.stopOnce.Do(func() { close(m.stopChan) })

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.cancel()
		m.logger.Info("Job manager stopped")
		return nil
	case <-ctx.Done():
		m.cancel()
		return fmt.Errorf("job manager shutdown timed out: %w", ctx.Err())
	}
}

// Submit validates the request, starts its pipeline and returns the job id
// without waiting for the pipeline.
func (m *Manager) Submit(ctx context.Context, req domain.SubmitRequest) (string, error) {
	listingURL, err := validateURL(req.URL)
	if err != nil {
		return "", err
	}
	if req.Owner == "" {
		return "", domain.NewValidationError("owner", errors.New("owner is required"))
	}

	var stored profile.AgentProfile
	if m.profiles != nil {
		stored, err = m.profiles.GetProfile(ctx, req.Owner)
		if err != nil {
			return "", fmt.Errorf("failed to load profile: %w", err)
		}
	}
	agent := stored.Merge(req.Overrides)

	j := newJob(uuid.NewString(), req.Owner, listingURL, m.now())

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", domain.ErrManagerClosed
	}
	m.jobs[j.info.ID] = j
	m.wg.Add(1)
	m.mu.Unlock()

	m.logger.Info("Job submitted",
		slog.String("job_id", j.info.ID),
		slog.String("user_id", req.Owner),
		slog.String("url", listingURL),
	)

	go m.runJob(j, agent)

	return j.info.ID, nil
}

func validateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", domain.NewValidationError("url", domain.ErrInvalidURL)
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", domain.NewValidationError("url", domain.ErrInvalidURL)
	}
	return raw, nil
}

// lookup reports missing jobs as ErrForbidden too, so callers cannot probe
// which ids exist.
func (m *Manager) lookup(jobID, caller string) (*job, error) {
	m.mu.RLock()
	j, ok := m.jobs[jobID]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %w", domain.ErrForbidden, domain.ErrJobNotFound)
	}
	if j.owner() != caller {
		return nil, domain.ErrForbidden
	}
	return j, nil
}

// Get returns a snapshot of the job
func (m *Manager) Get(jobID, caller string) (domain.Job, error) {
	j, err := m.lookup(jobID, caller)
	if err != nil {
		return domain.Job{}, err
	}
	return j.snapshot(), nil
}

// Flyer returns the rendered document, which exists even when publishing failed
func (m *Manager) Flyer(jobID, caller string) ([]byte, error) {
	j, err := m.lookup(jobID, caller)
	if err != nil {
		return nil, err
	}

	html := j.flyerHTML()
	if html == nil {
		return nil, domain.ErrFlyerNotReady
	}
	return html, nil
}

// List returns the caller's jobs, newest first
func (m *Manager) List(caller string) []domain.Job {
	m.mu.RLock()
	jobs := make([]domain.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		if j.owner() == caller {
			jobs = append(jobs, j.snapshot())
		}
	}
	m.mu.RUnlock()

	slices.SortFunc(jobs, func(a, b domain.Job) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return jobs
}
