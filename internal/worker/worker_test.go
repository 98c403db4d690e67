package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/listing-flyer/internal/browser/browsertest"
	"github.com/cuongbtq/listing-flyer/internal/extractor"
	"github.com/cuongbtq/listing-flyer/internal/flyer"
	"github.com/cuongbtq/listing-flyer/internal/profile"
	"github.com/cuongbtq/listing-flyer/internal/worker/domain"
)

const (
	owner      = "user-1"
	listingURL = "https://www.zonaprop.com.ar/propiedades/depto-123.html"
	emptyPage  = "<html><body><p>nada por aquí</p></body></html>"
)

type memStore struct {
	mu       sync.Mutex
	profiles map[string]profile.AgentProfile
}

func (s *memStore) GetProfile(ctx context.Context, userID string) (profile.AgentProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profiles[userID], nil
}

func (s *memStore) SaveProfile(ctx context.Context, userID string, p profile.AgentProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[userID] = p
	return nil
}

type fakePublisher struct {
	url   string
	ok    bool
	delay time.Duration

	mu    sync.Mutex
	calls []publishCall
}

type publishCall struct {
	token string
	hint  string
	html  []byte
}

func (p *fakePublisher) Publish(ctx context.Context, html []byte, token, hint string) (string, bool) {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return "", false
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, publishCall{token: token, hint: hint, html: html})
	return p.url, p.ok
}

func (p *fakePublisher) Calls() []publishCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishCall(nil), p.calls...)
}

type panicRenderer struct{}

func (panicRenderer) Render(*extractor.ListingData, profile.AgentProfile, string) ([]byte, error) {
	panic("template exploded")
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.CompletionEvent
	err    error
}

func (n *recordingNotifier) NotifyCompletion(ctx context.Context, ev domain.CompletionEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

func (n *recordingNotifier) Events() []domain.CompletionEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.CompletionEvent(nil), n.events...)
}

type testEnv struct {
	manager   *Manager
	launcher  *browsertest.Launcher
	publisher *fakePublisher
	store     *memStore
	notifier  *recordingNotifier
}

func newTestEnv(t *testing.T, page func() *browsertest.Page, mutate func(cfg *Config)) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ext, err := extractor.New(nil, logger)
	require.NoError(t, err)
	renderer, err := flyer.NewRenderer()
	require.NoError(t, err)

	env := &testEnv{
		launcher:  &browsertest.Launcher{New: page},
		publisher: &fakePublisher{},
		store:     &memStore{profiles: map[string]profile.AgentProfile{}},
		notifier:  &recordingNotifier{},
	}

	cfg := &Config{
		Logger:            logger,
		Launcher:          env.launcher,
		Extractor:         ext,
		Renderer:          renderer,
		Publisher:         env.publisher,
		Profiles:          env.store,
		Notifier:          env.notifier,
		JobTimeout:        10 * time.Second,
		HeartbeatInterval: 5 * time.Second,
		MaxPhotos:         20,
	}
	if mutate != nil {
		mutate(cfg)
	}

	env.manager = NewManager(cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = env.manager.Shutdown(ctx)
	})
	return env
}

func staticPage(html string) func() *browsertest.Page {
	return func() *browsertest.Page { return &browsertest.Page{HTML: html} }
}

// collect drains a subscription and fails the test if it does not terminate
func collect(t *testing.T, m *Manager, jobID, caller string) []domain.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	seq, err := m.Subscribe(ctx, jobID, caller)
	require.NoError(t, err)

	var events []domain.Event
	for ev := range seq {
		events = append(events, ev)
	}
	require.NoError(t, ctx.Err(), "subscription did not reach a terminal event")
	return events
}

func progressLines(events []domain.Event) []string {
	var lines []string
	for _, ev := range events {
		if ev.Kind == domain.EventProgress {
			lines = append(lines, ev.Data)
		}
	}
	return lines
}

func assertSingleTerminal(t *testing.T, events []domain.Event, wantKind string) domain.Event {
	t.Helper()
	require.NotEmpty(t, events)

	terminals := 0
	for _, ev := range events {
		if ev.Terminal() {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals)

	last := events[len(events)-1]
	assert.Equal(t, wantKind, last.Kind)
	return last
}

func TestManager_Submit_Validation(t *testing.T) {
	env := newTestEnv(t, staticPage(emptyPage), nil)

	tests := []struct {
		name    string
		req     domain.SubmitRequest
		wantErr error
	}{
		{name: "empty url", req: domain.SubmitRequest{URL: "  ", Owner: owner}, wantErr: domain.ErrInvalidURL},
		{name: "unsupported scheme", req: domain.SubmitRequest{URL: "ftp://example.com/a", Owner: owner}, wantErr: domain.ErrInvalidURL},
		{name: "no host", req: domain.SubmitRequest{URL: "https://", Owner: owner}, wantErr: domain.ErrInvalidURL},
		{name: "missing owner", req: domain.SubmitRequest{URL: listingURL}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := env.manager.Submit(context.Background(), tt.req)
			require.Error(t, err)
			assert.Empty(t, id)

			var verr *domain.ValidationError
			assert.ErrorAs(t, err, &verr)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}

	assert.Empty(t, env.launcher.Opened())
}

func TestManager_AllSelectorsFail_CompletesWithDefaults(t *testing.T) {
	env := newTestEnv(t, staticPage(emptyPage), nil)

	id, err := env.manager.Submit(context.Background(), domain.SubmitRequest{URL: listingURL, Owner: owner})
	require.NoError(t, err)

	events := collect(t, env.manager, id, owner)
	done := assertSingleTerminal(t, events, domain.EventDone)
	assert.Empty(t, done.Data)

	lines := progressLines(events)
	require.NotEmpty(t, lines)
	assert.Equal(t, lineStart, lines[0])
	assert.Contains(t, lines, "✅ Propiedad en Venta | Consultar precio")
	assert.Contains(t, lines, lineNoToken)
	assert.Equal(t, lineCompleted, lines[len(lines)-1])
	assert.Empty(t, env.publisher.Calls())

	job, err := env.manager.Get(id, owner)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusDone, job.Status)
	assert.Empty(t, job.ResultURL)
	assert.False(t, job.FinishedAt.IsZero())

	html, err := env.manager.Flyer(id, owner)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Propiedad en Venta")

	pages := env.launcher.Opened()
	require.Len(t, pages, 1)
	assert.Equal(t, listingURL, pages[0].NavigatedTo())
	assert.True(t, pages[0].Closed())
}

func TestManager_Publish(t *testing.T) {
	tests := []struct {
		name      string
		publisher *fakePublisher
		wantURL   string
		wantLine  string
	}{
		{
			name:      "published",
			publisher: &fakePublisher{url: "https://ver-en-el-portal-ab12.netlify.app", ok: true},
			wantURL:   "https://ver-en-el-portal-ab12.netlify.app",
			wantLine:  "🔗 https://ver-en-el-portal-ab12.netlify.app",
		},
		{
			name:      "invalid credential degrades to done without url",
			publisher: &fakePublisher{},
			wantLine:  linePublishFail,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, staticPage(emptyPage), func(cfg *Config) { cfg.Publisher = tt.publisher })
			env.store.profiles[owner] = profile.AgentProfile{Name: "Ana", HostingToken: "stored-token"}

			id, err := env.manager.Submit(context.Background(), domain.SubmitRequest{
				URL:       listingURL,
				Owner:     owner,
				Overrides: profile.AgentProfile{HostingToken: "override-token"},
			})
			require.NoError(t, err)

			events := collect(t, env.manager, id, owner)
			done := assertSingleTerminal(t, events, domain.EventDone)
			assert.Equal(t, tt.wantURL, done.Data)

			lines := progressLines(events)
			assert.Contains(t, lines, linePublish)
			assert.Contains(t, lines, tt.wantLine)
			assert.Equal(t, lineCompleted, lines[len(lines)-1])

			calls := tt.publisher.Calls()
			require.Len(t, calls, 1)
			assert.Equal(t, "override-token", calls[0].token)
			assert.Equal(t, extractor.DefaultLocation, calls[0].hint)
			assert.Contains(t, string(calls[0].html), "Ana")

			job, err := env.manager.Get(id, owner)
			require.NoError(t, err)
			assert.Equal(t, domain.JobStatusDone, job.Status)
			assert.Equal(t, tt.wantURL, job.ResultURL)
		})
	}
}

func TestManager_PipelineFailures(t *testing.T) {
	tests := []struct {
		name     string
		page     func() *browsertest.Page
		mutate   func(cfg *Config)
		wantLine string
	}{
		{
			name:     "navigation failure",
			page:     func() *browsertest.Page { return &browsertest.Page{NavigateErr: errors.New("net::ERR_NAME_NOT_RESOLVED")} },
			wantLine: "❌ Error: extract: navigation failed: net::ERR_NAME_NOT_RESOLVED",
		},
		{
			name:     "browser launch failure",
			page:     staticPage(emptyPage),
			mutate:   func(cfg *Config) { cfg.Launcher = &browsertest.Launcher{OpenErr: errors.New("chrome not found")} },
			wantLine: "❌ Error: browser: chrome not found",
		},
		{
			name:     "panic is recovered",
			page:     staticPage(emptyPage),
			mutate:   func(cfg *Config) { cfg.Renderer = panicRenderer{} },
			wantLine: "❌ Error: panic: template exploded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.page, tt.mutate)

			id, err := env.manager.Submit(context.Background(), domain.SubmitRequest{URL: listingURL, Owner: owner})
			require.NoError(t, err)

			events := collect(t, env.manager, id, owner)
			errEv := assertSingleTerminal(t, events, domain.EventError)
			assert.Empty(t, errEv.Data)

			lines := progressLines(events)
			assert.Equal(t, tt.wantLine, lines[len(lines)-1])
			assert.NotContains(t, lines, lineCompleted)

			job, err := env.manager.Get(id, owner)
			require.NoError(t, err)
			assert.Equal(t, domain.JobStatusError, job.Status)

			_, err = env.manager.Flyer(id, owner)
			assert.ErrorIs(t, err, domain.ErrFlyerNotReady)
		})
	}
}

func TestManager_Subscribe_Forbidden(t *testing.T) {
	env := newTestEnv(t, staticPage(emptyPage), nil)

	id, err := env.manager.Submit(context.Background(), domain.SubmitRequest{URL: listingURL, Owner: owner})
	require.NoError(t, err)

	seq, err := env.manager.Subscribe(context.Background(), id, "intruder")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Nil(t, seq)

	_, err = env.manager.Get(id, "intruder")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = env.manager.Flyer(id, "intruder")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = env.manager.Subscribe(context.Background(), "missing", owner)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)

	// the owner still receives the whole stream
	events := collect(t, env.manager, id, owner)
	assertSingleTerminal(t, events, domain.EventDone)
	assert.Equal(t, lineStart, progressLines(events)[0])
}

func TestManager_Subscribe_Heartbeat(t *testing.T) {
	release := make(chan struct{})
	page := func() *browsertest.Page {
		p := &browsertest.Page{HTML: emptyPage}
		p.OnNavigate(func(ctx context.Context) error {
			select {
			case <-release:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		return p
	}
	env := newTestEnv(t, page, func(cfg *Config) { cfg.HeartbeatInterval = 20 * time.Millisecond })

	id, err := env.manager.Submit(context.Background(), domain.SubmitRequest{URL: listingURL, Owner: owner})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	seq, err := env.manager.Subscribe(ctx, id, owner)
	require.NoError(t, err)

	var events []domain.Event
	heartbeats := 0
	for ev := range seq {
		events = append(events, ev)
		if ev.Kind == domain.EventHeartbeat {
			assert.Equal(t, domain.HeartbeatLine, ev.Data)
			heartbeats++
			if heartbeats == 2 {
				close(release)
			}
		}
	}

	assert.GreaterOrEqual(t, heartbeats, 2)
	assertSingleTerminal(t, events, domain.EventDone)
}

func TestManager_Subscribe_AfterDrain(t *testing.T) {
	env := newTestEnv(t, staticPage(emptyPage), nil)

	id, err := env.manager.Submit(context.Background(), domain.SubmitRequest{URL: listingURL, Owner: owner})
	require.NoError(t, err)

	first := collect(t, env.manager, id, owner)
	assertSingleTerminal(t, first, domain.EventDone)

	second := collect(t, env.manager, id, owner)
	assert.Equal(t, []domain.Event{{Kind: domain.EventDone}}, second)
}

func TestManager_Subscribe_StopsOnContextCancel(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	page := func() *browsertest.Page {
		p := &browsertest.Page{HTML: emptyPage}
		p.OnNavigate(func(ctx context.Context) error {
			select {
			case <-block:
			case <-ctx.Done():
			}
			return nil
		})
		return p
	}
	env := newTestEnv(t, page, nil)

	id, err := env.manager.Submit(context.Background(), domain.SubmitRequest{URL: listingURL, Owner: owner})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	seq, err := env.manager.Subscribe(ctx, id, owner)
	require.NoError(t, err)

	var events []domain.Event
	for ev := range seq {
		events = append(events, ev)
		if len(events) == 2 {
			cancel()
		}
	}

	// disconnecting does not stop the pipeline
	for _, ev := range events {
		assert.False(t, ev.Terminal())
	}
	job, err := env.manager.Get(id, owner)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusRunning, job.Status)
}

func TestManager_Notify(t *testing.T) {
	env := newTestEnv(t, staticPage(emptyPage), nil)
	env.notifier.err = errors.New("broker down")

	id, err := env.manager.Submit(context.Background(), domain.SubmitRequest{URL: listingURL, Owner: owner})
	require.NoError(t, err)
	assertSingleTerminal(t, collect(t, env.manager, id, owner), domain.EventDone)

	require.Eventually(t, func() bool { return len(env.notifier.Events()) == 1 }, time.Second, 5*time.Millisecond)
	ev := env.notifier.Events()[0]
	assert.Equal(t, id, ev.JobID)
	assert.Equal(t, owner, ev.UserID)
	assert.Equal(t, domain.JobStatusDone, ev.Status)
	assert.False(t, ev.CompletedAt.IsZero())
}

func TestManager_Sweep(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	var mu sync.Mutex
	blocking := false
	page := func() *browsertest.Page {
		p := &browsertest.Page{HTML: emptyPage}
		mu.Lock()
		defer mu.Unlock()
		if blocking {
			p.OnNavigate(func(ctx context.Context) error {
				<-block
				return nil
			})
		}
		return p
	}
	env := newTestEnv(t, page, nil)

	finished, err := env.manager.Submit(context.Background(), domain.SubmitRequest{URL: listingURL, Owner: owner})
	require.NoError(t, err)
	assertSingleTerminal(t, collect(t, env.manager, finished, owner), domain.EventDone)

	mu.Lock()
	blocking = true
	mu.Unlock()
	running, err := env.manager.Submit(context.Background(), domain.SubmitRequest{URL: listingURL, Owner: owner})
	require.NoError(t, err)

	assert.Equal(t, 0, env.manager.Sweep(time.Hour))

	later := time.Now().Add(2 * time.Hour)
	env.manager.now = func() time.Time { return later }

	assert.Equal(t, 1, env.manager.Sweep(time.Hour))

	_, err = env.manager.Get(finished, owner)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)

	job, err := env.manager.Get(running, owner)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusRunning, job.Status)
}

func TestManager_Shutdown(t *testing.T) {
	env := newTestEnv(t, staticPage(emptyPage), nil)

	id, err := env.manager.Submit(context.Background(), domain.SubmitRequest{URL: listingURL, Owner: owner})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, env.manager.Shutdown(ctx))

	job, err := env.manager.Get(id, owner)
	require.NoError(t, err)
	assert.True(t, job.Finished())

	_, err = env.manager.Submit(context.Background(), domain.SubmitRequest{URL: listingURL, Owner: owner})
	assert.ErrorIs(t, err, domain.ErrManagerClosed)
}

func TestManager_Acquire(t *testing.T) {
	env := newTestEnv(t, staticPage(emptyPage), func(cfg *Config) { cfg.Concurrency = 1 })

	release, err := env.manager.acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = env.manager.acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release2, err := env.manager.acquire(context.Background())
	require.NoError(t, err)
	release2()
}

func TestManager_SlotWaitDoesNotCountAgainstJobTimeout(t *testing.T) {
	pub := &fakePublisher{url: "https://casa-ab12.netlify.app", ok: true, delay: 200 * time.Millisecond}
	env := newTestEnv(t, staticPage(emptyPage), func(cfg *Config) {
		cfg.Concurrency = 1
		cfg.JobTimeout = 300 * time.Millisecond
		cfg.Publisher = pub
	})
	env.store.profiles[owner] = profile.AgentProfile{HostingToken: "stored-token"}

	var ids []string
	for range 3 {
		id, err := env.manager.Submit(context.Background(), domain.SubmitRequest{URL: listingURL, Owner: owner})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	for _, id := range ids {
		events := collect(t, env.manager, id, owner)
		done := assertSingleTerminal(t, events, domain.EventDone)
		assert.Equal(t, pub.url, done.Data, "job %s", id)
		assert.Contains(t, progressLines(events), lineStart)
	}
	assert.Len(t, pub.Calls(), 3)
}

func TestJob_ProgressFlattensNewlines(t *testing.T) {
	j := newJob("id", owner, listingURL, time.Now())
	j.progress("línea uno\nlínea dos")

	ev, ok := j.events.tryPop()
	require.True(t, ok)
	assert.Equal(t, "línea uno línea dos", ev.Data)
	assert.False(t, strings.Contains(ev.Data, "\n"))
}

func TestManager_Janitor(t *testing.T) {
	env := newTestEnv(t, staticPage(emptyPage), func(cfg *Config) {
		cfg.Retention = time.Millisecond
		cfg.SweepInterval = 5 * time.Millisecond
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.manager.Start(ctx)

	id, err := env.manager.Submit(context.Background(), domain.SubmitRequest{URL: listingURL, Owner: owner})
	require.NoError(t, err)
	assertSingleTerminal(t, collect(t, env.manager, id, owner), domain.EventDone)

	require.Eventually(t, func() bool {
		_, err := env.manager.Get(id, owner)
		return errors.Is(err, domain.ErrJobNotFound)
	}, time.Second, 5*time.Millisecond)
}

func TestManager_List(t *testing.T) {
	env := newTestEnv(t, staticPage(emptyPage), nil)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	tick := 0
	env.manager.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	var ids []string
	for range 3 {
		id, err := env.manager.Submit(context.Background(), domain.SubmitRequest{URL: listingURL, Owner: owner})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	_, err := env.manager.Submit(context.Background(), domain.SubmitRequest{URL: listingURL, Owner: "someone-else"})
	require.NoError(t, err)

	jobs := env.manager.List(owner)
	require.Len(t, jobs, 3)
	assert.Equal(t, ids[2], jobs[0].ID)
	assert.Equal(t, ids[1], jobs[1].ID)
	assert.Equal(t, ids[0], jobs[2].ID)

	assert.Empty(t, env.manager.List("nobody"))
}
