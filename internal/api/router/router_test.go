package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/listing-flyer/internal/api/dto"
	"github.com/cuongbtq/listing-flyer/internal/api/handler"
	"github.com/cuongbtq/listing-flyer/internal/browser/browsertest"
	"github.com/cuongbtq/listing-flyer/internal/extractor"
	"github.com/cuongbtq/listing-flyer/internal/flyer"
	"github.com/cuongbtq/listing-flyer/internal/profile"
	"github.com/cuongbtq/listing-flyer/internal/worker"
	"github.com/cuongbtq/listing-flyer/shared/database"
)

const listingURL = "https://www.zonaprop.com.ar/propiedades/depto-123.html"

type stubPublisher struct {
	url string
	ok  bool
}

func (p stubPublisher) Publish(ctx context.Context, html []byte, token, hint string) (string, bool) {
	return p.url, p.ok
}

type testServer struct {
	*httptest.Server
	profiles *profile.Storage
}

func newTestServer(t *testing.T, mutate func(deps *handler.Dependencies)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := database.NewClient(&database.Config{
		Driver:   database.DriverSQLite,
		Database: filepath.Join(t.TempDir(), "profiles.db"),
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	profiles := profile.NewStorage(db, logger)
	require.NoError(t, profiles.Migrate(context.Background()))

	ext, err := extractor.New(nil, logger)
	require.NoError(t, err)
	renderer, err := flyer.NewRenderer()
	require.NoError(t, err)

	manager := worker.NewManager(&worker.Config{
		Logger: logger,
		Launcher: &browsertest.Launcher{New: func() *browsertest.Page {
			return &browsertest.Page{HTML: "<html><body><h1>x</h1></body></html>"}
		}},
		Extractor:         ext,
		Renderer:          renderer,
		Publisher:         stubPublisher{},
		Profiles:          profiles,
		JobTimeout:        10 * time.Second,
		HeartbeatInterval: 5 * time.Second,
		MaxPhotos:         20,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = manager.Shutdown(ctx)
	})

	deps := &handler.Dependencies{
		Logger:      logger,
		ServiceName: "listing-flyer-api",
		Jobs:        manager,
		Profiles:    profiles,
	}
	if mutate != nil {
		mutate(deps)
	}

	srv := httptest.NewServer(SetupRouter(deps))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, profiles: profiles}
}

func (s *testServer) do(t *testing.T, method, path, user string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set(UserHeader, user)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *testServer) submit(t *testing.T, user string, req dto.CreateJobRequest) string {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/api/v1/jobs", user, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out dto.CreateJobResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.JobID)
	return out.JobID
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)

	resp := srv.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "listing-flyer-api", body["service"])
}

func TestCreateJob(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name       string
		user       string
		body       any
		wantStatus int
	}{
		{name: "accepted", user: "ana", body: dto.CreateJobRequest{URL: listingURL}, wantStatus: http.StatusOK},
		{name: "missing identity", body: dto.CreateJobRequest{URL: listingURL}, wantStatus: http.StatusUnauthorized},
		{name: "missing url", user: "ana", body: map[string]string{"name": "Ana"}, wantStatus: http.StatusBadRequest},
		{name: "blank url", user: "ana", body: dto.CreateJobRequest{URL: "   "}, wantStatus: http.StatusBadRequest},
		{name: "not http", user: "ana", body: dto.CreateJobRequest{URL: "javascript:alert(1)"}, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := srv.do(t, http.MethodPost, "/api/v1/jobs", tt.user, tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestStreamJob(t *testing.T) {
	srv := newTestServer(t, nil)
	jobID := srv.submit(t, "ana", dto.CreateJobRequest{URL: listingURL})

	resp := srv.do(t, http.MethodGet, "/api/v1/jobs/"+jobID+"/stream", "ana", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))
	assert.Equal(t, "no", resp.Header.Get("X-Accel-Buffering"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	stream := string(raw)

	assert.True(t, strings.HasPrefix(stream, "data: 🚀 Iniciando robot...\n\n"), stream)
	assert.True(t, strings.HasSuffix(stream, "data: ✅ ¡Proceso completado!\n\nevent: done\ndata: \n\n"), stream)
	assert.Equal(t, 1, strings.Count(stream, "event: "))

	status := srv.do(t, http.MethodGet, "/api/v1/jobs/"+jobID, "ana", nil)
	require.Equal(t, http.StatusOK, status.StatusCode)
	var job dto.JobDTO
	require.NoError(t, json.NewDecoder(status.Body).Decode(&job))
	assert.Equal(t, jobID, job.JobID)
	assert.Equal(t, "done", job.Status)
	assert.Equal(t, listingURL, job.SourceURL)
	assert.NotEmpty(t, job.FinishedAt)

	flyerResp := srv.do(t, http.MethodGet, "/api/v1/jobs/"+jobID+"/flyer", "ana", nil)
	require.Equal(t, http.StatusOK, flyerResp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", flyerResp.Header.Get("Content-Type"))
	html, err := io.ReadAll(flyerResp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Propiedad en Venta")
}

func TestJobRoutes_Forbidden(t *testing.T) {
	srv := newTestServer(t, nil)
	jobID := srv.submit(t, "ana", dto.CreateJobRequest{URL: listingURL})

	for _, path := range []string{
		"/api/v1/jobs/" + jobID + "/stream",
		"/api/v1/jobs/" + jobID,
		"/api/v1/jobs/" + jobID + "/flyer",
		"/api/v1/jobs/does-not-exist/stream",
	} {
		t.Run(path, func(t *testing.T) {
			resp := srv.do(t, http.MethodGet, path, "intruder", nil)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.NotContains(t, string(body), "data:")
		})
	}
}

func TestCreateJob_RateLimited(t *testing.T) {
	srv := newTestServer(t, func(deps *handler.Dependencies) {
		deps.SubmitRatePerMinute = 1
		deps.SubmitBurst = 1
	})

	first := srv.do(t, http.MethodPost, "/api/v1/jobs", "ana", dto.CreateJobRequest{URL: listingURL})
	assert.Equal(t, http.StatusOK, first.StatusCode)

	second := srv.do(t, http.MethodPost, "/api/v1/jobs", "ana", dto.CreateJobRequest{URL: listingURL})
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)

	other := srv.do(t, http.MethodPost, "/api/v1/jobs", "bruno", dto.CreateJobRequest{URL: listingURL})
	assert.Equal(t, http.StatusOK, other.StatusCode)
}

func TestListJobs(t *testing.T) {
	srv := newTestServer(t, nil)
	for range 3 {
		srv.submit(t, "ana", dto.CreateJobRequest{URL: listingURL})
	}
	srv.submit(t, "bruno", dto.CreateJobRequest{URL: listingURL})

	resp := srv.do(t, http.MethodGet, "/api/v1/jobs?page_size=2", "ana", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page1 dto.ListJobsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page1))
	require.Len(t, page1.Jobs, 2)
	require.NotEmpty(t, page1.NextCursor)

	resp = srv.do(t, http.MethodGet, "/api/v1/jobs?page_size=2&cursor="+page1.NextCursor, "ana", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page2 dto.ListJobsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page2))
	require.Len(t, page2.Jobs, 1)
	assert.Empty(t, page2.NextCursor)

	seen := map[string]bool{}
	for _, j := range append(page1.Jobs, page2.Jobs...) {
		assert.False(t, seen[j.JobID])
		seen[j.JobID] = true
	}

	bad := srv.do(t, http.MethodGet, "/api/v1/jobs?cursor=bm8tc2VwYXJhdG9y", "ana", nil)
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestProfileRoutes(t *testing.T) {
	srv := newTestServer(t, nil)

	resp := srv.do(t, http.MethodGet, "/api/v1/profile", "ana", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var empty dto.ProfileDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&empty))
	assert.Equal(t, dto.ProfileDTO{}, empty)

	resp = srv.do(t, http.MethodPut, "/api/v1/profile", "ana", dto.UpdateProfileRequest{
		Name:         "Ana Gómez",
		WhatsApp:     "+54 9 11 5555-0000",
		NetlifyToken: "nf-token",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = srv.do(t, http.MethodPut, "/api/v1/profile", "ana", dto.UpdateProfileRequest{Logo: "https://cdn.example.com/logo.png"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated dto.ProfileDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	assert.Equal(t, dto.ProfileDTO{
		Name:            "Ana Gómez",
		WhatsApp:        "+54 9 11 5555-0000",
		Logo:            "https://cdn.example.com/logo.png",
		HasNetlifyToken: true,
	}, updated)

	stored, err := srv.profiles.GetProfile(context.Background(), "ana")
	require.NoError(t, err)
	assert.Equal(t, "nf-token", stored.HostingToken)

	unauth := srv.do(t, http.MethodGet, "/api/v1/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, unauth.StatusCode)
}

func TestCORSMiddleware(t *testing.T) {
	srv := newTestServer(t, func(deps *handler.Dependencies) {
		deps.AllowedOrigins = []string{"https://app.example.com"}
	})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/jobs", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.com")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), UserHeader)
}
