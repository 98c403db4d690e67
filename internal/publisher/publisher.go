// Package publisher deploys rendered flyers to a Netlify-compatible hosting API.
package publisher

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

const indexPath = "/index.html"

// Deploy states reported by the hosting API
const (
	StatePending = "pending"
	StateReady   = "ready"
	StateError   = "error"
)

// Config holds hosting API settings
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	UploadTimeout  time.Duration
	PollTimeout    time.Duration
	PollInterval   time.Duration
	PollAttempts   int
}

// Deployment tracks one site creation and deploy. It only lives for one Publish call.
type Deployment struct {
	SiteID   string
	SiteURL  string
	DeployID string
	State    string
	Required []string
}

// Publisher creates one site per flyer and waits for its deploy to become ready
type Publisher struct {
	config    Config
	client    *http.Client
	logger    *slog.Logger
	newSuffix func() string
}

// New creates a Publisher. Per-call timeouts come from config, not from the http.Client.
func New(config Config, logger *slog.Logger) *Publisher {
	return &Publisher{
		config:    config,
		client:    &http.Client{},
		logger:    logger,
		newSuffix: randomSuffix,
	}
}

// Publish uploads html as the index page of a new site and returns its public URL.
// ok is false on any failure. When polling runs out or ctx ends without a
// definitive state, the site URL is returned anyway since the deploy is likely
// still processing.
func (p *Publisher) Publish(ctx context.Context, html []byte, token, siteNameHint string) (string, bool) {
	sum := sha1.Sum(html)
	digest := hex.EncodeToString(sum[:])
	name := SiteName(siteNameHint, p.newSuffix())

	logger := p.logger.With(slog.String("site_name", name))

	d, err := p.createSite(ctx, token, name)
	if err != nil {
		logger.Warn("Failed to create site", slog.String("error", err.Error()))
		return "", false
	}

	if err := p.createDeploy(ctx, token, d, digest); err != nil {
		logger.Warn("Failed to create deploy", slog.String("site_id", d.SiteID), slog.String("error", err.Error()))
		return "", false
	}

	if slices.Contains(d.Required, digest) {
		if err := p.upload(ctx, token, d, html); err != nil {
			logger.Warn("Failed to upload flyer", slog.String("deploy_id", d.DeployID), slog.String("error", err.Error()))
			return "", false
		}
	}

	return p.waitReady(ctx, token, d, logger)
}

func (p *Publisher) waitReady(ctx context.Context, token string, d *Deployment, logger *slog.Logger) (string, bool) {
	for attempt := 1; attempt <= p.config.PollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			// the deploy exists, so its site URL is the best known answer
			logger.Warn("Publish cancelled while polling, returning site URL",
				slog.String("deploy_id", d.DeployID),
				slog.Int("attempt", attempt),
			)
			return d.SiteURL, true
		case <-time.After(p.config.PollInterval):
		}

		state, err := p.deployState(ctx, token, d.DeployID)
		if err != nil {
			logger.Debug("Deploy status poll failed",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			continue
		}
		d.State = state

		switch state {
		case StateReady:
			logger.Info("Flyer published", slog.String("url", d.SiteURL), slog.Int("attempt", attempt))
			return d.SiteURL, true
		case StateError:
			logger.Warn("Deploy failed", slog.String("deploy_id", d.DeployID))
			return "", false
		}
	}

	logger.Warn("Deploy not confirmed, returning site URL",
		slog.String("deploy_id", d.DeployID),
		slog.String("state", d.State),
		slog.Int("attempts", p.config.PollAttempts),
	)
	return d.SiteURL, true
}

type siteResponse struct {
	SiteID string `json:"site_id"`
	ID     string `json:"id"`
	SSLURL string `json:"ssl_url"`
	URL    string `json:"url"`
}

func (p *Publisher) createSite(ctx context.Context, token, name string) (*Deployment, error) {
	body, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}

	raw, err := p.do(ctx, p.config.RequestTimeout, http.MethodPost, "/sites", token, "application/json", body)
	if err != nil {
		return nil, err
	}

	var resp siteResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode site response: %w", err)
	}

	d := &Deployment{
		SiteID:  firstNonEmpty(resp.SiteID, resp.ID),
		SiteURL: firstNonEmpty(resp.SSLURL, resp.URL),
		State:   StatePending,
	}
	if d.SiteID == "" {
		return nil, fmt.Errorf("site response has no id")
	}
	return d, nil
}

type deployResponse struct {
	ID       string   `json:"id"`
	State    string   `json:"state"`
	Required []string `json:"required"`
}

func (p *Publisher) createDeploy(ctx context.Context, token string, d *Deployment, digest string) error {
	body, err := json.Marshal(map[string]any{
		"files": map[string]string{indexPath: digest},
	})
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	raw, err := p.do(ctx, p.config.RequestTimeout, http.MethodPost, "/sites/"+d.SiteID+"/deploys", token, "application/json", body)
	if err != nil {
		return err
	}

	var resp deployResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("failed to decode deploy response: %w", err)
	}
	if resp.ID == "" {
		return fmt.Errorf("deploy response has no id")
	}

	d.DeployID = resp.ID
	d.Required = resp.Required
	return nil
}

func (p *Publisher) upload(ctx context.Context, token string, d *Deployment, html []byte) error {
	_, err := p.do(ctx, p.config.UploadTimeout, http.MethodPut, "/deploys/"+d.DeployID+"/files"+indexPath, token, "application/octet-stream", html)
	return err
}

func (p *Publisher) deployState(ctx context.Context, token, deployID string) (string, error) {
	raw, err := p.do(ctx, p.config.PollTimeout, http.MethodGet, "/deploys/"+deployID, token, "", nil)
	if err != nil {
		return "", err
	}

	var resp deployResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("failed to decode deploy status: %w", err)
	}
	return resp.State, nil
}

// do sends one API request bounded by timeout and returns the body of a 2xx response
func (p *Publisher) do(ctx context.Context, timeout time.Duration, method, path, token, contentType string, body []byte) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	reqID := uuid.NewString()
	start := time.Now()
	url := strings.TrimRight(p.config.BaseURL, "/") + path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			p.logger.Warn("Failed to close response body", slog.String("req_id", reqID), slog.String("error", err.Error()))
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	p.logger.Debug("Hosting API call",
		slog.String("req_id", reqID),
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(raw)),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%s %s: non-2xx status: %d", method, path, resp.StatusCode)
	}
	return raw, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
