package bootstrap

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/listing-flyer/internal/browser"
	"github.com/cuongbtq/listing-flyer/internal/config"
	"github.com/cuongbtq/listing-flyer/internal/profile"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig(t *testing.T) *config.Config {
	cfg := &config.Config{
		Server:   config.ServerConfig{Port: 8080},
		Browser:  config.BrowserConfig{Driver: config.BrowserStatic},
		Profiles: config.DatabaseConfig{Driver: "sqlite", Database: filepath.Join(t.TempDir(), "profiles.db")},
	}
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestBuild(t *testing.T) {
	ctx := context.Background()
	c, err := Build(ctx, testConfig(t), testLogger())
	require.NoError(t, err)
	defer c.Close()

	require.NotNil(t, c.Manager)
	assert.Nil(t, c.Rabbit)

	// profile table is migrated
	require.NoError(t, c.Profiles.SaveProfile(ctx, "agent", profile.AgentProfile{Name: "Ana"}))
	got, err := c.Profiles.GetProfile(ctx, "agent")
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Name)

	require.NoError(t, c.Manager.Shutdown(ctx))
}

func TestBuild_BadSiteProfile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Extraction.SiteProfilePath = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := Build(context.Background(), cfg, testLogger())
	assert.ErrorContains(t, err, "failed to load site profile")
}

func TestInitLauncher(t *testing.T) {
	static := InitLauncher(&config.BrowserConfig{Driver: config.BrowserStatic}, testLogger())
	assert.IsType(t, &browser.StaticLauncher{}, static)

	chrome := InitLauncher(&config.BrowserConfig{Driver: config.BrowserChromedp}, testLogger())
	assert.IsType(t, &browser.ChromeLauncher{}, chrome)
}
