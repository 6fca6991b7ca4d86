package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")

	cfg := FromEnv()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "pricetracker", cfg.Mongo.Database)
	assert.Equal(t, BackendProxy, cfg.Fetch.Backend)
	assert.Equal(t, 60*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 4, cfg.RateLimit.Limit)
	assert.Equal(t, 100*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, "history", cfg.Tracker.StatsPolicy)
	assert.Equal(t, InvalidationStream, cfg.Tracker.InvalidationMode)
	assert.True(t, cfg.Browser.Headless)
}

func TestSearchKeyFallback(t *testing.T) {
	t.Setenv("API_KEY", "legacy")
	assert.Equal(t, "legacy", FromEnv().Search.APIKey)

	t.Setenv("SERPAPI_API_KEY", "primary")
	assert.Equal(t, "primary", FromEnv().Search.APIKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing mongo uri", map[string]string{"MONGODB_URI": ""}},
		{"bad port", map[string]string{"PORT": "70000"}},
		{"bad backend", map[string]string{"FETCH_BACKEND": "curl"}},
		{"delay order", map[string]string{"SCRAPER_DELAY_MIN": "5s", "SCRAPER_DELAY_MAX": "1s"}},
		{"zero limit", map[string]string{"RATE_LIMIT": "0"}},
		{"bad stats policy", map[string]string{"STATS_POLICY": "median"}},
		{"bad invalidation mode", map[string]string{"INVALIDATION_MODE": "kafka"}},
		{"outbox without db", map[string]string{"INVALIDATION_MODE": "outbox", "DB_HOST": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			assert.Error(t, FromEnv().Validate())
		})
	}
}

func TestMissingMongoURI(t *testing.T) {
	t.Setenv("MONGODB_URI", "")
	assert.ErrorIs(t, FromEnv().Validate(), ErrMissingMongoURI)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("MONGODB_URI=mongodb://dotenv:27017\nSTATS_POLICY=latest\n"), 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })

	// godotenv does not override variables that are already set.
	t.Setenv("MONGODB_URI", "")
	os.Unsetenv("MONGODB_URI")
	t.Setenv("STATS_POLICY", "")
	os.Unsetenv("STATS_POLICY")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "mongodb://dotenv:27017", cfg.Mongo.URI)
	assert.Equal(t, "latest", cfg.Tracker.StatsPolicy)
}

func TestLoadCLI(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("SCRAPER_API_KEY=from-dotenv\n"), 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })

	t.Setenv("SCRAPER_API_KEY", "")
	os.Unsetenv("SCRAPER_API_KEY")
	t.Setenv("MONGODB_URI", "")

	cfg, err := LoadCLI(false)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Fetch.ScraperAPIKey)

	_, err = LoadCLI(true)
	assert.ErrorIs(t, err, ErrMissingMongoURI)
}

func TestGetEnvSlice(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, getEnvSlice("CORS_ALLOWED_ORIGINS", nil))
}
