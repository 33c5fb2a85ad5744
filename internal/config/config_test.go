package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 10, cfg.Ingest.MaxPages)
	assert.Equal(t, 4, cfg.Ingest.DetailWorkers)
	assert.Equal(t, 1000, cfg.Ingest.MinIntervalMS)
	assert.Equal(t, 25, cfg.Ingest.TimeoutSecs)
	assert.Equal(t, 3, cfg.Ingest.MaxRetries)
	assert.Equal(t, 20000, cfg.Ingest.MaxDescChars)
	assert.Equal(t, "reports", cfg.Reports.Dir)
	assert.Equal(t, "pdftotext", cfg.Reports.PdfToTextPath)
	assert.True(t, cfg.Geocode.Enabled)
	assert.Equal(t, "https://nominatim.openstreetmap.org", cfg.Geocode.BaseURL)
	assert.InDelta(t, 1.0, cfg.Geocode.RatePerSec, 0.001)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "data/charm.db", cfg.Store.Path)
	assert.Equal(t, "data/processed", cfg.Export.Dir)
	assert.False(t, cfg.Sheets.Enabled)
	assert.Equal(t, 8080, cfg.Serve.Port)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
ingest:
  user_agent: "CHARM/1.0 (research; admin@example.edu)"
  max_pages: 5
  sources:
    - name: acra
      url: https://example.org/jobs/
      item_selector: ".job_listings .job_listing"
store:
  driver: sqlite
  path: custom.db
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "CHARM/1.0 (research; admin@example.edu)", cfg.Ingest.UserAgent)
	assert.Equal(t, 5, cfg.Ingest.MaxPages)
	require.Len(t, cfg.Ingest.Sources, 1)
	assert.Equal(t, "acra", cfg.Ingest.Sources[0].Name)
	assert.Equal(t, ".job_listings .job_listing", cfg.Ingest.Sources[0].ItemSelector)
	assert.Equal(t, "custom.db", cfg.Store.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadFromEnv(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("CHARM_GEOCODE_CONTACT_EMAIL", "ops@example.edu")
	t.Setenv("CHARM_INGEST_DETAIL_WORKERS", "8")
	t.Setenv("CHARM_INGEST_USER_AGENT", "CHARM/1.0")
	t.Setenv("CHARM_STORE_DATABASE_URL", "postgres://charm@localhost/charm")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ops@example.edu", cfg.Geocode.ContactEmail)
	assert.Equal(t, 8, cfg.Ingest.DetailWorkers)
	assert.Equal(t, "CHARM/1.0", cfg.Ingest.UserAgent)
	assert.Equal(t, "postgres://charm@localhost/charm", cfg.Store.DatabaseURL)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Ingest: IngestConfig{
				UserAgent:     "CHARM/1.0",
				DetailWorkers: 4,
				Sources:       []SourceConfig{{Name: "acra", URL: "https://example.org/jobs/"}},
			},
			Geocode: GeocodeConfig{Enabled: true, ContactEmail: "ops@example.edu"},
			Store:   StoreConfig{Enabled: true, Driver: "sqlite", Path: "charm.db"},
			Sheets:  SheetsConfig{Enabled: false},
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("missing user agent with sources", func(t *testing.T) {
		cfg := base()
		cfg.Ingest.UserAgent = "  "
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "user_agent")
	})

	t.Run("missing geocode contact", func(t *testing.T) {
		cfg := base()
		cfg.Geocode.ContactEmail = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "contact_email")
	})

	t.Run("geocode disabled needs no contact", func(t *testing.T) {
		cfg := base()
		cfg.Geocode.Enabled = false
		cfg.Geocode.ContactEmail = ""
		assert.NoError(t, cfg.Validate())
	})

	t.Run("postgres requires database url", func(t *testing.T) {
		cfg := base()
		cfg.Store.Driver = "postgres"
		cfg.Store.DatabaseURL = ""
		require.Error(t, cfg.Validate())
	})

	t.Run("unknown driver", func(t *testing.T) {
		cfg := base()
		cfg.Store.Driver = "mysql"
		require.Error(t, cfg.Validate())
	})

	t.Run("sheets enabled requires path", func(t *testing.T) {
		cfg := base()
		cfg.Sheets.Enabled = true
		cfg.Sheets.Path = ""
		require.Error(t, cfg.Validate())
	})

	t.Run("zero workers", func(t *testing.T) {
		cfg := base()
		cfg.Ingest.DetailWorkers = 0
		require.Error(t, cfg.Validate())
	})
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	err := InitLogger(LogConfig{Level: "not-a-level", Format: "json"})
	require.Error(t, err)
}
