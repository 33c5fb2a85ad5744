package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Ingest   IngestConfig   `yaml:"ingest" mapstructure:"ingest"`
	Reports  ReportsConfig  `yaml:"reports" mapstructure:"reports"`
	Geocode  GeocodeConfig  `yaml:"geocode" mapstructure:"geocode"`
	Taxonomy TaxonomyConfig `yaml:"taxonomy" mapstructure:"taxonomy"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Export   ExportConfig   `yaml:"export" mapstructure:"export"`
	Sheets   SheetsConfig   `yaml:"sheets" mapstructure:"sheets"`
	Serve    ServeConfig    `yaml:"serve" mapstructure:"serve"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// SourceConfig describes one job board to traverse.
type SourceConfig struct {
	Name             string `yaml:"name" mapstructure:"name"`
	URL              string `yaml:"url" mapstructure:"url"`
	ItemSelector     string `yaml:"item_selector" mapstructure:"item_selector"`
	TitleSelector    string `yaml:"title_selector" mapstructure:"title_selector"`
	CompanySelector  string `yaml:"company_selector" mapstructure:"company_selector"`
	LocationSelector string `yaml:"location_selector" mapstructure:"location_selector"`
	DateSelector     string `yaml:"date_selector" mapstructure:"date_selector"`
	DescSelector     string `yaml:"desc_selector" mapstructure:"desc_selector"`
}

// IngestConfig configures listing traversal and detail fetching.
type IngestConfig struct {
	UserAgent     string         `yaml:"user_agent" mapstructure:"user_agent"`
	Sources       []SourceConfig `yaml:"sources" mapstructure:"sources"`
	MaxPages      int            `yaml:"max_pages" mapstructure:"max_pages"`
	DetailWorkers int            `yaml:"detail_workers" mapstructure:"detail_workers"`
	MinIntervalMS int            `yaml:"min_interval_ms" mapstructure:"min_interval_ms"`
	TimeoutSecs   int            `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries    int            `yaml:"max_retries" mapstructure:"max_retries"`
	MaxDescChars  int            `yaml:"max_desc_chars" mapstructure:"max_desc_chars"`
}

// ReportsConfig configures industry report ingestion.
type ReportsConfig struct {
	Dir           string `yaml:"dir" mapstructure:"dir"`
	FTPInboxURL   string `yaml:"ftp_inbox_url" mapstructure:"ftp_inbox_url"`
	FTPUser       string `yaml:"ftp_user" mapstructure:"ftp_user"`
	FTPPassword   string `yaml:"ftp_password" mapstructure:"ftp_password"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	Workers       int    `yaml:"workers" mapstructure:"workers"`
}

// GeocodeConfig configures the location resolution service.
type GeocodeConfig struct {
	Enabled      bool    `yaml:"enabled" mapstructure:"enabled"`
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	ContactEmail string  `yaml:"contact_email" mapstructure:"contact_email"`
	RatePerSec   float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// TaxonomyConfig points at the skill taxonomy file.
type TaxonomyConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// StoreConfig configures the durable store backend.
type StoreConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ExportConfig configures flat export artifacts.
type ExportConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// SheetsConfig configures the spreadsheet sync artifact.
type SheetsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// ServeConfig configures the read-only artifact server.
type ServeConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// CachePath returns the sqlite file backing the cache store. The cache lives
// in its own file so a postgres-backed store still has a local cache.
func (c *Config) CachePath() string {
	return "data/cache.db"
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CHARM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Keys with no natural default still get an empty entry:
	// AutomaticEnv only resolves keys viper already knows about.
	v.SetDefault("ingest.user_agent", "")
	v.SetDefault("reports.ftp_inbox_url", "")
	v.SetDefault("reports.ftp_user", "")
	v.SetDefault("reports.ftp_password", "")
	v.SetDefault("geocode.contact_email", "")
	v.SetDefault("store.database_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("ingest.max_pages", 10)
	v.SetDefault("ingest.detail_workers", 4)
	v.SetDefault("ingest.min_interval_ms", 1000)
	v.SetDefault("ingest.timeout_secs", 25)
	v.SetDefault("ingest.max_retries", 3)
	v.SetDefault("ingest.max_desc_chars", 20000)
	v.SetDefault("reports.dir", "reports")
	v.SetDefault("reports.pdftotext_path", "pdftotext")
	v.SetDefault("reports.workers", 2)
	v.SetDefault("geocode.enabled", true)
	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.rate_per_sec", 1)
	v.SetDefault("geocode.timeout_secs", 15)
	v.SetDefault("taxonomy.path", "skills/taxonomy.yaml")
	v.SetDefault("store.enabled", true)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "data/charm.db")
	v.SetDefault("export.dir", "data/processed")
	v.SetDefault("sheets.enabled", false)
	v.SetDefault("sheets.path", "data/processed/market.xlsx")
	v.SetDefault("serve.port", 8080)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks feature-gated required settings. It runs before any I/O so
// a missing identifier fails the run at startup, not mid-pipeline.
func (c *Config) Validate() error {
	if len(c.Ingest.Sources) > 0 && strings.TrimSpace(c.Ingest.UserAgent) == "" {
		return eris.New("config: ingest.user_agent is required when sources are configured")
	}
	if c.Geocode.Enabled && strings.TrimSpace(c.Geocode.ContactEmail) == "" {
		return eris.New("config: geocode.contact_email is required when geocoding is enabled")
	}
	if c.Store.Enabled {
		switch c.Store.Driver {
		case "sqlite":
			if c.Store.Path == "" {
				return eris.New("config: store.path is required for the sqlite driver")
			}
		case "postgres":
			if c.Store.DatabaseURL == "" {
				return eris.New("config: store.database_url is required for the postgres driver")
			}
		default:
			return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
		}
	}
	if c.Sheets.Enabled && c.Sheets.Path == "" {
		return eris.New("config: sheets.path is required when sheets sync is enabled")
	}
	if c.Ingest.DetailWorkers < 1 {
		return eris.New("config: ingest.detail_workers must be at least 1")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
