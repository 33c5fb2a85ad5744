package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/charm-heritage/market-cli/internal/cache"
	"github.com/charm-heritage/market-cli/internal/enrich"
	"github.com/charm-heritage/market-cli/internal/store"
	"github.com/charm-heritage/market-cli/pkg/geocode"
)

// initStore opens the durable store per config, or returns nil when
// persistence is disabled.
func initStore(ctx context.Context) (store.Store, error) {
	if !cfg.Store.Enabled {
		return nil, nil
	}
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "data/market.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initCache opens the namespaced fetch/extract/geocode cache.
func initCache() (*cache.Store, error) {
	return cache.Open(cfg.CachePath())
}

// initGeocoder builds the cache-fronted geocoder, or returns nil when
// geocoding is disabled.
func initGeocoder(cacheStore *cache.Store) (geocode.Client, error) {
	if !cfg.Geocode.Enabled {
		return nil, nil
	}
	opts := []geocode.Option{
		geocode.WithRateLimit(cfg.Geocode.RatePerSec),
	}
	if cfg.Geocode.BaseURL != "" {
		opts = append(opts, geocode.WithBaseURL(cfg.Geocode.BaseURL))
	}
	if cfg.Geocode.TimeoutSecs > 0 {
		opts = append(opts, geocode.WithHTTPClient(httpClientWithTimeout(cfg.Geocode.TimeoutSecs)))
	}
	nominatim, err := geocode.NewNominatim(cfg.Ingest.UserAgent, cfg.Geocode.ContactEmail, opts...)
	if err != nil {
		return nil, err
	}
	return geocode.NewCachedClient(nominatim, cacheStore), nil
}

// loadTaxonomy reads the configured taxonomy file, falling back to the
// built-in skill table.
func loadTaxonomy() (*enrich.Taxonomy, error) {
	if cfg.Taxonomy.Path == "" {
		return enrich.DefaultTaxonomy(), nil
	}
	taxonomy, err := enrich.LoadTaxonomy(cfg.Taxonomy.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "load taxonomy %s", cfg.Taxonomy.Path)
	}
	zap.L().Info("taxonomy loaded", zap.String("path", cfg.Taxonomy.Path), zap.Int("skills", taxonomy.Len()))
	return taxonomy, nil
}

func httpClientWithTimeout(secs int) *http.Client {
	return &http.Client{Timeout: time.Duration(secs) * time.Second}
}
