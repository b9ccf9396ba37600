package main

import (
	"context"
	"fmt"
	"log"

	"github.com/jonboulle/clockwork"
	"github.com/lox/wastodayweird/internal/cache"
	"github.com/lox/wastodayweird/internal/config"
	"github.com/lox/wastodayweird/internal/httputil"
	"github.com/lox/wastodayweird/internal/ingest"
	"github.com/lox/wastodayweird/internal/report"
	"github.com/lox/wastodayweird/internal/store"
)

// app holds the wired collaborators shared by every command.
type app struct {
	cfg        *config.Config
	clock      clockwork.Clock
	cache      cache.Cache
	store      *store.Store
	archive    *ingest.ArchiveClient
	forecast   *ingest.ForecastClient
	geocode    *ingest.GeocodeClient
	airQuality *ingest.AirQualityClient
	reports    *report.Builder
	closers    []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, clock: clockwork.NewRealClock()}

	switch cfg.Cache.Backend {
	case config.CacheMemory:
		a.cache = cache.NewMemory(cfg.Cache.MaxEntries, a.clock)
	case config.CacheSQLite:
		st, err := store.Open(cfg.Cache.SQLitePath, a.clock)
		if err != nil {
			return nil, fmt.Errorf("open cache database: %w", err)
		}
		a.store = st
		a.cache = st
		a.closers = append(a.closers, st.Close)
	case config.CacheRedis:
		rc := cache.NewRedis(cfg.Cache.Redis)
		if err := rc.Ping(ctx); err != nil {
			rc.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Cache.Redis.Addr, err)
		}
		a.cache = rc
		a.closers = append(a.closers, rc.Close)
	default:
		a.cache = cache.Nop{}
	}
	log.Printf("cache: using %s backend", cfg.Cache.Backend)

	opts := ingest.Options{
		HTTPClient: httputil.NewClient(cfg.Upstream.Timeout),
		Cache:      a.cache,
	}
	a.archive = ingest.NewArchiveClient(cfg.Upstream.ArchiveURL, opts)
	a.forecast = ingest.NewForecastClient(cfg.Upstream.ForecastURL, opts)
	a.geocode = ingest.NewGeocodeClient(cfg.Upstream.GeocodeURL, opts)
	a.airQuality = ingest.NewAirQualityClient(cfg.Upstream.AirQualityURL, opts)
	a.reports = report.NewBuilder(a.forecast, a.archive, a.clock)

	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Printf("close: %v", err)
		}
	}
}
