package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/lox/wastodayweird/internal/cache"
	"github.com/lox/wastodayweird/internal/ingest"
	"github.com/lox/wastodayweird/internal/models"
	"gopkg.in/yaml.v3"
)

const (
	CacheMemory = "memory"
	CacheSQLite = "sqlite"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

type Config struct {
	Listen   string          `yaml:"listen"`
	Location models.Location `yaml:"location"`
	Cache    struct {
		Backend    string            `yaml:"backend"`
		MaxEntries int               `yaml:"max_entries"`
		SQLitePath string            `yaml:"sqlite_path"`
		Redis      cache.RedisConfig `yaml:"redis"`
	} `yaml:"cache"`
	Upstream struct {
		ArchiveURL    string        `yaml:"archive_url"`
		ForecastURL   string        `yaml:"forecast_url"`
		GeocodeURL    string        `yaml:"geocode_url"`
		AirQualityURL string        `yaml:"airquality_url"`
		Timeout       time.Duration `yaml:"timeout"`
	} `yaml:"upstream"`
	// WarmCache keeps the default location's archive and forecast cached
	// while serving.
	WarmCache bool `yaml:"warm_cache"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{
		Listen: ":8080",
		Location: models.Location{
			Name:      "Vadodara",
			Latitude:  22.3072,
			Longitude: 73.1812,
		},
	}
	c.Cache.Backend = CacheMemory
	c.Cache.MaxEntries = 256
	c.Cache.SQLitePath = "wastodayweird.db"
	c.Cache.Redis.Addr = "localhost:6379"
	c.Upstream.ArchiveURL = ingest.DefaultArchiveURL
	c.Upstream.ForecastURL = ingest.DefaultForecastURL
	c.Upstream.GeocodeURL = ingest.DefaultGeocodeURL
	c.Upstream.AirQualityURL = ingest.DefaultAirQualityURL
	c.Upstream.Timeout = 30 * time.Second
	return c
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	var errs []error

	lat, lon := c.Location.Latitude, c.Location.Longitude
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		errs = append(errs, fmt.Errorf("location.latitude %v out of range", lat))
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		errs = append(errs, fmt.Errorf("location.longitude %v out of range", lon))
	}

	switch c.Cache.Backend {
	case CacheMemory:
		if c.Cache.MaxEntries <= 0 {
			errs = append(errs, errors.New("cache.max_entries must be positive"))
		}
	case CacheSQLite:
		if c.Cache.SQLitePath == "" {
			errs = append(errs, errors.New("cache.sqlite_path is required for the sqlite backend"))
		}
	case CacheRedis:
		if c.Cache.Redis.Addr == "" {
			errs = append(errs, errors.New("cache.redis.addr is required for the redis backend"))
		}
	case CacheNone:
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q is not one of memory, sqlite, redis, none", c.Cache.Backend))
	}

	if c.Upstream.Timeout <= 0 {
		errs = append(errs, errors.New("upstream.timeout must be positive"))
	}

	return errors.Join(errs...)
}
