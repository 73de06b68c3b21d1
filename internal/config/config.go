// Package config loads the service's YAML configuration file and applies
// development defaults. Durations are expressed in seconds in the file and
// converted at the point of use.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/raysh454/securescan/internal/analyzer"
	"github.com/raysh454/securescan/internal/app"
	"github.com/raysh454/securescan/internal/server"
)

type AnalyzerConfig struct {
	Backend           string  `yaml:"backend"`
	Endpoint          string  `yaml:"endpoint"`
	APIKey            string  `yaml:"api_key"`
	TimeoutSec        int     `yaml:"timeout_seconds"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	CacheSize         int     `yaml:"cache_size"`
	CacheTTLSec       int     `yaml:"cache_ttl_seconds"`
}

type BulkConfig struct {
	Concurrency int `yaml:"concurrency"`
	MaxURLs     int `yaml:"max_urls"`
}

type Config struct {
	Listen          string         `yaml:"listen"`
	DBPath          string         `yaml:"db_path"`
	NATSURL         string         `yaml:"nats_url"`
	HistoryPageSize int            `yaml:"history_page_size"`
	Analyzer        AnalyzerConfig `yaml:"analyzer"`
	Bulk            BulkConfig     `yaml:"bulk"`
}

// LoadConfig reads path and overlays it on the defaults. An empty path
// returns the defaults untouched.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	// defaults
	if cfg.Listen == "" {
		cfg.Listen = ":8080"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "securescan.db"
	}
	if cfg.HistoryPageSize <= 0 {
		cfg.HistoryPageSize = 50
	}
	if cfg.Analyzer.Backend == "" {
		cfg.Analyzer.Backend = analyzer.BackendHeuristic
	}
	if cfg.Analyzer.TimeoutSec <= 0 {
		cfg.Analyzer.TimeoutSec = 30
	}
	if cfg.Analyzer.RequestsPerSecond <= 0 {
		cfg.Analyzer.RequestsPerSecond = 2
	}
	if cfg.Analyzer.CacheTTLSec <= 0 {
		cfg.Analyzer.CacheTTLSec = 300
	}
	if cfg.Bulk.Concurrency <= 0 {
		cfg.Bulk.Concurrency = 4
	}
	if cfg.Bulk.MaxURLs <= 0 {
		cfg.Bulk.MaxURLs = 100
	}

	return &cfg, nil
}

// ServerConfig converts the file representation into the server's wiring
// configuration.
func (c *Config) ServerConfig() server.Config {
	return server.Config{
		ListenAddr:      c.Listen,
		DBPath:          c.DBPath,
		NATSURL:         c.NATSURL,
		HistoryPageSize: c.HistoryPageSize,
		AppConfig: &app.Config{
			BulkConcurrency: c.Bulk.Concurrency,
			MaxBulkURLs:     c.Bulk.MaxURLs,
			JobEventBuffer:  app.DefaultConfig().JobEventBuffer,
		},
		AnalyzerConfig: &analyzer.Config{
			Backend:           c.Analyzer.Backend,
			Endpoint:          c.Analyzer.Endpoint,
			APIKey:            c.Analyzer.APIKey,
			Timeout:           time.Duration(c.Analyzer.TimeoutSec) * time.Second,
			RequestsPerSecond: c.Analyzer.RequestsPerSecond,
			CacheSize:         c.Analyzer.CacheSize,
			CacheTTL:          time.Duration(c.Analyzer.CacheTTLSec) * time.Second,
		},
	}
}
