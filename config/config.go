// Package config provides configuration loading and management for folkevalget.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/folkevalget/folkevalget/engine"
	"github.com/folkevalget/folkevalget/enrich"
	"github.com/folkevalget/folkevalget/oda"
)

// DefaultStartDate is the first day of the current parliamentary term.
const DefaultStartDate = "2022-11-01"

// Config represents the complete folkevalget configuration
type Config struct {
	API     APIConfig     `yaml:"api"`
	Window  WindowConfig  `yaml:"window"`
	Derive  DeriveConfig  `yaml:"derive"`
	Output  OutputConfig  `yaml:"output"`
	Enrich  EnrichConfig  `yaml:"enrich"`
	NATS    NATSConfig    `yaml:"nats"`
	Preview PreviewConfig `yaml:"preview"`
}

// APIConfig configures the ODA API client
type APIConfig struct {
	// BaseURL is the ODA API root
	BaseURL string `yaml:"base_url" env:"FOLKEVALGET_API_URL"`
	// PageSize is the rows requested per paginated request
	PageSize int `yaml:"page_size" env:"FOLKEVALGET_PAGE_SIZE"`
	// Delay spaces paginated requests to stay polite
	Delay time.Duration `yaml:"delay" env:"FOLKEVALGET_DELAY"`
	// Timeout bounds a single request
	Timeout time.Duration `yaml:"timeout" env:"FOLKEVALGET_TIMEOUT"`
	// VoteWorkers drains overflow ballot pages in parallel
	VoteWorkers int `yaml:"vote_workers" env:"FOLKEVALGET_VOTE_WORKERS"`
}

// WindowConfig bounds the vote history a run covers
type WindowConfig struct {
	// StartDate is the first day votes and case context are fetched from (YYYY-MM-DD)
	StartDate string `yaml:"start_date" env:"FOLKEVALGET_START_DATE"`
	// Today pins the window's end for reproducible runs (empty = current date)
	Today string `yaml:"today" env:"FOLKEVALGET_TODAY"`
}

// DeriveConfig configures the analytics derivation
type DeriveConfig struct {
	// RecentVotes caps the per-member recent vote list
	RecentVotes int `yaml:"recent_votes" env:"FOLKEVALGET_RECENT_VOTES"`

	// SummarizeDocs fetches linked HTML case documents and embeds a
	// short readable excerpt in each vote's document list
	SummarizeDocs bool `yaml:"summarize_docs" env:"FOLKEVALGET_SUMMARIZE_DOCS"`
}

// OutputConfig configures where artifacts land
type OutputConfig struct {
	// Dir receives the derived site JSON
	Dir string `yaml:"dir" env:"FOLKEVALGET_OUTPUT_DIR"`
	// RawDir receives raw API snapshots when WriteRaw is set
	RawDir string `yaml:"raw_dir" env:"FOLKEVALGET_RAW_DIR"`
	// WriteRaw dumps raw snapshot files to RawDir
	WriteRaw bool `yaml:"write_raw" env:"FOLKEVALGET_WRITE_RAW"`
	// PhotosDir holds locally cached member portraits
	PhotosDir string `yaml:"photos_dir" env:"FOLKEVALGET_PHOTOS_DIR"`
}

// EnrichConfig configures profile enrichment
type EnrichConfig struct {
	// SkipPhotos disables applying locally cached portraits
	SkipPhotos bool `yaml:"skip_photos" env:"FOLKEVALGET_SKIP_PHOTOS"`
	// PhotoWorkers bounds parallel portrait downloads
	PhotoWorkers int `yaml:"photo_workers" env:"FOLKEVALGET_PHOTO_WORKERS"`
	// CacheFile is the SQLite lookup cache path (empty = in-memory only)
	CacheFile string `yaml:"cache_file" env:"FOLKEVALGET_CACHE_FILE"`
}

// NATSConfig configures the NATS connection used for publishing
type NATSConfig struct {
	// URL is the NATS server URL (empty = publishing disabled unless Embedded)
	URL string `yaml:"url" env:"FOLKEVALGET_NATS_URL"`
	// Embedded runs an in-process JetStream server
	Embedded bool `yaml:"embedded" env:"FOLKEVALGET_NATS_EMBEDDED"`
	// StoreDir is where the embedded server keeps JetStream data
	StoreDir string `yaml:"store_dir" env:"FOLKEVALGET_NATS_STORE_DIR"`
}

// Enabled reports whether publishing to NATS is configured at all.
func (c NATSConfig) Enabled() bool {
	return c.URL != "" || c.Embedded
}

// PreviewConfig configures the local preview server
type PreviewConfig struct {
	// Addr is the listen address
	Addr string `yaml:"addr" env:"FOLKEVALGET_PREVIEW_ADDR"`
	// Watch re-derives site artifacts when raw snapshots or photos change
	Watch bool `yaml:"watch" env:"FOLKEVALGET_PREVIEW_WATCH"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:     oda.DefaultBaseURL,
			PageSize:    oda.DefaultPageSize,
			Delay:       oda.DefaultPageDelay,
			Timeout:     oda.DefaultTimeout,
			VoteWorkers: oda.DefaultOverflowWorkers,
		},
		Window: WindowConfig{
			StartDate: DefaultStartDate,
		},
		Derive: DeriveConfig{
			RecentVotes: engine.DefaultRecentVotes,
		},
		Output: OutputConfig{
			Dir:       "data",
			RawDir:    "data/raw",
			WriteRaw:  false,
			PhotosDir: "photos",
		},
		Enrich: EnrichConfig{
			PhotoWorkers: enrich.DefaultPhotoWorkers,
		},
		NATS: NATSConfig{
			URL:      "",
			Embedded: false,
		},
		Preview: PreviewConfig{
			Addr:  ":8090",
			Watch: true,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.API.PageSize <= 0 {
		return fmt.Errorf("api.page_size must be positive")
	}
	if c.API.Delay < 0 {
		return fmt.Errorf("api.delay must not be negative")
	}
	if c.Window.StartDate == "" {
		return fmt.Errorf("window.start_date is required")
	}
	if _, err := engine.ParseDate(c.Window.StartDate); err != nil {
		return fmt.Errorf("window.start_date: %w", err)
	}
	if c.Window.Today != "" {
		if _, err := engine.ParseDate(c.Window.Today); err != nil {
			return fmt.Errorf("window.today: %w", err)
		}
	}
	if c.Derive.RecentVotes < 0 {
		return fmt.Errorf("derive.recent_votes must not be negative")
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir is required")
	}
	return nil
}

// ApplyEnv overlays FOLKEVALGET_* environment variables onto the config.
func (c *Config) ApplyEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// API
	if other.API.BaseURL != "" {
		c.API.BaseURL = other.API.BaseURL
	}
	if other.API.PageSize != 0 {
		c.API.PageSize = other.API.PageSize
	}
	if other.API.Delay != 0 {
		c.API.Delay = other.API.Delay
	}
	if other.API.Timeout != 0 {
		c.API.Timeout = other.API.Timeout
	}
	if other.API.VoteWorkers != 0 {
		c.API.VoteWorkers = other.API.VoteWorkers
	}

	// Window
	if other.Window.StartDate != "" {
		c.Window.StartDate = other.Window.StartDate
	}
	if other.Window.Today != "" {
		c.Window.Today = other.Window.Today
	}

	// Derive
	if other.Derive.RecentVotes != 0 {
		c.Derive.RecentVotes = other.Derive.RecentVotes
	}
	if other.Derive.SummarizeDocs {
		c.Derive.SummarizeDocs = true
	}

	// Output
	if other.Output.Dir != "" {
		c.Output.Dir = other.Output.Dir
	}
	if other.Output.RawDir != "" {
		c.Output.RawDir = other.Output.RawDir
	}
	if other.Output.WriteRaw {
		c.Output.WriteRaw = true
	}
	if other.Output.PhotosDir != "" {
		c.Output.PhotosDir = other.Output.PhotosDir
	}

	// Enrich
	if other.Enrich.SkipPhotos {
		c.Enrich.SkipPhotos = true
	}
	if other.Enrich.PhotoWorkers != 0 {
		c.Enrich.PhotoWorkers = other.Enrich.PhotoWorkers
	}
	if other.Enrich.CacheFile != "" {
		c.Enrich.CacheFile = other.Enrich.CacheFile
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
		c.NATS.Embedded = false
	}
	if other.NATS.Embedded {
		c.NATS.Embedded = true
	}
	if other.NATS.StoreDir != "" {
		c.NATS.StoreDir = other.NATS.StoreDir
	}

	// Preview
	if other.Preview.Addr != "" {
		c.Preview.Addr = other.Preview.Addr
	}
	if other.Preview.Watch {
		c.Preview.Watch = true
	}
}
