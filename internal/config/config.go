// Package config loads service configuration: defaults, then an optional
// YAML file, then FEDWATCH_* environment overrides. Scoring weights are
// validated here so the scorer never sees a bad set.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/civitaslabs/fedwatch/internal/registry"
	"github.com/civitaslabs/fedwatch/internal/relevance"
)

const (
	configPathEnv    = "FEDWATCH_CONFIG"
	portEnv          = "FEDWATCH_PORT"
	apiTokenEnv      = "FEDWATCH_API_TOKEN"
	dataDirEnv       = "FEDWATCH_DATA_DIR"
	registryURLEnv   = "FEDWATCH_REGISTRY_URL"
	indexerURLEnv    = "FEDWATCH_INDEXER_URL"
	indexerAPIKeyEnv = "FEDWATCH_INDEXER_API_KEY"
	syncIntervalEnv  = "FEDWATCH_SYNC_INTERVAL"
)

// Config holds the settings shared across the application.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Registry RegistryConfig `yaml:"registry"`
	Indexer  IndexerConfig  `yaml:"indexer"`
	Sync     SyncConfig     `yaml:"sync"`
	Scoring  ScoringConfig  `yaml:"scoring"`
}

// ServerConfig describes the HTTP API listener.
type ServerConfig struct {
	Port     int    `yaml:"port"`
	APIToken string `yaml:"apiToken"`
}

// StorageConfig describes where the SQLite database lives.
type StorageConfig struct {
	DataDir string `yaml:"dataDir"`
}

// RegistryConfig describes the Federal Register API client.
type RegistryConfig struct {
	BaseURL           string `yaml:"baseUrl"`
	RequestsPerMinute int    `yaml:"requestsPerMinute"`
	PerPage           int    `yaml:"perPage"`
}

// IndexerConfig describes the optional search-indexing service. An empty
// BaseURL disables indexing.
type IndexerConfig struct {
	BaseURL string `yaml:"baseUrl"`
	APIKey  string `yaml:"apiKey"`
}

// SyncConfig describes scheduling of the recurring sync.
type SyncConfig struct {
	Interval     Duration `yaml:"interval"`
	PollInterval Duration `yaml:"pollInterval"`
}

// Duration wraps time.Duration so YAML can carry values like "6h" or "500ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// ScoringConfig carries the relevance weighting.
type ScoringConfig struct {
	Weights relevance.Weights `yaml:"weights"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4200,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Registry: RegistryConfig{
			BaseURL:           registry.DefaultBaseURL,
			RequestsPerMinute: 60,
			PerPage:           100,
		},
		Sync: SyncConfig{
			Interval:     Duration(24 * time.Hour),
			PollInterval: Duration(time.Second),
		},
		Scoring: ScoringConfig{
			Weights: relevance.DefaultWeights(),
		},
	}
}

func defaultDataDir() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return dir + "/.fedwatch"
	}
	return "./data"
}

// Load reads configuration from the file named by path (or FEDWATCH_CONFIG
// when path is empty), applies environment overrides, and validates the
// result. A missing file is not an error; defaults apply.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
			}
			cfg = merge(cfg, fileCfg)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(portEnv); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil && port > 0 {
			c.Server.Port = port
		}
	}
	if v := os.Getenv(apiTokenEnv); v != "" {
		c.Server.APIToken = v
	}
	if v := os.Getenv(dataDirEnv); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv(registryURLEnv); v != "" {
		c.Registry.BaseURL = v
	}
	if v := os.Getenv(indexerURLEnv); v != "" {
		c.Indexer.BaseURL = v
	}
	if v := os.Getenv(indexerAPIKeyEnv); v != "" {
		c.Indexer.APIKey = v
	}
	if v := os.Getenv(syncIntervalEnv); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Sync.Interval = Duration(d)
		}
	}
}

func (c Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if err := c.Scoring.Weights.Validate(); err != nil {
		return fmt.Errorf("scoring config: %w", err)
	}
	return nil
}

func merge(base, override Config) Config {
	if override.Server.Port != 0 {
		base.Server.Port = override.Server.Port
	}
	if override.Server.APIToken != "" {
		base.Server.APIToken = override.Server.APIToken
	}

	if override.Storage.DataDir != "" {
		base.Storage.DataDir = override.Storage.DataDir
	}

	if override.Registry.BaseURL != "" {
		base.Registry.BaseURL = override.Registry.BaseURL
	}
	if override.Registry.RequestsPerMinute != 0 {
		base.Registry.RequestsPerMinute = override.Registry.RequestsPerMinute
	}
	if override.Registry.PerPage != 0 {
		base.Registry.PerPage = override.Registry.PerPage
	}

	if override.Indexer.BaseURL != "" {
		base.Indexer = override.Indexer
	}

	if override.Sync.Interval != 0 {
		base.Sync.Interval = override.Sync.Interval
	}
	if override.Sync.PollInterval != 0 {
		base.Sync.PollInterval = override.Sync.PollInterval
	}

	zero := relevance.Weights{}
	if override.Scoring.Weights != zero {
		base.Scoring.Weights = override.Scoring.Weights
	}

	return base
}
