package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed config.toml.sample
var configTemplate string

// Defaults for tunables not present in the config file.
const (
	DefaultSuggestLimit       = 10
	DefaultSourceSuggestLimit = 3

	DefaultSearchTTL   = 10 * time.Minute
	DefaultRemoteTTL   = 5 * time.Minute
	DefaultSuggestTTL  = 60 * time.Second
	DefaultNegativeTTL = time.Minute

	DefaultRemoteTimeout        = 5 * time.Second
	DefaultRemoteSuggestTimeout = 3 * time.Second
	DefaultLocalTimeout         = 2 * time.Second

	DefaultRemoteScoreBonus = 60
)

type Config struct {
	StorageDir string `toml:"storage_dir"`
	// CacheDir is where the result cache persists; empty keeps it in memory.
	CacheDir     string `toml:"cache_dir,omitempty"`
	SuggestLimit int    `toml:"suggest_limit"`
	// AllowedOrigins is the CORS allowlist for the suggest/search endpoints.
	AllowedOrigins []string `toml:"allowed_origins"`
	Cache          CacheTTL `toml:"cache"`
	// SourceOrder pins the fan-out order (and therefore which source wins
	// merge dedupe ties). Sources not listed are appended in name order.
	SourceOrder []string              `toml:"source_order,omitempty"`
	Sources     map[string]SourceInfo `toml:"sources"`
}

// CacheTTL holds the four cache lifetimes. Zero values fall back to the
// package defaults.
type CacheTTL struct {
	Search   Duration `toml:"search"`
	Remote   Duration `toml:"remote"`
	Suggest  Duration `toml:"suggest"`
	Negative Duration `toml:"negative"`
}

type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// SourceInfo configures one search source. Type-specific settings live in
// Config and are decoded by the provider; the remaining fields are consumed
// by the aggregator directly.
type SourceInfo struct {
	Type string `toml:"type"`
	// ScoreBonus is added to every hit from this source after scoring.
	// Defaults to 60 for remotewp sources and 0 for local ones.
	ScoreBonus     *int        `toml:"score_bonus,omitempty"`
	Timeout        *Duration   `toml:"timeout,omitempty"`
	SuggestTimeout *Duration   `toml:"suggest_timeout,omitempty"`
	SuggestLimit   int         `toml:"suggest_limit,omitempty"`
	Config         interface{} `toml:"config"`
}

func GetDefaultConfig() (*Config, error) {
	storageDir, err := GetDefaultStorageDir()
	if err != nil {
		return nil, fmt.Errorf("getting default storage directory: %w", err)
	}
	return &Config{
		StorageDir:   storageDir,
		SuggestLimit: DefaultSuggestLimit,
		Sources:      make(map[string]SourceInfo),
	}, nil
}

func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return GetDefaultConfig()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if config.StorageDir == "" {
		storageDir, err := GetDefaultStorageDir()
		if err != nil {
			return nil, fmt.Errorf("getting default storage directory: %w", err)
		}
		config.StorageDir = storageDir
	}

	if config.SuggestLimit <= 0 {
		config.SuggestLimit = DefaultSuggestLimit
	}

	if config.Sources == nil {
		config.Sources = make(map[string]SourceInfo)
	}

	return &config, nil
}

func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return os.WriteFile(configPath, []byte(configTemplate), 0644)
}

func (c *Config) AddSource(name, sourceType string, sourceConfig interface{}) {
	c.Sources[name] = SourceInfo{
		Type:   sourceType,
		Config: sourceConfig,
	}
}

func (c *Config) GetSourceConfig(name string) (string, interface{}, error) {
	info, exists := c.Sources[name]
	if !exists {
		return "", nil, fmt.Errorf("source %s not found", name)
	}
	return info.Type, info.Config, nil
}

// ListSources returns source names in fan-out order: SourceOrder first
// (unknown names ignored), then any remaining sources sorted by name.
func (c *Config) ListSources() []string {
	seen := make(map[string]bool, len(c.Sources))
	var names []string
	for _, name := range c.SourceOrder {
		if _, exists := c.Sources[name]; exists && !seen[name] {
			names = append(names, name)
			seen[name] = true
		}
	}

	var rest []string
	for name := range c.Sources {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

func (c *Config) RemoveSource(name string) {
	delete(c.Sources, name)
}

// SourceScoreBonus returns the score bonus for the named source, defaulting
// by source type.
func (c *Config) SourceScoreBonus(name string) int {
	info, exists := c.Sources[name]
	if !exists {
		return 0
	}
	if info.ScoreBonus != nil {
		return *info.ScoreBonus
	}
	if info.Type == "remotewp" {
		return DefaultRemoteScoreBonus
	}
	return 0
}

// SourceTimeout returns the full-search timeout budget for the named source.
func (c *Config) SourceTimeout(name string) time.Duration {
	info, exists := c.Sources[name]
	if !exists {
		return DefaultLocalTimeout
	}
	if info.Timeout != nil && info.Timeout.Duration > 0 {
		return info.Timeout.Duration
	}
	if info.Type == "remotewp" {
		return DefaultRemoteTimeout
	}
	return DefaultLocalTimeout
}

// SourceSuggestTimeout returns the typeahead timeout budget for the named
// source.
func (c *Config) SourceSuggestTimeout(name string) time.Duration {
	info, exists := c.Sources[name]
	if !exists {
		return DefaultLocalTimeout
	}
	if info.SuggestTimeout != nil && info.SuggestTimeout.Duration > 0 {
		return info.SuggestTimeout.Duration
	}
	if info.Type == "remotewp" {
		return DefaultRemoteSuggestTimeout
	}
	return DefaultLocalTimeout
}

// SourceSuggestLimit returns how many typeahead candidates the named source
// may contribute.
func (c *Config) SourceSuggestLimit(name string) int {
	info, exists := c.Sources[name]
	if exists && info.SuggestLimit > 0 {
		return info.SuggestLimit
	}
	return DefaultSourceSuggestLimit
}

// SearchTTL returns the lifetime of cached full search results.
func (c *Config) SearchTTL() time.Duration {
	if c.Cache.Search.Duration > 0 {
		return c.Cache.Search.Duration
	}
	return DefaultSearchTTL
}

// RemoteTTL returns the lifetime of cached per-remote-source sub-results.
func (c *Config) RemoteTTL() time.Duration {
	if c.Cache.Remote.Duration > 0 {
		return c.Cache.Remote.Duration
	}
	return DefaultRemoteTTL
}

// SuggestTTL returns the lifetime of cached suggestion lists.
func (c *Config) SuggestTTL() time.Duration {
	if c.Cache.Suggest.Duration > 0 {
		return c.Cache.Suggest.Duration
	}
	return DefaultSuggestTTL
}

// NegativeTTL returns the brief lifetime used to cache failed remote calls.
func (c *Config) NegativeTTL() time.Duration {
	if c.Cache.Negative.Duration > 0 {
		return c.Cache.Negative.Duration
	}
	return DefaultNegativeTTL
}

// GetDefaultStorageDir returns the default directory for site databases.
// The path is only computed here; whoever opens a database there creates it.
func GetDefaultStorageDir() (string, error) {
	// Use XDG_DATA_HOME if set, otherwise use ~/.local/share
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "fedsearch"), nil
}

// GetConfigDir returns the configuration directory for fedsearch. Like
// GetDefaultStorageDir it does not create the directory; SaveConfig does.
func GetConfigDir() (string, error) {
	// Use XDG_CONFIG_HOME if set, otherwise use ~/.config
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "fedsearch"), nil
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}
