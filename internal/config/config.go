// Package config loads and saves the bricksync YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"bricksync/internal/domain"
	"bricksync/internal/service/converge"
	"bricksync/internal/service/syncrun"
)

// EnvConfigPath overrides DefaultPath.
const EnvConfigPath = "BRICKSYNC_CONFIG"

// PollingConfig bounds the wait for asynchronous iceberg projections.
type PollingConfig struct {
	InitialBackoff time.Duration `yaml:"initial_backoff,omitempty"`
	MaxBackoff     time.Duration `yaml:"max_backoff,omitempty"`
	Timeout        time.Duration `yaml:"timeout,omitempty"`
}

// HistoryConfig locates the run history database.
type HistoryConfig struct {
	// Path is the SQLite file. "-" disables history.
	Path string `yaml:"path,omitempty"`
}

// ServerConfig configures `bricksync serve`.
type ServerConfig struct {
	Addr              string   `yaml:"addr,omitempty"`
	JWTSecret         string   `yaml:"jwt_secret,omitempty"`
	JWTIssuer         string   `yaml:"jwt_issuer,omitempty"`
	RequestsPerSecond float64  `yaml:"requests_per_second,omitempty"`
	Burst             int      `yaml:"burst,omitempty"`
	CORSOrigins       []string `yaml:"cors_allowed_origins,omitempty"`
}

// ProviderConfig is one named catalog connection.
type ProviderConfig struct {
	Name       string              `yaml:"name"`
	Kind       domain.ProviderKind `yaml:"kind"`
	Lazy       bool                `yaml:"lazy,omitempty"`
	Properties map[string]string   `yaml:"properties,omitempty"`
}

// Config is the whole configuration file.
type Config struct {
	SkipFailures           bool                    `yaml:"skip_failures"`
	Parallelism            int                     `yaml:"parallelism,omitempty"`
	TargetFormatPreference string                  `yaml:"target_format_preference,omitempty"`
	TargetSyncStrategy     string                  `yaml:"target_sync_strategy,omitempty"`
	Polling                PollingConfig           `yaml:"polling,omitempty"`
	History                HistoryConfig           `yaml:"history,omitempty"`
	Server                 ServerConfig            `yaml:"server,omitempty"`
	LogLevel               string                  `yaml:"log_level,omitempty"`
	Providers              []ProviderConfig        `yaml:"providers"`
	Syncs                  []domain.SyncDefinition `yaml:"syncs"`
}

// Default returns an empty configuration with every default applied.
func Default() *Config {
	cfg := &Config{SkipFailures: true}
	cfg.applyDefaults()
	return cfg
}

// DefaultPath returns $BRICKSYNC_CONFIG or ~/.bricksync/config.yaml.
func DefaultPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".bricksync", "config.yaml")
	}
	return filepath.Join(home, ".bricksync", "config.yaml")
}

// Load reads path, expands ${VAR} references, applies defaults and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrConfig("config file %s does not exist", path)
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a configuration document.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))
	cfg := &Config{SkipFailures: true}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, domain.ErrConfig("parse config: %v", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Parallelism == 0 {
		c.Parallelism = syncrun.DefaultParallelism
	}
	if c.TargetFormatPreference == "" {
		c.TargetFormatPreference = string(domain.PreferMirror)
	}
	if c.TargetSyncStrategy == "" {
		c.TargetSyncStrategy = string(domain.StrategyMirror)
	}
	if c.Polling.InitialBackoff == 0 {
		c.Polling.InitialBackoff = converge.DefaultInitialBackoff
	}
	if c.Polling.MaxBackoff == 0 {
		c.Polling.MaxBackoff = converge.DefaultMaxBackoff
	}
	if c.Polling.Timeout == 0 {
		c.Polling.Timeout = converge.DefaultTimeout
	}
	if c.History.Path == "" {
		c.History.Path = filepath.Join(filepath.Dir(DefaultPath()), "history.db")
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.RequestsPerSecond == 0 {
		c.Server.RequestsPerSecond = 10
	}
	if c.Server.Burst == 0 {
		c.Server.Burst = 20
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	for i := range c.Providers {
		c.Providers[i].Kind = domain.ProviderKind(strings.ToLower(string(c.Providers[i].Kind)))
	}
}

// Validate checks provider names and kinds, sync references and enum
// values. All problems are reported together as one *domain.ConfigError.
func (c *Config) Validate() error {
	var problems []string
	if c.Parallelism < 1 {
		problems = append(problems, fmt.Sprintf("parallelism must be at least 1, got %d", c.Parallelism))
	}
	if _, err := domain.ParseFormatPreference(c.TargetFormatPreference); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := domain.ParseSyncStrategy(c.TargetSyncStrategy); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Polling.InitialBackoff < 0 || c.Polling.MaxBackoff < 0 || c.Polling.Timeout < 0 {
		problems = append(problems, "polling durations must not be negative")
	}

	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		switch {
		case p.Name == "":
			problems = append(problems, fmt.Sprintf("provider #%d has no name", i+1))
		case seen[p.Name]:
			problems = append(problems, fmt.Sprintf("duplicate provider name %q", p.Name))
		}
		seen[p.Name] = true
		if !KnownKind(p.Kind) {
			problems = append(problems, fmt.Sprintf("provider %q has unknown kind %q", p.Name, p.Kind))
		}
	}
	for i, s := range c.Syncs {
		if s.Source == "" {
			problems = append(problems, fmt.Sprintf("sync #%d has no source", i+1))
		}
		if !seen[s.SourceProvider] {
			problems = append(problems, fmt.Sprintf("sync #%d references unknown source provider %q", i+1, s.SourceProvider))
		}
		if !seen[s.TargetProvider] {
			problems = append(problems, fmt.Sprintf("sync #%d references unknown target provider %q", i+1, s.TargetProvider))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return domain.ErrConfig("invalid configuration: %s", strings.Join(problems, "; "))
}

// KnownKind reports whether kind names a provider implementation.
func KnownKind(kind domain.ProviderKind) bool {
	switch kind {
	case domain.ProviderDatabricks, domain.ProviderSnowflake, domain.ProviderGlue,
		domain.ProviderIcebergREST, domain.ProviderDuckDB:
		return true
	default:
		return false
	}
}

// RunConfig converts the run settings for the orchestrator.
func (c *Config) RunConfig() (syncrun.Config, error) {
	pref, err := domain.ParseFormatPreference(c.TargetFormatPreference)
	if err != nil {
		return syncrun.Config{}, err
	}
	strategy, err := domain.ParseSyncStrategy(c.TargetSyncStrategy)
	if err != nil {
		return syncrun.Config{}, err
	}
	return syncrun.Config{
		SkipFailures: c.SkipFailures,
		Parallelism:  c.Parallelism,
		Preference:   pref,
		Strategy:     strategy,
		Polling: converge.PollingConfig{
			InitialBackoff: c.Polling.InitialBackoff,
			MaxBackoff:     c.Polling.MaxBackoff,
			Timeout:        c.Polling.Timeout,
		},
	}, nil
}

// Provider returns the provider entry named name.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

// AddProvider appends p, rejecting duplicate names and unknown kinds.
func (c *Config) AddProvider(p ProviderConfig) error {
	if p.Name == "" {
		return domain.ErrValidation("provider name is required")
	}
	p.Kind = domain.ProviderKind(strings.ToLower(string(p.Kind)))
	if !KnownKind(p.Kind) {
		return domain.ErrValidation("unknown provider kind %q", p.Kind)
	}
	if _, ok := c.Provider(p.Name); ok {
		return domain.ErrConflict("provider %q already exists", p.Name)
	}
	c.Providers = append(c.Providers, p)
	return nil
}

// AddSync appends s after checking that both providers exist and that the
// same definition is not already present.
func (c *Config) AddSync(s domain.SyncDefinition) error {
	if _, err := domain.ParseScope(s.Source); err != nil {
		return err
	}
	if _, ok := c.Provider(s.SourceProvider); !ok {
		return domain.ErrValidation("unknown source provider %q", s.SourceProvider)
	}
	if _, ok := c.Provider(s.TargetProvider); !ok {
		return domain.ErrValidation("unknown target provider %q", s.TargetProvider)
	}
	for _, existing := range c.Syncs {
		if existing.Source == s.Source && existing.SourceProvider == s.SourceProvider &&
			existing.TargetProvider == s.TargetProvider {
			return domain.ErrConflict("sync %s from %s to %s already exists", s.Source, s.SourceProvider, s.TargetProvider)
		}
	}
	c.Syncs = append(c.Syncs, s)
	return nil
}

// Edit applies fn to the file at path and saves the result. The document is
// decoded without ${VAR} expansion or defaults, so references to the
// environment survive the round trip. A missing file starts empty.
func Edit(path string, fn func(*Config) error) error {
	cfg := &Config{SkipFailures: true}
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return domain.ErrConfig("parse config: %v", err)
		}
	}
	if err := fn(cfg); err != nil {
		return err
	}
	return Save(path, cfg)
}

// Save writes cfg to path through a temporary file and a rename, so a
// reader never observes a partial file. The file is created with mode 0600.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".config-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

// SlogLevel maps a level name to an slog.Level. Unknown names are info.
func SlogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
