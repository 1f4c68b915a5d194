// Package config loads and stores CLI configuration in the XDG config dir.
// Only non-secret settings are kept here; secrets go to OS keychain or env.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"seedfast/querygate/internal/policy"
	"seedfast/querygate/internal/xdg"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Config holds non-sensitive CLI settings.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	// Concurrency bounds parallel pipeline runs in batch mode.
	Concurrency int `yaml:"concurrency"`
	// CallerLevel is the clearance used when --level is not given.
	CallerLevel string           `yaml:"caller_level"`
	LLM         LLMConfig        `yaml:"llm"`
	Timeouts    Timeouts         `yaml:"timeouts"`
	Prometheus  PrometheusConfig `yaml:"prometheus"`
	DB          DBConfig         `yaml:"db"`
	// Bundle is the path of the routing/schema bundle file.
	Bundle string       `yaml:"bundle"`
	Audit  AuditConfig  `yaml:"audit"`
	Policy PolicyConfig `yaml:"policy"`
}

// LLMConfig selects the text-generation provider.
type LLMConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// Timeouts bound every collaborator call.
type Timeouts struct {
	LLM     time.Duration `yaml:"llm"`
	Plan    time.Duration `yaml:"plan"`
	Metrics time.Duration `yaml:"metrics"`
}

// PrometheusConfig points at the metrics backend used for advisory statistics.
type PrometheusConfig struct {
	URL string `yaml:"url"`
}

// DBConfig holds database settings. The DSN itself is never stored here.
type DBConfig struct {
	// Schema is introspected when the bundle has no SQL schema file.
	Schema string `yaml:"schema"`
}

// AuditConfig controls the local audit trail.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// PolicyConfig extends the built-in sensitivity table and denylist.
type PolicyConfig struct {
	// Sensitivity maps a field ("email" or "users.email") to a level name or number.
	Sensitivity map[string]string `yaml:"sensitivity,omitempty"`
	ExtraBanned []string          `yaml:"extra_banned,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		LogLevel:    "info",
		LogFormat:   "text",
		Concurrency: 4,
		CallerLevel: "public",
		LLM:         LLMConfig{Provider: "anthropic", MaxTokens: 1024},
		Timeouts:    Timeouts{LLM: 60 * time.Second, Plan: 15 * time.Second, Metrics: 15 * time.Second},
		Prometheus:  PrometheusConfig{URL: "http://localhost:9090"},
		DB:          DBConfig{Schema: "public"},
		Audit:       AuditConfig{Enabled: true},
	}
}

// Path returns the path to the config file.
func Path() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads configuration from the XDG config dir; missing file returns defaults.
func Load() (Config, error) {
	p, err := Path()
	if err != nil {
		return Config{}, err
	}
	return LoadFile(p)
}

// LoadFile reads configuration from p, layered over Default.
func LoadFile(p string) (Config, error) {
	c := Default()
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return c, err
	}

	// Policy keys such as "users.email" contain dots, so the key path delimiter is "/".
	k := koanf.New("/")
	if err := k.Load(file.Provider(p), yaml.Parser()); err != nil {
		return c, fmt.Errorf("failed to load config from %q: %w", p, err)
	}
	if err := k.UnmarshalWithConf("", &c, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return c, fmt.Errorf("failed to parse config from %q: %w", p, err)
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("invalid config %q: %w", p, err)
	}
	return c, nil
}

// Validate checks values that would otherwise fail late.
func (c Config) Validate() error {
	switch c.LLM.Provider {
	case "anthropic", "gemini":
	default:
		return fmt.Errorf("llm.provider must be anthropic or gemini, got %q", c.LLM.Provider)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}
	if _, err := policy.ParseLevel(c.CallerLevel); err != nil {
		return fmt.Errorf("caller_level: %w", err)
	}
	if _, err := c.PolicyOptions(); err != nil {
		return err
	}
	return nil
}

// PolicyOptions converts the policy section into policy options.
func (c Config) PolicyOptions() ([]policy.Option, error) {
	var opts []policy.Option
	if len(c.Policy.Sensitivity) > 0 {
		table := make(map[string]policy.Level, len(c.Policy.Sensitivity))
		for field, raw := range c.Policy.Sensitivity {
			lvl, err := policy.ParseLevel(raw)
			if err != nil {
				return nil, fmt.Errorf("policy.sensitivity.%s: %w", field, err)
			}
			table[field] = lvl
		}
		opts = append(opts, policy.WithSensitivity(table))
	}
	if len(c.Policy.ExtraBanned) > 0 {
		opts = append(opts, policy.WithBanned(c.Policy.ExtraBanned...))
	}
	return opts, nil
}

// AuditPath returns the audit database path, defaulting to the XDG state dir.
func (c Config) AuditPath() (string, error) {
	if c.Audit.Path != "" {
		return c.Audit.Path, nil
	}
	dir, err := xdg.StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "audit.db"), nil
}

// Save writes configuration to the XDG config dir with 0600 permissions.
func Save(c Config) error {
	p, err := Path()
	if err != nil {
		return err
	}
	return SaveFile(p, c)
}

// SaveFile writes configuration to p with 0600 permissions.
func SaveFile(p string, c Config) error {
	b, err := yamlv3.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(p, b, 0o600)
}
