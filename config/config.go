// Package config handles loading and managing application configuration
// from YAML files, an optional .env file, and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/openclaw/qrbatch/encoder"
)

// Defaults holds the encoder options applied when a request omits them.
type Defaults struct {
	ErrorCorrection string `yaml:"error_correction"`
	Mask            string `yaml:"mask"`
	Margin          int    `yaml:"margin"`
	Width           int    `yaml:"width"`
	Dark            string `yaml:"dark"`
	Light           string `yaml:"light"`
	Format          string `yaml:"format"`
}

// Config holds all application configuration values.
type Config struct {
	Port          int      `yaml:"port"`
	DataDir       string   `yaml:"data_dir"`
	LogLevel      string   `yaml:"log_level"`
	PublicURL     string   `yaml:"public_url"`
	WebhookURL    string   `yaml:"webhook_url"`
	Retention     Duration `yaml:"retention"`
	SweepInterval Duration `yaml:"sweep_interval"`
	MaxPayloads   int      `yaml:"max_payloads"`
	Workers       int      `yaml:"workers"`
	Defaults      Defaults `yaml:"defaults"`
}

// Duration is a wrapper around time.Duration that supports YAML unmarshalling
// from human-readable strings like "30s", "5m", "1h".
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML implements the yaml.Marshaler interface for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// defaults returns a Config populated with sensible default values.
func defaults() *Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return &Config{
		Port:          8556,
		DataDir:       filepath.Join(homeDir, ".qrbatch"),
		LogLevel:      "info",
		PublicURL:     "",
		WebhookURL:    "",
		Retention:     Duration{24 * time.Hour},
		SweepInterval: Duration{10 * time.Minute},
		MaxPayloads:   500,
		Workers:       0,
		Defaults: Defaults{
			ErrorCorrection: "medium",
			Mask:            "auto",
			Margin:          4,
			Dark:            "#000000",
			Light:           "#ffffff",
			Format:          "svg",
		},
	}
}

// Load reads configuration from the YAML file at path, falling back to
// defaults if the file does not exist. Variables from a .env file next to
// the working directory are loaded into the environment (existing
// variables win), then QRB_* environment variables override file and
// default values.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// File doesn't exist, proceed with defaults.
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading .env file: %w", err)
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies QRB_* environment variable overrides to cfg.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("QRB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := os.Getenv("QRB_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("QRB_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("QRB_PUBLIC_URL"); v != "" {
		cfg.PublicURL = v
	}
	if v := os.Getenv("QRB_WEBHOOK_URL"); v != "" {
		cfg.WebhookURL = v
	}
	if v := os.Getenv("QRB_RETENTION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Retention = Duration{d}
		}
	}
	if v := os.Getenv("QRB_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SweepInterval = Duration{d}
		}
	}
	if v := os.Getenv("QRB_MAX_PAYLOADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxPayloads = n
		}
	}
	if v := os.Getenv("QRB_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must be set")
	}
	if c.MaxPayloads < 0 {
		return fmt.Errorf("max_payloads must not be negative")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	if c.Retention.Duration < 0 {
		return fmt.Errorf("retention must not be negative")
	}
	if _, err := c.EncoderDefaults(); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	return nil
}

// EncoderDefaults converts the defaults section into encoder options.
func (c *Config) EncoderDefaults() (encoder.Options, error) {
	d := c.Defaults
	level, err := encoder.ParseLevel(d.ErrorCorrection)
	if err != nil {
		return encoder.Options{}, err
	}
	mask, err := encoder.ParseMask(d.Mask)
	if err != nil {
		return encoder.Options{}, err
	}
	format, err := encoder.ParseFormat(d.Format)
	if err != nil {
		return encoder.Options{}, err
	}
	opts := encoder.Options{
		Level:  level,
		Mask:   mask,
		Margin: d.Margin,
		Width:  d.Width,
		Color:  encoder.Colors{Dark: d.Dark, Light: d.Light},
		Format: format,
	}
	if err := opts.Validate(); err != nil {
		return encoder.Options{}, err
	}
	return opts, nil
}

// EnsureDataDir creates the DataDir and its batches subdirectory if they
// do not already exist.
func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir %s: %w", c.DataDir, err)
	}
	if err := os.MkdirAll(c.BatchDir(), 0o755); err != nil {
		return fmt.Errorf("creating batch dir %s: %w", c.BatchDir(), err)
	}
	return nil
}

// BatchDir is where per-batch archives are written.
func (c *Config) BatchDir() string {
	return filepath.Join(c.DataDir, "batches")
}

// DBPath is the path of the batch ledger database.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "batches.db")
}
