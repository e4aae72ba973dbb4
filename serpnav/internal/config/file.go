// Package config handles serpnav configuration from YAML files or SQLite.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level serpnav configuration.
type Config struct {
	Browser    BrowserConfig    `yaml:"browser"`
	Pages      []PageConfig     `yaml:"pages"`
	Navigation NavigationConfig `yaml:"navigation"`
	Sinks      []SinkConfig     `yaml:"sinks"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote   string `yaml:"remote"`
	Headless bool   `yaml:"headless"`
	Stealth  *bool  `yaml:"stealth"` // nil means true
	Bin      string `yaml:"bin"`
}

// StealthEnabled reports whether tabs get the stealth patches.
func (b BrowserConfig) StealthEnabled() bool {
	return b.Stealth == nil || *b.Stealth
}

// PageConfig defines a page to navigate.
type PageConfig struct {
	ID  string `yaml:"id"`
	URL string `yaml:"url"`
}

// NavigationConfig tunes rescanning and the focus band.
type NavigationConfig struct {
	Debounce     time.Duration `yaml:"debounce"`
	RetryMax     int           `yaml:"retry_max"`
	RetryBase    time.Duration `yaml:"retry_base"`
	Settle       time.Duration `yaml:"settle"`
	RevealMargin float64       `yaml:"reveal_margin"`
}

// SinkConfig defines a diagnostic event backend.
type SinkConfig struct {
	Type string `yaml:"type"` // stdout | webhook
	URL  string `yaml:"url"`  // for webhook
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML configuration and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied and no pages.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Navigation.Debounce <= 0 {
		c.Navigation.Debounce = 800 * time.Millisecond
	}
	if c.Navigation.RetryMax <= 0 {
		c.Navigation.RetryMax = 3
	}
	if c.Navigation.RetryBase <= 0 {
		c.Navigation.RetryBase = 500 * time.Millisecond
	}
	if c.Navigation.Settle <= 0 {
		c.Navigation.Settle = time.Second
	}
	if c.Navigation.RevealMargin <= 0 {
		c.Navigation.RevealMargin = 100
	}
	for i := range c.Pages {
		if c.Pages[i].ID == "" {
			c.Pages[i].ID = fmt.Sprintf("page-%d", i+1)
		}
	}
}

func (c *Config) validate() error {
	seen := make(map[string]bool, len(c.Pages))
	for _, p := range c.Pages {
		if p.URL == "" {
			return fmt.Errorf("config: page %q: url is required", p.ID)
		}
		if seen[p.ID] {
			return fmt.Errorf("config: duplicate page id %q", p.ID)
		}
		seen[p.ID] = true
	}
	for _, s := range c.Sinks {
		switch s.Type {
		case "stdout":
		case "webhook":
			if s.URL == "" {
				return fmt.Errorf("config: webhook sink: url is required")
			}
		default:
			return fmt.Errorf("config: unknown sink type %q", s.Type)
		}
	}
	return nil
}
