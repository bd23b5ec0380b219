package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the client settings persisted in config.yaml.
// The API token is never stored here; it lives in the system keyring
// (or the MPULSE_TOKEN environment variable for headless use).
type Config struct {
	APIURL string `yaml:"api_url"`

	// Stream tuning. Zero values fall back to the defaults below.
	KeepaliveSeconds      int `yaml:"keepalive_seconds,omitempty"`
	ReconnectDelaySeconds int `yaml:"reconnect_delay_seconds,omitempty"`
	MaxReconnects         int `yaml:"max_reconnects,omitempty"`
}

const (
	DefaultAPIURL           = "http://localhost:8000"
	defaultKeepaliveSeconds = 30
	defaultReconnectSeconds = 3
	defaultMaxReconnects    = 5
)

// Load reads config.yaml, applies defaults, then applies environment
// overrides. A missing file yields the defaults rather than an error.
func Load() (*Config, error) {
	configFile, err := GetConfigFile()
	if err != nil {
		return nil, err
	}
	return LoadFrom(configFile)
}

// LoadFrom reads configuration from a specific file path.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.KeepaliveSeconds <= 0 {
		c.KeepaliveSeconds = defaultKeepaliveSeconds
	}
	if c.ReconnectDelaySeconds <= 0 {
		c.ReconnectDelaySeconds = defaultReconnectSeconds
	}
	if c.MaxReconnects <= 0 {
		c.MaxReconnects = defaultMaxReconnects
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("MPULSE_API_URL"); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv("MPULSE_MAX_RECONNECTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MaxReconnects = n
		}
	}
}

// Save writes the config back to config.yaml.
func (c *Config) Save() error {
	configFile, err := GetConfigFile()
	if err != nil {
		return err
	}
	return c.SaveTo(configFile)
}

// SaveTo writes the config to a specific file path.
func (c *Config) SaveTo(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// KeepaliveInterval returns the keepalive setting as a duration.
func (c *Config) KeepaliveInterval() time.Duration {
	return time.Duration(c.KeepaliveSeconds) * time.Second
}

// ReconnectDelay returns the reconnect delay setting as a duration.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelaySeconds) * time.Second
}
