package infra

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration, loaded from YAML with
// sensitive values overridden from the environment (.env supported).
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	API struct {
		Extended struct {
			RestURL    string `yaml:"rest_url"`
			StreamURL  string `yaml:"stream_url"`
			APIKey     string `yaml:"api_key"`
			PublicKey  string `yaml:"public_key"`
			PrivateKey string `yaml:"private_key"`
			Vault      uint64 `yaml:"vault"`
		} `yaml:"extended"`
	} `yaml:"api"`

	Stream struct {
		ReconnectDelaySec int `yaml:"reconnect_delay_sec"`
		ReadRetryDelaySec int `yaml:"read_retry_delay_sec"`
	} `yaml:"stream"`

	Cache struct {
		MetadataTTLSec int `yaml:"metadata_ttl_sec"`
	} `yaml:"cache"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file, then applies
// environment overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	// Credentials may live in a .env next to the binary; a missing file is fine.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Stream.ReconnectDelaySec <= 0 {
		cfg.Stream.ReconnectDelaySec = 10
	}
	if cfg.Stream.ReadRetryDelaySec <= 0 {
		cfg.Stream.ReadRetryDelaySec = 5
	}
	if cfg.Cache.MetadataTTLSec <= 0 {
		cfg.Cache.MetadataTTLSec = 60
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.API.Extended.RestURL == "" || (!hasPrefix(c.API.Extended.RestURL, "http://") && !hasPrefix(c.API.Extended.RestURL, "https://")) {
		return fmt.Errorf("invalid Extended REST URL: %s", c.API.Extended.RestURL)
	}
	if c.API.Extended.StreamURL == "" || (!hasPrefix(c.API.Extended.StreamURL, "ws://") && !hasPrefix(c.API.Extended.StreamURL, "wss://")) {
		return fmt.Errorf("invalid Extended stream URL: %s", c.API.Extended.StreamURL)
	}
	return nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// overrideWithEnv applies environment variables over file values when set.
func overrideWithEnv(cfg *Config) {
	if key := os.Getenv("EXTENDED_API_KEY"); key != "" {
		cfg.API.Extended.APIKey = key
	}
	if pub := os.Getenv("EXTENDED_PUBLIC_KEY"); pub != "" {
		cfg.API.Extended.PublicKey = pub
	}
	if priv := os.Getenv("EXTENDED_PRIVATE_KEY"); priv != "" {
		cfg.API.Extended.PrivateKey = priv
	}
	if vault := os.Getenv("EXTENDED_VAULT"); vault != "" {
		if v, err := strconv.ParseUint(vault, 10, 64); err == nil {
			cfg.API.Extended.Vault = v
		}
	}
}
