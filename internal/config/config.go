// Package config loads runtime settings from provedores.toml and PROVEDORES_* variables
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const envPrefix = "PROVEDORES"

// HTTPConfig tunes the shared fetcher
type HTTPConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	UserAgent  string        `mapstructure:"user_agent"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// ProviderConfig overrides a single provider
type ProviderConfig struct {
	URL     string `mapstructure:"url"`
	Enabled *bool  `mapstructure:"enabled"`
}

// Config is the full runtime configuration
type Config struct {
	Debug         bool                      `mapstructure:"debug"`
	HTTP          HTTPConfig                `mapstructure:"http"`
	SearchTimeout time.Duration             `mapstructure:"search_timeout"`
	Providers     map[string]ProviderConfig `mapstructure:"providers"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.user_agent", "")
	v.SetDefault("http.max_retries", 2)
	v.SetDefault("http.retry_delay", 350*time.Millisecond)
	v.SetDefault("search_timeout", 15*time.Second)
}

// Default returns the configuration used when no file is present
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

// Load reads path, or searches ./provedores.toml and
// $HOME/.config/provedores/provedores.toml when path is empty. A missing file
// is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("provedores")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "provedores"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}

	normalized := make(map[string]ProviderConfig, len(cfg.Providers))
	for name, p := range cfg.Providers {
		normalized[strings.ToLower(name)] = p
	}
	cfg.Providers = normalized
	return cfg, nil
}

// ProviderURL returns the configured mirror for name, or fallback
func (c *Config) ProviderURL(name, fallback string) string {
	if c == nil {
		return fallback
	}
	if p, ok := c.Providers[strings.ToLower(name)]; ok && p.URL != "" {
		return strings.TrimSuffix(p.URL, "/")
	}
	return fallback
}

// ProviderEnabled reports whether name is enabled. Providers are enabled unless
// explicitly turned off.
func (c *Config) ProviderEnabled(name string) bool {
	if c == nil {
		return true
	}
	if p, ok := c.Providers[strings.ToLower(name)]; ok && p.Enabled != nil {
		return *p.Enabled
	}
	return true
}
