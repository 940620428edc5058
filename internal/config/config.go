// Package config loads meilictl settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/yourname/meilikit/pkg/meili"
)

// EnvPrefix prefixes every environment variable, e.g. MEILIKIT_MEILISEARCH_URL.
const EnvPrefix = "MEILIKIT"

// Config holds the meilictl configuration.
type Config struct {
	Meilisearch MeilisearchConfig `mapstructure:"meilisearch"`
	Batching    BatchingConfig    `mapstructure:"batching"`
	Tasks       TasksConfig       `mapstructure:"tasks"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// MeilisearchConfig holds the server connection settings.
type MeilisearchConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
	// Timeout is the HTTP timeout in seconds. Zero disables it.
	Timeout int `mapstructure:"timeout"`
}

// BatchingConfig holds the document upload defaults.
type BatchingConfig struct {
	BatchSize      int `mapstructure:"batch_size"`
	MaxPayloadSize int `mapstructure:"max_payload_size"`
}

// TasksConfig holds the task polling defaults.
type TasksConfig struct {
	TimeoutMS  int `mapstructure:"timeout_ms"`
	IntervalMS int `mapstructure:"interval_ms"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// LoadConfig loads configuration from file and environment. An empty
// configFile searches the default locations; a missing default file is not an
// error, an explicit one is. The result is not validated: callers apply their
// overrides first and then call Validate.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("meilikit")
		v.SetConfigType("yaml")
		v.AddConfigPath("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.meilikit")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("meilisearch.url", "http://localhost:7700")
	v.SetDefault("meilisearch.api_key", "")
	v.SetDefault("meilisearch.timeout", 30)

	v.SetDefault("batching.batch_size", meili.DefaultBatchSize)
	v.SetDefault("batching.max_payload_size", meili.DefaultMaxPayloadSize)

	v.SetDefault("tasks.timeout_ms", int(meili.DefaultTaskTimeout/time.Millisecond))
	v.SetDefault("tasks.interval_ms", int(meili.DefaultPollInterval/time.Millisecond))

	v.SetDefault("logging.level", "info")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Meilisearch.URL == "" {
		return fmt.Errorf("meilisearch URL is required")
	}
	u, err := url.Parse(c.Meilisearch.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid meilisearch URL: %q", c.Meilisearch.URL)
	}
	if c.Meilisearch.Timeout < 0 {
		return fmt.Errorf("invalid meilisearch timeout: %d", c.Meilisearch.Timeout)
	}

	if c.Batching.BatchSize < 1 {
		return fmt.Errorf("invalid batch size: %d", c.Batching.BatchSize)
	}
	if c.Batching.MaxPayloadSize < 1 {
		return fmt.Errorf("invalid max payload size: %d", c.Batching.MaxPayloadSize)
	}

	if c.Tasks.TimeoutMS < 1 {
		return fmt.Errorf("invalid task timeout: %d", c.Tasks.TimeoutMS)
	}
	if c.Tasks.IntervalMS < 1 {
		return fmt.Errorf("invalid task interval: %d", c.Tasks.IntervalMS)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}

	return nil
}

// GetTimeout returns the HTTP timeout as a duration.
func (c *Config) GetTimeout() time.Duration {
	return time.Duration(c.Meilisearch.Timeout) * time.Second
}

// WaitOptions returns the task polling settings.
func (c *Config) WaitOptions() meili.WaitOptions {
	return meili.WaitOptions{
		Timeout:  time.Duration(c.Tasks.TimeoutMS) * time.Millisecond,
		Interval: time.Duration(c.Tasks.IntervalMS) * time.Millisecond,
	}
}
