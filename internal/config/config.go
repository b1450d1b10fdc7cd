// Package config loads and validates connector configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Archive backends.
const (
	ArchiveNone   = "none"
	ArchiveMemory = "memory"
	ArchiveLocal  = "local"
	ArchiveGCS    = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Auth      AuthConfig       `mapstructure:"auth"`
	Logging   LoggingConfig    `mapstructure:"logging"`
	Instances []InstanceConfig `mapstructure:"instances"`
	Router    RouterConfig     `mapstructure:"router"`
	Database  DatabaseConfig   `mapstructure:"database"`
	PubSub    PubSubConfig     `mapstructure:"pubsub"`
	Archive   ArchiveConfig    `mapstructure:"archive"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// InstanceConfig describes one analysis engine instance.
type InstanceConfig struct {
	ID             string  `mapstructure:"id"`
	URL            string  `mapstructure:"url"`
	APIKey         string  `mapstructure:"api_key"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Timeout returns the per-request timeout of the instance.
func (i InstanceConfig) Timeout() time.Duration {
	return time.Duration(i.TimeoutSeconds) * time.Second
}

// RouterConfig selects the default-instance policy.
type RouterConfig struct {
	Selection string `mapstructure:"selection"`
}

// DatabaseConfig controls the Postgres job index. An empty DSN selects the in-memory index.
type DatabaseConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for job submission notifications. An empty
// project selects the in-memory publisher.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ArchiveConfig selects where finished reports are copied.
type ArchiveConfig struct {
	Backend string `mapstructure:"backend"`
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
	Dir     string `mapstructure:"dir"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CONNECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.applyInstanceDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("router.selection", "round_robin")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.table", "job_locations")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "connector-jobs")
	v.SetDefault("archive.backend", ArchiveNone)
	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.prefix", "reports")
	v.SetDefault("archive.dir", "")
}

func (c *Config) applyInstanceDefaults() {
	for i := range c.Instances {
		if c.Instances[i].TimeoutSeconds == 0 {
			c.Instances[i].TimeoutSeconds = 10
		}
		if c.Instances[i].RateLimitBurst == 0 {
			c.Instances[i].RateLimitBurst = 1
		}
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	seen := make(map[string]struct{}, len(c.Instances))
	for i, inst := range c.Instances {
		if inst.ID == "" {
			return fmt.Errorf("instances[%d].id is required", i)
		}
		if _, dup := seen[inst.ID]; dup {
			return fmt.Errorf("instances[%d].id %q is duplicated", i, inst.ID)
		}
		seen[inst.ID] = struct{}{}
		u, err := url.Parse(inst.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("instances[%d].url must be an http(s) url", i)
		}
		if inst.TimeoutSeconds < 0 {
			return fmt.Errorf("instances[%d].timeout_seconds must be >= 0", i)
		}
		if inst.RateLimitRPS < 0 {
			return fmt.Errorf("instances[%d].rate_limit_rps must be >= 0", i)
		}
	}
	switch c.Router.Selection {
	case "first", "round_robin":
	default:
		return fmt.Errorf("router.selection must be first or round_robin, got %q", c.Router.Selection)
	}
	if c.PubSub.ProjectID != "" && c.PubSub.TopicName == "" {
		return fmt.Errorf("pubsub.topic_name must be set when pubsub.project_id is set")
	}
	switch c.Archive.Backend {
	case ArchiveNone, ArchiveMemory:
	case ArchiveLocal:
		if c.Archive.Dir == "" {
			return fmt.Errorf("archive.dir must be set for the local archive")
		}
	case ArchiveGCS:
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket must be set for the gcs archive")
		}
	default:
		return fmt.Errorf("archive.backend must be one of none, memory, local, gcs, got %q", c.Archive.Backend)
	}
	return nil
}

// RequestTimeout returns the HTTP handler timeout.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}
