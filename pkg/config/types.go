package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent spool configuration stored as spool.toml
// in the .spool/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version  int            `toml:"version"`
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Kafka    KafkaConfig    `toml:"kafka"`
	AI       AIConfig       `toml:"ai"`
	Client   ClientConfig   `toml:"client"`
	Tail     TailConfig     `toml:"tail"`
	Build    BuildConfig    `toml:"build"`
}

// ServerConfig holds capture server settings.
type ServerConfig struct {
	Listen  string `toml:"listen,omitempty"`
	Workers uint   `toml:"workers,omitempty"`
}

// DatabaseConfig holds capture store settings. Driver selects the backend
// (sqlite, postgres, or memory); DSN is the sqlite path or postgres
// connection string. An empty sqlite DSN resolves to spool.db under the
// .spool/ directory at open time.
type DatabaseConfig struct {
	Driver string `toml:"driver,omitempty"`
	DSN    string `toml:"dsn,omitempty"`
}

// KafkaConfig holds event publishing settings. Publishing is enabled by
// configuring at least one broker.
type KafkaConfig struct {
	Brokers []string `toml:"brokers,omitempty"`
	Topic   string   `toml:"topic,omitempty"`
}

// AIConfig holds commit-message generation settings. Empty model and target
// fall back to the selected provider's defaults.
type AIConfig struct {
	Provider string `toml:"provider,omitempty"`
	Model    string `toml:"model,omitempty"`
	Target   string `toml:"target,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to a running
// spool server (e.g. spool tail, spool build --notify).
// Values are full URLs (scheme + host + port).
type ClientConfig struct {
	ServerTarget string `toml:"server_target,omitempty"`
}

// TailConfig holds defaults for the tail command.
type TailConfig struct {
	Retry string `toml:"retry,omitempty"`
}

// RetryInterval parses the configured reconnect interval, falling back to
// the package default when unset or malformed.
func (t TailConfig) RetryInterval() time.Duration {
	d, err := time.ParseDuration(t.Retry)
	if err != nil || d <= 0 {
		return defaultTailRetryInterval
	}
	return d
}

// BuildConfig holds defaults for the build command. Watch lists the paths
// watched in --watch mode.
type BuildConfig struct {
	Watch []string `toml:"watch,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure. List-valued
// keys (kafka.brokers, build.watch) round-trip as comma-separated strings.
var configKeys = map[string]configKeyInfo{
	"server.listen": {
		get: func(c *Config) string { return c.Server.Listen },
		set: func(c *Config, v string) error { c.Server.Listen = v; return nil },
	},
	"server.workers": {
		get: func(c *Config) string {
			if c.Server.Workers == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Server.Workers), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for server.workers: %w", err)
			}
			c.Server.Workers = uint(n)
			return nil
		},
	},
	"database.driver": {
		get: func(c *Config) string { return c.Database.Driver },
		set: func(c *Config, v string) error { c.Database.Driver = v; return nil },
	},
	"database.dsn": {
		get: func(c *Config) string { return c.Database.DSN },
		set: func(c *Config, v string) error { c.Database.DSN = v; return nil },
	},
	"kafka.brokers": {
		get: func(c *Config) string { return strings.Join(c.Kafka.Brokers, ",") },
		set: func(c *Config, v string) error { c.Kafka.Brokers = splitList(v); return nil },
	},
	"kafka.topic": {
		get: func(c *Config) string { return c.Kafka.Topic },
		set: func(c *Config, v string) error { c.Kafka.Topic = v; return nil },
	},
	"ai.provider": {
		get: func(c *Config) string { return c.AI.Provider },
		set: func(c *Config, v string) error { c.AI.Provider = v; return nil },
	},
	"ai.model": {
		get: func(c *Config) string { return c.AI.Model },
		set: func(c *Config, v string) error { c.AI.Model = v; return nil },
	},
	"ai.target": {
		get: func(c *Config) string { return c.AI.Target },
		set: func(c *Config, v string) error { c.AI.Target = v; return nil },
	},
	"client.server_target": {
		get: func(c *Config) string { return c.Client.ServerTarget },
		set: func(c *Config, v string) error { c.Client.ServerTarget = v; return nil },
	},
	"tail.retry": {
		get: func(c *Config) string { return c.Tail.Retry },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for tail.retry: %w", err)
			}
			c.Tail.Retry = v
			return nil
		},
	},
	"build.watch": {
		get: func(c *Config) string { return strings.Join(c.Build.Watch, ",") },
		set: func(c *Config, v string) error { c.Build.Watch = splitList(v); return nil },
	},
}

// splitList splits a comma-separated value into trimmed, non-empty elements.
func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
