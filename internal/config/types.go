package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/registryd/internal/logging"
)

// Duration wraps time.Duration for text unmarshaling (YAML, env vars).
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	if parsed < 0 {
		return fmt.Errorf("duration cannot be negative: %s", text)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration().String()), nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration().String())
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   logging.Config  `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Sink      SinkConfig      `koanf:"sink"`
	Mirrors   MirrorsConfig   `koanf:"mirrors"`
}

// ServerConfig holds the ops HTTP API settings.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// TelemetryConfig identifies the service in exported metrics.
type TelemetryConfig struct {
	ServiceName    string `koanf:"service_name"`
	ServiceVersion string `koanf:"service_version"`
}

// SinkConfig selects where change events go.
type SinkConfig struct {
	// Provider is "nats" or "log".
	Provider string     `koanf:"provider"`
	NATS     NATSConfig `koanf:"nats"`
}

// NATSConfig holds broker settings for the NATS sink.
type NATSConfig struct {
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// MirrorsConfig holds the mirror root directory and the tracked remotes.
type MirrorsConfig struct {
	// Dir is the directory under which every mirror is cloned.
	Dir   string         `koanf:"dir"`
	Repos []MirrorConfig `koanf:"repos"`
}

// MirrorConfig describes one tracked remote index.
type MirrorConfig struct {
	// Name identifies the mirror in the API, logs, metrics, and sink
	// subjects. Required and unique.
	Name string `koanf:"name"`
	// URL is the remote to clone and fetch from. Required.
	URL string `koanf:"url"`
	// Dir overrides the mirror directory name under mirrors.dir.
	// Defaults to the repository name derived from the URL.
	Dir string `koanf:"dir"`
	// AutoIndex arms the periodic schedule at startup.
	AutoIndex bool `koanf:"auto_index"`
	// Interval is the periodic indexing interval.
	Interval Duration `koanf:"interval"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive")
	}

	if err := c.Logging.Validate(); err != nil {
		return err
	}

	switch c.Sink.Provider {
	case "log":
	case "nats":
		if c.Sink.NATS.URL == "" {
			return fmt.Errorf("sink.nats.url is required when sink.provider is nats")
		}
	default:
		return fmt.Errorf("sink.provider must be log or nats, got %q", c.Sink.Provider)
	}

	if c.Mirrors.Dir == "" {
		return fmt.Errorf("mirrors.dir is required")
	}
	if len(c.Mirrors.Repos) == 0 {
		return fmt.Errorf("at least one mirror must be configured")
	}

	names := make(map[string]bool, len(c.Mirrors.Repos))
	for i, m := range c.Mirrors.Repos {
		if m.Name == "" {
			return fmt.Errorf("mirrors.repos[%d].name is required", i)
		}
		if names[m.Name] {
			return fmt.Errorf("duplicate mirror name %q", m.Name)
		}
		names[m.Name] = true

		if m.URL == "" {
			return fmt.Errorf("mirror %s: url is required", m.Name)
		}
		if m.AutoIndex && m.Interval.Duration() <= 0 {
			return fmt.Errorf("mirror %s: interval must be positive when auto_index is set", m.Name)
		}
	}
	return nil
}
