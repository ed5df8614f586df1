package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `
mirrors:
  dir: /var/lib/registryd/mirrors
  repos:
    - name: crates
      url: https://github.com/rust-lang/crates.io-index.git
`

func TestLoad_MinimalConfigGetsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 9190, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, "registryd", cfg.Telemetry.ServiceName)
	assert.Equal(t, "log", cfg.Sink.Provider)

	require.Len(t, cfg.Mirrors.Repos, 1)
	assert.Equal(t, "crates", cfg.Mirrors.Repos[0].Name)
	assert.False(t, cfg.Mirrors.Repos[0].AutoIndex)
}

func TestLoad_FullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  port: 8080
logging:
  level: debug
  format: console
sink:
  provider: nats
  nats:
    url: nats://127.0.0.1:4222
    subject_prefix: indexes.changes
mirrors:
  dir: /srv/mirrors
  repos:
    - name: crates
      url: https://github.com/rust-lang/crates.io-index.git
      auto_index: true
      interval: 90s
`))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "nats", cfg.Sink.Provider)
	assert.Equal(t, "indexes.changes", cfg.Sink.NATS.SubjectPrefix)

	m := cfg.Mirrors.Repos[0]
	assert.True(t, m.AutoIndex)
	assert.Equal(t, 90*time.Second, m.Interval.Duration())
}

func TestLoad_AutoIndexDefaultsInterval(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
mirrors:
  dir: /srv/mirrors
  repos:
    - name: crates
      url: https://example.com/index.git
      auto_index: true
`))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.Mirrors.Repos[0].Interval.Duration())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("REGISTRYD_SERVER_PORT", "7001")
	t.Setenv("REGISTRYD_LOGGING_LEVEL", "warn")

	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 7001, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_MissingFileUsesDefaultsButFailsValidation(t *testing.T) {
	// No mirrors configured -> invalid.
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one mirror")
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "duplicate mirror name",
			mutate:  func(c *Config) { c.Mirrors.Repos = append(c.Mirrors.Repos, c.Mirrors.Repos[0]) },
			wantErr: "duplicate mirror name",
		},
		{
			name:    "missing url",
			mutate:  func(c *Config) { c.Mirrors.Repos[0].URL = "" },
			wantErr: "url is required",
		},
		{
			name: "auto index without interval",
			mutate: func(c *Config) {
				c.Mirrors.Repos[0].AutoIndex = true
				c.Mirrors.Repos[0].Interval = 0
			},
			wantErr: "interval must be positive",
		},
		{
			name:    "nats sink without url",
			mutate:  func(c *Config) { c.Sink.Provider = "nats" },
			wantErr: "sink.nats.url is required",
		},
		{
			name:    "unknown sink provider",
			mutate:  func(c *Config) { c.Sink.Provider = "kafka" },
			wantErr: "sink.provider must be log or nats",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, minimalConfig))
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDuration_RejectsNegative(t *testing.T) {
	var d Duration
	require.Error(t, d.UnmarshalText([]byte("-5s")))
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration())
}
