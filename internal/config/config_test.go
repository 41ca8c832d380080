package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() *Config {
	return &Config{
		Client:       ClientConfig{ConnectTimeout: time.Second, ReadTimeout: time.Second},
		Throttle:     ThrottleConfig{Interval: 500 * time.Millisecond},
		Orchestrator: OrchestratorConfig{SearchLimit: 20},
		StreamURL:    StreamURLConfig{CacheSize: 1000},
		Favorites: FavoritesConfig{
			Backend:  "database",
			Database: DatabaseConfig{Driver: "sqlite", DSN: "test.db"},
		},
		Server:  ServerConfig{Port: 8787},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "http", cfg.Panel.Scheme)
	assert.Empty(t, cfg.Panel.Host)

	assert.Equal(t, 10*time.Second, cfg.Client.ConnectTimeout)
	assert.Equal(t, 15*time.Second, cfg.Client.ReadTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Throttle.Interval)

	assert.Equal(t, 30*time.Second, cfg.Orchestrator.CategoryReload)
	assert.Equal(t, 5*time.Second, cfg.Orchestrator.ListReload)
	assert.Equal(t, 3*time.Second, cfg.Orchestrator.LoginInterval)
	assert.Equal(t, 20, cfg.Orchestrator.SearchLimit)

	assert.Equal(t, 1000, cfg.StreamURL.CacheSize)

	assert.Equal(t, "database", cfg.Favorites.Backend)
	assert.Equal(t, "sqlite", cfg.Favorites.Database.Driver)
	assert.Equal(t, "xtreamer.db", cfg.Favorites.Database.DSN)

	assert.Equal(t, "mpv", cfg.Player.Command)
	assert.Equal(t, time.Second, cfg.Player.PositionPoll)

	assert.Equal(t, "127.0.0.1:8787", cfg.Server.Address())
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "xtreamer.yaml")
	content := `
panel:
  host: panel.example
  port: "8080"
  username: alice
  password: secret
throttle:
  interval: 250ms
favorites:
  backend: file
  path: /tmp/favs.json
logging:
  level: debug
  format: text
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	creds := cfg.Panel.Credentials()
	assert.Equal(t, "http://panel.example:8080", creds.BaseURL())
	assert.True(t, creds.IsValid())
	assert.Equal(t, 250*time.Millisecond, cfg.Throttle.Interval)
	assert.Equal(t, "file", cfg.Favorites.Backend)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "xtreamer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("panel:\n  host: file.example\n"), 0o600))

	t.Setenv("XTREAMER_PANEL_HOST", "env.example")
	t.Setenv("XTREAMER_SERVER_PORT", "9999")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env.example", cfg.Panel.Host)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestLoadWith_UsesProvidedViper(t *testing.T) {
	t.Chdir(t.TempDir())

	v := viper.New()
	v.Set("panel.username", "flaguser")

	cfg, err := LoadWith(v, "")
	require.NoError(t, err)
	assert.Equal(t, "flaguser", cfg.Panel.Username)
}

func TestLoad_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("panel: [\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"negative throttle", func(c *Config) { c.Throttle.Interval = -time.Second }, "throttle.interval"},
		{"zero throttle allowed", func(c *Config) { c.Throttle.Interval = 0 }, ""},
		{"no connect timeout", func(c *Config) { c.Client.ConnectTimeout = 0 }, "client."},
		{"negative reload", func(c *Config) { c.Orchestrator.ListReload = -1 }, "orchestrator"},
		{"search limit", func(c *Config) { c.Orchestrator.SearchLimit = 0 }, "search_limit"},
		{"cache size", func(c *Config) { c.StreamURL.CacheSize = 0 }, "cache_size"},
		{"bad backend", func(c *Config) { c.Favorites.Backend = "redis" }, "favorites.backend"},
		{"bad driver", func(c *Config) { c.Favorites.Database.Driver = "oracle" }, "favorites.database.driver"},
		{"missing dsn", func(c *Config) { c.Favorites.Database.DSN = "" }, "favorites.database.dsn"},
		{"memory ignores dsn", func(c *Config) { c.Favorites = FavoritesConfig{Backend: "memory"} }, ""},
		{"file needs path", func(c *Config) { c.Favorites = FavoritesConfig{Backend: "file"} }, "favorites.path"},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
