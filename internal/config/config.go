// Package config provides configuration management for xtreamer using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jmylchreest/xtreamer/pkg/xtream"
)

// Default configuration values.
const (
	defaultServerPort       = 8787
	defaultServerTimeout    = 30 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
	defaultThrottleInterval = 500 * time.Millisecond
	defaultCategoryReload   = 30 * time.Second
	defaultListReload       = 5 * time.Second
	defaultLoginInterval    = 3 * time.Second
	defaultSearchLimit      = 20
	defaultSearchDebounce   = 500 * time.Millisecond
	defaultURLCacheSize     = 1000
	defaultPositionPoll     = time.Second
	defaultSeekStep         = 10 * time.Second
	defaultMaxOpenConns     = 4
	defaultMaxIdleConns     = 2
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "XTREAMER"

// Config holds all configuration for the application.
type Config struct {
	Panel        PanelConfig        `mapstructure:"panel" yaml:"panel"`
	Client       ClientConfig       `mapstructure:"client" yaml:"client"`
	Throttle     ThrottleConfig     `mapstructure:"throttle" yaml:"throttle"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator" yaml:"orchestrator"`
	StreamURL    StreamURLConfig    `mapstructure:"stream_url" yaml:"stream_url"`
	Favorites    FavoritesConfig    `mapstructure:"favorites" yaml:"favorites"`
	Player       PlayerConfig       `mapstructure:"player" yaml:"player"`
	Server       ServerConfig       `mapstructure:"server" yaml:"server"`
	Logging      LoggingConfig      `mapstructure:"logging" yaml:"logging"`
}

// PanelConfig holds the default login form values.
type PanelConfig struct {
	Scheme   string `mapstructure:"scheme" yaml:"scheme"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
}

// Credentials converts the panel section into client credentials.
func (p PanelConfig) Credentials() xtream.Credentials {
	return xtream.Credentials{
		Scheme:   p.Scheme,
		Host:     p.Host,
		Port:     p.Port,
		Username: p.Username,
		Password: p.Password,
	}
}

// ClientConfig holds panel HTTP client settings.
type ClientConfig struct {
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent" yaml:"user_agent"`
}

// ThrottleConfig holds the request throttle setting.
type ThrottleConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// OrchestratorConfig holds reload windows and search bounds.
type OrchestratorConfig struct {
	CategoryReload time.Duration `mapstructure:"category_reload" yaml:"category_reload"`
	ListReload     time.Duration `mapstructure:"list_reload" yaml:"list_reload"`
	LoginInterval  time.Duration `mapstructure:"login_interval" yaml:"login_interval"`
	SearchLimit    int           `mapstructure:"search_limit" yaml:"search_limit"`
	SearchDebounce time.Duration `mapstructure:"search_debounce" yaml:"search_debounce"`
}

// StreamURLConfig holds the URL memo cache bound.
type StreamURLConfig struct {
	CacheSize int `mapstructure:"cache_size" yaml:"cache_size"`
}

// FavoritesConfig selects where the favorites set is persisted.
type FavoritesConfig struct {
	// Backend is one of database, file, memory.
	Backend  string         `mapstructure:"backend" yaml:"backend"`
	Path     string         `mapstructure:"path" yaml:"path"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" yaml:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn" yaml:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level" yaml:"log_level"` // silent, error, warn, info
}

// PlayerConfig configures the external player used by the play command.
type PlayerConfig struct {
	Command      string        `mapstructure:"command" yaml:"command"`
	Args         []string      `mapstructure:"args" yaml:"args"`
	PositionPoll time.Duration `mapstructure:"position_poll" yaml:"position_poll"`
	SeekStep     time.Duration `mapstructure:"seek_step" yaml:"seek_step"`
}

// ServerConfig holds HTTP bridge configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format     string `mapstructure:"format" yaml:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source" yaml:"add_source"`
	TimeFormat string `mapstructure:"time_format" yaml:"time_format"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with XTREAMER_ and use underscores for nesting.
// Example: XTREAMER_PANEL_HOST=panel.example.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	return LoadWith(v, configPath)
}

// LoadWith is Load against a caller-provided viper instance, so that CLI
// flags bound to v take part in precedence.
func LoadWith(v *viper.Viper, configPath string) (*Config, error) {
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("xtreamer")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/xtreamer")
		v.AddConfigPath("/etc/xtreamer")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	// Panel defaults mirror an empty login form
	v.SetDefault("panel.scheme", xtream.DefaultScheme)
	v.SetDefault("panel.host", "")
	v.SetDefault("panel.port", "")
	v.SetDefault("panel.username", "")
	v.SetDefault("panel.password", "")

	// Client defaults
	v.SetDefault("client.connect_timeout", xtream.DefaultConnectTimeout)
	v.SetDefault("client.read_timeout", xtream.DefaultReadTimeout)
	v.SetDefault("client.request_timeout", xtream.DefaultTimeout)
	v.SetDefault("client.user_agent", "")

	v.SetDefault("throttle.interval", defaultThrottleInterval)

	// Orchestrator defaults
	v.SetDefault("orchestrator.category_reload", defaultCategoryReload)
	v.SetDefault("orchestrator.list_reload", defaultListReload)
	v.SetDefault("orchestrator.login_interval", defaultLoginInterval)
	v.SetDefault("orchestrator.search_limit", defaultSearchLimit)
	v.SetDefault("orchestrator.search_debounce", defaultSearchDebounce)

	v.SetDefault("stream_url.cache_size", defaultURLCacheSize)

	// Favorites defaults
	v.SetDefault("favorites.backend", "database")
	v.SetDefault("favorites.path", "favorites.json")
	v.SetDefault("favorites.database.driver", "sqlite")
	v.SetDefault("favorites.database.dsn", "xtreamer.db")
	v.SetDefault("favorites.database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("favorites.database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("favorites.database.conn_max_lifetime", time.Hour)
	v.SetDefault("favorites.database.log_level", "warn")

	// Player defaults
	v.SetDefault("player.command", "mpv")
	v.SetDefault("player.args", []string{"--really-quiet"})
	v.SetDefault("player.position_poll", defaultPositionPoll)
	v.SetDefault("player.seek_step", defaultSeekStep)

	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", 0)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)
}

// Validate checks the configuration for errors. Panel credentials are not
// required here; they are validated when a session is created.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	if c.Throttle.Interval < 0 {
		return fmt.Errorf("throttle.interval must not be negative")
	}
	if c.Client.ConnectTimeout <= 0 || c.Client.ReadTimeout <= 0 {
		return fmt.Errorf("client.connect_timeout and client.read_timeout must be positive")
	}

	if c.Orchestrator.CategoryReload < 0 || c.Orchestrator.ListReload < 0 || c.Orchestrator.LoginInterval < 0 {
		return fmt.Errorf("orchestrator intervals must not be negative")
	}
	if c.Orchestrator.SearchLimit < 1 {
		return fmt.Errorf("orchestrator.search_limit must be at least 1")
	}
	if c.StreamURL.CacheSize < 1 {
		return fmt.Errorf("stream_url.cache_size must be at least 1")
	}

	validBackends := map[string]bool{"database": true, "file": true, "memory": true}
	if !validBackends[c.Favorites.Backend] {
		return fmt.Errorf("favorites.backend must be one of: database, file, memory")
	}
	if c.Favorites.IsDatabase() {
		validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
		if !validDrivers[c.Favorites.Database.Driver] {
			return fmt.Errorf("favorites.database.driver must be one of: sqlite, postgres, mysql")
		}
		if c.Favorites.Database.DSN == "" {
			return fmt.Errorf("favorites.database.dsn is required")
		}
	}
	if c.Favorites.Backend == "file" && c.Favorites.Path == "" {
		return fmt.Errorf("favorites.path is required for the file backend")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// IsDatabase reports whether favorites are stored through gorm.
func (c FavoritesConfig) IsDatabase() bool {
	return c.Backend == "database"
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
