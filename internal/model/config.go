package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds settings for the HTTP API server.
type ServerConfig struct {
	// Addr is the listen address (e.g., ":8000").
	Addr string `mapstructure:"addr" yaml:"addr"`

	// DBPath is the SQLite database file.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`

	// AllowedOrigin is the single browser origin granted CORS access
	// with credentials.
	AllowedOrigin string `mapstructure:"allowed_origin" yaml:"allowed_origin"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// SessionConfig holds settings for client sessions and their CSRF tokens.
type SessionConfig struct {
	// Store selects where session tokens live: "memory" or "redis".
	Store string `mapstructure:"store" yaml:"store"`

	// TTL is the lifetime of a session cookie and its stored token.
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`

	RedisAddr   string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPrefix string `mapstructure:"redis_prefix" yaml:"redis_prefix"`

	// Secret signs session cookies. When empty the key is read from the
	// system keyring.
	Secret string `mapstructure:"secret" yaml:"secret"`

	// SecureCookie marks the session cookie Secure (HTTPS only).
	SecureCookie bool `mapstructure:"secure_cookie" yaml:"secure_cookie"`
}

// ClientConfig holds settings for the terminal client.
type ClientConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// RefreshInterval reloads the task list in the background. Zero
	// disables background refresh.
	RefreshInterval time.Duration `mapstructure:"refresh_interval" yaml:"refresh_interval"`

	// ReplayOnForbidden retries a mutating request once after a 403
	// refreshed the CSRF token.
	ReplayOnForbidden bool `mapstructure:"replay_on_forbidden" yaml:"replay_on_forbidden"`
}

// LogConfig holds structured logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`
	Client  ClientConfig  `mapstructure:"client" yaml:"client"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// Session store backends.
const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/taskboard/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "taskboard", "config.yaml")
}

// DefaultAppConfig returns the configuration used when no file exists.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Addr:            ":8000",
			DBPath:          "taskboard.db",
			AllowedOrigin:   "http://localhost:3000",
			ShutdownTimeout: 15 * time.Second,
		},
		Session: SessionConfig{
			Store:       SessionStoreMemory,
			TTL:         24 * time.Hour,
			RedisAddr:   "localhost:6379",
			RedisPrefix: "taskboard:session:",
		},
		Client: ClientConfig{
			BaseURL:         "http://localhost:8000",
			Timeout:         10 * time.Second,
			RefreshInterval: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultAppConfig()
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.db_path", d.Server.DBPath)
	v.SetDefault("server.allowed_origin", d.Server.AllowedOrigin)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("session.store", d.Session.Store)
	v.SetDefault("session.ttl", d.Session.TTL)
	v.SetDefault("session.redis_addr", d.Session.RedisAddr)
	v.SetDefault("session.redis_prefix", d.Session.RedisPrefix)
	v.SetDefault("session.secret", "")
	v.SetDefault("session.secure_cookie", false)
	v.SetDefault("client.base_url", d.Client.BaseURL)
	v.SetDefault("client.timeout", d.Client.Timeout)
	v.SetDefault("client.refresh_interval", d.Client.RefreshInterval)
	v.SetDefault("client.replay_on_forbidden", false)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with TASKBOARD_ override file values
// (e.g., TASKBOARD_SERVER_ADDR). A missing file yields the defaults.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("taskboard")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *AppConfig) Validate() error {
	switch c.Session.Store {
	case SessionStoreMemory, SessionStoreRedis:
	default:
		return fmt.Errorf("session.store must be %q or %q, got %q",
			SessionStoreMemory, SessionStoreRedis, c.Session.Store)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be positive")
	}
	if c.Client.RefreshInterval < 0 {
		return fmt.Errorf("client.refresh_interval must not be negative")
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server", map[string]any{
		"addr":             cfg.Server.Addr,
		"db_path":          cfg.Server.DBPath,
		"allowed_origin":   cfg.Server.AllowedOrigin,
		"shutdown_timeout": cfg.Server.ShutdownTimeout.String(),
	})
	v.Set("session", map[string]any{
		"store":         cfg.Session.Store,
		"ttl":           cfg.Session.TTL.String(),
		"redis_addr":    cfg.Session.RedisAddr,
		"redis_prefix":  cfg.Session.RedisPrefix,
		"secure_cookie": cfg.Session.SecureCookie,
	})
	v.Set("client", map[string]any{
		"base_url":            cfg.Client.BaseURL,
		"timeout":             cfg.Client.Timeout.String(),
		"refresh_interval":    cfg.Client.RefreshInterval.String(),
		"replay_on_forbidden": cfg.Client.ReplayOnForbidden,
	})
	v.Set("log", map[string]any{
		"level":  cfg.Log.Level,
		"format": cfg.Log.Format,
	})

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
