package config

import (
	"log/slog"
	"strings"
	"time"
)

// Config holds meaning configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Server  ServerCfg  `mapstructure:"server" yaml:"server"`
	Extract ExtractCfg `mapstructure:"extract" yaml:"extract"`
	Notes   NotesCfg   `mapstructure:"notes" yaml:"notes"`
	Auth    AuthCfg    `mapstructure:"auth" yaml:"auth"`
	Client  ClientCfg  `mapstructure:"client" yaml:"client"`
	Log     LogCfg     `mapstructure:"log" yaml:"log"`
}

// ServerCfg configures the extraction service listener.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
}

// ExtractCfg configures PDF extraction.
type ExtractCfg struct {
	// Root is the directory relative document paths resolve against.
	// Empty means the server's working directory.
	Root        string  `mapstructure:"root" yaml:"root"`
	Workers     int     `mapstructure:"workers" yaml:"workers"`
	QueueSize   int     `mapstructure:"queue_size" yaml:"queue_size"`
	RateLimit   float64 `mapstructure:"rate_limit" yaml:"rate_limit"` // Extractions per second, 0 = unlimited
	MaxUploadMB int     `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
}

// NotesCfg configures the note store.
type NotesCfg struct {
	// DBPath is the SQLite file. Empty means {home}/data/notes.db.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
}

// AuthCfg configures bearer tokens for the note endpoints.
type AuthCfg struct {
	Secret   string        `mapstructure:"secret" yaml:"secret"` // supports ${ENV_VAR} syntax
	TokenTTL time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
}

// ClientCfg configures the reader client.
type ClientCfg struct {
	ServiceURL string `mapstructure:"service_url" yaml:"service_url"`
	Token      string `mapstructure:"token" yaml:"token"` // supports ${ENV_VAR} syntax
	TickMS     int    `mapstructure:"tick_ms" yaml:"tick_ms"`
}

// LogCfg configures logging.
type LogCfg struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// SlogLevel maps the configured level name to a slog.Level.
// Unknown names fall back to info.
func (l LogCfg) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(l.Level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// AuthSecret returns the resolved signing secret.
func (c *Config) AuthSecret() []byte {
	return []byte(ResolveEnvVars(c.Auth.Secret))
}

// ClientToken returns the resolved client bearer token.
func (c *Config) ClientToken() string {
	return ResolveEnvVars(c.Client.Token)
}

// Tick returns the loading ticker interval for the reader.
func (c *Config) Tick() time.Duration {
	if c.Client.TickMS <= 0 {
		return DefaultTick
	}
	return time.Duration(c.Client.TickMS) * time.Millisecond
}
