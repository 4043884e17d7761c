// Package config loads devflow settings from defaults, an optional config
// file, DEVFLOW_* environment variables and command line flags.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Environments.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "DEVFLOW"

// MinSecretLength is the shortest JWT secret accepted outside development.
const MinSecretLength = 32

const (
	devAccessSecret  = "devflow-development-access-secret-do-not-use"
	devRefreshSecret = "devflow-development-refresh-secret-do-not-use"
)

// Config is the full service configuration.
type Config struct {
	Env  string     `mapstructure:"env"`
	HTTP HTTPConfig `mapstructure:"http"`
	DB   DBConfig   `mapstructure:"db"`
	JWT  JWTConfig  `mapstructure:"jwt"`
	Log  LogConfig  `mapstructure:"log"`
	Push PushConfig `mapstructure:"push"`
}

// HTTPConfig configures the listener and the static frontend.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	StaticDir       string        `mapstructure:"static_dir"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DBConfig selects the database and tunes its pool.
type DBConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// JWTConfig configures token signing.
type JWTConfig struct {
	Secret        string        `mapstructure:"secret"`
	RefreshSecret string        `mapstructure:"refresh_secret"`
	AccessTTL     time.Duration `mapstructure:"access_ttl"`
	RefreshTTL    time.Duration `mapstructure:"refresh_ttl"`
	Issuer        string        `mapstructure:"issuer"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PushConfig configures live notification delivery.
type PushConfig struct {
	Buffer int `mapstructure:"buffer"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", EnvDevelopment)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.static_dir", "web/dist")
	v.SetDefault("http.shutdown_timeout", 5*time.Second)
	v.SetDefault("db.driver", "sqlite3")
	v.SetDefault("db.dsn", "data/devflow.db")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_idle_time", 30*time.Second)
	v.SetDefault("db.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("jwt.secret", devAccessSecret)
	v.SetDefault("jwt.refresh_secret", devRefreshSecret)
	v.SetDefault("jwt.access_ttl", 7*24*time.Hour)
	v.SetDefault("jwt.refresh_ttl", 30*24*time.Hour)
	v.SetDefault("jwt.issuer", "devflow")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("push.buffer", 16)
}

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	"addr":   "http.addr",
	"db":     "db.dsn",
	"static": "http.static_dir",
}

// Load builds the configuration. path may be empty; flags may be nil. Flags
// that were set on the command line win over every other source.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if filepath.Ext(path) == "" {
			v.SetConfigType("yaml")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsDevelopment reports whether internal error details may be shown to clients.
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	switch c.Env {
	case EnvDevelopment, EnvStaging, EnvProduction, EnvTest:
	default:
		return fmt.Errorf("env must be one of development, staging, production, test; got %q", c.Env)
	}
	switch c.DB.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("db.driver must be sqlite3 or postgres; got %q", c.DB.Driver)
	}
	if strings.TrimSpace(c.DB.DSN) == "" {
		return fmt.Errorf("db.dsn must be set")
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr must be set")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		return fmt.Errorf("http.shutdown_timeout must be positive")
	}
	if c.JWT.Secret == c.JWT.RefreshSecret {
		return fmt.Errorf("jwt.secret and jwt.refresh_secret must differ")
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		return fmt.Errorf("jwt ttls must be positive")
	}
	if !c.IsDevelopment() && c.Env != EnvTest {
		if len(c.JWT.Secret) < MinSecretLength || len(c.JWT.RefreshSecret) < MinSecretLength {
			return fmt.Errorf("jwt secrets must be at least %d characters", MinSecretLength)
		}
		if c.JWT.Secret == devAccessSecret || c.JWT.RefreshSecret == devRefreshSecret {
			return fmt.Errorf("jwt secrets must be overridden outside development")
		}
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json; got %q", c.Log.Format)
	}
	return nil
}

func parseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}

// NewLogger builds the process logger described by the log settings.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
