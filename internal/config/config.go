// Package config loads service configuration from defaults, an optional
// YAML file, PLAYLIST_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"playlist-manager/internal/logging"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverBolt     = "bolt"
)

type Config struct {
	HTTP    HTTPConfig     `mapstructure:"http"`
	Storage StorageConfig  `mapstructure:"storage"`
	Redis   RedisConfig    `mapstructure:"redis"`
	Cache   CacheConfig    `mapstructure:"cache"`
	Refresh RefreshConfig  `mapstructure:"refresh"`
	Auth    AuthConfig     `mapstructure:"auth"`
	Logging logging.Config `mapstructure:"logging"`
}

type HTTPConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"` // websocket Origin allowlist
}

type StorageConfig struct {
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Bolt     BoltConfig     `mapstructure:"bolt"`
}

type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type BoltConfig struct {
	Path string `mapstructure:"path"`
	Key  string `mapstructure:"key"`
}

type RedisConfig struct {
	URL         string `mapstructure:"url"` // empty disables events and the shared cache
	Channel     string `mapstructure:"channel"`
	CachePrefix string `mapstructure:"cache_prefix"`
}

type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// RefreshConfig describes the external update service. Credentials belong in
// the environment or a config file, never in code.
type RefreshConfig struct {
	Timeout      time.Duration     `mapstructure:"timeout"`
	UserAgent    string            `mapstructure:"user_agent"`
	Cookie       string            `mapstructure:"cookie"`
	Headers      map[string]string `mapstructure:"headers"`
	MaxBodyBytes int64             `mapstructure:"max_body_bytes"`
}

type AuthConfig struct {
	JWTSecret  string `mapstructure:"jwt_secret"` // empty disables the guard
	CookieName string `mapstructure:"cookie_name"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", 3002)
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 15*time.Second)
	v.SetDefault("http.request_timeout", 15*time.Second)
	v.SetDefault("http.max_body_bytes", 1<<20)

	v.SetDefault("storage.driver", DriverPostgres)
	v.SetDefault("storage.postgres.dsn", "")
	v.SetDefault("storage.postgres.max_conns", 20)
	v.SetDefault("storage.postgres.max_conn_idle_time", 30*time.Second)
	v.SetDefault("storage.postgres.connect_timeout", 2*time.Second)
	v.SetDefault("storage.sqlite.path", "playlists.db")
	v.SetDefault("storage.bolt.path", "playlists.bolt")
	v.SetDefault("storage.bolt.key", "playlists")

	v.SetDefault("http.allowed_origins", []string{})

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.channel", "broadcast")
	v.SetDefault("redis.cache_prefix", "playlist-manager:lists")
	v.SetDefault("cache.ttl", 30*time.Second)

	v.SetDefault("refresh.timeout", 15*time.Second)
	v.SetDefault("refresh.user_agent", "playlist-manager/1.0")
	v.SetDefault("refresh.cookie", "")
	v.SetDefault("refresh.headers", map[string]string{})
	v.SetDefault("refresh.max_body_bytes", 64<<10)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.cookie_name", "token")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// AddFlags registers the flags Load understands on fs.
func AddFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a config file (yaml)")
	fs.Int("port", 0, "http listen port")
	fs.String("storage", "", "storage driver: postgres, sqlite or bolt")
	fs.String("log-level", "", "log level: debug, info, warn or error")
}

var flagKeys = map[string]string{
	"port":      "http.port",
	"storage":   "storage.driver",
	"log-level": "logging.level",
}

// Load resolves the configuration. fs may be nil; otherwise flags added with
// AddFlags override every other source when set explicitly.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PLAYLIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Conventional variables used by the rest of the deployment.
	_ = v.BindEnv("http.port", "PLAYLIST_HTTP_PORT", "PORT")
	_ = v.BindEnv("storage.postgres.dsn", "PLAYLIST_STORAGE_POSTGRES_DSN", "DATABASE_URL")
	_ = v.BindEnv("redis.url", "PLAYLIST_REDIS_URL", "REDIS_URL")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/playlist-manager")

	if fs != nil {
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
		}
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Storage.Postgres.DSN == "" {
			errs = append(errs, errors.New("storage.postgres.dsn is required for the postgres driver"))
		}
		if c.Storage.Postgres.MaxConns <= 0 {
			errs = append(errs, errors.New("storage.postgres.max_conns must be positive"))
		}
	case DriverSQLite:
		if c.Storage.SQLite.Path == "" {
			errs = append(errs, errors.New("storage.sqlite.path is required"))
		}
	case DriverBolt:
		if c.Storage.Bolt.Path == "" {
			errs = append(errs, errors.New("storage.bolt.path is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid http.port %d", c.HTTP.Port))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, errors.New("cache.ttl must not be negative"))
	}

	return errors.Join(errs...)
}
