package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so the host environment cannot
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"PORT", "DATABASE_URL", "REDIS_URL"} {
		t.Setenv(k, "")
	}
	t.Chdir(t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("PLAYLIST_STORAGE_DRIVER", "sqlite")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 3002, cfg.HTTP.Port)
	assert.Equal(t, 15*time.Second, cfg.HTTP.RequestTimeout)
	assert.Equal(t, int64(1<<20), cfg.HTTP.MaxBodyBytes)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "playlists.db", cfg.Storage.SQLite.Path)
	assert.Equal(t, int32(20), cfg.Storage.Postgres.MaxConns)
	assert.Equal(t, 30*time.Second, cfg.Storage.Postgres.MaxConnIdleTime)
	assert.Equal(t, 2*time.Second, cfg.Storage.Postgres.ConnectTimeout)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, "broadcast", cfg.Redis.Channel)
	assert.Equal(t, "playlist-manager:lists", cfg.Redis.CachePrefix)
	assert.Empty(t, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, 15*time.Second, cfg.Refresh.Timeout)
	assert.Equal(t, int64(64<<10), cfg.Refresh.MaxBodyBytes)
	assert.Equal(t, "token", cfg.Auth.CookieName)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadConventionalEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/playlists")
	t.Setenv("REDIS_URL", "redis://cache:6379/0")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, "postgres://u:p@db:5432/playlists", cfg.Storage.Postgres.DSN)
	assert.Equal(t, "redis://cache:6379/0", cfg.Redis.URL)
}

func TestLoadPrefixedEnvWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("PLAYLIST_HTTP_PORT", "9090")
	t.Setenv("PLAYLIST_STORAGE_DRIVER", "bolt")
	t.Setenv("PLAYLIST_CACHE_TTL", "5s")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, DriverBolt, cfg.Storage.Driver)
	assert.Equal(t, 5*time.Second, cfg.Cache.TTL)
}

func TestLoadConfigFileAndFlags(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "playlist.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  driver: bolt
  bolt:
    path: /var/lib/playlists.bolt
refresh:
  cookie: "sid=abc"
  headers:
    Referer: "https://example.test/"
logging:
  level: debug
`), 0o600))

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--config", path, "--port", "7000", "--log-level", "warn"}))

	cfg, err := Load(fs)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.HTTP.Port)
	assert.Equal(t, DriverBolt, cfg.Storage.Driver)
	assert.Equal(t, "/var/lib/playlists.bolt", cfg.Storage.Bolt.Path)
	assert.Equal(t, "sid=abc", cfg.Refresh.Cookie)
	assert.Equal(t, "https://example.test/", cfg.Refresh.Headers["referer"])
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("PLAYLIST_STORAGE_DRIVER", "sqlite")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml")}))

	_, err := Load(fs)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			HTTP: HTTPConfig{Port: 3002},
			Storage: StorageConfig{
				Driver:   DriverPostgres,
				Postgres: PostgresConfig{DSN: "postgres://localhost/db", MaxConns: 20},
			},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"Valid", func(c *Config) {}, true},
		{"UnknownDriver", func(c *Config) { c.Storage.Driver = "mongo" }, false},
		{"PostgresWithoutDSN", func(c *Config) { c.Storage.Postgres.DSN = "" }, false},
		{"ZeroPool", func(c *Config) { c.Storage.Postgres.MaxConns = 0 }, false},
		{"BadPort", func(c *Config) { c.HTTP.Port = 70000 }, false},
		{"NegativeTTL", func(c *Config) { c.Cache.TTL = -time.Second }, false},
		{"SQLiteNeedsNoDSN", func(c *Config) {
			c.Storage.Driver = DriverSQLite
			c.Storage.Postgres = PostgresConfig{}
			c.Storage.SQLite.Path = "x.db"
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			if tt.ok {
				assert.NoError(t, c.Validate())
			} else {
				assert.Error(t, c.Validate())
			}
		})
	}
}
