package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_FileAndDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, `
server:
  port: 9090
database:
  driver: sqlite
  sqlite_path: /tmp/blog.db
redis:
  addr: localhost:6379
`))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/blog.db", cfg.Database.SQLitePath)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	// 未写的键取默认值
	assert.Equal(t, 10*time.Minute, cfg.Redis.LikeCountTTL)
	assert.Equal(t, int64(5<<20), cfg.Storage.MaxImageBytes)
	assert.Equal(t, "/media", cfg.Storage.MediaURL)
	assert.Equal(t, 24*time.Hour, cfg.JWT.TTL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, "server:\n  port: 9090\n"))
	t.Setenv("APP_SERVER_PORT", "7070")
	t.Setenv("APP_DATABASE_DRIVER", "sqlite")
	t.Setenv("APP_STORAGE_JANITOR_INTERVAL", "30s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 30*time.Second, cfg.Storage.JanitorInterval)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, "database:\n  driver: oracle\n"))
	_, err := Load()
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestLoad_ReleaseNeedsSecret(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, "server:\n  mode: release\n"))
	_, err := Load()
	assert.ErrorContains(t, err, "jwt.secret")

	t.Setenv("APP_JWT_SECRET", "a-real-secret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "a-real-secret", cfg.JWT.Secret)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "blog", SSLMode: "disable"}
	assert.Equal(t, "host=db user=u password=p dbname=blog port=5432 sslmode=disable", c.DSN())
}
