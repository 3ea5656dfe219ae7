package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAPIConfigDefaults(t *testing.T) {
	path := writeConfigFile(t, `
database:
  host: localhost
  dbname: territory
`)

	cfg, err := LoadAPIConfig(path, t.TempDir())
	require.NoError(t, err)

	assert.False(t, cfg.Debug)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 120, cfg.Server.IdleTimeout)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, time.Minute, cfg.Redis.TTL)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Empty(t, cfg.NATS.URL)
	assert.Equal(t, "territory-engine-api", cfg.NATS.ConnectionName)

	assert.Equal(t, int64(1), cfg.Auction.BidIncrement)
	assert.Equal(t, int64(10), cfg.Auction.MinimumBasePrice)
	assert.Equal(t, 168*time.Hour, cfg.Auction.ProtectionWindow)
	assert.Equal(t, 24*time.Hour, cfg.Auction.AuctionDuration)
	assert.Equal(t, 0, cfg.RateLimit.PerMinute)
	assert.Equal(t, 10, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.EnableLocalFallback)
}

func TestLoadAPIConfigFromFile(t *testing.T) {
	path := writeConfigFile(t, `
debug: true
server:
  port: 9090
database:
  host: db.internal
  port: 6432
  user: territory
  password: secret
  dbname: territory
  sslmode: require
redis:
  addr: localhost:6379
  ttl: 30s
nats:
  url: nats://localhost:4222
auth:
  api_keys:
    - key-one
    - key-two
auction:
  bid_increment: 5
  protection_window: 72h
`)

	cfg, err := LoadAPIConfig(path, t.TempDir())
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 30*time.Second, cfg.Redis.TTL)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, []string{"key-one", "key-two"}, cfg.Auth.APIKeys)
	assert.Equal(t, int64(5), cfg.Auction.BidIncrement)
	assert.Equal(t, 72*time.Hour, cfg.Auction.ProtectionWindow)
	// Untouched keys keep their defaults.
	assert.Equal(t, int64(10), cfg.Auction.MinimumBasePrice)

	assert.Equal(t, "host=db.internal port=6432 user=territory password=secret dbname=territory sslmode=require", cfg.Database.DSN())
}

func TestLoadAPIConfigFromEnv(t *testing.T) {
	t.Setenv("TERRITORY_DATABASE_HOST", "env-host")
	t.Setenv("TERRITORY_DATABASE_DBNAME", "env-db")
	t.Setenv("TERRITORY_AUCTION_BID_INCREMENT", "3")
	t.Setenv("TERRITORY_REDIS_ADDR", "cache:6379")

	cfg, err := LoadAPIConfig("", t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "env-host", cfg.Database.Host)
	assert.Equal(t, "env-db", cfg.Database.DBName)
	assert.Equal(t, int64(3), cfg.Auction.BidIncrement)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
}

func TestLoadAPIConfigEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
database:
  host: file-host
  dbname: territory
`)
	t.Setenv("TERRITORY_DATABASE_HOST", "env-host")

	cfg, err := LoadAPIConfig(path, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "env-host", cfg.Database.Host)
}

func TestLoadAPIConfigRequiresDatabase(t *testing.T) {
	path := writeConfigFile(t, `
database:
  dbname: territory
`)
	_, err := LoadAPIConfig(path, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.host")

	path = writeConfigFile(t, `
database:
  host: localhost
`)
	_, err = LoadAPIConfig(path, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.dbname")
}

func TestLoadSweeperConfigDefaults(t *testing.T) {
	path := writeConfigFile(t, `
database:
  host: localhost
  dbname: territory
`)

	cfg, err := LoadSweeperConfig(path, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.Sweep.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Sweep.SweepInterval)
	assert.Equal(t, 10, cfg.Sweep.Worker.WorkerPoolSize)
	assert.Equal(t, 100, cfg.Sweep.Worker.WorkerQueueSize)
	assert.Equal(t, 5, cfg.Database.MaxOpenConns)
	assert.Equal(t, 2, cfg.Database.MaxIdleConns)
	assert.Equal(t, time.Hour, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, "territory-engine-sweeper", cfg.NATS.ConnectionName)
}

func TestLoadSweeperConfigOverrides(t *testing.T) {
	path := writeConfigFile(t, `
database:
  host: localhost
  dbname: territory
sweep:
  batch_size: 25
  sweep_interval: 1s
  worker:
    pool_size: 4
    queue_size: 25
`)

	cfg, err := LoadSweeperConfig(path, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Sweep.BatchSize)
	assert.Equal(t, time.Second, cfg.Sweep.SweepInterval)
	assert.Equal(t, 4, cfg.Sweep.Worker.WorkerPoolSize)
	assert.Equal(t, 25, cfg.Sweep.Worker.WorkerQueueSize)
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TERRITORY_DATABASE_HOST=from-env-file\nTERRITORY_DATABASE_DBNAME=territory\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.local"), []byte("TERRITORY_DATABASE_HOST=from-local\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("TERRITORY_DATABASE_HOST")
		os.Unsetenv("TERRITORY_DATABASE_DBNAME")
	})

	cfg, err := LoadAPIConfig("", dir)
	require.NoError(t, err)

	// .env.local overrides .env.
	assert.Equal(t, "from-local", cfg.Database.Host)
	assert.Equal(t, "territory", cfg.Database.DBName)
}
