package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenmigration/solprogram"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, solprogram.NetworkDevnet, cfg.Network)
	assert.Equal(t, solprogram.DefaultProjectTTL, cfg.Cache.ProjectTTL)
	assert.Equal(t, solprogram.DefaultBalanceTTL, cfg.Cache.BalanceTTL)
	assert.Equal(t, solprogram.DefaultUserRecordTTL, cfg.Cache.UserRecordTTL)
	assert.Equal(t, 1024, cfg.Cache.Capacity)
	assert.Equal(t, solprogram.DefaultMinInterval, cfg.Throttle.MinInterval)
	assert.Equal(t, solprogram.DefaultPollInterval, cfg.Watch.Interval)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migrate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
network: mainnet-beta
rpc_url: https://rpc.example.com
cache:
  project_ttl: 1m
  capacity: 64
throttle:
  min_interval: 250ms
log:
  level: debug
`), 0o600))

	t.Setenv("MIGRATE_CACHE_CAPACITY", "128")
	t.Setenv("MIGRATE_HTTP_ADDR", "127.0.0.1:9000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, solprogram.NetworkMainnet, cfg.Network)
	assert.Equal(t, "https://rpc.example.com", cfg.RPCURL)
	assert.Equal(t, time.Minute, cfg.Cache.ProjectTTL)
	assert.Equal(t, 128, cfg.Cache.Capacity, "env wins over file")
	assert.Equal(t, 250*time.Millisecond, cfg.Throttle.MinInterval)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTP.Addr)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	t.Setenv("MIGRATE_LOG_LEVEL", "loud")
	_, err = Load("")
	assert.ErrorContains(t, err, "log.level")
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{Network: "devnet", Log: LogConfig{Level: "info"}}
	require.NoError(t, cfg.Validate())

	cfg.Cache.Capacity = -1
	cfg.Throttle.MinInterval = -time.Second
	err := cfg.Validate()
	assert.ErrorContains(t, err, "cache.capacity")
	assert.ErrorContains(t, err, "throttle.min_interval")
}

func TestConfig_ClientOptions(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	logger, err := cfg.NewLogger()
	require.NoError(t, err)
	opts := cfg.ClientOptions(logger, nil)
	assert.Len(t, opts, 5)

	programID := solana.MustPublicKeyFromBase58(solprogram.MigrationProgramIDDevnet)
	client, err := solprogram.NewMigrationClient(rpc.New(rpc.LocalNet_RPC), programID, cfg.Network, opts...)
	require.NoError(t, err)
	assert.Equal(t, cfg.Throttle.MinInterval, client.Throttle().MinInterval())
}
