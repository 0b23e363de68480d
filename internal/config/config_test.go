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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadIndexerConfigFromFile(t *testing.T) {
	path := writeConfigFile(t, `
debug: true
database:
  host: db.internal
  dbname: discovery
  user: indexer
poa:
  rpc_url: http://poa:8545
  contract_address: "0x1234"
  final_height: 31000000
solana:
  rpc_url: http://solana:8899
  cutover_offset: 31000000
  final_height: 62000000
core:
  endpoint: http://core:26659
  cutover_offset: 62000000
consensus:
  peers:
    - http://peer-a
    - http://peer-b
worker:
  start_height: 100
`)

	cfg, err := LoadIndexerConfig(path, t.TempDir())
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "discovery", cfg.Database.DBName)
	assert.Equal(t, uint64(31000000), cfg.POA.FinalHeight)
	assert.Equal(t, uint64(31000000), cfg.Solana.CutoverOffset)
	assert.Equal(t, "http://core:26659", cfg.Core.Endpoint)
	assert.Equal(t, []string{"http://peer-a", "http://peer-b"}, cfg.Consensus.Peers)
	assert.Equal(t, uint64(100), cfg.Worker.StartHeight)

	// Defaults fill in everything the file leaves out.
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 0.8, cfg.Consensus.Quorum)
	assert.Equal(t, 10*time.Second, cfg.Consensus.Timeout)
	assert.Equal(t, "entity_manager", cfg.Worker.Stream)
	assert.Equal(t, 2*time.Second, cfg.Worker.PollInterval)
	assert.Equal(t, time.Minute, cfg.Worker.LockTTL)
}

func TestLoadIndexerConfigFromEnv(t *testing.T) {
	t.Setenv("DISCOVERY_INDEXER_DATABASE_HOST", "env-db")
	t.Setenv("DISCOVERY_INDEXER_DATABASE_DBNAME", "discovery")
	t.Setenv("DISCOVERY_INDEXER_WORKER_START_HEIGHT", "7")

	cfg, err := LoadIndexerConfig("", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "env-db", cfg.Database.Host)
	assert.Equal(t, "discovery", cfg.Database.DBName)
	assert.Equal(t, uint64(7), cfg.Worker.StartHeight)
}

func TestLoadIndexerConfigRequiresDatabase(t *testing.T) {
	path := writeConfigFile(t, "debug: false\n")
	_, err := LoadIndexerConfig(path, t.TempDir())
	assert.Error(t, err)
}

func TestLoadRelayConfigDefaults(t *testing.T) {
	path := writeConfigFile(t, `
database:
  host: db
  dbname: discovery
`)

	cfg, err := LoadRelayConfig(path, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, 10, cfg.NATS.MaxReconnects)
	assert.Equal(t, 2*time.Second, cfg.NATS.ReconnectWait)
	assert.Equal(t, "challenge-relay", cfg.NATS.ConnectionName)
	assert.Equal(t, time.Second, cfg.DrainInterval)
}

func TestLoadStatusAPIConfigDefaults(t *testing.T) {
	path := writeConfigFile(t, `
database:
  host: db
  dbname: discovery
`)

	cfg, err := LoadStatusAPIConfig(path, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Server.ReadTimeout)
	assert.Equal(t, 120, cfg.Server.IdleTimeout)
}

func TestDatabaseDSN(t *testing.T) {
	c := DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "indexer",
		Password: "secret",
		DBName:   "discovery",
		SSLMode:  "disable",
	}
	assert.Equal(t, "host=db port=5432 user=indexer password=secret dbname=discovery sslmode=disable", c.DSN())
}
