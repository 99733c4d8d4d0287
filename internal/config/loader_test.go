package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadServerConfig(t *testing.T) {
	path := writeFile(t, "server.yaml", `
storeID: 3
dir: /var/lib/flintkv

engine:
  type: pebble
  dir: /var/lib/flintkv/kv

raft:
  electionTick: 20
  heartbeatTick: 2
  tickInterval: 50ms
  leaseDuration: 2s
  snapshotThreshold: 500

grpc:
  address: 127.0.0.1:19090

metrics:
  address: 127.0.0.1:19091
  interval: 30s

pd:
  address: 127.0.0.1:19080
  heartbeatInterval: 5s
`)

	cfg, err := LoadServerConfig(path)
	require.NoError(t, err)
	require.Equal(t, uint64(3), cfg.StoreID)
	require.Equal(t, "pebble", cfg.Engine.Type)
	require.Equal(t, 20, cfg.Raft.ElectionTick)
	require.Equal(t, 50*time.Millisecond, cfg.Raft.TickInterval)
	require.Equal(t, 2*time.Second, cfg.Raft.LeaseDuration)
	require.Equal(t, uint64(500), cfg.Raft.SnapshotThreshold)
	require.Equal(t, "127.0.0.1:19090", cfg.GRPCConfig().Address)
	require.Equal(t, "127.0.0.1:19080", cfg.PD.Address)
	require.Equal(t, 30*time.Second, cfg.Metrics.Interval)
}

func TestLoadServerConfigErrors(t *testing.T) {
	_, err := LoadServerConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)

	path := writeFile(t, "bad.yaml", "storeID: [not a number")
	_, err = LoadServerConfig(path)
	require.Error(t, err)
}

func TestLoadPDServerConfig(t *testing.T) {
	path := writeFile(t, "pd.yaml", `
dir: /var/lib/flintkv-pd
grpc:
  address: 0.0.0.0:19080
`)

	cfg, err := LoadPDServerConfig(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/flintkv-pd", cfg.Dir)
	require.Equal(t, "0.0.0.0:19080", cfg.GRPC.Address)
}
