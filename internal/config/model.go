package config

import (
	"time"

	grpcserver "flintkv/internal/server/grpc"
)

type ServerConfig struct {
	StoreID uint64        `yaml:"storeID"`
	Dir     string        `yaml:"dir"`
	Engine  EngineConfig  `yaml:"engine"`
	Raft    RaftConfig    `yaml:"raft"`
	GRPC    GRPCConfig    `yaml:"grpc"`
	Metrics MetricsConfig `yaml:"metrics"`
	PD      PDConfig      `yaml:"pd"`
}

type EngineConfig struct {
	// Type selects the engine backend: "memory" or "pebble".
	Type string `yaml:"type"`
	Dir  string `yaml:"dir"`
}

type RaftConfig struct {
	ElectionTick      int           `yaml:"electionTick"`
	HeartbeatTick     int           `yaml:"heartbeatTick"`
	TickInterval      time.Duration `yaml:"tickInterval"`
	LeaseDuration     time.Duration `yaml:"leaseDuration"`
	SnapshotThreshold uint64        `yaml:"snapshotThreshold"`
}

type GRPCConfig struct {
	Address string `yaml:"address"`
}

type MetricsConfig struct {
	Address  string        `yaml:"address"`
	Interval time.Duration `yaml:"interval"`
}

type PDConfig struct {
	// Address of the placement driver; empty disables heartbeating.
	Address string `yaml:"address"`
	// HeartbeatInterval between region reports.
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`
}

func (c *ServerConfig) GRPCConfig() grpcserver.Config {
	return grpcserver.Config{Address: c.GRPC.Address}
}

type PDServerConfig struct {
	Dir     string        `yaml:"dir"`
	GRPC    GRPCConfig    `yaml:"grpc"`
	Metrics MetricsConfig `yaml:"metrics"`
}
