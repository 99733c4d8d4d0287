package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"flintkv/internal/config"
	"flintkv/internal/engine"
	"flintkv/internal/engine/index"
	"flintkv/internal/observability/metrics"
	pdgrpc "flintkv/internal/pd/grpc"
	"flintkv/internal/raftstore"
	regionpkg "flintkv/internal/region"
	grpcserver "flintkv/internal/server/grpc"
)

func main() {
	configPath := flag.String("config", "configs/server.example.yaml", "path to server config")
	flag.Parse()

	cfg, err := config.LoadServerConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	eng, err := openEngine(cfg)
	if err != nil {
		log.Fatalf("failed to open engine: %v", err)
	}

	states, err := raftstore.OpenStateStore(cfg.Dir)
	if err != nil {
		log.Fatalf("failed to open state store: %v", err)
	}

	var collector *metrics.StoreCollector
	if cfg.Metrics.Address != "" {
		collector = metrics.NewStoreCollector(nil, "")
	}

	storeCfg := raftstore.StoreConfig{
		StoreID:           cfg.StoreID,
		Dir:               cfg.Dir,
		Engine:            eng,
		States:            states,
		ElectionTick:      cfg.Raft.ElectionTick,
		HeartbeatTick:     cfg.Raft.HeartbeatTick,
		TickInterval:      cfg.Raft.TickInterval,
		LeaseDuration:     cfg.Raft.LeaseDuration,
		SnapshotThreshold: cfg.Raft.SnapshotThreshold,
	}
	if collector != nil {
		storeCfg.OnFlashback = func(_ regionpkg.ID, entering bool) {
			collector.ObserveFlashbackTransition(entering)
		}
	}

	store, err := raftstore.OpenStore(storeCfg)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	grpcSrv := grpcserver.New(cfg.GRPCConfig(), store, store)
	if err := grpcSrv.Start(ctx); err != nil {
		log.Fatalf("failed to start grpc server: %v", err)
	}

	if collector != nil {
		if err := metrics.StartServer(ctx, cfg.Metrics.Address); err != nil {
			log.Fatalf("failed to start metrics server: %v", err)
		}
		go collector.Poll(ctx, store, cfg.Metrics.Interval)
	}

	if cfg.PD.Address != "" {
		go heartbeatLoop(ctx, cfg, store)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	cancel()
	grpcSrv.Stop()
	store.Close()
	if err := states.Close(); err != nil {
		log.Printf("state store close error: %v", err)
	}
	if err := eng.Close(); err != nil {
		log.Printf("engine close error: %v", err)
	}
}

func openEngine(cfg *config.ServerConfig) (engine.Engine, error) {
	switch cfg.Engine.Type {
	case "", "memory":
		return engine.NewMemory(index.SkipListIndex), nil
	default:
		dir := cfg.Engine.Dir
		if dir == "" {
			dir = filepath.Join(cfg.Dir, "kv")
		}
		return engine.OpenPebble(dir)
	}
}

func heartbeatLoop(ctx context.Context, cfg *config.ServerConfig, store *raftstore.Store) {
	client, err := pdgrpc.NewClient(cfg.PD.Address)
	if err != nil {
		log.Printf("pd client error: %v", err)
		return
	}
	defer client.Close()

	interval := cfg.PD.HeartbeatInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, region := range store.Regions() {
				state, err := store.RegionDetail(region.ID)
				if err != nil {
					continue
				}
				if err := client.ReportRegion(cfg.StoreID, state.Region, state.AppliedIndex); err != nil {
					log.Printf("pd heartbeat error: %v", err)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}
