package main

import (
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"

	"flintkv/internal/config"
	pd "flintkv/internal/pd"
	pdgrpc "flintkv/internal/pd/grpc"
)

func main() {
	cfgPath := flag.String("config", "", "path to PD config file (overrides other flags)")
	addr := flag.String("addr", "0.0.0.0:18080", "gRPC listen address")
	dataDir := flag.String("data", "/tmp/flintkv-pd", "PD data directory")
	flag.Parse()

	if *cfgPath != "" {
		cfg, err := config.LoadPDServerConfig(*cfgPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		if cfg.GRPC.Address != "" {
			*addr = cfg.GRPC.Address
		}
		if cfg.Dir != "" {
			*dataDir = cfg.Dir
		}
	}

	service, err := pd.NewPersistentService(*dataDir)
	if err != nil {
		log.Fatalf("failed to create PD service: %v", err)
	}
	defer service.Close()

	grpcServer := grpc.NewServer()
	pdgrpc.Register(grpcServer, service)

	lis, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	log.Printf("PD server listening on %s", *addr)

	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatalf("serve: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	grpcServer.GracefulStop()
	_ = service.Close()
	log.Println("PD server stopped")
}
