// Package grpcserver wraps the gRPC services exposing the KV and Admin
// APIs of a store.
package grpcserver

import (
	"context"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"flintkv/internal/raftstore"
	"flintkv/internal/rafttransport"
	api "flintkv/pkg/api"
)

// Config holds gRPC server configuration.
type Config struct {
	Address string
}

// Server wraps the gRPC services of one store.
type Server struct {
	cfg    Config
	store  *raftstore.Store
	srv    *grpc.Server
	health *health.Server
}

// New constructs a Server. When router is non-nil the raft transport
// service is registered too, so peer stores can stream messages in.
func New(cfg Config, store *raftstore.Store, router rafttransport.Router) *Server {
	s := &Server{
		cfg:    cfg,
		store:  store,
		srv:    grpc.NewServer(),
		health: health.NewServer(),
	}
	api.RegisterKVServer(s.srv, NewKVService(store))
	api.RegisterAdminServer(s.srv, NewAdminService(store))
	if router != nil {
		rafttransport.RegisterGRPCTransportServer(s.srv, router)
	}
	healthpb.RegisterHealthServer(s.srv, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Start begins listening on the configured address.
func (s *Server) Start(ctx context.Context) error {
	if s.cfg.Address == "" {
		return fmt.Errorf("grpc address is empty")
	}
	lis, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return err
	}
	s.setServing(true)
	go func() {
		<-ctx.Done()
		s.setServing(false)
		s.srv.GracefulStop()
		_ = lis.Close()
	}()
	go func() {
		_ = s.srv.Serve(lis)
	}()
	return nil
}

// Stop shuts down the server.
func (s *Server) Stop() {
	if s.srv != nil {
		s.setServing(false)
		s.srv.GracefulStop()
	}
}

func (s *Server) setServing(serving bool) {
	if s.health == nil {
		return
	}
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
}
