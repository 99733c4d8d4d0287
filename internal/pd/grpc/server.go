// Package pdgrpc exposes the placement driver over gRPC.
package pdgrpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pd "flintkv/internal/pd"
	regionpkg "flintkv/internal/region"
	api "flintkv/pkg/api"
)

// Server adapts pd.Service to the PD gRPC API.
type Server struct {
	api.UnimplementedPDServer
	service *pd.Service
}

func NewServer(service *pd.Service) *Server {
	return &Server{service: service}
}

func (s *Server) RegionHeartbeat(ctx context.Context, req *api.RegionHeartbeatRequest) (*api.RegionHeartbeatResponse, error) {
	if req.Region == nil {
		return nil, status.Error(codes.InvalidArgument, "region is required")
	}
	s.service.ReportRegion(pd.ProtoToRegion(req.Region))
	return &api.RegionHeartbeatResponse{}, nil
}

func (s *Server) GetRegion(ctx context.Context, req *api.GetRegionRequest) (*api.GetRegionResponse, error) {
	region, ok := s.service.Region(regionpkg.ID(req.RegionId))
	if !ok {
		return &api.GetRegionResponse{}, nil
	}
	return &api.GetRegionResponse{Region: pd.RegionToProto(region), Found: true}, nil
}

func (s *Server) ScheduleOperator(ctx context.Context, req *api.ScheduleOperatorRequest) (*api.ScheduleOperatorResponse, error) {
	op := pd.Operator{
		RegionID:      regionpkg.ID(req.RegionId),
		Kind:          pd.OperatorKind(req.Kind),
		TargetStoreID: req.TransfereeStoreId,
	}
	if req.Epoch != nil {
		op.Epoch = regionpkg.Epoch{Version: req.Epoch.Version, ConfVersion: req.Epoch.ConfVersion}
	}
	if err := s.service.ScheduleOperator(op, req.TransfereeStoreId); err != nil {
		switch {
		case errors.Is(err, pd.ErrRegionNotFound):
			return nil, status.Error(codes.NotFound, err.Error())
		case errors.Is(err, pd.ErrFlashbackInProgress):
			return nil, status.Error(codes.FailedPrecondition, err.Error())
		case errors.Is(err, pd.ErrEpochStale):
			return nil, status.Error(codes.Aborted, err.Error())
		default:
			return nil, status.Error(codes.Internal, err.Error())
		}
	}
	return &api.ScheduleOperatorResponse{}, nil
}

func Register(server *grpc.Server, service *pd.Service) {
	api.RegisterPDServer(server, NewServer(service))
}
