package grpcserver

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"flintkv/internal/engine"
	pd "flintkv/internal/pd"
	"flintkv/internal/raftstore"
	regionpkg "flintkv/internal/region"
	api "flintkv/pkg/api"
)

// KVService adapts store operations to the gRPC KV service.
type KVService struct {
	api.UnimplementedKVServer
	store *raftstore.Store
}

func NewKVService(store *raftstore.Store) *KVService {
	return &KVService{store: store}
}

func requestFlags(rc *api.RequestContext) raftstore.HeaderFlags {
	if rc == nil {
		return 0
	}
	return raftstore.HeaderFlags(rc.Flags)
}

func requestEpoch(rc *api.RequestContext) regionpkg.Epoch {
	if rc == nil || rc.Epoch == nil {
		return regionpkg.Epoch{}
	}
	return regionpkg.Epoch{Version: rc.Epoch.Version, ConfVersion: rc.Epoch.ConfVersion}
}

func (s *KVService) Put(ctx context.Context, req *api.PutRequest) (*api.PutResponse, error) {
	if err := s.store.Put(ctx, req.Key, req.Value, requestFlags(req.Context)); err != nil {
		return nil, toStatusError(err)
	}
	return &api.PutResponse{}, nil
}

func (s *KVService) Get(ctx context.Context, req *api.GetRequest) (*api.GetResponse, error) {
	value, err := s.store.Get(ctx, req.Key, requestFlags(req.Context))
	if err != nil {
		if errors.Is(err, engine.ErrKeyNotFound) {
			return &api.GetResponse{Found: false}, nil
		}
		return nil, toStatusError(err)
	}
	return &api.GetResponse{Value: value, Found: true}, nil
}

func (s *KVService) Delete(ctx context.Context, req *api.DeleteRequest) (*api.DeleteResponse, error) {
	if err := s.store.Delete(ctx, req.Key, requestFlags(req.Context)); err != nil {
		return nil, toStatusError(err)
	}
	return &api.DeleteResponse{}, nil
}

// AdminService exposes region administration, flashback control included.
type AdminService struct {
	api.UnimplementedAdminServer
	store *raftstore.Store
}

func NewAdminService(store *raftstore.Store) *AdminService {
	return &AdminService{store: store}
}

func (s *AdminService) PrepareFlashback(ctx context.Context, req *api.PrepareFlashbackRequest) (*api.PrepareFlashbackResponse, error) {
	if req.Context == nil {
		return nil, status.Error(codes.InvalidArgument, "request context is required")
	}
	resp, err := s.store.PrepareFlashback(ctx, regionpkg.ID(req.Context.RegionId), requestEpoch(req.Context))
	if err != nil {
		return nil, toStatusError(err)
	}
	if resp.Header.Error != nil {
		return nil, toStatusError(resp.Header.Error)
	}
	out := &api.PrepareFlashbackResponse{}
	if resp.Admin != nil && len(resp.Admin.Regions) > 0 {
		out.Region = pd.RegionToProto(resp.Admin.Regions[0])
	}
	return out, nil
}

func (s *AdminService) FinishFlashback(ctx context.Context, req *api.FinishFlashbackRequest) (*api.FinishFlashbackResponse, error) {
	if req.Context == nil {
		return nil, status.Error(codes.InvalidArgument, "request context is required")
	}
	resp, err := s.store.FinishFlashback(ctx, regionpkg.ID(req.Context.RegionId))
	if err != nil {
		return nil, toStatusError(err)
	}
	if resp.Header.Error != nil {
		return nil, toStatusError(resp.Header.Error)
	}
	out := &api.FinishFlashbackResponse{}
	if resp.Admin != nil && len(resp.Admin.Regions) > 0 {
		out.Region = pd.RegionToProto(resp.Admin.Regions[0])
	}
	return out, nil
}

func (s *AdminService) Split(ctx context.Context, req *api.SplitRequest) (*api.SplitResponse, error) {
	if req.Context == nil {
		return nil, status.Error(codes.InvalidArgument, "request context is required")
	}
	admin := &raftstore.AdminRequest{
		CmdType:     raftstore.AdminSplit,
		SplitKey:    req.SplitKey,
		NewRegionID: regionpkg.ID(req.NewRegionId),
		NewPeerIDs:  req.NewPeerIds,
	}
	resp, err := s.store.AdminCommand(ctx, regionpkg.ID(req.Context.RegionId), requestEpoch(req.Context), admin)
	if err != nil {
		return nil, toStatusError(err)
	}
	if resp.Header.Error != nil {
		return nil, toStatusError(resp.Header.Error)
	}
	out := &api.SplitResponse{}
	if resp.Admin != nil {
		for _, region := range resp.Admin.Regions {
			out.Regions = append(out.Regions, pd.RegionToProto(region))
		}
	}
	return out, nil
}

func (s *AdminService) TransferLeader(ctx context.Context, req *api.TransferLeaderRequest) (*api.TransferLeaderResponse, error) {
	if req.Context == nil {
		return nil, status.Error(codes.InvalidArgument, "request context is required")
	}
	admin := &raftstore.AdminRequest{
		CmdType:          raftstore.AdminTransferLeader,
		TransfereePeerID: req.TransfereePeerId,
	}
	resp, err := s.store.AdminCommand(ctx, regionpkg.ID(req.Context.RegionId), requestEpoch(req.Context), admin)
	if err != nil {
		return nil, toStatusError(err)
	}
	if resp.Header.Error != nil {
		return nil, toStatusError(resp.Header.Error)
	}
	return &api.TransferLeaderResponse{}, nil
}

func (s *AdminService) ChangePeer(ctx context.Context, req *api.ChangePeerRequest) (*api.ChangePeerResponse, error) {
	if req.Context == nil || req.Peer == nil {
		return nil, status.Error(codes.InvalidArgument, "request context and peer are required")
	}
	admin := &raftstore.AdminRequest{
		CmdType:    raftstore.AdminChangePeer,
		ChangeType: raftstore.PeerChangeType(req.ChangeType),
		Peer:       regionpkg.Peer{ID: req.Peer.Id, StoreID: req.Peer.StoreId},
	}
	resp, err := s.store.AdminCommand(ctx, regionpkg.ID(req.Context.RegionId), requestEpoch(req.Context), admin)
	if err != nil {
		return nil, toStatusError(err)
	}
	if resp.Header.Error != nil {
		return nil, toStatusError(resp.Header.Error)
	}
	out := &api.ChangePeerResponse{}
	if resp.Admin != nil && len(resp.Admin.Regions) > 0 {
		out.Region = pd.RegionToProto(resp.Admin.Regions[0])
	}
	return out, nil
}

// RegionDetail answers a status query from local state. It bypasses the
// admission gate on purpose: operators must be able to inspect a region
// while it is in flashback.
func (s *AdminService) RegionDetail(ctx context.Context, req *api.RegionDetailRequest) (*api.RegionDetailResponse, error) {
	state, err := s.store.RegionDetail(regionpkg.ID(req.RegionId))
	if err != nil {
		return nil, toStatusError(err)
	}
	return &api.RegionDetailResponse{
		Region:       pd.RegionToProto(state.Region),
		AppliedIndex: state.AppliedIndex,
		AppliedTerm:  state.AppliedTerm,
	}, nil
}

// toStatusError maps region errors onto grpc codes: leadership and routing
// problems are retryable (Unavailable/NotFound), epoch conflicts are
// Aborted, and both admission gate rejections are FailedPrecondition since
// the caller holds a wrong belief about the region's flashback state.
func toStatusError(err error) error {
	var regionErr *raftstore.Error
	if errors.As(err, &regionErr) {
		switch {
		case regionErr.NotLeader != nil:
			return status.Error(codes.Unavailable, regionErr.Error())
		case regionErr.EpochNotMatch != nil:
			return status.Error(codes.Aborted, regionErr.Error())
		case regionErr.FlashbackInProgress != nil, regionErr.FlashbackNotPrepared != nil:
			return status.Error(codes.FailedPrecondition, regionErr.Error())
		case regionErr.StaleCommand != nil:
			return status.Error(codes.Aborted, regionErr.Error())
		default:
			return status.Error(codes.Internal, regionErr.Error())
		}
	}
	switch {
	case errors.Is(err, raftstore.ErrRegionNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, raftstore.ErrTimeout):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, raftstore.ErrStoreStopped):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
