// Package api holds the wire types and grpc service plumbing shared by
// servers and clients. The types are hand-maintained; keep field order
// stable when extending them.
package api

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
)

// --- Shared region metadata ---

type RegionEpoch struct {
	Version     uint64
	ConfVersion uint64
}

type Peer struct {
	Id      uint64
	StoreId uint64
}

type Region struct {
	Id            uint64
	StartKey      []byte
	EndKey        []byte
	Epoch         *RegionEpoch
	Peers         []*Peer
	LeaderPeerId  uint64
	IsInFlashback bool
}

// RequestContext routes a request to one region replica. Flags is the
// request flag bitmask; see the raftstore package for bit assignments.
type RequestContext struct {
	RegionId uint64
	Epoch    *RegionEpoch
	PeerId   uint64
	Flags    uint32
}

// --- Raft transport ---

type RaftMessage struct {
	RegionId uint64
	To       uint64
	Message  []byte
}

type RaftAck struct{}

type RaftTransport_SendClient interface {
	Send(*RaftMessage) error
	CloseAndRecv() (*RaftAck, error)
	CloseSend() error
}

type RaftTransport_SendServer interface {
	Recv() (*RaftMessage, error)
	SendAndClose(*RaftAck) error
	Context() context.Context
}

type RaftTransportClient interface {
	Send(ctx context.Context, opts ...grpc.CallOption) (RaftTransport_SendClient, error)
}

type RaftTransportServer interface {
	Send(RaftTransport_SendServer) error
}

type UnimplementedRaftTransportServer struct{}

func (UnimplementedRaftTransportServer) Send(RaftTransport_SendServer) error {
	return fmt.Errorf("not implemented")
}

type raftTransportClient struct {
	cc *grpc.ClientConn
}

func NewRaftTransportClient(cc *grpc.ClientConn) RaftTransportClient {
	return &raftTransportClient{cc: cc}
}

func (c *raftTransportClient) Send(ctx context.Context, opts ...grpc.CallOption) (RaftTransport_SendClient, error) {
	stream, err := c.cc.NewStream(ctx, &raftTransportServiceDesc.Streams[0], "/flintkv.api.RaftTransport/Send", opts...)
	if err != nil {
		return nil, err
	}
	return &raftTransportSendClient{ClientStream: stream}, nil
}

type raftTransportSendClient struct {
	grpc.ClientStream
}

func (x *raftTransportSendClient) Send(m *RaftMessage) error {
	return x.ClientStream.SendMsg(m)
}

func (x *raftTransportSendClient) CloseAndRecv() (*RaftAck, error) {
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	ack := new(RaftAck)
	if err := x.ClientStream.RecvMsg(ack); err != nil {
		return nil, err
	}
	return ack, nil
}

type raftTransportSendServer struct {
	grpc.ServerStream
}

func (x *raftTransportSendServer) Recv() (*RaftMessage, error) {
	m := new(RaftMessage)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (x *raftTransportSendServer) SendAndClose(ack *RaftAck) error {
	return x.ServerStream.SendMsg(ack)
}

func _RaftTransport_Send_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(RaftTransportServer).Send(&raftTransportSendServer{ServerStream: stream})
}

var raftTransportServiceDesc = grpc.ServiceDesc{
	ServiceName: "flintkv.api.RaftTransport",
	HandlerType: (*RaftTransportServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Send",
			Handler:       _RaftTransport_Send_Handler,
			ClientStreams: true,
		},
	},
}

func RegisterRaftTransportServer(s grpc.ServiceRegistrar, srv RaftTransportServer) {
	s.RegisterService(&raftTransportServiceDesc, srv)
}

// --- KV service ---

type PutRequest struct {
	Context *RequestContext
	Key     []byte
	Value   []byte
}

type PutResponse struct{}

type GetRequest struct {
	Context *RequestContext
	Key     []byte
}

type GetResponse struct {
	Value []byte
	Found bool
}

type DeleteRequest struct {
	Context *RequestContext
	Key     []byte
}

type DeleteResponse struct{}

type KVServer interface {
	Put(context.Context, *PutRequest) (*PutResponse, error)
	Get(context.Context, *GetRequest) (*GetResponse, error)
	Delete(context.Context, *DeleteRequest) (*DeleteResponse, error)
}

type UnimplementedKVServer struct{}

func (UnimplementedKVServer) Put(context.Context, *PutRequest) (*PutResponse, error) {
	return nil, fmt.Errorf("not implemented")
}
func (UnimplementedKVServer) Get(context.Context, *GetRequest) (*GetResponse, error) {
	return nil, fmt.Errorf("not implemented")
}
func (UnimplementedKVServer) Delete(context.Context, *DeleteRequest) (*DeleteResponse, error) {
	return nil, fmt.Errorf("not implemented")
}

type KVClient interface {
	Put(ctx context.Context, req *PutRequest, opts ...grpc.CallOption) (*PutResponse, error)
	Get(ctx context.Context, req *GetRequest, opts ...grpc.CallOption) (*GetResponse, error)
	Delete(ctx context.Context, req *DeleteRequest, opts ...grpc.CallOption) (*DeleteResponse, error)
}

type kvClient struct {
	cc *grpc.ClientConn
}

func NewKVClient(cc *grpc.ClientConn) KVClient {
	return &kvClient{cc: cc}
}

func (c *kvClient) Put(ctx context.Context, req *PutRequest, opts ...grpc.CallOption) (*PutResponse, error) {
	out := new(PutResponse)
	if err := c.cc.Invoke(ctx, "/flintkv.api.KV/Put", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *kvClient) Get(ctx context.Context, req *GetRequest, opts ...grpc.CallOption) (*GetResponse, error) {
	out := new(GetResponse)
	if err := c.cc.Invoke(ctx, "/flintkv.api.KV/Get", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *kvClient) Delete(ctx context.Context, req *DeleteRequest, opts ...grpc.CallOption) (*DeleteResponse, error) {
	out := new(DeleteResponse)
	if err := c.cc.Invoke(ctx, "/flintkv.api.KV/Delete", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

var kvServiceDesc = grpc.ServiceDesc{
	ServiceName: "flintkv.api.KV",
	HandlerType: (*KVServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Put", Handler: _KV_Put_Handler},
		{MethodName: "Get", Handler: _KV_Get_Handler},
		{MethodName: "Delete", Handler: _KV_Delete_Handler},
	},
}

func RegisterKVServer(s grpc.ServiceRegistrar, srv KVServer) {
	s.RegisterService(&kvServiceDesc, srv)
}

// --- Admin service ---

type PrepareFlashbackRequest struct {
	Context *RequestContext
}

type PrepareFlashbackResponse struct {
	Region *Region
}

type FinishFlashbackRequest struct {
	Context *RequestContext
}

type FinishFlashbackResponse struct {
	Region *Region
}

type SplitRequest struct {
	Context     *RequestContext
	SplitKey    []byte
	NewRegionId uint64
	NewPeerIds  []uint64
}

type SplitResponse struct {
	Regions []*Region
}

type TransferLeaderRequest struct {
	Context          *RequestContext
	TransfereePeerId uint64
}

type TransferLeaderResponse struct{}

type ChangePeerRequest struct {
	Context    *RequestContext
	ChangeType int32
	Peer       *Peer
}

type ChangePeerResponse struct {
	Region *Region
}

type RegionDetailRequest struct {
	RegionId uint64
}

type RegionDetailResponse struct {
	Region       *Region
	AppliedIndex uint64
	AppliedTerm  uint64
}

type AdminServer interface {
	PrepareFlashback(context.Context, *PrepareFlashbackRequest) (*PrepareFlashbackResponse, error)
	FinishFlashback(context.Context, *FinishFlashbackRequest) (*FinishFlashbackResponse, error)
	Split(context.Context, *SplitRequest) (*SplitResponse, error)
	TransferLeader(context.Context, *TransferLeaderRequest) (*TransferLeaderResponse, error)
	ChangePeer(context.Context, *ChangePeerRequest) (*ChangePeerResponse, error)
	RegionDetail(context.Context, *RegionDetailRequest) (*RegionDetailResponse, error)
}

type UnimplementedAdminServer struct{}

func (UnimplementedAdminServer) PrepareFlashback(context.Context, *PrepareFlashbackRequest) (*PrepareFlashbackResponse, error) {
	return nil, fmt.Errorf("not implemented")
}
func (UnimplementedAdminServer) FinishFlashback(context.Context, *FinishFlashbackRequest) (*FinishFlashbackResponse, error) {
	return nil, fmt.Errorf("not implemented")
}
func (UnimplementedAdminServer) Split(context.Context, *SplitRequest) (*SplitResponse, error) {
	return nil, fmt.Errorf("not implemented")
}
func (UnimplementedAdminServer) TransferLeader(context.Context, *TransferLeaderRequest) (*TransferLeaderResponse, error) {
	return nil, fmt.Errorf("not implemented")
}
func (UnimplementedAdminServer) ChangePeer(context.Context, *ChangePeerRequest) (*ChangePeerResponse, error) {
	return nil, fmt.Errorf("not implemented")
}
func (UnimplementedAdminServer) RegionDetail(context.Context, *RegionDetailRequest) (*RegionDetailResponse, error) {
	return nil, fmt.Errorf("not implemented")
}

type AdminClient interface {
	PrepareFlashback(ctx context.Context, req *PrepareFlashbackRequest, opts ...grpc.CallOption) (*PrepareFlashbackResponse, error)
	FinishFlashback(ctx context.Context, req *FinishFlashbackRequest, opts ...grpc.CallOption) (*FinishFlashbackResponse, error)
	Split(ctx context.Context, req *SplitRequest, opts ...grpc.CallOption) (*SplitResponse, error)
	TransferLeader(ctx context.Context, req *TransferLeaderRequest, opts ...grpc.CallOption) (*TransferLeaderResponse, error)
	ChangePeer(ctx context.Context, req *ChangePeerRequest, opts ...grpc.CallOption) (*ChangePeerResponse, error)
	RegionDetail(ctx context.Context, req *RegionDetailRequest, opts ...grpc.CallOption) (*RegionDetailResponse, error)
}

type adminClient struct {
	cc *grpc.ClientConn
}

func NewAdminClient(cc *grpc.ClientConn) AdminClient {
	return &adminClient{cc: cc}
}

func (c *adminClient) PrepareFlashback(ctx context.Context, req *PrepareFlashbackRequest, opts ...grpc.CallOption) (*PrepareFlashbackResponse, error) {
	out := new(PrepareFlashbackResponse)
	if err := c.cc.Invoke(ctx, "/flintkv.api.Admin/PrepareFlashback", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *adminClient) FinishFlashback(ctx context.Context, req *FinishFlashbackRequest, opts ...grpc.CallOption) (*FinishFlashbackResponse, error) {
	out := new(FinishFlashbackResponse)
	if err := c.cc.Invoke(ctx, "/flintkv.api.Admin/FinishFlashback", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *adminClient) Split(ctx context.Context, req *SplitRequest, opts ...grpc.CallOption) (*SplitResponse, error) {
	out := new(SplitResponse)
	if err := c.cc.Invoke(ctx, "/flintkv.api.Admin/Split", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *adminClient) TransferLeader(ctx context.Context, req *TransferLeaderRequest, opts ...grpc.CallOption) (*TransferLeaderResponse, error) {
	out := new(TransferLeaderResponse)
	if err := c.cc.Invoke(ctx, "/flintkv.api.Admin/TransferLeader", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *adminClient) ChangePeer(ctx context.Context, req *ChangePeerRequest, opts ...grpc.CallOption) (*ChangePeerResponse, error) {
	out := new(ChangePeerResponse)
	if err := c.cc.Invoke(ctx, "/flintkv.api.Admin/ChangePeer", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *adminClient) RegionDetail(ctx context.Context, req *RegionDetailRequest, opts ...grpc.CallOption) (*RegionDetailResponse, error) {
	out := new(RegionDetailResponse)
	if err := c.cc.Invoke(ctx, "/flintkv.api.Admin/RegionDetail", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

var adminServiceDesc = grpc.ServiceDesc{
	ServiceName: "flintkv.api.Admin",
	HandlerType: (*AdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PrepareFlashback", Handler: _Admin_PrepareFlashback_Handler},
		{MethodName: "FinishFlashback", Handler: _Admin_FinishFlashback_Handler},
		{MethodName: "Split", Handler: _Admin_Split_Handler},
		{MethodName: "TransferLeader", Handler: _Admin_TransferLeader_Handler},
		{MethodName: "ChangePeer", Handler: _Admin_ChangePeer_Handler},
		{MethodName: "RegionDetail", Handler: _Admin_RegionDetail_Handler},
	},
}

func RegisterAdminServer(s grpc.ServiceRegistrar, srv AdminServer) {
	s.RegisterService(&adminServiceDesc, srv)
}

// --- PD service ---

type RegionHeartbeatRequest struct {
	StoreId      uint64
	Region       *Region
	AppliedIndex uint64
}

type RegionHeartbeatResponse struct{}

type GetRegionRequest struct {
	RegionId uint64
}

type GetRegionResponse struct {
	Region *Region
	Found  bool
}

type ScheduleOperatorRequest struct {
	RegionId          uint64
	Epoch             *RegionEpoch
	Kind              int32
	TransfereeStoreId uint64
}

type ScheduleOperatorResponse struct{}

type PDServer interface {
	RegionHeartbeat(context.Context, *RegionHeartbeatRequest) (*RegionHeartbeatResponse, error)
	GetRegion(context.Context, *GetRegionRequest) (*GetRegionResponse, error)
	ScheduleOperator(context.Context, *ScheduleOperatorRequest) (*ScheduleOperatorResponse, error)
}

type UnimplementedPDServer struct{}

func (UnimplementedPDServer) RegionHeartbeat(context.Context, *RegionHeartbeatRequest) (*RegionHeartbeatResponse, error) {
	return nil, fmt.Errorf("not implemented")
}
func (UnimplementedPDServer) GetRegion(context.Context, *GetRegionRequest) (*GetRegionResponse, error) {
	return nil, fmt.Errorf("not implemented")
}
func (UnimplementedPDServer) ScheduleOperator(context.Context, *ScheduleOperatorRequest) (*ScheduleOperatorResponse, error) {
	return nil, fmt.Errorf("not implemented")
}

type PDClient interface {
	RegionHeartbeat(ctx context.Context, req *RegionHeartbeatRequest, opts ...grpc.CallOption) (*RegionHeartbeatResponse, error)
	GetRegion(ctx context.Context, req *GetRegionRequest, opts ...grpc.CallOption) (*GetRegionResponse, error)
	ScheduleOperator(ctx context.Context, req *ScheduleOperatorRequest, opts ...grpc.CallOption) (*ScheduleOperatorResponse, error)
}

type pdClient struct {
	cc *grpc.ClientConn
}

func NewPDClient(cc *grpc.ClientConn) PDClient {
	return &pdClient{cc: cc}
}

func (c *pdClient) RegionHeartbeat(ctx context.Context, req *RegionHeartbeatRequest, opts ...grpc.CallOption) (*RegionHeartbeatResponse, error) {
	out := new(RegionHeartbeatResponse)
	if err := c.cc.Invoke(ctx, "/flintkv.api.PD/RegionHeartbeat", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *pdClient) GetRegion(ctx context.Context, req *GetRegionRequest, opts ...grpc.CallOption) (*GetRegionResponse, error) {
	out := new(GetRegionResponse)
	if err := c.cc.Invoke(ctx, "/flintkv.api.PD/GetRegion", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *pdClient) ScheduleOperator(ctx context.Context, req *ScheduleOperatorRequest, opts ...grpc.CallOption) (*ScheduleOperatorResponse, error) {
	out := new(ScheduleOperatorResponse)
	if err := c.cc.Invoke(ctx, "/flintkv.api.PD/ScheduleOperator", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

var pdServiceDesc = grpc.ServiceDesc{
	ServiceName: "flintkv.api.PD",
	HandlerType: (*PDServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RegionHeartbeat", Handler: _PD_RegionHeartbeat_Handler},
		{MethodName: "GetRegion", Handler: _PD_GetRegion_Handler},
		{MethodName: "ScheduleOperator", Handler: _PD_ScheduleOperator_Handler},
	},
}

func RegisterPDServer(s grpc.ServiceRegistrar, srv PDServer) {
	s.RegisterService(&pdServiceDesc, srv)
}

// Handler helpers

func _KV_Put_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PutRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KVServer).Put(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/flintkv.api.KV/Put"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(KVServer).Put(ctx, req.(*PutRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _KV_Get_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KVServer).Get(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/flintkv.api.KV/Get"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(KVServer).Get(ctx, req.(*GetRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _KV_Delete_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(DeleteRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KVServer).Delete(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/flintkv.api.KV/Delete"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(KVServer).Delete(ctx, req.(*DeleteRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Admin_PrepareFlashback_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PrepareFlashbackRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).PrepareFlashback(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/flintkv.api.Admin/PrepareFlashback"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AdminServer).PrepareFlashback(ctx, req.(*PrepareFlashbackRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Admin_FinishFlashback_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(FinishFlashbackRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).FinishFlashback(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/flintkv.api.Admin/FinishFlashback"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AdminServer).FinishFlashback(ctx, req.(*FinishFlashbackRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Admin_Split_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SplitRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).Split(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/flintkv.api.Admin/Split"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AdminServer).Split(ctx, req.(*SplitRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Admin_TransferLeader_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(TransferLeaderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).TransferLeader(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/flintkv.api.Admin/TransferLeader"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AdminServer).TransferLeader(ctx, req.(*TransferLeaderRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Admin_ChangePeer_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ChangePeerRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).ChangePeer(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/flintkv.api.Admin/ChangePeer"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AdminServer).ChangePeer(ctx, req.(*ChangePeerRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Admin_RegionDetail_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(RegionDetailRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).RegionDetail(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/flintkv.api.Admin/RegionDetail"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AdminServer).RegionDetail(ctx, req.(*RegionDetailRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _PD_RegionHeartbeat_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(RegionHeartbeatRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PDServer).RegionHeartbeat(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/flintkv.api.PD/RegionHeartbeat"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PDServer).RegionHeartbeat(ctx, req.(*RegionHeartbeatRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _PD_GetRegion_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetRegionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PDServer).GetRegion(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/flintkv.api.PD/GetRegion"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PDServer).GetRegion(ctx, req.(*GetRegionRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _PD_ScheduleOperator_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ScheduleOperatorRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PDServer).ScheduleOperator(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/flintkv.api.PD/ScheduleOperator"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PDServer).ScheduleOperator(ctx, req.(*ScheduleOperatorRequest))
	}
	return interceptor(ctx, in, info, handler)
}
