package api

import (
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// CodecName is the grpc content-subtype the api codec answers to.
const CodecName = "json"

// Codec serializes the hand-maintained api messages as JSON. The default
// grpc codec only accepts proto.Message values, so every api call must run
// through this one. Servers resolve it from the codec registry by
// content-subtype; clients select it per connection with WithJSONCodec.
type Codec struct{}

func (Codec) Name() string { return CodecName }

func (Codec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (Codec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func init() {
	encoding.RegisterCodec(Codec{})
}

// WithJSONCodec makes every call on the connection carry the api codec's
// content-subtype. Connections talking to the KV, Admin, PD or RaftTransport
// services must dial with it; services speaking real protobuf (grpc health)
// are unaffected because servers pick the codec per request.
func WithJSONCodec() grpc.DialOption {
	return grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName))
}
