package api

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"
)

func TestCodecRoundTrip(t *testing.T) {
	in := &RegionHeartbeatRequest{
		StoreId: 3,
		Region: &Region{
			Id:            7,
			StartKey:      []byte("a"),
			EndKey:        []byte("m"),
			Epoch:         &RegionEpoch{Version: 4, ConfVersion: 2},
			Peers:         []*Peer{{Id: 11, StoreId: 3}},
			IsInFlashback: true,
		},
		AppliedIndex: 42,
	}

	data, err := Codec{}.Marshal(in)
	require.NoError(t, err)

	out := new(RegionHeartbeatRequest)
	require.NoError(t, Codec{}.Unmarshal(data, out))
	require.Equal(t, in, out)
}

func TestCodecRegistered(t *testing.T) {
	codec := encoding.GetCodec(CodecName)
	require.NotNil(t, codec)
	require.Equal(t, CodecName, codec.Name())
}
