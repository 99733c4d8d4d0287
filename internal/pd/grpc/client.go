package pdgrpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	pd "flintkv/internal/pd"
	regionpkg "flintkv/internal/region"
	api "flintkv/pkg/api"
)

// Client reports region metadata to a remote placement driver.
type Client struct {
	conn   *grpc.ClientConn
	client api.PDClient
}

func NewClient(target string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	opts = append(opts, api.WithJSONCodec())
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, client: api.NewPDClient(conn)}, nil
}

// ReportRegion pushes one region's freshest metadata.
func (c *Client) ReportRegion(storeID uint64, region regionpkg.Region, appliedIndex uint64) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := c.client.RegionHeartbeat(ctx, &api.RegionHeartbeatRequest{
		StoreId:      storeID,
		Region:       pd.RegionToProto(region),
		AppliedIndex: appliedIndex,
	})
	return err
}

// GetRegion fetches the scheduler's view of one region.
func (c *Client) GetRegion(id regionpkg.ID) (regionpkg.Region, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := c.client.GetRegion(ctx, &api.GetRegionRequest{RegionId: uint64(id)})
	if err != nil {
		return regionpkg.Region{}, false, err
	}
	if !resp.Found {
		return regionpkg.Region{}, false, nil
	}
	return pd.ProtoToRegion(resp.Region), true, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
