package pd

import (
	regionpkg "flintkv/internal/region"
	api "flintkv/pkg/api"
)

// RegionToProto converts region metadata to its wire form.
func RegionToProto(region regionpkg.Region) *api.Region {
	peers := make([]*api.Peer, 0, len(region.Peers))
	for _, p := range region.Peers {
		peers = append(peers, &api.Peer{Id: p.ID, StoreId: p.StoreID})
	}
	return &api.Region{
		Id:       uint64(region.ID),
		StartKey: append([]byte(nil), region.Range.Start...),
		EndKey:   append([]byte(nil), region.Range.End...),
		Epoch: &api.RegionEpoch{
			Version:     region.Epoch.Version,
			ConfVersion: region.Epoch.ConfVersion,
		},
		Peers:         peers,
		LeaderPeerId:  region.Leader,
		IsInFlashback: region.IsInFlashback,
	}
}

// ProtoToRegion converts the wire form back to region metadata.
func ProtoToRegion(p *api.Region) regionpkg.Region {
	if p == nil {
		return regionpkg.Region{}
	}
	region := regionpkg.Region{
		ID: regionpkg.ID(p.Id),
		Range: regionpkg.KeyRange{
			Start: append([]byte(nil), p.StartKey...),
			End:   append([]byte(nil), p.EndKey...),
		},
		Leader:        p.LeaderPeerId,
		IsInFlashback: p.IsInFlashback,
		State:         regionpkg.StateActive,
	}
	if p.Epoch != nil {
		region.Epoch = regionpkg.Epoch{
			Version:     p.Epoch.Version,
			ConfVersion: p.Epoch.ConfVersion,
		}
	}
	for _, peer := range p.Peers {
		if peer == nil {
			continue
		}
		region.Peers = append(region.Peers, regionpkg.Peer{ID: peer.Id, StoreID: peer.StoreId})
	}
	return region
}
