package pd_test

import (
	"testing"
	"time"

	"flintkv/internal/pd"
	regionpkg "flintkv/internal/region"
)

func heartbeat(storeID uint64, regions ...regionpkg.Region) pd.StoreHeartbeat {
	hb := pd.StoreHeartbeat{
		StoreID:   storeID,
		Address:   "127.0.0.1:19001",
		Timestamp: time.Now(),
	}
	for _, r := range regions {
		hb.Regions = append(hb.Regions, pd.RegionHeartbeat{Region: r, StoreID: storeID})
	}
	return hb
}

func TestServiceHandleHeartbeat(t *testing.T) {
	svc := pd.NewService()

	resp := svc.HandleHeartbeat(heartbeat(1, regionpkg.Region{
		ID:    1,
		Epoch: regionpkg.Epoch{Version: 1, ConfVersion: 1},
	}))
	if len(resp.Operators) != 0 {
		t.Fatalf("expected no operators, got %+v", resp.Operators)
	}

	stored, ok := svc.Store(1)
	if !ok {
		t.Fatalf("store 1 not recorded")
	}
	if stored.Address != "127.0.0.1:19001" {
		t.Fatalf("unexpected address %s", stored.Address)
	}

	region, ok := svc.Region(1)
	if !ok {
		t.Fatalf("region 1 not recorded")
	}
	if region.Epoch.Version != 1 {
		t.Fatalf("unexpected epoch %+v", region.Epoch)
	}
}

func TestServiceDropsStaleRegionReports(t *testing.T) {
	svc := pd.NewService()

	svc.ReportRegion(regionpkg.Region{
		ID:            1,
		Epoch:         regionpkg.Epoch{Version: 3, ConfVersion: 1},
		IsInFlashback: true,
	})
	// An older heartbeat, sent before the flashback prepared, must not
	// roll the flag back.
	svc.ReportRegion(regionpkg.Region{
		ID:    1,
		Epoch: regionpkg.Epoch{Version: 2, ConfVersion: 1},
	})

	region, ok := svc.Region(1)
	if !ok {
		t.Fatalf("region 1 not recorded")
	}
	if !region.IsInFlashback {
		t.Fatalf("stale report cleared the flashback flag")
	}
	if region.Epoch.Version != 3 {
		t.Fatalf("stale report won the merge: %+v", region.Epoch)
	}
}

func TestScheduleOperatorFlashbackInterlock(t *testing.T) {
	svc := pd.NewService()
	svc.ReportRegion(regionpkg.Region{
		ID:            1,
		Epoch:         regionpkg.Epoch{Version: 2, ConfVersion: 1},
		IsInFlashback: true,
	})

	err := svc.ScheduleOperator(pd.Operator{
		RegionID:      1,
		Epoch:         regionpkg.Epoch{Version: 2, ConfVersion: 1},
		Kind:          pd.OpTransferLeader,
		TargetStoreID: 2,
	}, 1)
	if err != pd.ErrFlashbackInProgress {
		t.Fatalf("expected ErrFlashbackInProgress, got %v", err)
	}
	if ops := svc.PendingOperators(1); len(ops) != 0 {
		t.Fatalf("refused operator was queued: %+v", ops)
	}

	// Membership changes are not blocked by the flag, only leadership
	// transfers are.
	err = svc.ScheduleOperator(pd.Operator{
		RegionID: 1,
		Epoch:    regionpkg.Epoch{Version: 2, ConfVersion: 1},
		Kind:     pd.OpAddPeer,
	}, 1)
	if err != nil {
		t.Fatalf("add-peer refused during flashback: %v", err)
	}
}

func TestScheduleOperatorStaleEpoch(t *testing.T) {
	svc := pd.NewService()
	svc.ReportRegion(regionpkg.Region{
		ID:    1,
		Epoch: regionpkg.Epoch{Version: 4, ConfVersion: 2},
	})

	err := svc.ScheduleOperator(pd.Operator{
		RegionID: 1,
		Epoch:    regionpkg.Epoch{Version: 3, ConfVersion: 2},
		Kind:     pd.OpTransferLeader,
	}, 1)
	if err != pd.ErrEpochStale {
		t.Fatalf("expected ErrEpochStale, got %v", err)
	}

	err = svc.ScheduleOperator(pd.Operator{
		RegionID: 9,
		Kind:     pd.OpTransferLeader,
	}, 1)
	if err != pd.ErrRegionNotFound {
		t.Fatalf("expected ErrRegionNotFound, got %v", err)
	}
}

func TestHeartbeatDrainsPendingOperators(t *testing.T) {
	svc := pd.NewService()
	region := regionpkg.Region{ID: 1, Epoch: regionpkg.Epoch{Version: 1, ConfVersion: 1}}
	svc.ReportRegion(region)

	op := pd.Operator{
		RegionID:      1,
		Epoch:         region.Epoch,
		Kind:          pd.OpTransferLeader,
		TargetStoreID: 2,
	}
	if err := svc.ScheduleOperator(op, 1); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	resp := svc.HandleHeartbeat(heartbeat(1, region))
	if len(resp.Operators) != 1 || resp.Operators[0].Kind != pd.OpTransferLeader {
		t.Fatalf("operator not delivered: %+v", resp.Operators)
	}

	// Delivery consumes the queue.
	resp = svc.HandleHeartbeat(heartbeat(1, region))
	if len(resp.Operators) != 0 {
		t.Fatalf("operator delivered twice: %+v", resp.Operators)
	}
}

func TestPersistentServiceReload(t *testing.T) {
	dir := t.TempDir()

	svc, err := pd.NewPersistentService(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	svc.ReportRegion(regionpkg.Region{
		ID:            1,
		Epoch:         regionpkg.Epoch{Version: 5, ConfVersion: 2},
		IsInFlashback: true,
	})
	id, err := svc.AllocID()
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	svc, err = pd.NewPersistentService(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer svc.Close()

	region, ok := svc.Region(1)
	if !ok {
		t.Fatalf("region lost across restart")
	}
	if !region.IsInFlashback || region.Epoch.Version != 5 {
		t.Fatalf("region state lost: %+v", region)
	}

	next, err := svc.AllocID()
	if err != nil {
		t.Fatalf("alloc after reload: %v", err)
	}
	if next <= id {
		t.Fatalf("allocated id went backwards: %d then %d", id, next)
	}
}
