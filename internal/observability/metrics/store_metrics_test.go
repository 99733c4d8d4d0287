package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"flintkv/internal/raftstore"
)

func TestStoreCollectorObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := NewStoreCollector(reg, "flintkv_test")

	collector.Observe(raftstore.Diagnostics{
		Regions:            4,
		RegionsInFlashback: 1,
		Leaders:            3,
		MaxAppliedIndex:    128,
	})

	if got := testutil.ToFloat64(collector.regions); got != 4 {
		t.Fatalf("store_regions = %v, want 4", got)
	}
	if got := testutil.ToFloat64(collector.regionsInFlashback); got != 1 {
		t.Fatalf("store_regions_in_flashback = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.maxAppliedIndex); got != 128 {
		t.Fatalf("store_max_applied_index = %v, want 128", got)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if len(mfs) == 0 {
		t.Fatalf("expected metrics to be registered")
	}
}

func TestStoreCollectorTransitions(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := NewStoreCollector(reg, "flintkv_test")

	collector.ObserveFlashbackTransition(true)
	collector.ObserveFlashbackTransition(true)
	collector.ObserveFlashbackTransition(false)

	if got := testutil.ToFloat64(collector.flashbackEntered); got != 2 {
		t.Fatalf("entered counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.flashbackExited); got != 1 {
		t.Fatalf("exited counter = %v, want 1", got)
	}
}
