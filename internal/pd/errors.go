package pd

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrRegionNotFound means no heartbeat ever reported the region.
	ErrRegionNotFound = errors.New("pd: region not found")
	// ErrEpochStale means the operator carries an epoch older than the
	// scheduler's freshest view of the region.
	ErrEpochStale = errors.New("pd: operator epoch is stale")
	// ErrFlashbackInProgress rejects operators against a region whose
	// latest reported state is in flashback.
	ErrFlashbackInProgress = errors.New("pd: region is in flashback")
)

// IsRegionNotFoundError reports whether err indicates missing region
// metadata, locally or across a grpc boundary.
func IsRegionNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRegionNotFound) {
		return true
	}
	if st, ok := status.FromError(err); ok {
		return st.Code() == codes.NotFound
	}
	return false
}

// IsFlashbackInProgressError reports whether err is the flashback
// scheduling interlock, locally or across a grpc boundary.
func IsFlashbackInProgressError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrFlashbackInProgress) {
		return true
	}
	if st, ok := status.FromError(err); ok {
		return st.Code() == codes.FailedPrecondition
	}
	return false
}

// IsEpochStaleError reports whether err is an operator epoch conflict.
func IsEpochStaleError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrEpochStale) {
		return true
	}
	if st, ok := status.FromError(err); ok {
		return st.Code() == codes.Aborted
	}
	return false
}
