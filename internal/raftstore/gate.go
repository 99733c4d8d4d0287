package raftstore

import (
	regionpkg "flintkv/internal/region"
)

// checkFlashbackAdmission decides whether a normal request may proceed given
// the region's flashback state and the request's flashback flag:
//
//	in flashback, no flag   -> FlashbackInProgress
//	in flashback, flag      -> admitted
//	not in flashback, flag  -> FlashbackNotPrepared
//	not in flashback, no flag -> admitted
//
// The check runs twice per request: at propose time against the leader's
// current view (a fast rejection that may be stale without harm) and at
// apply time against the just-applied state (authoritative). Admin and
// status commands are never passed through here.
func checkFlashbackAdmission(regionID regionpkg.ID, isInFlashback bool, flags HeaderFlags) *Error {
	withFlag := flags.Has(FlagFlashback)
	if isInFlashback && !withFlag {
		return errFlashbackInProgress(regionID)
	}
	if !isInFlashback && withFlag {
		return errFlashbackNotPrepared(regionID)
	}
	return nil
}
