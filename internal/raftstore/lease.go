package raftstore

import (
	"sync"
	"time"
)

// Lease is the leader's time-bounded privilege to answer reads locally,
// without going through the replicated log. All methods take an explicit
// timestamp so callers and tests share one clock.
//
// Only the leader's lease carries meaning; followers hold an expired lease.
// While suppressed (region in flashback) Renew is a no-op, so every read is
// forced through propose -> commit -> apply and hits the admission gate.
type Lease struct {
	mu         sync.Mutex
	expiry     time.Time
	duration   time.Duration
	suppressed bool
}

// NewLease creates a lease that stays valid for d after each renewal.
func NewLease(d time.Duration) *Lease {
	return &Lease{duration: d}
}

// Valid reports whether the lease covers now.
func (l *Lease) Valid(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.expiry.IsZero() && now.Before(l.expiry)
}

// Renew extends the lease from now, unless renewal is suppressed.
func (l *Lease) Renew(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.suppressed {
		return
	}
	expiry := now.Add(l.duration)
	if expiry.After(l.expiry) {
		l.expiry = expiry
	}
}

// Invalidate expires the lease immediately.
func (l *Lease) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.expiry = time.Time{}
}

// Suppress expires the lease and blocks renewal until Resume.
func (l *Lease) Suppress() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.expiry = time.Time{}
	l.suppressed = true
}

// Resume re-enables renewal. The lease stays expired until the next Renew.
func (l *Lease) Resume() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.suppressed = false
}

// Suppressed reports whether renewal is currently blocked.
func (l *Lease) Suppressed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.suppressed
}
