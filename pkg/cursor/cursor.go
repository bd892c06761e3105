// Package cursor holds the per-route mutable sync progress state. Cursors
// are ephemeral: they are reseeded from the persistent store on first use
// after startup.
package cursor

import "sync/atomic"

// Uninitialized marks a cursor field that has not been seeded from the
// persistent store yet.
const Uninitialized int64 = -1

// FillCatchupDone is the frozen watermark value meaning the batch catch-up
// phase has drained; only incremental status polling runs afterwards.
const FillCatchupDone int64 = 0

// SyncCursor is the mutable progress state for one route. A route's cursor
// is mutated exclusively by the cycle currently holding the syncing guard;
// no other writer exists.
type SyncCursor struct {
	// LatestNonce is the last engine nonce ingested, Uninitialized before
	// the first cycle seeds it from the store.
	LatestNonce int64

	// Skip is the status-poll pagination offset. It resets to 0 once a page
	// comes back shorter than the page size (backlog drained).
	Skip int

	// ConfirmedNonce is the reorg watermark: nonces at or below it are
	// assumed final and exempt from repair.
	ConfirmedNonce int64

	// LatestFillTimestamp drives batch catch-up. Uninitialized before
	// seeding, FillCatchupDone once an empty page froze it.
	LatestFillTimestamp int64

	// ProviderNonce / ProviderTargetNonce are the ledger replay cursors for
	// the source and target provider-update feeds.
	ProviderNonce       int64
	ProviderTargetNonce int64

	// Cycles counts completed cycles, used for the slow withdraw cadence.
	Cycles uint64

	syncing atomic.Bool
}

// NewSyncCursor returns a cursor with every seedable field uninitialized.
func NewSyncCursor() *SyncCursor {
	return &SyncCursor{
		LatestNonce:         Uninitialized,
		LatestFillTimestamp: Uninitialized,
		ProviderNonce:       Uninitialized,
		ProviderTargetNonce: Uninitialized,
	}
}

// BeginSync takes the reentrancy guard. It returns false when a cycle for
// this route is still in flight, in which case the caller skips this firing.
func (c *SyncCursor) BeginSync() bool {
	return c.syncing.CompareAndSwap(false, true)
}

// EndSync releases the reentrancy guard.
func (c *SyncCursor) EndSync() {
	c.syncing.Store(false)
}

// Syncing reports whether a cycle currently holds the guard.
func (c *SyncCursor) Syncing() bool {
	return c.syncing.Load()
}

// Store maps route ids to their cursors. It is built once at startup and
// never mutated afterwards, so lookups need no locking.
type Store struct {
	cursors map[string]*SyncCursor
}

// NewStore allocates one cursor per route id.
func NewStore(routeIDs []string) *Store {
	cursors := make(map[string]*SyncCursor, len(routeIDs))
	for _, id := range routeIDs {
		cursors[id] = NewSyncCursor()
	}
	return &Store{cursors: cursors}
}

// Get returns the cursor for a route. Routes are registered at construction;
// a missing id is a programming error and returns nil.
func (s *Store) Get(routeID string) *SyncCursor {
	return s.cursors[routeID]
}
