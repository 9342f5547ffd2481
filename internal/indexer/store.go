package indexer

import (
	"sync"
	"sync/atomic"
)

// Store holds the currently published snapshot of one workspace. The
// current pointer is the only mutable shared state on the read path:
// readers acquire refcounted handles lock-free, publishes swap the
// pointer atomically, and a superseded snapshot is torn down only after
// its last reader releases it. Readers never block a publish and a
// publish never invalidates in-flight reads.
type Store struct {
	current atomic.Pointer[Snapshot]

	// mu orders publishes so versions are checked-then-swapped as one
	// step. It is never taken on the read path.
	mu sync.Mutex
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Current returns a handle on the active snapshot, or nil if none has
// ever been published. The handle stays valid until released.
func (s *Store) Current() *SnapshotRef {
	for {
		snap := s.current.Load()
		if snap == nil {
			return nil
		}
		if snap.acquire() {
			return &SnapshotRef{snap: snap}
		}
		// The snapshot was torn down between load and acquire, which
		// means a newer one was just published. Retry.
	}
}

// Version returns the current published version, or 0 if none.
func (s *Store) Version() uint64 {
	snap := s.current.Load()
	if snap == nil {
		return 0
	}
	return snap.version
}

// Publish atomically replaces the current snapshot. Versions must be
// strictly increasing; a stale version is an invariant violation.
func (s *Store) Publish(snap *Snapshot) error {
	s.mu.Lock()
	old := s.current.Load()
	if old != nil && snap.version <= old.version {
		s.mu.Unlock()
		return internalf("store.publish", "version %d not greater than current %d", snap.version, old.version)
	}
	s.current.Store(snap)
	s.mu.Unlock()

	// Drop the store's reference to the superseded snapshot; it is
	// reclaimed once the last in-flight reader releases it.
	if old != nil {
		old.release()
	}
	return nil
}

// Close releases the store's reference to the current snapshot.
func (s *Store) Close() {
	s.mu.Lock()
	old := s.current.Load()
	s.current.Store(nil)
	s.mu.Unlock()
	if old != nil {
		old.release()
	}
}
