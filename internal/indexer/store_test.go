package indexer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newVersionedSnapshot(t *testing.T, version uint64) *Snapshot {
	t.Helper()
	snap, err := NewBuilder(nil).Build(context.Background(), "ws", version, time.Now(), testSourceFiles(), 0)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return snap
}

func TestStore_PublishAndCurrent(t *testing.T) {
	store := NewStore()
	defer store.Close()

	if store.Current() != nil {
		t.Fatal("Current() on empty store != nil")
	}
	if store.Version() != 0 {
		t.Fatalf("Version() on empty store = %d, want 0", store.Version())
	}

	if err := store.Publish(newVersionedSnapshot(t, 1)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if store.Version() != 1 {
		t.Fatalf("Version() = %d, want 1", store.Version())
	}

	ref := store.Current()
	if ref == nil {
		t.Fatal("Current() = nil after publish")
	}
	defer ref.Release()
	if ref.Version() != 1 {
		t.Errorf("Ref version = %d, want 1", ref.Version())
	}
}

func TestStore_StaleVersionRejected(t *testing.T) {
	store := NewStore()
	defer store.Close()

	if err := store.Publish(newVersionedSnapshot(t, 2)); err != nil {
		t.Fatal(err)
	}

	stale := newVersionedSnapshot(t, 2)
	err := store.Publish(stale)
	var internal *InternalError
	if !errors.As(err, &internal) {
		t.Fatalf("Publish(same version) error = %v, want *InternalError", err)
	}
	stale.release()

	if store.Version() != 2 {
		t.Errorf("Version = %d after rejected publish, want 2", store.Version())
	}
}

func TestStore_ReaderSurvivesPublish(t *testing.T) {
	store := NewStore()
	defer store.Close()

	if err := store.Publish(newVersionedSnapshot(t, 1)); err != nil {
		t.Fatal(err)
	}

	ref := store.Current()
	if ref == nil {
		t.Fatal("Current() = nil")
	}

	if err := store.Publish(newVersionedSnapshot(t, 2)); err != nil {
		t.Fatalf("Publish(v2) error = %v", err)
	}

	// The old handle still reads v1, untouched by the publish.
	if ref.Version() != 1 {
		t.Errorf("Held ref version = %d, want 1", ref.Version())
	}
	if len(ref.Snapshot().Files()) != 3 {
		t.Errorf("Held ref files = %d, want 3", len(ref.Snapshot().Files()))
	}
	ref.Release()
	ref.Release() // double release is safe

	next := store.Current()
	if next == nil || next.Version() != 2 {
		t.Fatalf("Current() after publish = %v, want v2", next)
	}
	next.Release()
}

func TestStore_ConcurrentReadersAndPublishes(t *testing.T) {
	store := NewStore()
	defer store.Close()

	if err := store.Publish(newVersionedSnapshot(t, 1)); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				ref := store.Current()
				if ref == nil {
					t.Error("Current() = nil while snapshots are published")
					return
				}
				if got := len(ref.Snapshot().Files()); got != 3 {
					t.Errorf("Reader saw %d files, want 3", got)
				}
				ref.Release()
			}
		}()
	}

	for v := uint64(2); v <= 10; v++ {
		if err := store.Publish(newVersionedSnapshot(t, v)); err != nil {
			t.Errorf("Publish(v%d) error = %v", v, err)
		}
	}
	close(done)
	wg.Wait()

	if store.Version() != 10 {
		t.Errorf("Final version = %d, want 10", store.Version())
	}
}
