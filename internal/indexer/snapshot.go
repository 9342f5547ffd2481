package indexer

import (
	"sync"
	"sync/atomic"
	"time"
)

// BuildMeta describes how a snapshot was built.
type BuildMeta struct {
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	FileCount    int           `json:"file_count"`
	SymbolCount  int           `json:"symbol_count"`
	TotalBytes   int64         `json:"total_bytes"`
	WarningCount int           `json:"warning_count"`
}

// Snapshot is an immutable, versioned index of one workspace. It owns an
// in-memory text index and an embedding table; both are released when the
// last reference is dropped. Versions are strictly increasing per
// workspace.
type Snapshot struct {
	workspaceID string
	version     uint64
	meta        BuildMeta

	files       []SourceFile // sorted by path
	filesByPath map[string]int

	text    *textIndex
	vectors map[string][]float32 // doc id -> embedding
	docs    map[string]docRef    // doc id -> location

	embedder Embedder // used to embed query text at search time

	// refs counts the store's reference plus in-flight readers.
	refs      atomic.Int32
	closeOnce sync.Once
}

// docRef locates the document behind an index entry. symbolIdx is -1 for
// file-level documents.
type docRef struct {
	fileIdx   int
	symbolIdx int
}

// WorkspaceID returns the owning workspace id.
func (s *Snapshot) WorkspaceID() string { return s.workspaceID }

// Version returns the monotonic build id.
func (s *Snapshot) Version() uint64 { return s.version }

// Meta returns the build metadata.
func (s *Snapshot) Meta() BuildMeta { return s.meta }

// Files returns all files sorted by path. Callers must not mutate the
// returned slice.
func (s *Snapshot) Files() []SourceFile { return s.files }

// FileByPath returns the file record for a relative path.
func (s *Snapshot) FileByPath(path string) (*SourceFile, bool) {
	idx, ok := s.filesByPath[path]
	if !ok {
		return nil, false
	}
	return &s.files[idx], true
}

// acquire takes a reference. It fails once the count has reached zero,
// which only happens after the snapshot was superseded and all readers
// left.
func (s *Snapshot) acquire() bool {
	for {
		n := s.refs.Load()
		if n <= 0 {
			return false
		}
		if s.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// release drops a reference and tears the snapshot down when the last
// one is gone.
func (s *Snapshot) release() {
	if s.refs.Add(-1) == 0 {
		s.closeOnce.Do(func() {
			if s.text != nil {
				s.text.close()
			}
		})
	}
}

// SnapshotRef is a reader's handle on a snapshot. The snapshot stays
// valid and unchanged until Release, even if a newer version is
// published concurrently.
type SnapshotRef struct {
	snap *Snapshot
	once sync.Once
}

// Snapshot returns the referenced snapshot.
func (r *SnapshotRef) Snapshot() *Snapshot { return r.snap }

// Version returns the referenced snapshot's version.
func (r *SnapshotRef) Version() uint64 { return r.snap.version }

// Release drops the reference. Safe to call more than once.
func (r *SnapshotRef) Release() {
	r.once.Do(func() { r.snap.release() })
}
