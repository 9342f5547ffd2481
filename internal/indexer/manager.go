package indexer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/adi-index/adi/internal/project"
)

// ManagerConfig configures the manager behavior.
type ManagerConfig struct {
	// Embedder scores text for search. Default: deterministic hashing embedder.
	Embedder Embedder
	// Parser extracts symbols. Default: DefaultParser.
	Parser SymbolParser
	// LanguageDetector for custom language detection. Default: DefaultLanguageDetector.
	LanguageDetector LanguageDetector
	// MaxConcurrency for scan workers. Default: 4.
	MaxConcurrency int
	// CatalogPath enables sqlite snapshot persistence when non-empty.
	CatalogPath string
	// EnableFileWatcher starts a per-workspace watcher that triggers
	// rebuilds after changes settle.
	EnableFileWatcher bool
}

// Manager owns the workspace registry and drives builds: at most one
// job runs per workspace, completed snapshots are published to the
// workspace store, and all queries are served from published snapshots.
type Manager struct {
	config  ManagerConfig
	builder *Builder
	engine  *QueryEngine
	catalog *Catalog

	mu         sync.Mutex
	workspaces map[string]*workspaceEntry
	closed     bool

	wg sync.WaitGroup
}

// workspaceEntry is the per-workspace ownership record: one store, one
// active job, one watcher.
type workspaceEntry struct {
	id             string
	root           string
	ignorePatterns []string
	maxFileSize    int64
	store          *Store
	watcher        *FileWatcher

	// lastVersion is the highest version ever assigned for this
	// workspace; versions are strictly increasing.
	lastVersion atomic.Uint64

	// mu guards job; "start new build" is a compare-and-set against
	// "no active job" under this lock.
	mu  sync.Mutex
	job *Job
}

// NewManager creates a manager.
func NewManager(ctx context.Context, config ManagerConfig) (*Manager, error) {
	if config.Embedder == nil {
		config.Embedder = NewHashingEmbedder(256)
	}
	if config.Parser == nil {
		config.Parser = NewDefaultParser()
	}
	if config.LanguageDetector == nil {
		config.LanguageDetector = NewDefaultLanguageDetector()
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}

	m := &Manager{
		config:     config,
		builder:    NewBuilder(config.Embedder),
		engine:     NewQueryEngine(),
		workspaces: make(map[string]*workspaceEntry),
	}

	if config.CatalogPath != "" {
		catalog, err := NewCatalog(ctx, config.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open catalog: %w", err)
		}
		m.catalog = catalog
	}

	return m, nil
}

// AddWorkspace registers a workspace root under an id. The id must be
// non-empty and the root a readable directory; anything else is an
// ErrInvalidWorkspace. Registering an already-known id is a no-op.
func (m *Manager) AddWorkspace(ctx context.Context, id, root string) error {
	if id == "" {
		return fmt.Errorf("%w: empty workspace id", ErrInvalidWorkspace)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWorkspace, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWorkspace, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidWorkspace, absRoot)
	}

	cfg, err := project.LoadConfig(absRoot)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWorkspace, err)
	}

	entry := &workspaceEntry{
		id:    id,
		root:  absRoot,
		store: NewStore(),
	}
	if cfg != nil {
		entry.ignorePatterns = cfg.IgnorePatterns
		entry.maxFileSize = cfg.MaxFileSizeBytes
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return internalf("manager.addWorkspace", "manager is stopped")
	}
	if _, exists := m.workspaces[id]; exists {
		m.mu.Unlock()
		return nil
	}
	m.workspaces[id] = entry
	m.mu.Unlock()

	log.Printf("🔍 Workspace registered: %s (%s)", id, absRoot)

	m.warmStart(ctx, entry)

	watch := m.config.EnableFileWatcher
	if cfg != nil && cfg.DisableWatcher {
		watch = false
	}
	if watch {
		m.startWatcher(entry)
	}

	return nil
}

// warmStart republishes the last persisted snapshot, if any.
func (m *Manager) warmStart(ctx context.Context, entry *workspaceEntry) {
	if m.catalog == nil {
		return
	}

	files, meta, version, err := m.catalog.LoadLatest(ctx, entry.id)
	if err != nil {
		log.Printf("⚠️  Failed to load catalog for %s: %v", entry.id, err)
		return
	}
	if version == 0 {
		return
	}

	snap, err := m.builder.Build(ctx, entry.id, version, meta.StartedAt, files, meta.WarningCount)
	if err != nil {
		log.Printf("⚠️  Failed to rebuild persisted snapshot for %s: %v", entry.id, err)
		return
	}
	if err := entry.store.Publish(snap); err != nil {
		snap.release()
		log.Printf("⚠️  Failed to publish persisted snapshot for %s: %v", entry.id, err)
		return
	}
	entry.lastVersion.Store(version)
	log.Printf("✅ Warm-started %s from catalog (snapshot v%d, %d files)", entry.id, version, len(files))
}

// startWatcher wires a debounced filesystem watcher to StartBuild.
func (m *Manager) startWatcher(entry *workspaceEntry) {
	patterns := append([]string{}, DefaultIgnorePatterns...)
	patterns = append(patterns, entry.ignorePatterns...)
	matcher := gitignore.CompileIgnoreLines(patterns...)

	watcher, err := NewFileWatcher(entry.root, m.config.LanguageDetector, matcher, func() {
		if _, err := m.StartBuild(context.Background(), entry.id); err != nil {
			log.Printf("⚠️  Watcher-triggered build failed to start for %s: %v", entry.id, err)
		}
	})
	if err != nil {
		log.Printf("⚠️  Failed to create watcher for %s: %v (continuing without)", entry.id, err)
		return
	}
	if err := watcher.Start(); err != nil {
		log.Printf("⚠️  Failed to start watcher for %s: %v (continuing without)", entry.id, err)
		return
	}
	entry.watcher = watcher
}

// RemoveWorkspace drops a workspace: cancels its job, stops its watcher
// and releases its store.
func (m *Manager) RemoveWorkspace(id string) error {
	m.mu.Lock()
	entry, ok := m.workspaces[id]
	if ok {
		delete(m.workspaces, id)
	}
	m.mu.Unlock()
	if !ok {
		return ErrUnknownWorkspace
	}

	entry.mu.Lock()
	job := entry.job
	entry.mu.Unlock()
	if job != nil {
		job.requestCancel()
	}

	if entry.watcher != nil {
		entry.watcher.Stop()
	}
	entry.store.Close()
	return nil
}

// lookup finds a registered workspace.
func (m *Manager) lookup(id string) (*workspaceEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.workspaces[id]
	if !ok {
		return nil, ErrUnknownWorkspace
	}
	return entry, nil
}

// StartBuild triggers a full rebuild of the workspace index. If a job
// is already queued or running for the workspace, its status is
// returned instead of starting a second build: concurrent triggers are
// idempotent, not an error. The build itself runs in the background;
// poll Status for progress.
func (m *Manager) StartBuild(ctx context.Context, workspaceID string) (JobStatus, error) {
	entry, err := m.lookup(workspaceID)
	if err != nil {
		return JobStatus{}, err
	}

	entry.mu.Lock()
	if entry.job != nil && entry.job.active() {
		status := entry.job.Status()
		entry.mu.Unlock()
		return status, nil
	}

	// The build owns its own lifetime; the trigger's context ends at
	// the HTTP response, the job's must not.
	jobCtx, cancel := context.WithCancel(context.Background())
	job := newJob(workspaceID, cancel)
	entry.job = job

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		entry.mu.Unlock()
		cancel()
		return JobStatus{}, internalf("manager.startBuild", "manager is stopped")
	}
	m.wg.Add(1)
	m.mu.Unlock()
	entry.mu.Unlock()

	go m.runBuild(jobCtx, entry, job)

	return job.Status(), nil
}

// runBuild executes one Queued job to a terminal state.
func (m *Manager) runBuild(ctx context.Context, entry *workspaceEntry, job *Job) {
	defer m.wg.Done()

	if err := job.run(); err != nil {
		log.Printf("❌ %v", err)
		return
	}

	startedAt := time.Now()
	log.Printf("🔍 Indexing workspace %s: %s", entry.id, entry.root)

	scanner := NewScanner(entry.root, ScannerConfig{
		MaxConcurrency:   m.config.MaxConcurrency,
		IgnorePatterns:   entry.ignorePatterns,
		MaxFileSize:      entry.maxFileSize,
		LanguageDetector: m.config.LanguageDetector,
		Parser:           m.config.Parser,
		OnDiscover:       job.setFilesTotal,
		OnFile: func(f *SourceFile) {
			job.noteFileScanned(len(f.Symbols))
		},
	})

	output, err := scanner.Scan(ctx)
	if err != nil {
		m.failJob(job, FailScan, ctx, err)
		return
	}
	for _, w := range output.Warnings {
		log.Printf("⚠️  %s", w)
	}

	version := entry.lastVersion.Add(1)
	snap, err := m.builder.Build(ctx, entry.id, version, startedAt, output.Files, len(output.Warnings))
	if err != nil {
		m.failJob(job, FailBuild, ctx, err)
		return
	}

	if err := entry.store.Publish(snap); err != nil {
		snap.release()
		m.failJob(job, FailInternal, ctx, err)
		return
	}

	if m.catalog != nil {
		if err := m.catalog.SaveSnapshot(context.Background(), snap); err != nil {
			// In-memory publish is authoritative; persistence is best effort.
			log.Printf("⚠️  Failed to persist snapshot v%d for %s: %v", version, entry.id, err)
		}
	}

	if err := job.succeed(version); err != nil {
		log.Printf("❌ %v", err)
		return
	}
	log.Printf("✅ Workspace %s indexed: snapshot v%d published", entry.id, version)
}

// failJob marks a job failed, collapsing cancellation into its own
// reason. The previously published snapshot, if any, stays untouched.
func (m *Manager) failJob(job *Job, reason FailureReason, ctx context.Context, err error) {
	if ctx.Err() != nil || isCanceledBuild(err) {
		reason = FailCanceled
	}
	if ferr := job.fail(reason, err); ferr != nil {
		log.Printf("❌ %v", ferr)
		return
	}
	log.Printf("❌ Indexing failed for %s (%s): %v", job.workspaceID, reason, err)
}

func isCanceledBuild(err error) bool {
	var berr *BuildError
	return errors.As(err, &berr) && berr.Canceled
}

// Status returns the current job's state and progress. ErrNoJob when no
// build was ever triggered for the workspace.
func (m *Manager) Status(workspaceID string) (JobStatus, error) {
	entry, err := m.lookup(workspaceID)
	if err != nil {
		return JobStatus{}, err
	}

	entry.mu.Lock()
	job := entry.job
	entry.mu.Unlock()
	if job == nil {
		return JobStatus{}, ErrNoJob
	}
	return job.Status(), nil
}

// Cancel requests cooperative cancellation of the workspace's running
// job. Terminal jobs are unaffected.
func (m *Manager) Cancel(workspaceID string) error {
	entry, err := m.lookup(workspaceID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	job := entry.job
	entry.mu.Unlock()
	if job != nil {
		job.requestCancel()
	}
	return nil
}

// Current returns a reference to the workspace's published snapshot.
// The caller must Release it. ErrNoIndex when nothing was published yet.
func (m *Manager) Current(workspaceID string) (*SnapshotRef, error) {
	entry, err := m.lookup(workspaceID)
	if err != nil {
		return nil, err
	}
	ref := entry.store.Current()
	if ref == nil {
		return nil, ErrNoIndex
	}
	return ref, nil
}

// Search runs a ranked query against the workspace's published snapshot.
func (m *Manager) Search(ctx context.Context, workspaceID string, query Query) ([]SearchResult, error) {
	ref, err := m.Current(workspaceID)
	if err != nil {
		return nil, err
	}
	defer ref.Release()
	return m.engine.Search(ctx, ref.Snapshot(), query)
}

// ListSymbols lists symbols from the published snapshot in file order
// then position order.
func (m *Manager) ListSymbols(workspaceID string, filter SymbolFilter) ([]Symbol, error) {
	ref, err := m.Current(workspaceID)
	if err != nil {
		return nil, err
	}
	defer ref.Release()
	return m.engine.ListSymbols(ref.Snapshot(), filter), nil
}

// ListFiles lists the published snapshot's files ordered by path.
func (m *Manager) ListFiles(workspaceID string) ([]SourceFile, error) {
	ref, err := m.Current(workspaceID)
	if err != nil {
		return nil, err
	}
	defer ref.Release()
	return m.engine.ListFiles(ref.Snapshot()), nil
}

// Stop cancels all jobs, stops watchers, waits for builds to finish and
// releases all stores.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	entries := make([]*workspaceEntry, 0, len(m.workspaces))
	for _, entry := range m.workspaces {
		entries = append(entries, entry)
	}
	m.mu.Unlock()

	for _, entry := range entries {
		entry.mu.Lock()
		job := entry.job
		entry.mu.Unlock()
		if job != nil {
			job.requestCancel()
		}
		if entry.watcher != nil {
			entry.watcher.Stop()
		}
	}

	m.wg.Wait()

	for _, entry := range entries {
		entry.store.Close()
	}
	if m.catalog != nil {
		m.catalog.Close()
	}
}
