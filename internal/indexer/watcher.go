package indexer

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher watches a workspace for changes and, after a quiet
// period, invokes a rebuild callback. The trigger is idempotent at the
// JobManager level, so bursts of events collapse into one build.
type FileWatcher struct {
	root          string
	watcher       *fsnotify.Watcher
	onDirty       func()
	debounceTime  time.Duration
	langDetector  LanguageDetector
	ignoreMatcher interface{ MatchesPath(string) bool }

	mu    sync.Mutex
	dirty bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewFileWatcher creates a new filesystem watcher for a workspace root.
func NewFileWatcher(root string, langDetector LanguageDetector, ignoreMatcher interface{ MatchesPath(string) bool }, onDirty func()) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &FileWatcher{
		root:          root,
		watcher:       watcher,
		onDirty:       onDirty,
		debounceTime:  500 * time.Millisecond,
		langDetector:  langDetector,
		ignoreMatcher: ignoreMatcher,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// Start begins watching the workspace tree.
func (fw *FileWatcher) Start() error {
	err := filepath.WalkDir(fw.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // Continue walking
		}

		relPath, err := filepath.Rel(fw.root, path)
		if err != nil {
			return nil
		}

		if fw.ignoreMatcher != nil && fw.ignoreMatcher.MatchesPath(relPath) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if err := fw.watcher.Add(path); err != nil {
				log.Printf("⚠️  Failed to watch %s: %v", path, err)
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk workspace: %w", err)
	}

	fw.wg.Add(2)
	go fw.eventLoop()
	go fw.debounceLoop()

	return nil
}

// Stop stops the file watcher.
func (fw *FileWatcher) Stop() error {
	fw.cancel()
	fw.wg.Wait()
	return fw.watcher.Close()
}

// eventLoop processes filesystem events.
func (fw *FileWatcher) eventLoop() {
	defer fw.wg.Done()

	for {
		select {
		case <-fw.ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleEvent(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️  Watcher error: %v", err)
		}
	}
}

// handleEvent marks the workspace dirty for relevant events.
func (fw *FileWatcher) handleEvent(event fsnotify.Event) {
	relPath, err := filepath.Rel(fw.root, event.Name)
	if err != nil {
		return
	}

	if fw.ignoreMatcher != nil && fw.ignoreMatcher.MatchesPath(relPath) {
		return
	}

	// New directories need their own watch.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := fw.watcher.Add(event.Name); err != nil {
				log.Printf("⚠️  Failed to watch new directory %s: %v", event.Name, err)
			}
			fw.markDirty()
			return
		}
	}

	// Only files we would index matter, except deletions where the
	// extension may be all we have.
	if fw.langDetector != nil && fw.langDetector.Detect(event.Name) == "" && !event.Has(fsnotify.Remove) {
		return
	}

	if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		fw.markDirty()
	}
}

func (fw *FileWatcher) markDirty() {
	fw.mu.Lock()
	fw.dirty = true
	fw.mu.Unlock()
}

// debounceLoop fires the rebuild callback once per quiet period.
func (fw *FileWatcher) debounceLoop() {
	defer fw.wg.Done()

	ticker := time.NewTicker(fw.debounceTime)
	defer ticker.Stop()

	for {
		select {
		case <-fw.ctx.Done():
			return

		case <-ticker.C:
			fw.mu.Lock()
			wasDirty := fw.dirty
			fw.dirty = false
			fw.mu.Unlock()

			if wasDirty && fw.onDirty != nil {
				log.Printf("📝 File watcher detected changes, triggering rebuild")
				fw.onDirty()
			}
		}
	}
}
