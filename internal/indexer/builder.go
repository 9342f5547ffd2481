package indexer

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/docker/go-units"
)

// Builder assembles immutable snapshots from scanned files. A builder is
// stateless and safe to reuse across builds; determinism comes from
// processing files in path order with a deterministic embedder.
type Builder struct {
	embedder Embedder
}

// NewBuilder creates a builder using the given embedder. A nil embedder
// falls back to the deterministic hashing embedder.
func NewBuilder(embedder Embedder) *Builder {
	if embedder == nil {
		embedder = NewHashingEmbedder(256)
	}
	return &Builder{embedder: embedder}
}

// Build indexes the scanned files into a new snapshot with the given
// version. Cancellation is checked at per-file boundaries; a canceled
// build returns a *BuildError with Canceled set and publishes nothing.
func (b *Builder) Build(ctx context.Context, workspaceID string, version uint64, startedAt time.Time, files []SourceFile, warningCount int) (*Snapshot, error) {
	// Work on a path-sorted copy so the snapshot layout does not depend
	// on scan scheduling.
	sorted := make([]SourceFile, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	text, err := newTextIndex()
	if err != nil {
		return nil, &BuildError{Err: err}
	}

	snap := &Snapshot{
		workspaceID: workspaceID,
		version:     version,
		files:       sorted,
		filesByPath: make(map[string]int, len(sorted)),
		text:        text,
		vectors:     make(map[string][]float32),
		docs:        make(map[string]docRef),
		embedder:    b.embedder,
	}

	symbolCount := 0
	var totalBytes int64

	for i := range sorted {
		// Per-file cancellation checkpoint.
		if ctxErr := ctx.Err(); ctxErr != nil {
			text.close()
			return nil, &BuildError{Canceled: true, Err: ctxErr}
		}

		file := &sorted[i]
		snap.filesByPath[file.Path] = i
		symbolCount += len(file.Symbols)
		totalBytes += file.SizeBytes

		docs := buildDocs(file, i, snap.docs)
		if err := text.addBatch(docs); err != nil {
			text.close()
			return nil, &BuildError{Err: fmt.Errorf("failed to index %s: %w", file.Path, err)}
		}

		texts := make([]string, len(docs))
		for j, doc := range docs {
			texts[j] = doc.Text
		}
		vectors, _, err := b.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			// Keyword search still works without vectors for this file.
			log.Printf("⚠️  Failed to embed %s: %v (continuing without vectors)", file.Path, err)
			continue
		}
		for j := range docs {
			vec, err := DecodeVector(vectors[j])
			if err != nil {
				log.Printf("⚠️  Bad vector for %s: %v", docs[j].DocID, err)
				continue
			}
			snap.vectors[docs[j].DocID] = vec
		}
	}

	snap.meta = BuildMeta{
		StartedAt:    startedAt,
		Duration:     time.Since(startedAt),
		FileCount:    len(sorted),
		SymbolCount:  symbolCount,
		TotalBytes:   totalBytes,
		WarningCount: warningCount,
	}
	snap.refs.Store(1)

	log.Printf("📚 Built snapshot v%d: %d files, %d symbols, %s in %v",
		version, len(sorted), symbolCount, units.HumanSize(float64(totalBytes)), snap.meta.Duration.Round(time.Millisecond))

	return snap, nil
}

// buildDocs creates the index documents for one file: one per symbol
// plus one file-level document, registering each in the docs table.
func buildDocs(file *SourceFile, fileIdx int, docTable map[string]docRef) []textDoc {
	docs := make([]textDoc, 0, len(file.Symbols)+1)

	for j := range file.Symbols {
		sym := &file.Symbols[j]
		docID := fmt.Sprintf("s:%s:%d:%d", file.Path, sym.StartLine, j)
		docs = append(docs, textDoc{
			DocID:     docID,
			Path:      file.Path,
			Kind:      string(sym.Kind),
			Name:      sym.Name,
			Signature: sym.Signature,
			Text:      sym.Name + " " + sym.Signature,
		})
		docTable[docID] = docRef{fileIdx: fileIdx, symbolIdx: j}
	}

	names := make([]string, 0, len(file.Symbols))
	for j := range file.Symbols {
		names = append(names, file.Symbols[j].Name)
	}
	fileDocID := "f:" + file.Path
	docs = append(docs, textDoc{
		DocID: fileDocID,
		Path:  file.Path,
		Kind:  "file",
		Name:  file.Path,
		Text:  file.Path + " " + string(file.Lang) + " " + strings.Join(names, " "),
	})
	docTable[fileDocID] = docRef{fileIdx: fileIdx, symbolIdx: -1}

	return docs
}
