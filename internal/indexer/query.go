package indexer

import (
	"context"
	"log"
	"sort"
	"strings"
)

// DefaultSearchLimit bounds results when the query does not specify one.
const DefaultSearchLimit = 10

// candidatePoolSize is how many hits each ranking phase contributes
// before fusion.
const candidatePoolSize = 100

// Query is one search request. Transient, never persisted.
type Query struct {
	Text  string       `json:"text"`
	Limit int          `json:"limit,omitempty"`
	Kinds []SymbolKind `json:"kinds,omitempty"`
}

// SearchResult is one ranked match. Symbol is nil for file-level matches.
type SearchResult struct {
	Path    string  `json:"path"`
	Symbol  *Symbol `json:"symbol,omitempty"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet,omitempty"`
	Reason  string  `json:"reason"` // rrf(keyword+vec), keyword_only, ...
}

// SymbolFilter narrows a symbol listing.
type SymbolFilter struct {
	Kinds      []SymbolKind `json:"kinds,omitempty"`
	PathPrefix string       `json:"path_prefix,omitempty"`
}

// QueryEngine executes read-only queries against one immutable snapshot
// reference; it needs no locking beyond holding that reference.
type QueryEngine struct{}

// NewQueryEngine creates a query engine.
func NewQueryEngine() *QueryEngine {
	return &QueryEngine{}
}

// Search finds the top matches for a query using hybrid ranking:
// keyword (BM25) and embedding-similarity candidates fused with
// Reciprocal Rank Fusion. Result order is deterministic for an
// identical query against an identical snapshot: score descending,
// then file path, then symbol position.
func (q *QueryEngine) Search(ctx context.Context, snap *Snapshot, query Query) ([]SearchResult, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if strings.TrimSpace(query.Text) == "" {
		return []SearchResult{}, nil
	}

	// Phase 1: keyword matching.
	keywordHits, err := snap.text.search(query.Text, query.Kinds, candidatePoolSize)
	if err != nil {
		log.Printf("⚠️  Keyword search failed: %v", err)
		keywordHits = nil
	}
	// Stable rank order for equal scores.
	sort.SliceStable(keywordHits, func(i, j int) bool {
		if keywordHits[i].Score != keywordHits[j].Score {
			return keywordHits[i].Score > keywordHits[j].Score
		}
		return keywordHits[i].DocID < keywordHits[j].DocID
	})

	// Phase 2: embedding similarity.
	vectorHits := q.searchVectors(ctx, snap, query)

	// Phase 3: Reciprocal Rank Fusion.
	const kOffset = 60.0
	scores := make(map[string]float64)
	for i, hit := range keywordHits {
		scores[hit.DocID] += 1.0 / (kOffset + float64(i+1))
	}
	for i, hit := range vectorHits {
		scores[hit.DocID] += 1.0 / (kOffset + float64(i+1))
	}

	reason := "rrf(keyword+vec)"
	if len(vectorHits) == 0 {
		reason = "keyword_only"
	} else if len(keywordHits) == 0 {
		reason = "vec_only"
	}

	// Phase 4: resolve documents and order deterministically.
	results := make([]SearchResult, 0, len(scores))
	for docID, score := range scores {
		ref, ok := snap.docs[docID]
		if !ok {
			return nil, internalf("query.search", "hit for unknown doc %s", docID)
		}
		file := &snap.files[ref.fileIdx]

		result := SearchResult{
			Path:   file.Path,
			Score:  score,
			Reason: reason,
		}
		if ref.symbolIdx >= 0 {
			sym := &file.Symbols[ref.symbolIdx]
			result.Symbol = sym
			result.Snippet = sym.Signature
		} else {
			result.Snippet = file.Path
		}
		results = append(results, result)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Path != results[j].Path {
			return results[i].Path < results[j].Path
		}
		return symbolStart(&results[i]) < symbolStart(&results[j])
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// searchVectors ranks documents by cosine similarity to the embedded
// query, honoring the kind filter.
func (q *QueryEngine) searchVectors(ctx context.Context, snap *Snapshot, query Query) []textHit {
	if snap.embedder == nil || len(snap.vectors) == 0 {
		return nil
	}

	queryVec, _, err := snap.embedder.Embed(ctx, query.Text)
	if err != nil {
		log.Printf("⚠️  Failed to embed query: %v", err)
		return nil
	}
	decoded, err := DecodeVector(queryVec)
	if err != nil {
		log.Printf("⚠️  Bad query vector: %v", err)
		return nil
	}

	hits := make([]textHit, 0, len(snap.vectors))
	for docID, vec := range snap.vectors {
		if !q.kindMatches(snap, docID, query.Kinds) {
			continue
		}
		sim := cosineSimilarity(decoded, vec)
		if sim <= 0 {
			continue
		}
		hits = append(hits, textHit{DocID: docID, Score: sim})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocID < hits[j].DocID
	})
	if len(hits) > candidatePoolSize {
		hits = hits[:candidatePoolSize]
	}
	return hits
}

// kindMatches applies the kind filter to a document. File-level
// documents only match when no filter is set.
func (q *QueryEngine) kindMatches(snap *Snapshot, docID string, kinds []SymbolKind) bool {
	if len(kinds) == 0 {
		return true
	}
	ref, ok := snap.docs[docID]
	if !ok || ref.symbolIdx < 0 {
		return false
	}
	kind := snap.files[ref.fileIdx].Symbols[ref.symbolIdx].Kind
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// ListSymbols returns symbols in file order then position order,
// optionally narrowed by kind or path prefix.
func (q *QueryEngine) ListSymbols(snap *Snapshot, filter SymbolFilter) []Symbol {
	var out []Symbol
	for i := range snap.files {
		file := &snap.files[i]
		if filter.PathPrefix != "" && !strings.HasPrefix(file.Path, filter.PathPrefix) {
			continue
		}
		for j := range file.Symbols {
			sym := file.Symbols[j]
			if len(filter.Kinds) > 0 && !containsKind(filter.Kinds, sym.Kind) {
				continue
			}
			out = append(out, sym)
		}
	}
	return out
}

// ListFiles returns all files ordered by path.
func (q *QueryEngine) ListFiles(snap *Snapshot) []SourceFile {
	return snap.Files()
}

func containsKind(kinds []SymbolKind, k SymbolKind) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}

func symbolStart(r *SearchResult) int {
	if r.Symbol == nil {
		return 0
	}
	return r.Symbol.StartLine
}
