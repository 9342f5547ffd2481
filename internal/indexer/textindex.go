package indexer

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

// textDoc is the indexed representation of one symbol or file.
type textDoc struct {
	DocID     string `json:"doc_id"`
	Path      string `json:"path"`
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	Signature string `json:"signature"`
	Text      string `json:"text"`
}

// textHit is one scored keyword match.
type textHit struct {
	DocID string
	Score float64
}

// textIndex is a per-snapshot in-memory bleve index. It is written only
// during a build and read-only after the snapshot is published.
type textIndex struct {
	index bleve.Index
}

// newTextIndex creates an empty in-memory index.
func newTextIndex() (*textIndex, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create text index: %w", err)
	}
	return &textIndex{index: index}, nil
}

// buildIndexMapping creates the index mapping for symbol/file documents.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()

	// Identity fields: stored, not analyzed.
	docIDField := bleve.NewTextFieldMapping()
	docIDField.Analyzer = keyword.Name
	docIDField.Store = true
	docIDField.Index = true
	docMapping.AddFieldMappingsAt("doc_id", docIDField)

	pathField := bleve.NewTextFieldMapping()
	pathField.Analyzer = keyword.Name
	pathField.Store = true
	pathField.Index = true
	docMapping.AddFieldMappingsAt("path", pathField)

	kindField := bleve.NewTextFieldMapping()
	kindField.Analyzer = keyword.Name
	kindField.Store = true
	kindField.Index = true
	docMapping.AddFieldMappingsAt("kind", kindField)

	// Searchable text fields: analyzed, not stored.
	nameField := bleve.NewTextFieldMapping()
	nameField.Analyzer = standard.Name
	nameField.Store = false
	nameField.Index = true
	docMapping.AddFieldMappingsAt("name", nameField)

	signatureField := bleve.NewTextFieldMapping()
	signatureField.Analyzer = standard.Name
	signatureField.Store = false
	signatureField.Index = true
	docMapping.AddFieldMappingsAt("signature", signatureField)

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name
	textField.Store = false
	textField.Index = true
	docMapping.AddFieldMappingsAt("text", textField)

	indexMapping.DefaultMapping = docMapping

	return indexMapping
}

// addBatch indexes a batch of documents.
func (t *textIndex) addBatch(docs []textDoc) error {
	batch := t.index.NewBatch()
	for i := range docs {
		doc := &docs[i]
		fields := map[string]interface{}{
			"doc_id":    doc.DocID,
			"path":      doc.Path,
			"kind":      doc.Kind,
			"name":      doc.Name,
			"signature": doc.Signature,
			"text":      doc.Text,
		}
		if err := batch.Index(doc.DocID, fields); err != nil {
			return fmt.Errorf("failed to add doc %s to batch: %w", doc.DocID, err)
		}
	}
	return t.index.Batch(batch)
}

// search runs a keyword match query, optionally restricted to kinds, and
// returns up to limit scored hits.
func (t *textIndex) search(query string, kinds []SymbolKind, limit int) ([]textHit, error) {
	matchQuery := bleve.NewMatchQuery(query)

	searchQuery := bleve.NewConjunctionQuery(matchQuery)
	if len(kinds) > 0 {
		disjunction := bleve.NewDisjunctionQuery()
		for _, kind := range kinds {
			termQuery := bleve.NewTermQuery(string(kind))
			termQuery.SetField("kind")
			disjunction.AddQuery(termQuery)
		}
		searchQuery.AddQuery(disjunction)
	}

	searchRequest := bleve.NewSearchRequest(searchQuery)
	searchRequest.Size = limit
	searchRequest.Fields = []string{"doc_id", "path", "kind"}

	searchResult, err := t.index.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}

	hits := make([]textHit, 0, len(searchResult.Hits))
	for _, hit := range searchResult.Hits {
		hits = append(hits, textHit{DocID: hit.ID, Score: hit.Score})
	}
	return hits, nil
}

// close releases the in-memory index.
func (t *textIndex) close() error {
	return t.index.Close()
}
