package indexer

import (
	"context"
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"parseHttpRequest", []string{"parse", "http", "request"}},
		{"parseHTTPRequest", []string{"parse", "httprequest"}},
		{"snake_case_name", []string{"snake", "case", "name"}},
		{"MixedCase and words", []string{"mixed", "case", "and", "words"}},
		{"", nil},
	}
	for _, tt := range tests {
		got := Tokenize(tt.input)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Tokenize(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestHashingEmbedder_Deterministic(t *testing.T) {
	e := NewHashingEmbedder(256)
	ctx := context.Background()

	a, _, err := e.Embed(ctx, "func Add(a, b int) int")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	b, _, err := e.Embed(ctx, "func Add(a, b int) int")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("Identical inputs embedded differently")
	}

	vec, err := DecodeVector(a)
	if err != nil {
		t.Fatalf("DecodeVector() error = %v", err)
	}
	if len(vec) != e.Dimension() {
		t.Errorf("Vector length = %d, want %d", len(vec), e.Dimension())
	}
	if sim := cosineSimilarity(vec, vec); sim < 0.999 {
		t.Errorf("Self-similarity = %f, want ~1", sim)
	}
}

func TestHashingEmbedder_SimilarityOrdering(t *testing.T) {
	e := NewHashingEmbedder(256)
	ctx := context.Background()

	embed := func(text string) []float32 {
		t.Helper()
		raw, _, err := e.Embed(ctx, text)
		if err != nil {
			t.Fatalf("Embed(%q) error = %v", text, err)
		}
		vec, err := DecodeVector(raw)
		if err != nil {
			t.Fatalf("DecodeVector() error = %v", err)
		}
		return vec
	}

	query := embed("add numbers")
	related := embed("func Add(a, b int) int")
	unrelated := embed("http server listener shutdown")

	if cosineSimilarity(query, related) <= cosineSimilarity(query, unrelated) {
		t.Error("Related text not ranked above unrelated text")
	}
}

func TestHashingEmbedder_EmbedBatch(t *testing.T) {
	e := NewHashingEmbedder(128)

	vectors, _, err := e.EmbedBatch(context.Background(), []string{"first text", "second text"})
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("Got %d vectors, want 2", len(vectors))
	}
	for i, raw := range vectors {
		vec, err := DecodeVector(raw)
		if err != nil {
			t.Fatalf("DecodeVector(%d) error = %v", i, err)
		}
		if len(vec) != 128 {
			t.Errorf("Vector %d length = %d, want 128", i, len(vec))
		}
	}
}
