package indexer

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Embedder generates vector embeddings for text. This abstracts the
// scoring model (hashing, OpenAI, local model, etc.) away from the
// indexing and concurrency logic.
type Embedder interface {
	// Embed generates a vector embedding for a single text.
	// Returns the embedding vector as a byte slice.
	Embed(ctx context.Context, text string) ([]byte, int, error) // vector, dimension, error

	// EmbedBatch generates embeddings for multiple texts efficiently.
	// Returns embeddings in the same order as input texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]byte, int, error)

	// Dimension returns the dimension of the embedding vectors.
	Dimension() int
}

// HashingEmbedder is a deterministic local embedder: a normalized
// bag-of-words vector over hashed tokens. Identical text always yields
// an identical vector, which keeps builds reproducible without any
// external model.
type HashingEmbedder struct {
	dimension int
}

// NewHashingEmbedder creates a hashing embedder.
func NewHashingEmbedder(dimension int) *HashingEmbedder {
	if dimension <= 0 {
		dimension = 256
	}
	return &HashingEmbedder{dimension: dimension}
}

// Embed generates a hashed bag-of-words vector.
func (e *HashingEmbedder) Embed(ctx context.Context, text string) ([]byte, int, error) {
	vector := make([]float32, e.dimension)
	for _, tok := range Tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vector[int(h.Sum32())%e.dimension]++
	}
	normalize(vector)
	return encodeVector(vector), e.dimension, nil
}

// EmbedBatch generates vectors for all inputs.
func (e *HashingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]byte, int, error) {
	vectors := make([][]byte, len(texts))
	for i, text := range texts {
		v, _, err := e.Embed(ctx, text)
		if err != nil {
			return nil, 0, err
		}
		vectors[i] = v
	}
	return vectors, e.dimension, nil
}

// Dimension returns the embedding dimension.
func (e *HashingEmbedder) Dimension() int {
	return e.dimension
}

// Tokenize lowercases and splits text on non-alphanumeric boundaries,
// additionally splitting camelCase identifiers.
func Tokenize(text string) []string {
	var tokens []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, strings.ToLower(cur.String()))
			cur.Reset()
		}
	}

	var prev rune
	for _, r := range text {
		switch {
		case unicode.IsLetter(r):
			if unicode.IsUpper(r) && unicode.IsLower(prev) {
				flush()
			}
			cur.WriteRune(r)
		case unicode.IsDigit(r):
			cur.WriteRune(r)
		default:
			flush()
		}
		prev = r
	}
	flush()

	return tokens
}

// normalize scales a vector to unit length in place.
func normalize(vector []float32) {
	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vector {
		vector[i] /= norm
	}
}

// cosineSimilarity computes the cosine similarity of two vectors.
// Returns 0 for mismatched or empty vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// encodeVector encodes a float32 vector to bytes.
// Uses little-endian encoding for compatibility.
func encodeVector(vector []float32) []byte {
	buf := new(bytes.Buffer)
	err := binary.Write(buf, binary.LittleEndian, vector)
	if err != nil {
		// This should never happen with float32 slices
		panic(fmt.Sprintf("failed to encode vector: %v", err))
	}
	return buf.Bytes()
}

// DecodeVector decodes a byte slice back to a float32 vector.
func DecodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid vector data length: %d", len(data))
	}

	numFloats := len(data) / 4
	vector := make([]float32, numFloats)

	buf := bytes.NewReader(data)
	err := binary.Read(buf, binary.LittleEndian, &vector)
	if err != nil {
		return nil, fmt.Errorf("failed to decode vector: %w", err)
	}

	return vector, nil
}
