package indexer

import (
	"context"
	"fmt"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

// OpenAIEmbedder generates embeddings through the OpenAI API.
// Common models: "text-embedding-3-small" (1536 dims), "text-embedding-3-large" (3072 dims)
type OpenAIEmbedder struct {
	client    *openai.Client
	model     string
	dimension int
}

// NewOpenAIEmbedder creates an OpenAI embedder.
func NewOpenAIEmbedder(apiKey, baseURL, model string, dimension int) *OpenAIEmbedder {
	if model == "" {
		model = "text-embedding-3-small"
	}
	if dimension == 0 {
		dimension = 1536 // Default for text-embedding-3-small
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &OpenAIEmbedder{
		client:    openai.NewClientWithConfig(config),
		model:     model,
		dimension: dimension,
	}
}

// Embed generates an embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]byte, int, error) {
	vectors, dim, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, 0, err
	}
	if len(vectors) == 0 {
		return nil, 0, fmt.Errorf("no embeddings returned")
	}
	return vectors[0], dim, nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]byte, int, error) {
	if len(texts) == 0 {
		return [][]byte{}, e.dimension, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, 0, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	vectors := make([][]byte, len(resp.Data))
	for _, data := range resp.Data {
		if len(data.Embedding) > 0 {
			e.dimension = len(data.Embedding)
		}
		vectors[data.Index] = encodeVector(data.Embedding)
	}

	return vectors, e.dimension, nil
}

// Dimension returns the embedding dimension.
func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}
