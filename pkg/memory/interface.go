// Package memory provides the memory-retrieval client used by the filter:
// an embedding service plus a vector store composed into per-user search,
// add and clear operations.
package memory

import (
	"context"
	"time"
)

// Record is a single memory as stored in and returned by the vector store
type Record struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Tag       string         `json:"tag,omitempty"`
	Score     float32        `json:"score,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// EmbeddingService generates vector embeddings from text
type EmbeddingService interface {
	// Generate an embedding for a text
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)

	// Generate embeddings for multiple texts in a batch
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore defines operations for a vector database backend
type VectorStore interface {
	// Upsert a record with its embedding, returning the record ID
	Upsert(ctx context.Context, record Record, embedding []float32) (string, error)

	// Search for records similar to the embedding, scoped to a user.
	// Results keep the relevance order imposed by the store.
	Search(ctx context.Context, embedding []float32, userID string, limit int) ([]Record, error)

	// Delete every record belonging to a user
	DeleteByUser(ctx context.Context, userID string) error

	// Check connection to the store
	Ping(ctx context.Context) error
}
