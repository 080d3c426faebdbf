package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/schmidt-silas/mem0-for-owui/pkg/errors"
)

// Config holds the connection descriptors resolved during client construction
type Config struct {
	QdrantHost string
	QdrantPort int
	Collection string

	// Embedder selects the embedding backend: "ollama" (default), "openai"
	// or "mock" for offline runs.
	Embedder       string
	EmbeddingModel string
	OllamaHost     string
	OpenAIAPIKey   string

	// Timeout bounds the construction-time connectivity check.
	Timeout time.Duration
}

/*
Client composes an embedding service and a vector store into the operations
the filter needs: search memories for a user, add a new one, clear them all.
*/
type Client struct {
	embedder EmbeddingService
	store    VectorStore
}

// NewClient builds a client from explicit backends
func NewClient(embedder EmbeddingService, store VectorStore) *Client {
	return &Client{
		embedder: embedder,
		store:    store,
	}
}

/*
New resolves the configured backends and verifies the vector store is
reachable. Construction failures are returned to the caller, which treats
them as sticky: the client is built at most once per process.
*/
func New(ctx context.Context, cfg Config) (*Client, error) {
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	endpoint := cfg.QdrantHost
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "http://" + endpoint
	}
	if cfg.QdrantPort != 0 {
		endpoint = fmt.Sprintf("%s:%d", endpoint, cfg.QdrantPort)
	}

	collection := cfg.Collection
	if collection == "" {
		collection = "owui_memories"
	}

	store := NewQdrantStore(endpoint, collection)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := store.Ping(pingCtx); err != nil {
		return nil, fmt.Errorf("qdrant unreachable at %s: %w", endpoint, err)
	}

	log.Info("memory client ready", "endpoint", endpoint, "collection", collection, "embedder", cfg.Embedder)

	return NewClient(embedder, store), nil
}

func newEmbedder(cfg Config) (EmbeddingService, error) {
	switch cfg.Embedder {
	case "", "ollama":
		return NewOllamaEmbeddingService(cfg.OllamaHost, cfg.EmbeddingModel)
	case "openai":
		return NewOpenAIEmbeddingService(cfg.OpenAIAPIKey, cfg.EmbeddingModel), nil
	case "mock":
		return NewMockEmbeddingService(), nil
	default:
		return nil, errors.New(errors.KindDependency, "memory.newEmbedder",
			fmt.Errorf("unknown embedder %q", cfg.Embedder))
	}
}

// Search embeds the query and returns the user's most relevant memories,
// in the order the store ranked them.
func (c *Client) Search(ctx context.Context, query, userID string, limit int) ([]Record, error) {
	embedding, err := c.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	return c.store.Search(ctx, embedding, userID, limit)
}

// Add stores a new memory for the user. The metadata map is merged into the
// record payload; a "tag" entry becomes the record tag.
func (c *Client) Add(ctx context.Context, content, userID string, metadata map[string]any) (string, error) {
	if content == "" {
		return "", fmt.Errorf("content cannot be empty")
	}

	embedding, err := c.embedder.GenerateEmbedding(ctx, content)
	if err != nil {
		return "", fmt.Errorf("failed to generate embedding: %w", err)
	}

	record := Record{
		Content:  content,
		Metadata: map[string]any{"user_id": userID},
	}

	for k, v := range metadata {
		if k == "tag" {
			if tag, ok := v.(string); ok {
				record.Tag = tag
				continue
			}
		}
		record.Metadata[k] = v
	}

	return c.store.Upsert(ctx, record, embedding)
}

// Clear deletes every memory belonging to the user
func (c *Client) Clear(ctx context.Context, userID string) error {
	return c.store.DeleteByUser(ctx, userID)
}
