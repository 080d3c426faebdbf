package memory

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
)

/*
OllamaEmbeddingService generates embeddings with a local Ollama instance.
This is the default backend: it keeps the whole memory pipeline on-host.
*/
type OllamaEmbeddingService struct {
	client *api.Client
	model  string
}

/*
NewOllamaEmbeddingService creates an embedding service backed by Ollama.
An empty host falls back to the OLLAMA_HOST environment resolution built
into the Ollama client.
*/
func NewOllamaEmbeddingService(host, model string) (*OllamaEmbeddingService, error) {
	if model == "" {
		model = "nomic-embed-text"
	}

	var (
		client *api.Client
		err    error
	)

	if host == "" {
		if client, err = api.ClientFromEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to resolve ollama client: %w", err)
		}
	} else {
		base, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
		}

		client = api.NewClient(base, &http.Client{Timeout: 30 * time.Second})
	}

	return &OllamaEmbeddingService{
		client: client,
		model:  model,
	}, nil
}

// GenerateEmbedding creates an embedding for a single text
func (s *OllamaEmbeddingService) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	resp, err := s.client.Embed(ctx, &api.EmbedRequest{
		Model: s.model,
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed failed: %w", err)
	}

	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}

	return resp.Embeddings[0], nil
}

// GenerateEmbeddings creates embeddings for multiple texts in a batch
func (s *OllamaEmbeddingService) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := s.client.Embed(ctx, &api.EmbedRequest{
		Model: s.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed failed: %w", err)
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}

	return resp.Embeddings, nil
}
