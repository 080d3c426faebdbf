package memory

import (
	"context"
	"fmt"
	"os"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

/*
OpenAIEmbeddingService generates embeddings using the OpenAI API. It is the
alternative to the Ollama backend for deployments without local models.
*/
type OpenAIEmbeddingService struct {
	client openai.Client
	model  string
}

// NewOpenAIEmbeddingService creates a new embedding service using OpenAI
func NewOpenAIEmbeddingService(apiKey, model string) *OpenAIEmbeddingService {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	if model == "" {
		model = "text-embedding-3-small"
	}

	return &OpenAIEmbeddingService{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// GenerateEmbedding creates an embedding for a single text
func (s *OpenAIEmbeddingService) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := s.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}

	return embeddings[0], nil
}

// GenerateEmbeddings creates embeddings for multiple texts in a batch
func (s *OpenAIEmbeddingService) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := s.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(s.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai embed failed: %w", err)
	}

	result := make([][]float32, len(texts))

	for _, item := range resp.Data {
		if int(item.Index) >= len(result) {
			continue
		}

		embedding := make([]float32, len(item.Embedding))
		for i, v := range item.Embedding {
			embedding[i] = float32(v)
		}

		result[int(item.Index)] = embedding
	}

	return result, nil
}
