package memory

import (
	"context"
	"reflect"
	"testing"

	"github.com/schmidt-silas/mem0-for-owui/pkg/errors"
)

func TestMockEmbeddingService(t *testing.T) {
	service := NewMockEmbeddingService()
	ctx := context.Background()

	t.Run("GenerateEmbedding", func(t *testing.T) {
		text := "Hello world"
		embedding, err := service.GenerateEmbedding(ctx, text)

		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}

		if len(embedding) != mockDimension {
			t.Fatalf("Expected embedding dimension of %d, got: %d", mockDimension, len(embedding))
		}

		// Same text should generate same embedding (deterministic)
		embedding2, _ := service.GenerateEmbedding(ctx, text)
		if !reflect.DeepEqual(embedding, embedding2) {
			t.Fatalf("Expected consistent embeddings for same text")
		}

		// Different text should generate different embedding
		differentEmbedding, _ := service.GenerateEmbedding(ctx, "Different text")
		if reflect.DeepEqual(embedding, differentEmbedding) {
			t.Fatalf("Expected different embeddings for different text")
		}
	})

	t.Run("GenerateEmbeddings", func(t *testing.T) {
		texts := []string{"Hello", "World"}
		embeddings, err := service.GenerateEmbeddings(ctx, texts)

		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}

		if len(embeddings) != len(texts) {
			t.Fatalf("Expected %d embeddings, got: %d", len(texts), len(embeddings))
		}
	})
}

func TestClientAddAndSearch(t *testing.T) {
	client := NewClient(NewMockEmbeddingService(), NewMockVectorStore())
	ctx := context.Background()

	id, err := client.Add(ctx, "User likes blue", "alice", map[string]any{"tag": "color"})
	if err != nil {
		t.Fatalf("Failed to add memory: %v", err)
	}
	if id == "" {
		t.Fatalf("Expected non-empty ID")
	}

	if _, err = client.Add(ctx, "User plays chess", "alice", nil); err != nil {
		t.Fatalf("Failed to add memory: %v", err)
	}

	// A different user's memory must not leak into alice's results.
	if _, err = client.Add(ctx, "User likes red", "bob", nil); err != nil {
		t.Fatalf("Failed to add memory: %v", err)
	}

	records, err := client.Search(ctx, "favorite color", "alice", 5)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("Expected 2 records for alice, got: %d", len(records))
	}

	for _, record := range records {
		if record.Content == "User likes red" {
			t.Fatalf("Search leaked another user's memory")
		}
	}

	// The tag metadata must survive the round trip.
	foundTag := false
	for _, record := range records {
		if record.Content == "User likes blue" && record.Tag == "color" {
			foundTag = true
		}
	}
	if !foundTag {
		t.Fatalf("Expected tagged record in results")
	}
}

func TestClientSearchLimit(t *testing.T) {
	client := NewClient(NewMockEmbeddingService(), NewMockVectorStore())
	ctx := context.Background()

	for _, content := range []string{"fact one", "fact two", "fact three", "fact four"} {
		if _, err := client.Add(ctx, content, "alice", nil); err != nil {
			t.Fatalf("Failed to add memory: %v", err)
		}
	}

	records, err := client.Search(ctx, "facts", "alice", 2)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("Expected limit of 2 to apply, got: %d", len(records))
	}
}

func TestClientAddRejectsEmptyContent(t *testing.T) {
	client := NewClient(NewMockEmbeddingService(), NewMockVectorStore())

	if _, err := client.Add(context.Background(), "", "alice", nil); err == nil {
		t.Fatalf("Expected error for empty content")
	}
}

func TestClientClear(t *testing.T) {
	client := NewClient(NewMockEmbeddingService(), NewMockVectorStore())
	ctx := context.Background()

	if _, err := client.Add(ctx, "User likes blue", "alice", nil); err != nil {
		t.Fatalf("Failed to add memory: %v", err)
	}
	if _, err := client.Add(ctx, "User likes red", "bob", nil); err != nil {
		t.Fatalf("Failed to add memory: %v", err)
	}

	if err := client.Clear(ctx, "alice"); err != nil {
		t.Fatalf("Failed to clear: %v", err)
	}

	records, err := client.Search(ctx, "anything", "alice", 5)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("Expected no records after clear, got: %d", len(records))
	}

	// Other users keep their memories.
	records, err = client.Search(ctx, "anything", "bob", 5)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected bob's record to survive, got: %d", len(records))
	}
}

func TestNewRejectsUnknownEmbedder(t *testing.T) {
	_, err := New(context.Background(), Config{
		Embedder: "does-not-exist",
	})
	if err == nil {
		t.Fatalf("Expected error for unknown embedder")
	}

	// A backend we cannot resolve is a dependency failure.
	if kind := errors.KindOf(err); kind != errors.KindDependency {
		t.Fatalf("Expected kind %q, got: %q", errors.KindDependency, kind)
	}
}
