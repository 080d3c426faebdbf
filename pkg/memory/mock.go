package memory

import (
	"context"
	"hash/fnv"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const mockDimension = 8

// MockEmbeddingService stands in for a real embedding backend in tests.
// Each component of the vector is an FNV-1a hash of the text salted with
// the component index: equal texts always embed identically, and an
// identical query scores a perfect cosine match against its own record.
type MockEmbeddingService struct{}

// NewMockEmbeddingService returns a fake embedder that needs no model server
func NewMockEmbeddingService() *MockEmbeddingService {
	return &MockEmbeddingService{}
}

// GenerateEmbedding derives a stable vector from the text
func (s *MockEmbeddingService) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	embedding := make([]float32, mockDimension)

	for i := range embedding {
		h := fnv.New32a()
		h.Write([]byte(text))
		h.Write([]byte{byte(i)})
		embedding[i] = float32(h.Sum32()) / float32(math.MaxUint32)
	}

	return embedding, nil
}

// GenerateEmbeddings derives a stable vector per text
func (s *MockEmbeddingService) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))

	for i, text := range texts {
		embedding, err := s.GenerateEmbedding(ctx, text)
		if err != nil {
			return nil, err
		}
		result[i] = embedding
	}

	return result, nil
}

type storedRecord struct {
	record    Record
	embedding []float32
	userID    string
}

// MockVectorStore implements a simple in-memory vector store for testing
type MockVectorStore struct {
	records map[string]storedRecord
	mu      sync.RWMutex
}

// NewMockVectorStore creates a new in-memory vector store for testing
func NewMockVectorStore() *MockVectorStore {
	return &MockVectorStore{
		records: make(map[string]storedRecord),
	}
}

// Upsert stores a record with its embedding
func (s *MockVectorStore) Upsert(ctx context.Context, record Record, embedding []float32) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	userID, _ := record.Metadata["user_id"].(string)

	s.records[record.ID] = storedRecord{
		record:    record,
		embedding: embedding,
		userID:    userID,
	}

	return record.ID, nil
}

// Search ranks the user's records by cosine similarity to the embedding
func (s *MockVectorStore) Search(ctx context.Context, embedding []float32, userID string, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []Record

	for _, stored := range s.records {
		if stored.userID != userID {
			continue
		}

		record := stored.record
		record.Score = cosine(embedding, stored.embedding)
		results = append(results, record)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// DeleteByUser removes every record belonging to a user
func (s *MockVectorStore) DeleteByUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, stored := range s.records {
		if stored.userID == userID {
			delete(s.records, id)
		}
	}

	return nil
}

// Ping checks connection to the store
func (s *MockVectorStore) Ping(ctx context.Context) error {
	return nil
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64

	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
