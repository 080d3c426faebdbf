package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// QdrantStore implements the VectorStore interface against the Qdrant REST API
type QdrantStore struct {
	Endpoint   string
	Collection string
	HTTPClient *http.Client
}

// NewQdrantStore creates a new Qdrant vector store
func NewQdrantStore(endpoint, collection string) *QdrantStore {
	return &QdrantStore{
		Endpoint:   endpoint,
		Collection: collection,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// ensureCollection makes sure the collection exists, creating it if needed
func (s *QdrantStore) ensureCollection(ctx context.Context, dimension int) error {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		fmt.Sprintf("%s/collections/%s", s.Endpoint, s.Collection),
		nil,
	)
	if err != nil {
		return err
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// Collection exists
		return nil
	case http.StatusNotFound:
		// Create it below. Anything else is a server problem, not a
		// missing collection.
	default:
		return fmt.Errorf("failed to check collection, status: %d", resp.StatusCode)
	}

	createPayload := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}

	createBody, err := json.Marshal(createPayload)
	if err != nil {
		return err
	}

	createReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPut,
		fmt.Sprintf("%s/collections/%s", s.Endpoint, s.Collection),
		bytes.NewReader(createBody),
	)
	if err != nil {
		return err
	}
	createReq.Header.Set("Content-Type", "application/json")

	createResp, err := s.HTTPClient.Do(createReq)
	if err != nil {
		return err
	}
	createResp.Body.Close()

	if createResp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to create collection, status: %d", createResp.StatusCode)
	}

	return nil
}

// Upsert adds a record to the vector store
func (s *QdrantStore) Upsert(ctx context.Context, record Record, embedding []float32) (string, error) {
	if len(embedding) == 0 {
		return "", fmt.Errorf("empty embedding")
	}

	if err := s.ensureCollection(ctx, len(embedding)); err != nil {
		return "", fmt.Errorf("failed to ensure collection: %w", err)
	}

	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	payload := map[string]any{
		"content":    record.Content,
		"created_at": record.CreatedAt.Format(time.RFC3339),
	}

	if record.Tag != "" {
		payload["tag"] = record.Tag
	}

	for k, v := range record.Metadata {
		payload[k] = v
	}

	point := map[string]any{
		"id":      record.ID,
		"vector":  embedding,
		"payload": payload,
	}

	body, err := json.Marshal(map[string]any{
		"points": []map[string]any{point},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPut,
		fmt.Sprintf("%s/collections/%s/points", s.Endpoint, s.Collection),
		bytes.NewReader(body),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to store record, status: %d", resp.StatusCode)
	}

	return record.ID, nil
}

// Search finds records semantically similar to the embedding, restricted to
// the given user. The relevance order returned by Qdrant is preserved.
func (s *QdrantStore) Search(ctx context.Context, embedding []float32, userID string, limit int) ([]Record, error) {
	searchPayload := map[string]any{
		"vector":       embedding,
		"limit":        limit,
		"with_payload": true,
		"filter": map[string]any{
			"must": []map[string]any{
				{
					"key":   "user_id",
					"match": map[string]any{"value": userID},
				},
			},
		},
	}

	body, err := json.Marshal(searchPayload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		fmt.Sprintf("%s/collections/%s/points/search", s.Endpoint, s.Collection),
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	// A collection that was never written to has nothing to return.
	if resp.StatusCode == http.StatusNotFound {
		return []Record{}, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search failed, status: %d", resp.StatusCode)
	}

	var result struct {
		Result []struct {
			ID      string         `json:"id"`
			Score   float32        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	records := make([]Record, 0, len(result.Result))

	for _, item := range result.Result {
		record := Record{
			ID:    item.ID,
			Score: item.Score,
		}

		if payload := item.Payload; payload != nil {
			if content, ok := payload["content"].(string); ok {
				record.Content = content
			}

			if tag, ok := payload["tag"].(string); ok {
				record.Tag = tag
			}

			if createdStr, ok := payload["created_at"].(string); ok {
				if t, err := time.Parse(time.RFC3339, createdStr); err == nil {
					record.CreatedAt = t
				}
			}

			record.Metadata = payload
		}

		records = append(records, record)
	}

	return records, nil
}

// DeleteByUser removes every record belonging to a user
func (s *QdrantStore) DeleteByUser(ctx context.Context, userID string) error {
	payload := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{
					"key":   "user_id",
					"match": map[string]any{"value": userID},
				},
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		fmt.Sprintf("%s/collections/%s/points/delete", s.Endpoint, s.Collection),
		bytes.NewReader(body),
	)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("delete failed, status: %d", resp.StatusCode)
	}

	return nil
}

// Ping checks the connection to the Qdrant server
func (s *QdrantStore) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		fmt.Sprintf("%s/collections", s.Endpoint),
		nil,
	)
	if err != nil {
		return err
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping failed, status: %d", resp.StatusCode)
	}

	return nil
}
