package conversation

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"github.com/urbanstyle/supportbot/pkg/logging"
)

// Retriever returns context snippets relevant to a query, best match first.
type Retriever interface {
	Search(ctx context.Context, query string) ([]ContextSnippet, error)
}

type embeddingClient interface {
	Embed(ctx context.Context, modelID string, texts []string) ([][]float32, error)
}

// MemoryVectorIndex keeps FAQ embeddings in memory and supports simple
// cosine retrieval. It is loaded once at startup from the FAQ source and
// treated as read-only afterwards.
type MemoryVectorIndex struct {
	client         embeddingClient
	model          string
	topK           int
	scoreThreshold float64
	logger         *logging.Logger

	mu        sync.RWMutex
	documents []vectorDocument
}

type vectorDocument struct {
	content   string
	embedding []float32
}

// NewMemoryVectorIndex creates an empty in-memory index.
func NewMemoryVectorIndex(client embeddingClient, model string, topK int, scoreThreshold float64, logger *logging.Logger) *MemoryVectorIndex {
	if client == nil {
		panic("conversation: embedding client cannot be nil")
	}
	if model == "" {
		panic("conversation: embedding model cannot be empty")
	}
	if topK <= 0 {
		topK = 3
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &MemoryVectorIndex{
		client:         client,
		model:          model,
		topK:           topK,
		scoreThreshold: scoreThreshold,
		logger:         logger,
	}
}

// AddDocuments embeds and stores the provided contents.
func (s *MemoryVectorIndex) AddDocuments(ctx context.Context, contents []string) error {
	if len(contents) == 0 {
		return nil
	}

	embeddings, err := s.client.Embed(ctx, s.model, contents)
	if err != nil {
		return err
	}
	if len(embeddings) != len(contents) {
		return errors.New("conversation: embedding response size mismatch")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, embedding := range embeddings {
		s.documents = append(s.documents, vectorDocument{
			content:   contents[i],
			embedding: embedding,
		})
	}
	return nil
}

// Len reports how many documents are indexed.
func (s *MemoryVectorIndex) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents)
}

// Search embeds the query and returns the topK documents above the score
// threshold, ordered by descending cosine similarity.
func (s *MemoryVectorIndex) Search(ctx context.Context, query string) ([]ContextSnippet, error) {
	embeddings, err := s.client.Embed(ctx, s.model, []string{query})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, nil
	}
	queryVec := embeddings[0]

	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.documents) == 0 {
		return nil, nil
	}

	results := make([]ContextSnippet, 0, len(s.documents))
	for _, doc := range s.documents {
		score := cosineSimilarity(queryVec, doc.embedding)
		if score < s.scoreThreshold {
			continue
		}
		results = append(results, ContextSnippet{
			Source: "kb",
			Text:   doc.content,
			Score:  score,
			Scored: true,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > s.topK {
		results = results[:s.topK]
	}
	return results, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot float64
	var normA float64
	var normB float64
	for i := range a {
		dot += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
