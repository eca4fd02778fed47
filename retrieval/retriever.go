// Package retrieval turns a free-text query into a ranked sequence of
// legal passages: embed the query, then nearest-neighbor search the
// passage store. An empty result signals insufficient grounding
// material, which is a defined outcome and not a fault.
package retrieval

import (
	"context"
	"fmt"

	"legalrag-backend/gateway"
	"legalrag-backend/models"
	"legalrag-backend/repository"
)

// Embedder produces a fixed-dimension vector for UTF-8 text. It must
// be configured identically to the embedder that built the store.
type Embedder interface {
	Embed(ctx context.Context, text, taskType string) ([]float64, error)
}

// Searcher returns the k nearest stored passages to an embedding,
// ordered by ascending distance.
type Searcher interface {
	Search(ctx context.Context, embedding []float64, k int, filters repository.SearchFilters) ([]models.RetrievedPassage, error)
}

// Retriever is the retrieval gateway. Safe for concurrent use; it
// holds no per-request state.
type Retriever struct {
	embedder Embedder
	store    Searcher
}

// NewRetriever wires an embedder and a passage store.
func NewRetriever(embedder Embedder, store Searcher) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// Retrieve returns up to k passages relevant to query, best match
// first. Filters with nil fields are omitted before querying.
func (r *Retriever) Retrieve(
	ctx context.Context,
	query string,
	k int,
	filters repository.SearchFilters,
) ([]models.RetrievedPassage, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be at least 1, got %d", k)
	}

	embedding, err := r.embedder.Embed(ctx, query, gateway.TaskTypeQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	passages, err := r.store.Search(ctx, embedding, k, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to search passages: %w", err)
	}
	return passages, nil
}
