package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legalrag-backend/gateway"
	"legalrag-backend/models"
	"legalrag-backend/repository"
)

type mockEmbedder struct {
	embedding []float64
	err       error
	lastText  string
	lastTask  string
}

func (m *mockEmbedder) Embed(ctx context.Context, text, taskType string) ([]float64, error) {
	m.lastText = text
	m.lastTask = taskType
	return m.embedding, m.err
}

type mockSearcher struct {
	passages    []models.RetrievedPassage
	err         error
	lastK       int
	lastFilters repository.SearchFilters
}

func (m *mockSearcher) Search(ctx context.Context, embedding []float64, k int, filters repository.SearchFilters) ([]models.RetrievedPassage, error) {
	m.lastK = k
	m.lastFilters = filters
	return m.passages, m.err
}

func TestRetrieve_ReturnsRankedPassages(t *testing.T) {
	embedder := &mockEmbedder{embedding: []float64{0.1, 0.2}}
	store := &mockSearcher{passages: []models.RetrievedPassage{
		{ID: "a", Distance: 0.1},
		{ID: "b", Distance: 0.3},
	}}
	r := NewRetriever(embedder, store)

	passages, err := r.Retrieve(context.Background(), "free consent", 6, repository.SearchFilters{})

	require.NoError(t, err)
	require.Len(t, passages, 2)
	assert.Equal(t, "a", passages[0].ID)
	assert.Equal(t, gateway.TaskTypeQuery, embedder.lastTask)
	assert.Equal(t, "free consent", embedder.lastText)
	assert.Equal(t, 6, store.lastK)
}

func TestRetrieve_EmptyResultIsNotAnError(t *testing.T) {
	r := NewRetriever(&mockEmbedder{embedding: []float64{0.1}}, &mockSearcher{})

	passages, err := r.Retrieve(context.Background(), "obscure query", 6, repository.SearchFilters{})

	require.NoError(t, err)
	assert.Empty(t, passages)
}

func TestRetrieve_PropagatesEmbedderFailure(t *testing.T) {
	r := NewRetriever(&mockEmbedder{err: errors.New("embedding API error: 503")}, &mockSearcher{})

	_, err := r.Retrieve(context.Background(), "q", 6, repository.SearchFilters{})

	assert.ErrorContains(t, err, "failed to embed query")
}

func TestRetrieve_RejectsInvalidK(t *testing.T) {
	r := NewRetriever(&mockEmbedder{embedding: []float64{0.1}}, &mockSearcher{})

	_, err := r.Retrieve(context.Background(), "q", 0, repository.SearchFilters{})

	assert.Error(t, err)
}

func TestRetrieve_PassesFiltersThrough(t *testing.T) {
	source := "contract_act.pdf"
	store := &mockSearcher{}
	r := NewRetriever(&mockEmbedder{embedding: []float64{0.1}}, store)

	_, err := r.Retrieve(context.Background(), "q", 3, repository.SearchFilters{SourceFile: &source})

	require.NoError(t, err)
	require.NotNil(t, store.lastFilters.SourceFile)
	assert.Equal(t, source, *store.lastFilters.SourceFile)
	assert.Nil(t, store.lastFilters.CaseName)
}
