package repository

import (
	"context"
	"fmt"
	"strings"

	"legalrag-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PassageRepository handles database operations for legal passages
// stored with pgvector embeddings.
type PassageRepository struct {
	db        *pgxpool.Pool
	dimension int
}

// NewPassageRepository creates a new passage repository. dimension is
// the vector column width of legal_passages.
func NewPassageRepository(db *pgxpool.Pool, dimension int) *PassageRepository {
	return &PassageRepository{db: db, dimension: dimension}
}

// SearchFilters are optional equality filters on passage provenance.
// A nil field is omitted from the query entirely; it never matches
// NULL columns.
type SearchFilters struct {
	SourceFile *string
	CaseName   *string
}

// formatVector formats an embedding vector as a pgvector literal.
func formatVector(embedding []float64) string {
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = fmt.Sprintf("%.6f", v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// Search returns the k nearest passages to the query embedding,
// ordered by ascending cosine distance. An empty result is a valid
// outcome, not an error.
func (r *PassageRepository) Search(
	ctx context.Context,
	embedding []float64,
	k int,
	filters SearchFilters,
) ([]models.RetrievedPassage, error) {
	if len(embedding) != r.dimension {
		return nil, fmt.Errorf("embedding must be %d dimensions, got %d", r.dimension, len(embedding))
	}
	if k < 1 {
		return nil, fmt.Errorf("k must be at least 1, got %d", k)
	}

	args := []interface{}{formatVector(embedding)}
	var conditions []string
	if filters.SourceFile != nil {
		args = append(args, *filters.SourceFile)
		conditions = append(conditions, fmt.Sprintf("source_file = $%d", len(args)))
	}
	if filters.CaseName != nil {
		args = append(args, *filters.CaseName)
		conditions = append(conditions, fmt.Sprintf("case_name = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, k)

	query := fmt.Sprintf(`
		SELECT
			id,
			passage_text,
			source_file,
			page_number,
			case_name,
			citation,
			chunk_index,
			embedding <=> $1::vector AS distance
		FROM legal_passages
		%s
		ORDER BY
			embedding <=> $1::vector
		LIMIT $%d`, where, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query legal passages: %w", err)
	}
	defer rows.Close()

	var passages []models.RetrievedPassage
	for rows.Next() {
		var p models.RetrievedPassage
		var id uuid.UUID
		err := rows.Scan(
			&id,
			&p.Text,
			&p.Metadata.SourceFile,
			&p.Metadata.PageNumber,
			&p.Metadata.CaseName,
			&p.Metadata.Citation,
			&p.Metadata.ChunkIndex,
			&p.Distance,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan legal passage: %w", err)
		}
		p.ID = id.String()
		passages = append(passages, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating legal passages: %w", err)
	}

	return passages, nil
}

// IndexedPassage is one chunk ready for insertion by the offline
// ingestion tool.
type IndexedPassage struct {
	ID         uuid.UUID
	Text       string
	SourceFile string
	PageNumber *int
	CaseName   *string
	Citation   *string
	ChunkIndex int
	Embedding  []float64
}

// InsertBatch stores a batch of indexed passages.
func (r *PassageRepository) InsertBatch(ctx context.Context, passages []IndexedPassage) error {
	batch := &pgx.Batch{}
	for _, p := range passages {
		if len(p.Embedding) != r.dimension {
			return fmt.Errorf("passage %s: embedding must be %d dimensions, got %d", p.ID, r.dimension, len(p.Embedding))
		}
		batch.Queue(`
			INSERT INTO legal_passages (
				id, passage_text, source_file, page_number, case_name, citation, chunk_index, embedding
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::vector)`,
			p.ID, p.Text, p.SourceFile, p.PageNumber, p.CaseName, p.Citation, p.ChunkIndex, formatVector(p.Embedding),
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range passages {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert legal passage: %w", err)
		}
	}
	return nil
}

// Count returns the number of stored passages.
func (r *PassageRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM legal_passages").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count legal passages: %w", err)
	}
	return count, nil
}
