package models

import (
	"time"

	"github.com/google/uuid"
)

// PassageSummary is the metadata-only view of a retrieved passage that
// goes into the audit record. Passage text is deliberately excluded;
// the prompt field already carries a bounded copy of it.
type PassageSummary struct {
	ID         string  `json:"id"`
	SourceFile *string `json:"source_file,omitempty"`
	PageNumber *int    `json:"page_number,omitempty"`
	ChunkIndex *int    `json:"chunk_index,omitempty"`
	CaseName   *string `json:"case_name,omitempty"`
	Distance   float64 `json:"distance"`
}

// AuditLogEntry is the append-only record written for every concluded
// request. Unbounded text fields are truncated before the entry is
// built; the verification result and retrieved count are never omitted
// since they are the provenance-integrity signal the system exists to
// produce. Entries are written once and never mutated.
type AuditLogEntry struct {
	Timestamp          time.Time          `json:"timestamp"`
	UserID             *uuid.UUID         `json:"user_id,omitempty"`
	Variant            TaskVariant        `json:"mode"`
	UserInput          string             `json:"user_input"`
	RetrievedCount     int                `json:"retrieved_count"`
	RetrievedMetadata  []PassageSummary   `json:"retrieved_metadata"`
	Prompt             string             `json:"prompt"`
	Temperature        float64            `json:"temperature"`
	Response           string             `json:"llm_response"`
	Verification       VerificationResult `json:"verification"`
	Retried            bool               `json:"retried"`
	FullResponseLength int                `json:"full_response_length"`
}

// Summarize builds the metadata-only summaries for an audit entry,
// preserving retrieval-rank order.
func Summarize(retrieved []RetrievedPassage) []PassageSummary {
	summaries := make([]PassageSummary, 0, len(retrieved))
	for _, p := range retrieved {
		summaries = append(summaries, PassageSummary{
			ID:         p.ID,
			SourceFile: p.Metadata.SourceFile,
			PageNumber: p.Metadata.PageNumber,
			ChunkIndex: p.Metadata.ChunkIndex,
			CaseName:   p.Metadata.CaseName,
			Distance:   p.Distance,
		})
	}
	return summaries
}
