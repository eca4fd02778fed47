package models

// PassageMetadata carries provenance for a retrieved passage. Any subset
// of fields may be absent depending on what ingestion extracted; absent
// fields are nil rather than zero-valued so they can be omitted from
// filters and prompts.
type PassageMetadata struct {
	SourceFile *string `json:"source_file,omitempty"`
	PageNumber *int    `json:"page_number,omitempty"`
	CaseName   *string `json:"case_name,omitempty"`
	Citation   *string `json:"citation,omitempty"`
	ChunkIndex *int    `json:"chunk_index,omitempty"`
}

// RetrievedPassage is one nearest-neighbor hit from the vector store.
// Passages are immutable once produced and ordered by ascending distance;
// the position in the retrieved sequence determines the passage's 1-based
// citation number.
type RetrievedPassage struct {
	ID       string          `json:"id"`
	Text     string          `json:"text"`
	Metadata PassageMetadata `json:"metadata"`
	Distance float64         `json:"distance"`
}

// TaskVariant identifies which of the three assistant modes a request
// targets. Only the declared constants are valid; handlers reject
// anything else before the pipeline runs.
type TaskVariant string

const (
	TaskResearch  TaskVariant = "research"
	TaskJudgment  TaskVariant = "judgment"
	TaskSummarize TaskVariant = "summarize"
)

// Valid reports whether v is one of the declared task variants.
func (v TaskVariant) Valid() bool {
	switch v {
	case TaskResearch, TaskJudgment, TaskSummarize:
		return true
	}
	return false
}

// JudgmentMode selects the disclaimer header for judgment analysis.
type JudgmentMode string

const (
	ModeHypothetical JudgmentMode = "hypothetical"
	ModeReference    JudgmentMode = "reference"
)

// Valid reports whether m is a declared judgment sub-mode.
func (m JudgmentMode) Valid() bool {
	return m == ModeHypothetical || m == ModeReference
}

// Disclaimer headers that judgment-variant responses must begin with,
// and the fixed research disclaimer returned to callers.
const (
	HypotheticalDisclaimer = "HYPOTHETICAL ANALYSIS — NOT LEGAL ADVICE"
	ReferenceDisclaimer    = "REFERENCE ANALYSIS — NOT LEGAL ADVICE"
	ResearchDisclaimer     = "For research/educational use only."
)

// DisclaimerFor returns the caller-facing disclaimer for a variant.
// Summarize responses carry none.
func DisclaimerFor(variant TaskVariant, mode JudgmentMode) string {
	switch variant {
	case TaskResearch:
		return ResearchDisclaimer
	case TaskJudgment:
		if mode == ModeReference {
			return ReferenceDisclaimer
		}
		return HypotheticalDisclaimer
	}
	return ""
}
