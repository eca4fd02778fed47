package models

// VerificationResult classifies every bracket citation found in one
// generated answer against the count of retrieved passages. Both sets
// are deduplicated and sorted ascending. It is a pure function of the
// generated text and the retrieved count; it is recomputed after every
// generation attempt and never cached across attempts.
type VerificationResult struct {
	Valid   []int `json:"valid"`
	Invalid []int `json:"invalid"`

	// Unverified lists reporter-style citations (e.g. "(2023) 5 SCC 123")
	// that appear un-bracketed in the text but match no retrieved
	// passage's citation metadata. Informational only; it never triggers
	// the corrective retry.
	Unverified []string `json:"unverified,omitempty"`
}

// HasInvalid reports whether any out-of-range bracket citation was found.
// A true result after the first generation attempt triggers the single
// corrective retry.
func (r VerificationResult) HasInvalid() bool {
	return len(r.Invalid) > 0
}
