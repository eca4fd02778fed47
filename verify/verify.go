// Package verify checks generated answers for fabricated legal
// authority. The only structural guarantee it gives is range validity:
// every bracket citation must point at one of the passages actually
// retrieved for the request. It does not judge whether the cited
// passage supports the claim.
package verify

import (
	"math"
	"regexp"
	"sort"
	"strconv"

	"legalrag-backend/models"
)

// bracketCitation matches any integer in square brackets. Bracketed
// numerals that are not citations (statutory subsection markers quoted
// from an act, for example) match too; callers should expect the
// occasional spurious entry in the result.
var bracketCitation = regexp.MustCompile(`\[(\d+)\]`)

// reporterCitation matches Indian reporter-style citations such as
// "(2023) 5 SCC 123" appearing outside bracket numbering.
var reporterCitation = regexp.MustCompile(`\(\d{4}\)\s+\d+\s+[A-Z]+\s+\d+`)

// BracketCitations classifies every bracket citation in text against
// the number of retrieved passages. Valid numbers are 1..numRetrieved
// inclusive; anything else, including 0, is invalid. Each distinct
// number appears exactly once in its set, ascending, regardless of how
// many times it repeats in the text. With numRetrieved zero every
// bracket number found is invalid.
func BracketCitations(text string, numRetrieved int) models.VerificationResult {
	seenValid := make(map[int]bool)
	seenInvalid := make(map[int]bool)

	for _, match := range bracketCitation.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(match[1])
		if err != nil {
			// Digits-only capture; only overflow lands here. A number
			// that large is out of range, so clamp it into the invalid
			// set rather than dropping the citation.
			n = math.MaxInt
		}
		if n >= 1 && n <= numRetrieved {
			seenValid[n] = true
		} else {
			seenInvalid[n] = true
		}
	}

	result := models.VerificationResult{
		Valid:   make([]int, 0, len(seenValid)),
		Invalid: make([]int, 0, len(seenInvalid)),
	}
	for n := range seenValid {
		result.Valid = append(result.Valid, n)
	}
	for n := range seenInvalid {
		result.Invalid = append(result.Invalid, n)
	}
	sort.Ints(result.Valid)
	sort.Ints(result.Invalid)
	return result
}

// UnverifiedCitations finds reporter-style citations in text that match
// no retrieved passage's citation metadata. These indicate the model
// naming authority it was never shown. Order of first appearance is
// preserved; duplicates are reported once.
func UnverifiedCitations(text string, retrieved []models.RetrievedPassage) []string {
	known := make(map[string]bool)
	for _, p := range retrieved {
		if p.Metadata.Citation != nil {
			known[*p.Metadata.Citation] = true
		}
	}

	var unverified []string
	seen := make(map[string]bool)
	for _, citation := range reporterCitation.FindAllString(text, -1) {
		if known[citation] || seen[citation] {
			continue
		}
		seen[citation] = true
		unverified = append(unverified, citation)
	}
	return unverified
}

// Verify runs both checks and returns the combined result for one
// generation attempt.
func Verify(text string, retrieved []models.RetrievedPassage) models.VerificationResult {
	result := BracketCitations(text, len(retrieved))
	result.Unverified = UnverifiedCitations(text, retrieved)
	return result
}
