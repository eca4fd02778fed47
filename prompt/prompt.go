// Package prompt renders the retrieval-grounded instruction prompts for
// the three assistant variants. Passages are numbered by their position
// in the retrieved sequence; that ordinal is the only citation number
// the generator is permitted to use.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"legalrag-backend/models"
)

// ErrConflictingInput is returned when a summarization call supplies
// both retrieved passages and a raw case text block.
var ErrConflictingInput = errors.New("summarize accepts retrieved passages or raw case text, not both")

// formatPassages renders the retrieved sequence with 1-based ordinals
// and a provenance header per passage. Ordinals follow input order;
// passages are never re-sorted here.
func formatPassages(retrieved []models.RetrievedPassage) string {
	var b strings.Builder
	for i, p := range retrieved {
		source := "Unknown"
		if p.Metadata.SourceFile != nil {
			source = *p.Metadata.SourceFile
		}
		page := "?"
		if p.Metadata.PageNumber != nil {
			page = fmt.Sprintf("%d", *p.Metadata.PageNumber)
		}

		fmt.Fprintf(&b, "[%d] Source: %s, Page: %s", i+1, source, page)
		if p.Metadata.CaseName != nil && *p.Metadata.CaseName != "" {
			fmt.Fprintf(&b, ", Case: %s", *p.Metadata.CaseName)
		}
		b.WriteString("\n")
		b.WriteString(p.Text)
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Research builds the legal research prompt for a query over the
// retrieved passages.
func Research(query string, retrieved []models.RetrievedPassage) string {
	return fmt.Sprintf(`You are a legal research assistant for Indian law. Your task is to provide accurate, well-researched answers based ONLY on the provided legal documents.

RETRIEVED LEGAL PASSAGES:
%s

USER QUERY: %s

INSTRUCTIONS:
1. Provide an executive summary (2-4 sentences) answering the query
2. List key points as bullet notes
3. If multiple cases or sections are relevant, compare them briefly
4. Cite sources using ONLY bracket numbers [1], [2], etc. that appear in the passages above
5. If the provided passages are insufficient to answer the query, clearly state so
6. End with a numbered sources list matching your bracket citations

OUTPUT FORMAT:
## Executive Summary
[Your 2-4 sentence summary with citations]

## Key Points
- [Point 1 with citation]
- [Point 2 with citation]

## Sources
1. [Source details from passage [1]]
2. [Source details from passage [2]]

CRITICAL: Use ONLY the bracket numbers [1] through [%d] that correspond to the passages above. Do not invent citations or reference sources not provided.
`, formatPassages(retrieved), query, len(retrieved))
}

// Judgment builds the judgment-simulation prompt. The generated answer
// must begin with the mode's literal disclaimer header.
func Judgment(facts string, mode models.JudgmentMode, retrieved []models.RetrievedPassage) string {
	header := models.HypotheticalDisclaimer
	if mode == models.ModeReference {
		header = models.ReferenceDisclaimer
	}

	return fmt.Sprintf(`You are simulating judicial reasoning for educational purposes. You must begin your response with the header: "%s"

RETRIEVED LEGAL PASSAGES:
%s

CASE FACTS:
%s

INSTRUCTIONS:
1. Begin with the exact header: "%s"
2. Analyze the facts in light of the retrieved legal passages
3. Structure your analysis as follows:
   - Facts: Restate the key facts
   - Issues: Identify legal issues raised
   - Reasoning: Simulate judicial reasoning using cautious language (may, could, likely, appears)
   - Hypothetical Holding(s): State potential conclusions
   - Sources: List all cited sources by bracket number
4. Use ONLY bracket citations [1], [2], etc. corresponding to the passages above
5. Use cautious, conditional language throughout
6. This is for educational purposes only - not actual legal advice

OUTPUT FORMAT:
%s

## Facts
[Restate key facts]

## Issues
1. [Issue 1]
2. [Issue 2]

## Reasoning
[Detailed analysis with citations using cautious language]

## Hypothetical Holding(s)
[Potential conclusions with citations]

## Sources
1. [Source from [1]]
2. [Source from [2]]

CRITICAL: Cite ONLY using bracket numbers [1] through [%d]. Do not invent case names or citations not present in the passages.
`, header, formatPassages(retrieved), facts, header, header, len(retrieved))
}

// Summarize builds the headnote-generation prompt. Exactly one source
// of material is allowed per call: retrieved passages (query-grounded
// mode) or a raw case text block. Supplying both is a caller bug.
func Summarize(retrieved []models.RetrievedPassage, caseText string) (string, error) {
	if caseText != "" && len(retrieved) > 0 {
		return "", ErrConflictingInput
	}

	var content string
	if caseText != "" {
		content = fmt.Sprintf("CASE TEXT TO SUMMARIZE:\n%s", caseText)
	} else {
		content = fmt.Sprintf("RETRIEVED PASSAGES:\n%s", formatPassages(retrieved))
	}

	return fmt.Sprintf(`You are a legal headnote generator for Indian case law. Generate a comprehensive headnote with study notes.

%s

INSTRUCTIONS:
1. Extract and organize the following information:
   - Facts: Key factual background
   - Issue: Main legal question(s)
   - Holding: Court's decision/ruling
   - Ratio Decidendi: Legal principle established
2. Generate 5 study notes highlighting important aspects
3. If using retrieved passages, cite using bracket numbers [1], [2], etc.

OUTPUT FORMAT:
## Facts
[Concise factual background]

## Issue
[Main legal question]

## Holding
[Court's decision]

## Ratio Decidendi
[Legal principle established]

## Study Notes
1. [Important point 1]
2. [Important point 2]
3. [Important point 3]
4. [Important point 4]
5. [Important point 5]

CRITICAL: Base your summary ONLY on the provided text. Do not add external information.
`, content), nil
}

// Retry prepends a correction directive to an unmodified original
// prompt after citation verification found invalid numbers. The
// grounding material is unchanged, so nothing after the directive may
// differ from the first attempt.
func Retry(original string, numRetrieved int, invalid []int) string {
	nums := make([]string, len(invalid))
	for i, n := range invalid {
		nums[i] = fmt.Sprintf("[%d]", n)
	}

	directive := fmt.Sprintf(`CRITICAL CORRECTION REQUIRED:
Your previous response contained invalid citations: %s
You MUST use ONLY bracket numbers from [1] to [%d].
Do NOT use any other numbers in bracket citations.

`, strings.Join(nums, ", "), numRetrieved)

	return directive + original
}
