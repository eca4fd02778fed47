package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legalrag-backend/audit"
	"legalrag-backend/gateway"
	"legalrag-backend/models"
	"legalrag-backend/repository"
)

type mockRetriever struct {
	passages []models.RetrievedPassage
	err      error
	calls    int
	lastK    int
}

func (m *mockRetriever) Retrieve(ctx context.Context, query string, k int, filters repository.SearchFilters) ([]models.RetrievedPassage, error) {
	m.calls++
	m.lastK = k
	return m.passages, m.err
}

type mockGenerator struct {
	responses []string
	calls     int
	prompts   []string
	temps     []float64
	err       error
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	m.prompts = append(m.prompts, prompt)
	m.temps = append(m.temps, temperature)
	if m.err != nil {
		return "", m.err
	}
	resp := m.responses[m.calls]
	m.calls++
	return resp, nil
}

type mockRecorder struct {
	entries []audit.Entry
	err     error
}

func (m *mockRecorder) Record(ctx context.Context, e audit.Entry) (string, error) {
	m.entries = append(m.entries, e)
	if m.err != nil {
		return "", m.err
	}
	return "logs/test.json", nil
}

func passages(n int) []models.RetrievedPassage {
	source := "corpus.txt"
	out := make([]models.RetrievedPassage, n)
	for i := range out {
		out[i] = models.RetrievedPassage{
			ID:       string(rune('a' + i)),
			Text:     "passage text",
			Metadata: models.PassageMetadata{SourceFile: &source},
			Distance: float64(i) * 0.1,
		}
	}
	return out
}

// Happy path: the first response cites only retrieved passages, so no
// retry happens and exactly one generation call is made.
func TestRunValidFirstResponse(t *testing.T) {
	retriever := &mockRetriever{passages: passages(3)}
	generator := &mockGenerator{responses: []string{"Per [1] and [3], the claim fails."}}
	recorder := &mockRecorder{}

	p := New(retriever, generator, recorder)

	res, err := p.Run(context.Background(), Request{
		Variant: models.TaskResearch,
		Query:   "limitation period for contract claims",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, generator.calls)
	assert.False(t, res.Retried)
	assert.Equal(t, []int{1, 3}, res.Verification.Valid)
	assert.Empty(t, res.Verification.Invalid)
	assert.Equal(t, models.ResearchDisclaimer, res.Disclaimer)
	assert.Equal(t, "logs/test.json", res.AuditRef)

	require.Len(t, recorder.entries, 1)
	assert.False(t, recorder.entries[0].Retried)
	assert.Equal(t, 0.0, recorder.entries[0].Temperature)
}

// Invalid citation triggers exactly one corrective retry whose prompt
// prepends the correction directive to the unchanged original.
func TestRunRetryCorrectsInvalidCitation(t *testing.T) {
	retriever := &mockRetriever{passages: passages(2)}
	generator := &mockGenerator{responses: []string{
		"As held in [5], the appeal succeeds.",
		"As held in [1], the appeal succeeds.",
	}}
	recorder := &mockRecorder{}

	p := New(retriever, generator, recorder)

	res, err := p.Run(context.Background(), Request{
		Variant: models.TaskResearch,
		Query:   "grounds of appeal",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, generator.calls)
	assert.True(t, res.Retried)
	assert.Equal(t, []int{1}, res.Verification.Valid)
	assert.Empty(t, res.Verification.Invalid)

	require.Len(t, generator.prompts, 2)
	assert.True(t, strings.HasPrefix(generator.prompts[1], "CRITICAL CORRECTION REQUIRED:"))
	assert.True(t, strings.HasSuffix(generator.prompts[1], generator.prompts[0]))
	assert.Contains(t, generator.prompts[1], "[5]")
	assert.Contains(t, generator.prompts[1], "from [1] to [2]")

	require.Len(t, recorder.entries, 1)
	assert.True(t, recorder.entries[0].Retried)
	assert.Equal(t, "As held in [1], the appeal succeeds.", recorder.entries[0].Response)
}

// A retry that still fails verification concludes anyway: the second
// response and its verification are returned, with no third call.
func TestRunRetryStillInvalidConcludes(t *testing.T) {
	retriever := &mockRetriever{passages: passages(2)}
	generator := &mockGenerator{responses: []string{
		"See [7].",
		"See [9].",
	}}
	recorder := &mockRecorder{}

	p := New(retriever, generator, recorder)

	res, err := p.Run(context.Background(), Request{
		Variant: models.TaskJudgment,
		Query:   "tenant withheld rent after notice",
		Mode:    models.ModeHypothetical,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, generator.calls)
	assert.True(t, res.Retried)
	assert.Equal(t, "See [9].", res.Answer)
	assert.Equal(t, []int{9}, res.Verification.Invalid)
	assert.Equal(t, models.HypotheticalDisclaimer, res.Disclaimer)

	require.Len(t, recorder.entries, 1)
	assert.Equal(t, []int{9}, recorder.entries[0].Verification.Invalid)
}

// Empty retrieval ends the request before generation; the concluded
// outcome is still audited, with no response and nothing retrieved.
func TestRunNoGrounding(t *testing.T) {
	retriever := &mockRetriever{passages: nil}
	generator := &mockGenerator{}
	recorder := &mockRecorder{}

	p := New(retriever, generator, recorder)

	_, err := p.Run(context.Background(), Request{
		Variant: models.TaskResearch,
		Query:   "maritime salvage rights on inland waterways",
	})
	assert.ErrorIs(t, err, ErrNoGrounding)
	assert.Equal(t, 0, generator.calls)

	require.Len(t, recorder.entries, 1)
	entry := recorder.entries[0]
	assert.Equal(t, models.TaskResearch, entry.Variant)
	assert.Equal(t, "maritime salvage rights on inland waterways", entry.UserInput)
	assert.Empty(t, entry.Retrieved)
	assert.Empty(t, entry.Prompt)
	assert.Empty(t, entry.Response)
	assert.Empty(t, entry.Verification.Valid)
	assert.Empty(t, entry.Verification.Invalid)
	assert.False(t, entry.Retried)
}

// Raw case text bypasses retrieval entirely; verification still runs
// over a zero-passage context.
func TestRunSummarizeRawTextBypassesRetrieval(t *testing.T) {
	retriever := &mockRetriever{}
	generator := &mockGenerator{responses: []string{"## Facts\nThe parties contracted in 2019."}}
	recorder := &mockRecorder{}

	p := New(retriever, generator, recorder)

	res, err := p.Run(context.Background(), Request{
		Variant:  models.TaskSummarize,
		CaseText: "Full text of the judgment...",
	})
	require.NoError(t, err)

	assert.Equal(t, 0, retriever.calls)
	assert.Equal(t, 1, generator.calls)
	assert.Empty(t, res.Retrieved)
	assert.Empty(t, res.Verification.Valid)
	assert.Empty(t, res.Verification.Invalid)
	assert.Empty(t, res.Disclaimer)

	require.Len(t, recorder.entries, 1)
	assert.Equal(t, "Full text of the judgment...", recorder.entries[0].UserInput)
}

func TestRunSummarizeQueryUsesSmallerK(t *testing.T) {
	retriever := &mockRetriever{passages: passages(3)}
	generator := &mockGenerator{responses: []string{"## Facts\nSummary citing [1]."}}
	recorder := &mockRecorder{}

	p := New(retriever, generator, recorder)

	_, err := p.Run(context.Background(), Request{
		Variant: models.TaskSummarize,
		Query:   "Kesavananda Bharati",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, retriever.lastK)
}

func TestRunDefaultTopKAndOverride(t *testing.T) {
	retriever := &mockRetriever{passages: passages(1)}
	generator := &mockGenerator{responses: []string{"[1]", "[1]"}}
	recorder := &mockRecorder{}

	p := New(retriever, generator, recorder)

	_, err := p.Run(context.Background(), Request{Variant: models.TaskResearch, Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, 6, retriever.lastK)

	k := 10
	_, err = p.Run(context.Background(), Request{Variant: models.TaskResearch, Query: "q", TopK: &k})
	require.NoError(t, err)
	assert.Equal(t, 10, retriever.lastK)
}

func TestRunTemperatureDefaultsPerVariant(t *testing.T) {
	retriever := &mockRetriever{passages: passages(1)}
	generator := &mockGenerator{responses: []string{"[1]", "[1]"}}
	recorder := &mockRecorder{}

	p := New(retriever, generator, recorder)

	_, err := p.Run(context.Background(), Request{Variant: models.TaskResearch, Query: "q"})
	require.NoError(t, err)

	_, err = p.Run(context.Background(), Request{
		Variant: models.TaskJudgment,
		Query:   "facts",
		Mode:    models.ModeReference,
	})
	require.NoError(t, err)

	assert.Equal(t, []float64{0.0, 0.1}, generator.temps)
}

func TestRunValidationFailures(t *testing.T) {
	p := New(&mockRetriever{}, &mockGenerator{}, &mockRecorder{})

	cases := []Request{
		{Variant: "translate", Query: "q"},
		{Variant: models.TaskResearch},
		{Variant: models.TaskJudgment, Query: "facts", Mode: "appellate"},
		{Variant: models.TaskSummarize},
		{Variant: models.TaskSummarize, Query: "q", CaseText: "text"},
	}
	for _, req := range cases {
		_, err := p.Run(context.Background(), req)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
}

// A sentinel-marked transport failure still concludes the request and
// is recorded, flagged as degraded.
func TestRunSentinelResponseConcludes(t *testing.T) {
	retriever := &mockRetriever{passages: passages(2)}
	generator := &mockGenerator{responses: []string{gateway.Sentinel("generation failed after 3 attempts")}}
	recorder := &mockRecorder{}

	p := New(retriever, generator, recorder)

	res, err := p.Run(context.Background(), Request{
		Variant: models.TaskResearch,
		Query:   "specific performance",
	})
	require.NoError(t, err)

	assert.True(t, res.Degraded)
	assert.Equal(t, 1, generator.calls)
	require.Len(t, recorder.entries, 1)
	assert.Contains(t, recorder.entries[0].Response, "[ERROR:")
}

func TestRunRetrievalFailureWrapped(t *testing.T) {
	retriever := &mockRetriever{err: assert.AnError}
	generator := &mockGenerator{}
	recorder := &mockRecorder{}

	p := New(retriever, generator, recorder)

	_, err := p.Run(context.Background(), Request{
		Variant: models.TaskResearch,
		Query:   "q",
	})
	assert.ErrorIs(t, err, ErrRetrievalFailed)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 0, generator.calls)
	assert.Empty(t, recorder.entries)
}

// Context cancellation abandons the request with no audit record.
func TestRunCancellationAbandonsRequest(t *testing.T) {
	retriever := &mockRetriever{passages: passages(1)}
	generator := &mockGenerator{err: context.Canceled}
	recorder := &mockRecorder{}

	p := New(retriever, generator, recorder)

	_, err := p.Run(context.Background(), Request{
		Variant: models.TaskResearch,
		Query:   "q",
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, recorder.entries)
}

// A recording failure does not fail the request; the answer stands.
func TestRunRecorderFailureDoesNotFailRequest(t *testing.T) {
	retriever := &mockRetriever{passages: passages(1)}
	generator := &mockGenerator{responses: []string{"Per [1], yes."}}
	recorder := &mockRecorder{err: assert.AnError}

	p := New(retriever, generator, recorder)

	res, err := p.Run(context.Background(), Request{
		Variant: models.TaskResearch,
		Query:   "q",
	})
	require.NoError(t, err)
	assert.Equal(t, "Per [1], yes.", res.Answer)
	assert.Empty(t, res.AuditRef)
}
