// Package pipeline runs a request end to end: retrieve grounding
// passages, assemble a prompt, generate, verify citations, and retry
// the generation once when verification finds invalid citations. Every
// concluded request leaves an audit record.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"legalrag-backend/audit"
	"legalrag-backend/gateway"
	"legalrag-backend/models"
	"legalrag-backend/prompt"
	"legalrag-backend/repository"
	"legalrag-backend/verify"
)

var (
	// ErrNoGrounding means retrieval returned no passages; the request
	// concludes without calling the generator.
	ErrNoGrounding = errors.New("no relevant passages found")

	// ErrInvalidInput means the request fails validation before any
	// stage runs.
	ErrInvalidInput = errors.New("invalid request")

	// ErrRetrievalFailed wraps faults from the retrieval stage.
	ErrRetrievalFailed = errors.New("retrieval failed")

	// ErrGenerationFailed wraps faults from the generation stage. Only
	// context cancellation reaches this; transport failures conclude as
	// sentinel text.
	ErrGenerationFailed = errors.New("generation failed")
)

// Retriever fetches the top-k grounding passages for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int, filters repository.SearchFilters) ([]models.RetrievedPassage, error)
}

// Generator produces model text for a prompt. Transport failures
// surface as sentinel-marked text, not errors; the only error is
// context cancellation.
type Generator interface {
	Generate(ctx context.Context, prompt string, temperature float64) (string, error)
}

// Recorder persists the audit entry for a concluded request.
type Recorder interface {
	Record(ctx context.Context, e audit.Entry) (string, error)
}

// Request is one user query through the pipeline.
type Request struct {
	Variant  models.TaskVariant
	Query    string // research query, judgment facts, or summarize query
	CaseText string // summarize only: raw case text, bypasses retrieval
	Mode     models.JudgmentMode
	UserID   *uuid.UUID
	Filters  repository.SearchFilters

	// TopK and Temperature override the variant defaults when set.
	TopK        *int
	Temperature *float64
}

// Result is the concluded outcome of a request.
type Result struct {
	Answer       string
	Disclaimer   string
	Retrieved    []models.RetrievedPassage
	Verification models.VerificationResult
	Retried      bool
	Degraded     bool // answer is sentinel-marked transport-failure text
	AuditRef     string
}

// Pipeline wires the stages together. Safe for concurrent use.
type Pipeline struct {
	retriever Retriever
	generator Generator
	recorder  Recorder

	defaultTopK   int
	summarizeTopK int
	temperatures  map[models.TaskVariant]float64
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithDefaultTopK overrides the research/judgment retrieval depth.
func WithDefaultTopK(k int) Option {
	return func(p *Pipeline) { p.defaultTopK = k }
}

// WithSummarizeTopK overrides the summarize retrieval depth.
func WithSummarizeTopK(k int) Option {
	return func(p *Pipeline) { p.summarizeTopK = k }
}

// WithTemperature overrides the default temperature for a variant.
func WithTemperature(variant models.TaskVariant, temp float64) Option {
	return func(p *Pipeline) { p.temperatures[variant] = temp }
}

// New builds a pipeline over the given stages.
func New(retriever Retriever, generator Generator, recorder Recorder, opts ...Option) *Pipeline {
	p := &Pipeline{
		retriever:     retriever,
		generator:     generator,
		recorder:      recorder,
		defaultTopK:   6,
		summarizeTopK: 3,
		temperatures: map[models.TaskVariant]float64{
			models.TaskResearch:  0.0,
			models.TaskJudgment:  0.1,
			models.TaskSummarize: 0.0,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run takes a request through retrieval, prompt assembly, generation,
// verification and the single corrective retry, then records the audit
// entry. Context cancellation abandons the request without a record.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if err := p.validate(req); err != nil {
		return nil, err
	}

	rawText := req.Variant == models.TaskSummarize && req.CaseText != ""

	var retrieved []models.RetrievedPassage
	if !rawText {
		var err error
		retrieved, err = p.retriever.Retrieve(ctx, req.Query, p.topK(req), req.Filters)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRetrievalFailed, err)
		}
		if len(retrieved) == 0 {
			slog.Info("no grounding passages", "variant", req.Variant)
			// Concluded outcome: the trail records that nothing was
			// generated, not a generated answer.
			if _, recErr := p.recorder.Record(ctx, audit.Entry{
				Variant:     req.Variant,
				UserID:      req.UserID,
				UserInput:   p.userInput(req),
				Temperature: p.temperature(req),
			}); recErr != nil {
				slog.Error("failed to write audit record", "variant", req.Variant, "error", recErr)
			}
			return nil, ErrNoGrounding
		}
	}

	promptText, err := p.assemble(req, retrieved)
	if err != nil {
		return nil, err
	}

	temperature := p.temperature(req)

	response, err := p.generator.Generate(ctx, promptText, temperature)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	result := verify.Verify(response, retrieved)

	retried := false
	if result.HasInvalid() {
		slog.Warn("invalid citations, retrying once",
			"variant", req.Variant,
			"invalid", result.Invalid,
			"retrieved", len(retrieved))

		retryPrompt := prompt.Retry(promptText, len(retrieved), result.Invalid)
		response, err = p.generator.Generate(ctx, retryPrompt, temperature)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
		}
		result = verify.Verify(response, retrieved)
		retried = true

		if result.HasInvalid() {
			slog.Warn("invalid citations persisted after retry",
				"variant", req.Variant,
				"invalid", result.Invalid)
		}
	}

	auditRef, err := p.recorder.Record(ctx, audit.Entry{
		Variant:      req.Variant,
		UserID:       req.UserID,
		UserInput:    p.userInput(req),
		Retrieved:    retrieved,
		Prompt:       promptText,
		Temperature:  temperature,
		Response:     response,
		Verification: result,
		Retried:      retried,
	})
	if err != nil {
		// The answer is already produced; a recording failure is an
		// operational fault, not a request fault.
		slog.Error("failed to write audit record", "variant", req.Variant, "error", err)
	}

	return &Result{
		Answer:       response,
		Disclaimer:   models.DisclaimerFor(req.Variant, req.Mode),
		Retrieved:    retrieved,
		Verification: result,
		Retried:      retried,
		Degraded:     gateway.IsSentinel(response),
		AuditRef:     auditRef,
	}, nil
}

func (p *Pipeline) validate(req Request) error {
	if !req.Variant.Valid() {
		return fmt.Errorf("%w: unknown variant %q", ErrInvalidInput, req.Variant)
	}

	switch req.Variant {
	case models.TaskResearch:
		if req.Query == "" {
			return fmt.Errorf("%w: query is required", ErrInvalidInput)
		}
	case models.TaskJudgment:
		if req.Query == "" {
			return fmt.Errorf("%w: case facts are required", ErrInvalidInput)
		}
		if !req.Mode.Valid() {
			return fmt.Errorf("%w: unknown judgment mode %q", ErrInvalidInput, req.Mode)
		}
	case models.TaskSummarize:
		if req.Query == "" && req.CaseText == "" {
			return fmt.Errorf("%w: either a query or case text is required", ErrInvalidInput)
		}
		if req.Query != "" && req.CaseText != "" {
			return fmt.Errorf("%w: query and case text are mutually exclusive", ErrInvalidInput)
		}
	}
	return nil
}

func (p *Pipeline) assemble(req Request, retrieved []models.RetrievedPassage) (string, error) {
	switch req.Variant {
	case models.TaskResearch:
		return prompt.Research(req.Query, retrieved), nil
	case models.TaskJudgment:
		return prompt.Judgment(req.Query, req.Mode, retrieved), nil
	case models.TaskSummarize:
		return prompt.Summarize(retrieved, req.CaseText)
	}
	return "", fmt.Errorf("%w: unknown variant %q", ErrInvalidInput, req.Variant)
}

func (p *Pipeline) topK(req Request) int {
	if req.TopK != nil && *req.TopK > 0 {
		return *req.TopK
	}
	if req.Variant == models.TaskSummarize {
		return p.summarizeTopK
	}
	return p.defaultTopK
}

func (p *Pipeline) temperature(req Request) float64 {
	if req.Temperature != nil {
		return *req.Temperature
	}
	return p.temperatures[req.Variant]
}

func (p *Pipeline) userInput(req Request) string {
	if req.Variant == models.TaskSummarize && req.CaseText != "" {
		return req.CaseText
	}
	return req.Query
}
