package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
)

// sentinelPrefix marks generation output that is an error report rather
// than model text. Callers must treat sentinel-marked text as
// ungrounded content, never as an answer; the pipeline still records it
// in the audit trail.
const sentinelPrefix = "[ERROR:"

// IsSentinel reports whether text is a transport-failure marker
// produced by the gateway rather than generated content.
func IsSentinel(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), sentinelPrefix)
}

// Sentinel formats a transport failure as sentinel-marked text.
func Sentinel(reason string) string {
	return fmt.Sprintf("%s %s]", sentinelPrefix, reason)
}

// textModel is the raw single-shot generation call. It exists so the
// retry loop can be exercised without a live Gemini client.
type textModel interface {
	generate(ctx context.Context, prompt string, temperature float64) (string, error)
}

// geminiModel adapts the genai SDK to textModel.
type geminiModel struct {
	client    *genai.Client
	model     string
	maxTokens int32
}

func (g *geminiModel) generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(float32(temperature))
	model.SetMaxOutputTokens(g.maxTokens)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}

	text := b.String()
	if text == "" {
		return "", errors.New("model returned no text candidates")
	}
	return text, nil
}

// Generator is the generation gateway: it turns a prompt into text,
// retrying transient transport failures up to a fixed bound with
// exponential backoff. On exhaustion it returns sentinel-marked text
// rather than an error, so the pipeline can conclude and write its
// audit entry. The only error it returns is context cancellation.
//
// This transport retry is independent of the pipeline's citation
// retry: it recovers network faults, not content faults.
type Generator struct {
	model       textModel
	attempts    int
	baseDelay   time.Duration
	callTimeout time.Duration
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithAttempts overrides the transport attempt bound.
func WithAttempts(n int) GeneratorOption {
	return func(g *Generator) { g.attempts = n }
}

// WithBaseDelay overrides the first backoff delay.
func WithBaseDelay(d time.Duration) GeneratorOption {
	return func(g *Generator) { g.baseDelay = d }
}

// WithCallTimeout bounds each individual model call.
func WithCallTimeout(d time.Duration) GeneratorOption {
	return func(g *Generator) { g.callTimeout = d }
}

// NewGenerator builds the gateway over a genai client.
func NewGenerator(client *genai.Client, model string, maxTokens int, opts ...GeneratorOption) *Generator {
	g := &Generator{
		model:       &geminiModel{client: client, model: model, maxTokens: int32(maxTokens)},
		attempts:    maxAttempts,
		baseDelay:   initialDelay,
		callTimeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// newGeneratorForTest wires a stub model behind the retry loop.
func newGeneratorForTest(model textModel, opts ...GeneratorOption) *Generator {
	g := &Generator{
		model:       model,
		attempts:    maxAttempts,
		baseDelay:   initialDelay,
		callTimeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate produces text for prompt at the given temperature.
func (g *Generator) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	delay := g.baseDelay
	var lastErr error

	for attempt := 0; attempt < g.attempts; attempt++ {
		if attempt > 0 {
			slog.Warn("retrying generation", "attempt", attempt+1, "error", lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		text, err := g.generateOnce(ctx, prompt, temperature)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err
		if !isTransient(err) {
			slog.Error("generation failed permanently", "error", err)
			return Sentinel(err.Error()), nil
		}
	}

	slog.Error("generation retries exhausted", "attempts", g.attempts, "error", lastErr)
	return Sentinel(fmt.Sprintf("generation failed after %d attempts: %v", g.attempts, lastErr)), nil
}

func (g *Generator) generateOnce(ctx context.Context, prompt string, temperature float64) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()
	return g.model.generate(callCtx, prompt, temperature)
}

// isTransient classifies a model-call failure. Server-side overload and
// timeouts are retried; client errors fail the same way every time.
func isTransient(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		// Per-call timeout; the next attempt gets a fresh one.
		return true
	}
	return true
}
