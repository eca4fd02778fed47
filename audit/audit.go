// Package audit writes the per-request audit trail. Every concluded
// request produces exactly one record; recording failures are reported
// to the caller but must not change the response already produced.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"legalrag-backend/models"
	"legalrag-backend/storage"
)

// Truncation caps for unbounded text fields. Counts, verification
// results and retrieved metadata are recorded in full.
const (
	maxInputLen    = 1000
	maxPromptLen   = 2000
	maxResponseLen = 2000
)

// Entry carries everything the recorder needs from one concluded request.
type Entry struct {
	Variant      models.TaskVariant
	UserID       *uuid.UUID
	UserInput    string
	Retrieved    []models.RetrievedPassage
	Prompt       string
	Temperature  float64
	Response     string
	Verification models.VerificationResult
	Retried      bool
}

// Recorder persists audit records through an append-only store.
type Recorder struct {
	store storage.Store
	now   func() time.Time
}

type RecorderOption func(*Recorder)

// WithClock overrides the recorder's clock.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.now = now
	}
}

// NewRecorder creates a recorder writing to the given store.
func NewRecorder(store storage.Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record builds the audit entry for a concluded request, truncating
// unbounded text fields, and writes it as an indented JSON document
// named {mode}_{timestamp}.json. It returns the record's location.
func (r *Recorder) Record(ctx context.Context, e Entry) (string, error) {
	now := r.now().UTC()

	entry := models.AuditLogEntry{
		Timestamp:          now,
		UserID:             e.UserID,
		Variant:            e.Variant,
		UserInput:          truncate(e.UserInput, maxInputLen),
		RetrievedCount:     len(e.Retrieved),
		RetrievedMetadata:  models.Summarize(e.Retrieved),
		Prompt:             truncate(e.Prompt, maxPromptLen),
		Temperature:        e.Temperature,
		Response:           truncate(e.Response, maxResponseLen),
		Verification:       e.Verification,
		Retried:            e.Retried,
		FullResponseLength: utf8.RuneCountInString(e.Response),
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode audit entry: %w", err)
	}

	name := fmt.Sprintf("%s_%s.json", e.Variant, now.Format("20060102_150405"))

	location, err := r.store.Put(ctx, name, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to write audit record: %w", err)
	}

	return location, nil
}

// truncate caps s at max characters, never splitting a rune.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
