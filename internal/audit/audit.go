// Package audit records session lifecycle events: uploads, cleaning runs,
// explicit resets and TTL expiry.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Action is the kind of event being recorded.
type Action string

const (
	ActionUpload Action = "upload"
	ActionRun    Action = "run"
	ActionReset  Action = "reset"
	ActionExpire Action = "expire"
)

// Severity ranks entries for filtering in the audit table.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// SeverityFor returns the severity recorded for an action.
func SeverityFor(action Action) Severity {
	switch action {
	case ActionRun:
		return SeverityHigh
	case ActionUpload, ActionReset:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Entry is one audit record.
type Entry struct {
	ID          string    `json:"id"`
	Action      Action    `json:"action"`
	Severity    Severity  `json:"severity"`
	SessionID   string    `json:"sessionId"`
	Files       []string  `json:"files,omitempty"`
	ScoreBefore float64   `json:"scoreBefore,omitempty"`
	ScoreAfter  float64   `json:"scoreAfter,omitempty"`
	IPAddress   string    `json:"ipAddress,omitempty"`
	UserAgent   string    `json:"userAgent,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Recorder persists audit entries. Implementations must be safe for
// concurrent use.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Stamp fills the id, severity and timestamp of e when they are unset.
func Stamp(e Entry, now time.Time) Entry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Severity == "" {
		e.Severity = SeverityFor(e.Action)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return e
}

// LogRecorder writes entries to a slog logger.
type LogRecorder struct {
	logger *slog.Logger
}

// NewLogRecorder creates a recorder on logger, or on slog.Default when nil.
func NewLogRecorder(logger *slog.Logger) *LogRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogRecorder{logger: logger.With("component", "audit")}
}

// Record logs e at info level.
func (r *LogRecorder) Record(ctx context.Context, e Entry) error {
	e = Stamp(e, time.Now())
	attrs := []any{
		"audit_id", e.ID,
		"action", string(e.Action),
		"severity", string(e.Severity),
		"session_id", e.SessionID,
	}
	if len(e.Files) > 0 {
		attrs = append(attrs, "files", e.Files)
	}
	if e.Action == ActionRun {
		attrs = append(attrs, "score_before", e.ScoreBefore, "score_after", e.ScoreAfter)
	}
	if e.IPAddress != "" {
		attrs = append(attrs, "ip", e.IPAddress)
	}
	if e.Detail != "" {
		attrs = append(attrs, "detail", e.Detail)
	}
	r.logger.InfoContext(ctx, "audit", attrs...)
	return nil
}

// Multi fans an entry out to several recorders. Every recorder is called;
// the returned error joins all failures.
type Multi []Recorder

// Record calls Record on each recorder in order.
func (m Multi) Record(ctx context.Context, e Entry) error {
	e = Stamp(e, time.Now())
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards every entry.
type Nop struct{}

// Record does nothing.
func (Nop) Record(context.Context, Entry) error { return nil }
