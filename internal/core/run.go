package core

import (
	"context"
	"time"

	"github.com/JonMunkholm/csvclean/internal/audit"
	"github.com/JonMunkholm/csvclean/internal/cleaning"
	"github.com/JonMunkholm/csvclean/internal/logging"
	"github.com/JonMunkholm/csvclean/internal/metrics"
	"github.com/JonMunkholm/csvclean/internal/table"
)

// RunRequest asks for one cleaning run over a session.
type RunRequest struct {
	SessionID        string
	Config           *cleaning.Config
	OverrideWarnings bool
	OutputFormat     table.Format
}

// RunOutcome is a finished run, ready to be packaged by WriteArchive.
type RunOutcome struct {
	SessionID string
	Format    table.Format
	Results   []cleaning.Result
}

// Dirty reports whether any cleaned file still has a non-zero score.
func (o *RunOutcome) Dirty() bool {
	for i := range o.Results {
		r := &o.Results[i]
		if !r.Failed() && r.After.Score > 0 {
			return true
		}
	}
	return false
}

// Succeeded counts files that produced a cleaned table.
func (o *RunOutcome) Succeeded() int {
	n := 0
	for i := range o.Results {
		if !o.Results[i].Failed() {
			n++
		}
	}
	return n
}

// Run cleans every table of a session with req.Config.
//
// Checks happen in order: unknown session, invalid config (a
// *cleaning.ConfigError), then the severity gate (a *CriticalError) when it
// is enabled and not overridden. Files failing mid-pipeline are reported
// in their Result. The session is discarded once at least one file was
// cleaned, so a run where every file aborted can be retried with a fixed
// config.
func (s *Service) Run(ctx context.Context, req RunRequest) (*RunOutcome, error) {
	start := time.Now()
	ctx = logging.WithSessionID(ctx, req.SessionID)
	logger := logging.FromContext(ctx)

	sess, err := s.store.Get(req.SessionID)
	if err != nil {
		s.metrics.RecordRun(metrics.OutcomeRejected, 0, 0)
		return nil, err
	}

	cfg := req.Config
	if cfg == nil {
		cfg = &cleaning.Config{}
	}
	if err := cfg.Validate(); err != nil {
		s.metrics.RecordRun(metrics.OutcomeRejected, 0, 0)
		return nil, err
	}

	if s.opts.CriticalGate && !req.OverrideWarnings {
		var critical []string
		for _, f := range sess.Files {
			if f.Assessment.Severity == cleaning.SeverityCritical {
				critical = append(critical, f.Name)
			}
		}
		if len(critical) > 0 {
			s.metrics.RecordRun(metrics.OutcomeRejected, 0, 0)
			logger.Info("run refused by severity gate", "files", critical)
			return nil, &CriticalError{Files: critical}
		}
	}

	format := req.OutputFormat
	if format == "" {
		format = table.FormatCSV
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		s.metrics.RecordRun(metrics.OutcomeRejected, 0, 0)
		return nil, err
	}
	defer s.limiter.Release()

	runCtx, cancel := context.WithTimeout(ctx, s.opts.RunTimeout)
	defer cancel()

	results, err := s.pipeline.Run(runCtx, sess.Tables(), cfg)
	if err != nil {
		s.metrics.RecordRun(metrics.OutcomeFailed, time.Since(start), 0)
		return nil, err
	}

	out := &RunOutcome{SessionID: sess.ID, Format: format, Results: results}
	s.finishRun(ctx, out, time.Since(start))
	return out, nil
}

func (s *Service) finishRun(ctx context.Context, out *RunOutcome, elapsed time.Duration) {
	logger := logging.FromContext(ctx)

	var changes int
	var failed []string
	var before, after float64
	filenames := make([]string, len(out.Results))
	succeeded := out.Succeeded()
	for i := range out.Results {
		r := &out.Results[i]
		filenames[i] = r.Filename
		before += r.Before.Score
		if r.Failed() {
			failed = append(failed, r.Filename)
			logger.Warn("file aborted", "file", r.Filename, "error", r.Err)
			continue
		}
		changes += len(r.Changes)
		after += r.After.Score
		s.metrics.RecordScore("after", r.After.Score)
	}

	outcome := metrics.OutcomeSuccess
	switch {
	case succeeded == 0:
		outcome = metrics.OutcomeFailed
	case len(failed) > 0:
		outcome = metrics.OutcomePartial
	}
	s.metrics.RecordRun(outcome, elapsed, changes)

	if succeeded > 0 {
		s.store.Discard(out.SessionID)
		s.metrics.SetSessions(s.store.Len())
	}

	entry := audit.Entry{
		Action:      audit.ActionRun,
		SessionID:   out.SessionID,
		Files:       filenames,
		ScoreBefore: roundScore(mean(before, len(out.Results))),
		ScoreAfter:  roundScore(mean(after, succeeded)),
		Detail:      outcome,
	}
	s.record(ctx, entry)

	logger.Info("run completed",
		"outcome", outcome,
		"files", len(out.Results),
		"failed", len(failed),
		"changes", changes,
		"duration_ms", elapsed.Milliseconds(),
	)
}

func mean(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
