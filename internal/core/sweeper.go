package core

// sweeper.go expires idle sessions in the background.
//
// Get already hides expired sessions, so the sweeper only reclaims memory
// and records the expiry in the audit trail. It runs until its context is
// cancelled and never stops on a failed audit write.

import (
	"context"
	"log/slog"
	"time"

	"github.com/JonMunkholm/csvclean/internal/audit"
)

// DefaultSweepInterval is used when StartSessionSweeper gets a zero interval.
const DefaultSweepInterval = time.Minute

// StartSessionSweeper sweeps expired sessions every interval until ctx is
// cancelled. Run it in its own goroutine.
func (s *Service) StartSessionSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	slog.Info("session sweeper started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session sweeper stopped")
			return
		case <-ticker.C:
			s.SweepSessions(ctx)
		}
	}
}

// SweepSessions runs one sweep and returns the expired session ids.
func (s *Service) SweepSessions(ctx context.Context) []string {
	start := time.Now()
	expired := s.store.Sweep(s.now())

	s.metrics.RecordExpired(len(expired))
	s.metrics.SetSessions(s.store.Len())

	for _, id := range expired {
		if err := s.audit.Record(ctx, audit.Entry{Action: audit.ActionExpire, SessionID: id}); err != nil {
			slog.Warn("audit record failed", "action", string(audit.ActionExpire), "session_id", id, "error", err)
		}
	}

	if len(expired) > 0 {
		slog.Info("expired sessions swept",
			"expired", len(expired),
			"remaining", s.store.Len(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return expired
}
