package core

import (
	"context"
	"time"

	"github.com/JonMunkholm/csvclean/internal/audit"
	"github.com/JonMunkholm/csvclean/internal/cleaning"
	"github.com/JonMunkholm/csvclean/internal/config"
	"github.com/JonMunkholm/csvclean/internal/logging"
	"github.com/JonMunkholm/csvclean/internal/metrics"
	"github.com/JonMunkholm/csvclean/internal/session"
)

// DefaultRunTimeout bounds one cleaning run when Options leaves it unset.
const DefaultRunTimeout = 5 * time.Minute

// Options tunes the service. Zero values select defaults.
type Options struct {
	MaxConcurrent    int
	MaxWait          time.Duration
	MaxFileSize      int64
	MaxFiles         int
	Thresholds       cleaning.Thresholds
	MaxParallelFiles int
	CriticalGate     bool
	RunTimeout       time.Duration
}

// OptionsFromConfig maps loaded configuration onto service options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxConcurrent:    cfg.Upload.MaxConcurrent,
		MaxWait:          cfg.Upload.MaxWaitTime,
		MaxFileSize:      cfg.Upload.MaxFileSize,
		MaxFiles:         cfg.Upload.MaxFiles,
		Thresholds:       cleaning.Thresholds{Low: cfg.Cleaning.LowThreshold, Mid: cfg.Cleaning.MidThreshold},
		MaxParallelFiles: cfg.Cleaning.MaxParallelFiles,
		CriticalGate:     cfg.Cleaning.CriticalGate,
		RunTimeout:       cfg.Cleaning.RunTimeout,
	}
}

// Deps are the collaborators of a Service. Nil fields get defaults: an
// in-memory store, a no-op audit recorder, no metrics and the rule
// translator.
type Deps struct {
	Store      session.Store
	Audit      audit.Recorder
	Metrics    *metrics.Collector
	Translator cleaning.Translator
}

// Service implements the upload, run, chat and reset use cases.
type Service struct {
	store      session.Store
	pipeline   *cleaning.Pipeline
	limiter    *Limiter
	translator cleaning.Translator
	audit      audit.Recorder
	metrics    *metrics.Collector
	opts       Options
	now        func() time.Time
}

// NewService creates a service.
func NewService(deps Deps, opts Options) *Service {
	if opts.Thresholds == (cleaning.Thresholds{}) {
		opts.Thresholds = cleaning.DefaultThresholds()
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = DefaultRunTimeout
	}
	if deps.Store == nil {
		deps.Store = session.NewMemoryStore(nil, 0, 0)
	}
	if deps.Audit == nil {
		deps.Audit = audit.Nop{}
	}
	if deps.Translator == nil {
		deps.Translator = cleaning.RuleTranslator{}
	}

	limiter := NewLimiter(opts.MaxConcurrent, opts.MaxWait)
	limiter.OnChange(deps.Metrics.SetLimiterActive)

	return &Service{
		store:      deps.Store,
		pipeline:   cleaning.NewPipeline(opts.Thresholds, opts.MaxParallelFiles),
		limiter:    limiter,
		translator: deps.Translator,
		audit:      deps.Audit,
		metrics:    deps.Metrics,
		opts:       opts,
		now:        time.Now,
	}
}

// Thresholds returns the severity boundaries used for assessments.
func (s *Service) Thresholds() cleaning.Thresholds {
	return s.opts.Thresholds
}

// ChatReply is the result of one chat command.
type ChatReply struct {
	Reply  string           `json:"reply"`
	Config *cleaning.Config `json:"config"`
}

// Chat applies a free-text command to cfg and returns the edited copy.
// Table data is never touched.
func (s *Service) Chat(ctx context.Context, message string, cfg *cleaning.Config) (*ChatReply, error) {
	patch, err := s.translator.Translate(message)
	if err != nil {
		logging.FromContext(ctx).Debug("chat command not recognized", "message", message)
		return nil, err
	}
	return &ChatReply{Reply: patch.Reply, Config: patch.Apply(cfg)}, nil
}

// Reset discards a session explicitly.
func (s *Service) Reset(ctx context.Context, id string) error {
	if !s.store.Discard(id) {
		return session.ErrNotFound
	}
	s.metrics.SetSessions(s.store.Len())
	s.record(ctx, audit.Entry{Action: audit.ActionReset, SessionID: id})
	logging.FromContext(ctx).Info("session reset", "session_id", id)
	return nil
}

// Status is a snapshot for the status endpoint.
type Status struct {
	Limiter  LimiterStatus `json:"limiter"`
	Sessions int           `json:"sessions"`
}

// Status returns limiter and session counts.
func (s *Service) Status() Status {
	return Status{Limiter: s.limiter.Status(), Sessions: s.store.Len()}
}

// WaitForRuns blocks until no upload or run holds a limiter slot.
func (s *Service) WaitForRuns(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// record writes an audit entry. Failures are logged, never returned: the
// audit trail must not break uploads or runs.
func (s *Service) record(ctx context.Context, e audit.Entry) {
	client := ClientInfoFrom(ctx)
	e.IPAddress = client.IPAddress
	e.UserAgent = client.UserAgent
	if err := s.audit.Record(ctx, e); err != nil {
		logging.FromContext(ctx).Warn("audit record failed", "action", string(e.Action), "error", err)
	}
}
