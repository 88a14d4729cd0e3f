package cleaning

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/csvclean/internal/logging"
	"github.com/JonMunkholm/csvclean/internal/table"
)

// Result is the outcome of cleaning one table. When Err is set the file
// was aborted: Cleaned and Splits are nil and After is zero.
type Result struct {
	Filename        string
	Cleaned         *table.Table
	Before          Assessment
	After           Assessment
	Changes         []string
	RemainingIssues []string
	Warnings        []string
	Splits          *Splits
	Err             error
}

// Failed reports whether the file was aborted.
func (r *Result) Failed() bool { return r.Err != nil }

// Pipeline runs the cleaning stages in their fixed order:
// dtypes, missing, text, duplicates, outliers, sort, split.
type Pipeline struct {
	thresholds Thresholds
	parallel   int
}

// NewPipeline creates a pipeline. parallel bounds how many files of one
// run are cleaned at once; values below 1 mean one at a time.
func NewPipeline(th Thresholds, parallel int) *Pipeline {
	return &Pipeline{thresholds: th, parallel: max(parallel, 1)}
}

// Thresholds returns the severity boundaries used for scoring.
func (p *Pipeline) Thresholds() Thresholds { return p.thresholds }

// Run validates cfg and cleans every table. A *ConfigError is returned
// before any stage runs when cfg is malformed. Otherwise results are in
// input order; per-file failures are reported in Result.Err.
func (p *Pipeline) Run(ctx context.Context, tables []table.Named, cfg *Config) ([]Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	results := make([]Result, len(tables))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallel)
	for i, nt := range tables {
		g.Go(func() error {
			results[i] = p.RunTable(gctx, nt.Name, nt.Table, cfg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

type stage struct {
	name  string
	apply func(*table.Table) (*table.Table, StageLog, error)
}

// RunTable cleans one table with an already validated config.
func (p *Pipeline) RunTable(ctx context.Context, name string, t *table.Table, cfg *Config) Result {
	logger := logging.WithFields(ctx, "file", name)
	res := Result{Filename: name, Before: AssessWith(t, p.thresholds)}

	stages := []stage{
		{"apply_dtypes", func(t *table.Table) (*table.Table, StageLog, error) {
			out, log := ApplyDtypes(t, cfg.Dtypes)
			return out, log, nil
		}},
		{"handle_missing", func(t *table.Table) (*table.Table, StageLog, error) {
			return HandleMissing(t, cfg.Missing)
		}},
		{"text_clean", func(t *table.Table) (*table.Table, StageLog, error) {
			out, log := CleanText(t, cfg.TextClean)
			return out, log, nil
		}},
		{"drop_duplicates", func(t *table.Table) (*table.Table, StageLog, error) {
			out, log := DropDuplicates(t, cfg.Duplicates)
			return out, log, nil
		}},
		{"handle_outliers", func(t *table.Table) (*table.Table, StageLog, error) {
			out, log := RemoveOutliers(t, cfg.Outliers)
			return out, log, nil
		}},
		{"sort", func(t *table.Table) (*table.Table, StageLog, error) {
			out, log := SortRows(t, cfg.Sort)
			return out, log, nil
		}},
	}

	var all StageLog
	cur := t
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return p.abort(res, err)
		}
		start := time.Now()
		next, log, err := s.apply(cur)
		all.merge(log)
		if err != nil {
			logger.Warn("stage aborted file", "stage", s.name, "error", err)
			return p.abort(res, fmt.Errorf("%s: %w", s.name, err))
		}
		logger.Debug("stage complete",
			"stage", s.name,
			"changes", len(log.Changes),
			"rows", next.NumRows(),
			"duration", time.Since(start),
		)
		cur = next
	}

	if cfg.Split != nil {
		splits, log := SplitRows(cur, cfg.Split)
		all.merge(log)
		res.Splits = splits
	}

	res.Cleaned = cur
	res.Changes = all.Changes
	res.Warnings = all.Warnings
	res.After = AssessWith(cur, p.thresholds)
	res.RemainingIssues = RemainingIssues(res.After)
	return res
}

func (p *Pipeline) abort(res Result, err error) Result {
	res.Err = err
	res.Cleaned = nil
	res.Splits = nil
	return res
}

// RemainingIssues renders what is still dirty in an assessment, or
// "(none)" when the score is zero.
func RemainingIssues(a Assessment) []string {
	if a.Score == 0 {
		return []string{"(none)"}
	}
	var issues []string
	for _, mc := range a.MissingByColumn {
		issues = append(issues, fmt.Sprintf("%s %s in column '%s'", plural(mc.Count, "missing cell"), remainVerb(mc.Count), mc.Column))
	}
	if a.DuplicateRows > 0 {
		issues = append(issues, fmt.Sprintf("%s %s", plural(a.DuplicateRows, "duplicate row"), remainVerb(a.DuplicateRows)))
	}
	return issues
}

func remainVerb(n int) string {
	if n == 1 {
		return "remains"
	}
	return "remain"
}
