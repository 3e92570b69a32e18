package chaos

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Runner executes scenarios sequentially and collects records. Scenarios
// never run concurrently: two overlapping faults would make recovery
// attribution meaningless.
type Runner struct {
	env    *Env
	logger *slog.Logger

	// now is injectable for tests
	now func() time.Time
}

// NewRunner creates a chaos runner
func NewRunner(env *Env, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if env.Logger == nil {
		env.Logger = logger
	}
	return &Runner{
		env:    env,
		logger: logger.With("component", "chaos"),
		now:    time.Now,
	}
}

// Run executes every scenario and returns one record per scenario. A failed
// or panicking scenario never prevents the following ones from running.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario) []Record {
	records := make([]Record, 0, len(scenarios))
	for _, sc := range scenarios {
		records = append(records, r.runOne(ctx, sc))
	}
	return records
}

// runOne executes a single scenario with the cleanup guarantee: once Setup
// has been entered, Cleanup runs exactly once, regardless of errors or
// panics in Setup or Execute.
func (r *Runner) runOne(ctx context.Context, sc Scenario) (rec Record) {
	rec = Record{
		Name:      sc.Name(),
		Kind:      sc.Kind(),
		Target:    sc.Target(),
		StartedAt: r.now(),
		Results:   map[string]any{"run_id": uuid.NewString()},
	}
	logger := r.logger.With("scenario", sc.Name(), "kind", sc.Kind())
	logger.Info("scenario starting", "target", sc.Target())

	defer func() {
		if p := recover(); p != nil {
			rec.Success = false
			rec.Error = fmt.Sprintf("panic: %v", p)
			logger.Error("scenario panicked", "panic", p)
		}
		r.cleanup(ctx, sc, &rec, logger)
		rec.EndedAt = r.now()
		logger.Info("scenario finished",
			"success", rec.Success,
			"manual_restore", rec.ManualRestore,
			"duration", rec.Duration().String())
	}()

	if err := sc.Setup(ctx, r.env); err != nil {
		rec.Error = fmt.Sprintf("setup: %v", err)
		return rec
	}

	if err := sc.Execute(ctx, r.env, &rec); err != nil {
		rec.Success = false
		if rec.Error == "" {
			rec.Error = fmt.Sprintf("execute: %v", err)
		}
	}
	return rec
}

// cleanup runs the scenario's cleanup with its own panic guard so a broken
// cleanup cannot take down the suite either.
func (r *Runner) cleanup(ctx context.Context, sc Scenario, rec *Record, logger *slog.Logger) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("cleanup panicked", "panic", p)
		}
	}()

	if err := sc.Cleanup(ctx, r.env, rec); err != nil {
		logger.Error("cleanup failed", "err", err)
		if rec.Error == "" {
			rec.Error = fmt.Sprintf("cleanup: %v", err)
		}
	}
}

// Score summarizes a finished suite
type Score struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// ScoreRecords tallies pass/fail over a set of records
func ScoreRecords(records []Record) Score {
	s := Score{Total: len(records)}
	for _, rec := range records {
		if rec.Success {
			s.Passed++
		} else {
			s.Failed++
		}
	}
	return s
}
