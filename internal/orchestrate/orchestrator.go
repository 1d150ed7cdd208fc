// Package orchestrate runs collectors concurrently and sweeps the signal
// store afterwards.
package orchestrate

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"horse.fit/bdradar/internal/db"
	"horse.fit/bdradar/internal/globaltime"
	"horse.fit/bdradar/internal/intake"
	"horse.fit/bdradar/internal/signal"
)

// RunName is the agent run name recorded for each orchestrator run.
const RunName = "orchestrator"

const (
	defaultConcurrency = 4
	defaultTimeout     = 5 * time.Minute
)

// Collector produces candidate events from one source. Collect calls emit
// once per candidate, in source order, and stops on the first emit error.
type Collector interface {
	Name() string
	Collect(ctx context.Context, emit func(signal.Candidate) error) error
}

// RunLedger records agent runs.
type RunLedger interface {
	StartAgentRun(ctx context.Context, name string, startedAt time.Time) (db.AgentRun, error)
	CompleteAgentRun(ctx context.Context, runID int64, signalsProduced int, detail map[string]any, finishedAt time.Time) error
	FailAgentRun(ctx context.Context, runID int64, signalsProduced int, detail map[string]any, cause error, finishedAt time.Time) error
}

// Store is the persistence one orchestrator run touches.
type Store interface {
	intake.LoaderStore
	SweepStore
	RunLedger
}

// Options tunes collector fan-out.
type Options struct {
	Concurrency int
	Timeout     time.Duration
}

// CollectorResult is the outcome of one collector. A failed collector is a
// result, never an error of the whole run.
type CollectorResult struct {
	Name       string          `json:"name"`
	RunUUID    string          `json:"run_uuid,omitempty"`
	Status     string          `json:"status"`
	Stats      intake.RunStats `json:"stats"`
	Error      string          `json:"error,omitempty"`
	DurationMS int64           `json:"duration_ms"`
}

// RunReport summarizes one orchestrator run.
type RunReport struct {
	RunUUID         string            `json:"run_uuid"`
	Status          string            `json:"status"`
	SignalsProduced int               `json:"signals_produced"`
	Collectors      []CollectorResult `json:"collectors"`
	Sweep           *SweepResult      `json:"sweep,omitempty"`
	SweepError      string            `json:"sweep_error,omitempty"`
}

type Orchestrator struct {
	store      Store
	collectors []Collector
	sweeper    *Sweeper
	opts       Options
	logger     zerolog.Logger
}

func New(store Store, collectors []Collector, opts Options, logger zerolog.Logger) *Orchestrator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Orchestrator{
		store:      store,
		collectors: collectors,
		sweeper:    NewSweeper(store, logger),
		opts:       opts,
		logger:     logger,
	}
}

// Run executes every collector, waits for all of them, sweeps, and records
// the outcome. The run fails when the sweep fails or every collector failed.
func (o *Orchestrator) Run(ctx context.Context) (RunReport, error) {
	if o == nil || o.store == nil {
		return RunReport{}, fmt.Errorf("orchestrator is not initialized")
	}

	run, err := o.store.StartAgentRun(ctx, RunName, globaltime.UTC())
	if err != nil {
		return RunReport{}, fmt.Errorf("start orchestrator run: %w", err)
	}
	report := RunReport{RunUUID: run.RunUUID, Collectors: make([]CollectorResult, len(o.collectors))}

	base, err := intake.NewLoader(o.store, o.logger).Load(ctx)
	if err != nil {
		report.Status = db.RunStatusFailed
		if markErr := o.store.FailAgentRun(ctx, run.RunID, 0, nil, err, globaltime.UTC()); markErr != nil {
			return report, fmt.Errorf("load rosters (%v); failed to mark run failed: %w", err, markErr)
		}
		return report, fmt.Errorf("load rosters: %w", err)
	}

	var g errgroup.Group
	g.SetLimit(o.opts.Concurrency)
	for i, collector := range o.collectors {
		i, collector := i, collector
		g.Go(func() error {
			logger := o.logger.With().Str("collector", collector.Name()).Logger()
			report.Collectors[i] = o.runCollector(ctx, collector, base.Fork(logger), logger)
			return nil
		})
	}
	_ = g.Wait()

	failedCollectors := 0
	for _, result := range report.Collectors {
		report.SignalsProduced += result.Stats.Admitted
		if result.Status == db.RunStatusFailed {
			failedCollectors++
		}
	}

	sweep, sweepErr := o.sweeper.Sweep(ctx, globaltime.UTC())
	if sweepErr != nil {
		report.SweepError = sweepErr.Error()
	} else {
		report.Sweep = &sweep
	}

	detail := report.detail()
	var runErr error
	switch {
	case sweepErr != nil:
		runErr = fmt.Errorf("sweep: %w", sweepErr)
	case len(o.collectors) > 0 && failedCollectors == len(o.collectors):
		runErr = fmt.Errorf("all %d collectors failed", failedCollectors)
	}

	if runErr != nil {
		report.Status = db.RunStatusFailed
		if err := o.store.FailAgentRun(ctx, run.RunID, report.SignalsProduced, detail, runErr, globaltime.UTC()); err != nil {
			return report, fmt.Errorf("mark orchestrator run failed: %w", err)
		}
		o.logger.Error().Err(runErr).Int("signals_produced", report.SignalsProduced).Msg("orchestrator run failed")
		return report, runErr
	}

	report.Status = db.RunStatusCompleted
	if err := o.store.CompleteAgentRun(ctx, run.RunID, report.SignalsProduced, detail, globaltime.UTC()); err != nil {
		return report, fmt.Errorf("mark orchestrator run completed: %w", err)
	}
	o.logger.Info().
		Int("collectors", len(o.collectors)).
		Int("failed_collectors", failedCollectors).
		Int("signals_produced", report.SignalsProduced).
		Msg("orchestrator run completed")
	return report, nil
}

func (o *Orchestrator) runCollector(ctx context.Context, collector Collector, processor *intake.Processor, logger zerolog.Logger) CollectorResult {
	started := globaltime.UTC()
	result := CollectorResult{Name: collector.Name(), Status: db.RunStatusFailed}

	run, err := o.store.StartAgentRun(ctx, collector.Name(), started)
	if err != nil {
		result.Error = fmt.Sprintf("start collector run: %v", err)
		logger.Error().Err(err).Msg("collector run could not be recorded")
		return result
	}
	result.RunUUID = run.RunUUID

	collectCtx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	collectErr := safeCollect(collectCtx, collector, func(candidate signal.Candidate) error {
		_, err := processor.Submit(collectCtx, candidate)
		return err
	})
	cancel()

	result.Stats = processor.Stats()
	result.DurationMS = globaltime.UTC().Sub(started).Milliseconds()
	detail := result.Stats.Map()

	if collectErr != nil {
		result.Error = collectErr.Error()
		if err := o.store.FailAgentRun(ctx, run.RunID, result.Stats.Admitted, detail, collectErr, globaltime.UTC()); err != nil {
			logger.Error().Err(err).Msg("failed to mark collector run failed")
		}
		logger.Error().Err(collectErr).Int("admitted", result.Stats.Admitted).Msg("collector failed")
		return result
	}

	if err := o.store.CompleteAgentRun(ctx, run.RunID, result.Stats.Admitted, detail, globaltime.UTC()); err != nil {
		result.Error = fmt.Sprintf("mark collector run completed: %v", err)
		logger.Error().Err(err).Msg("failed to mark collector run completed")
		return result
	}
	result.Status = db.RunStatusCompleted
	logger.Info().
		Int("seen", result.Stats.Seen).
		Int("admitted", result.Stats.Admitted).
		Int("duplicate", result.Stats.Duplicate).
		Msg("collector completed")
	return result
}

func safeCollect(ctx context.Context, collector Collector, emit func(signal.Candidate) error) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("collector panicked: %v\n%s", recovered, debug.Stack())
		}
	}()
	return collector.Collect(ctx, emit)
}

func (r RunReport) detail() map[string]any {
	collectors := make([]any, 0, len(r.Collectors))
	for _, result := range r.Collectors {
		entry := map[string]any{
			"name":   result.Name,
			"status": result.Status,
			"stats":  result.Stats.Map(),
		}
		if result.Error != "" {
			entry["error"] = result.Error
		}
		collectors = append(collectors, entry)
	}
	detail := map[string]any{"collectors": collectors}
	if r.Sweep != nil {
		detail["sweep"] = r.Sweep.Map()
	}
	if r.SweepError != "" {
		detail["sweep_error"] = r.SweepError
	}
	return detail
}
