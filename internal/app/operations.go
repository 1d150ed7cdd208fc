package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"horse.fit/bdradar/internal/dedup"
	"horse.fit/bdradar/internal/globaltime"
	"horse.fit/bdradar/internal/intake"
	"horse.fit/bdradar/internal/orchestrate"
	"horse.fit/bdradar/internal/signal"
)

// SubmitRunName labels agent runs for directly submitted batches.
const SubmitRunName = "submit"

type operationsStore interface {
	orchestrate.Store
	dedup.Store
}

// operations backs the write paths shared by the CLI and the API.
type operations struct {
	store      operationsStore
	logger     zerolog.Logger
	dedupKinds []string
	dedupOpts  dedup.Options
}

func newOperations(store operationsStore, dedupKinds []string, logger zerolog.Logger) *operations {
	return &operations{
		store:      store,
		logger:     logger,
		dedupKinds: dedupKinds,
		dedupOpts:  dedup.DefaultOptions(),
	}
}

// Submit admits one batch through a freshly loaded processor and records it
// as a single agent run.
func (o *operations) Submit(ctx context.Context, candidates []signal.Candidate) ([]intake.Admission, intake.RunStats, error) {
	run, err := o.store.StartAgentRun(ctx, SubmitRunName, globaltime.UTC())
	if err != nil {
		return nil, intake.RunStats{}, fmt.Errorf("start submit run: %w", err)
	}

	fail := func(cause error, stats intake.RunStats) error {
		if markErr := o.store.FailAgentRun(ctx, run.RunID, stats.Admitted, stats.Map(), cause, globaltime.UTC()); markErr != nil {
			return fmt.Errorf("submit failed (%v); failed to mark run failed: %w", cause, markErr)
		}
		return cause
	}

	processor, err := intake.NewLoader(o.store, o.logger).Load(ctx)
	if err != nil {
		return nil, intake.RunStats{}, fail(fmt.Errorf("load rosters: %w", err), intake.RunStats{})
	}

	admissions := make([]intake.Admission, 0, len(candidates))
	for _, candidate := range candidates {
		admission, err := processor.Submit(ctx, candidate)
		if err != nil {
			stats := processor.Stats()
			return admissions, stats, fail(err, stats)
		}
		admissions = append(admissions, admission)
	}

	stats := processor.Stats()
	if err := o.store.CompleteAgentRun(ctx, run.RunID, stats.Admitted, stats.Map(), globaltime.UTC()); err != nil {
		return admissions, stats, fmt.Errorf("mark submit run completed: %w", err)
	}
	return admissions, stats, nil
}

func (o *operations) Sweep(ctx context.Context) (orchestrate.SweepResult, error) {
	return orchestrate.NewSweeper(o.store, o.logger).Run(ctx, o.store)
}

func (o *operations) Dedup(ctx context.Context, dryRun bool) (dedup.Result, error) {
	svc := dedup.NewService(o.store, o.logger, o.dedupKinds, o.dedupOpts)
	if dryRun {
		return svc.Preview(ctx)
	}
	return svc.Run(ctx)
}
