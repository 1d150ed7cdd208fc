package orchestrate

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/bdradar/internal/db"
	"horse.fit/bdradar/internal/globaltime"
	"horse.fit/bdradar/internal/scoring"
	"horse.fit/bdradar/internal/signal"
)

// SweepRunName is the agent run name for a standalone sweep.
const SweepRunName = "sweep"

// SweepStore is the persistence the sweep needs.
type SweepStore interface {
	CarryForwardSignals(ctx context.Context, cutoff time.Time) (int64, error)
	ListActiveSignals(ctx context.Context) ([]db.SignalRecord, error)
	UpdateSignalScore(ctx context.Context, signalID int64, score int, breakdown map[string]any, daysInQueue int) error
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	CarriedForward int `json:"carried_forward"`
	Recomputed     int `json:"recomputed"`
	Updated        int `json:"updated"`
	Repaired       int `json:"repaired"`
}

func (r SweepResult) Map() map[string]any {
	return map[string]any{
		"carried_forward": r.CarriedForward,
		"recomputed":      r.Recomputed,
		"updated":         r.Updated,
		"repaired":        r.Repaired,
	}
}

// Sweeper ages open signals and recomputes their scores.
type Sweeper struct {
	store  SweepStore
	logger zerolog.Logger
}

func NewSweeper(store SweepStore, logger zerolog.Logger) *Sweeper {
	return &Sweeper{store: store, logger: logger}
}

// Sweep marks new signals detected before today as carried forward, then
// recomputes days in queue and score for every open signal. Running it twice
// on the same day changes nothing the second time.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	if s == nil || s.store == nil {
		return SweepResult{}, fmt.Errorf("sweeper is not initialized")
	}

	var result SweepResult
	carried, err := s.store.CarryForwardSignals(ctx, globaltime.StartOfDay(now))
	if err != nil {
		return SweepResult{}, err
	}
	result.CarriedForward = int(carried)

	rows, err := s.store.ListActiveSignals(ctx)
	if err != nil {
		return result, err
	}

	for _, row := range rows {
		result.Recomputed++

		stored, err := scoring.ParseBreakdown(row.ScoreBreakdown)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Int64("signal_id", row.SignalID).
				Msg("score breakdown unreadable; rebuilding from kind")
			stored = scoring.Breakdown{SignalStrength: scoring.BaseStrength(signal.Kind(row.Kind))}
			result.Repaired++
		}

		days := scoring.DaysInQueue(row.FirstDetectedAt, now)
		updated := scoring.Recalculate(stored, signal.Detail(row.Detail), signal.ParseWarmth(row.CompanyWarmth), days)
		score := updated.Total()

		if score == row.PriorityScore && days == row.DaysInQueue && sameComponents(stored, updated) {
			continue
		}
		if err := s.store.UpdateSignalScore(ctx, row.SignalID, score, updated.ToMap(), days); err != nil {
			return result, fmt.Errorf("update signal %d: %w", row.SignalID, err)
		}
		result.Updated++
	}

	s.logger.Info().
		Int("carried_forward", result.CarriedForward).
		Int("recomputed", result.Recomputed).
		Int("updated", result.Updated).
		Msg("sweep completed")
	return result, nil
}

// Run performs a standalone sweep recorded as its own agent run.
func (s *Sweeper) Run(ctx context.Context, ledger RunLedger) (SweepResult, error) {
	now := globaltime.UTC()
	run, err := ledger.StartAgentRun(ctx, SweepRunName, now)
	if err != nil {
		return SweepResult{}, fmt.Errorf("start sweep run: %w", err)
	}

	result, sweepErr := s.Sweep(ctx, now)
	if sweepErr != nil {
		if markErr := ledger.FailAgentRun(ctx, run.RunID, 0, result.Map(), sweepErr, globaltime.UTC()); markErr != nil {
			return SweepResult{}, fmt.Errorf("sweep failed (%v); failed to mark run failed: %w", sweepErr, markErr)
		}
		return SweepResult{}, sweepErr
	}
	if err := ledger.CompleteAgentRun(ctx, run.RunID, 0, result.Map(), globaltime.UTC()); err != nil {
		return SweepResult{}, fmt.Errorf("mark sweep run completed: %w", err)
	}
	return result, nil
}

func sameComponents(a, b scoring.Breakdown) bool {
	if a.SignalStrength != b.SignalStrength ||
		a.RelationshipWarmth != b.RelationshipWarmth ||
		a.Actionability != b.Actionability ||
		a.Recency != b.Recency {
		return false
	}
	if (a.PastClientBoost == nil) != (b.PastClientBoost == nil) {
		return false
	}
	return a.PastClientBoost == nil || *a.PastClientBoost == *b.PastClientBoost
}
