package dedup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/bdradar/internal/db"
	"horse.fit/bdradar/internal/globaltime"
	"horse.fit/bdradar/internal/signal"
)

// RunName is the agent run name recorded for each semantic pass.
const RunName = "transaction_dedup"

// Store is the persistence the semantic pass needs.
type Store interface {
	ListSignalsByKinds(ctx context.Context, kinds []string) ([]db.SignalRecord, error)
	DeleteSignals(ctx context.Context, signalIDs []int64) (int64, error)
	StartAgentRun(ctx context.Context, name string, startedAt time.Time) (db.AgentRun, error)
	CompleteAgentRun(ctx context.Context, runID int64, signalsProduced int, detail map[string]any, finishedAt time.Time) error
	FailAgentRun(ctx context.Context, runID int64, signalsProduced int, detail map[string]any, cause error, finishedAt time.Time) error
}

type Service struct {
	store  Store
	logger zerolog.Logger
	kinds  []string
	opts   Options
}

// Result summarizes one semantic pass.
type Result struct {
	RunUUID       string     `json:"run_uuid,omitempty"`
	Kinds         []string   `json:"kinds"`
	Examined      int        `json:"examined"`
	Deleted       int        `json:"deleted"`
	PairMerges    int        `json:"pair_merges"`
	ClusterMerges int        `json:"cluster_merges"`
	Decisions     []Decision `json:"decisions,omitempty"`
	DryRun        bool       `json:"dry_run,omitempty"`
}

// NewService builds the pass over kinds, defaulting to transactions.
func NewService(store Store, logger zerolog.Logger, kinds []string, opts Options) *Service {
	normalized := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		if parsed, err := signal.ParseKind(kind); err == nil {
			normalized = append(normalized, string(parsed))
		}
	}
	if len(normalized) == 0 {
		normalized = []string{string(signal.KindTransaction)}
	}
	if opts.SharedActorWindow <= 0 {
		opts.SharedActorWindow = DefaultOptions().SharedActorWindow
	}
	if opts.ClusterWindow <= 0 {
		opts.ClusterWindow = DefaultOptions().ClusterWindow
	}

	return &Service{
		store:  store,
		logger: logger,
		kinds:  normalized,
		opts:   opts,
	}
}

// Preview computes the deletions a run would make without applying them.
func (s *Service) Preview(ctx context.Context) (Result, error) {
	if s == nil || s.store == nil {
		return Result{}, fmt.Errorf("dedup service is not initialized")
	}
	result, _, err := s.plan(ctx)
	if err != nil {
		return Result{}, err
	}
	result.DryRun = true
	return result, nil
}

// Run applies the semantic pass and records it as an agent run.
func (s *Service) Run(ctx context.Context) (Result, error) {
	if s == nil || s.store == nil {
		return Result{}, fmt.Errorf("dedup service is not initialized")
	}

	run, err := s.store.StartAgentRun(ctx, RunName, globaltime.UTC())
	if err != nil {
		return Result{}, fmt.Errorf("start dedup run: %w", err)
	}

	result, drops, err := s.plan(ctx)
	if err == nil && len(drops) > 0 {
		var deleted int64
		deleted, err = s.store.DeleteSignals(ctx, drops)
		result.Deleted = int(deleted)
	}
	result.RunUUID = run.RunUUID

	if err != nil {
		if markErr := s.store.FailAgentRun(ctx, run.RunID, 0, result.detail(), err, globaltime.UTC()); markErr != nil {
			return Result{}, fmt.Errorf("dedup failed (%v); failed to mark run failed: %w", err, markErr)
		}
		return Result{}, err
	}
	if err := s.store.CompleteAgentRun(ctx, run.RunID, 0, result.detail(), globaltime.UTC()); err != nil {
		return Result{}, fmt.Errorf("mark dedup run completed: %w", err)
	}

	s.logger.Info().
		Strs("kinds", result.Kinds).
		Int("examined", result.Examined).
		Int("deleted", result.Deleted).
		Int("pair_merges", result.PairMerges).
		Int("cluster_merges", result.ClusterMerges).
		Msg("semantic dedup completed")

	return result, nil
}

func (s *Service) plan(ctx context.Context) (Result, []int64, error) {
	rows, err := s.store.ListSignalsByKinds(ctx, s.kinds)
	if err != nil {
		return Result{}, nil, fmt.Errorf("load signals for dedup: %w", err)
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, RecordFromSignal(row))
	}

	decisions := Plan(records, s.opts)
	result := Result{
		Kinds:     append([]string(nil), s.kinds...),
		Examined:  len(records),
		Decisions: decisions,
	}
	drops := make([]int64, 0, len(decisions))
	for _, decision := range decisions {
		switch decision.Pass {
		case PassPair:
			result.PairMerges++
		case PassCluster:
			result.ClusterMerges++
		}
		drops = append(drops, decision.Drop)
		s.logger.Debug().
			Int64("keep", decision.Keep).
			Int64("drop", decision.Drop).
			Str("pass", string(decision.Pass)).
			Str("reason", string(decision.Reason)).
			Msg("semantic duplicate")
	}
	return result, drops, nil
}

// RecordFromSignal converts a stored signal for planning.
func RecordFromSignal(row db.SignalRecord) Record {
	return Record{
		ID:         row.SignalID,
		Company:    row.CompanyName,
		Kind:       row.Kind,
		Detail:     signal.Detail(row.Detail),
		DetectedAt: row.FirstDetectedAt,
	}
}

func (r Result) detail() map[string]any {
	return map[string]any{
		"kinds":          strings.Join(r.Kinds, ","),
		"examined":       r.Examined,
		"deleted":        r.Deleted,
		"pair_merges":    r.PairMerges,
		"cluster_merges": r.ClusterMerges,
	}
}
