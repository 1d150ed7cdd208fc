// Package intake admits collector candidates as scored signals.
package intake

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/bdradar/internal/db"
	"horse.fit/bdradar/internal/dedup"
	"horse.fit/bdradar/internal/globaltime"
	"horse.fit/bdradar/internal/resolve"
	"horse.fit/bdradar/internal/roster"
	"horse.fit/bdradar/internal/scoring"
	"horse.fit/bdradar/internal/signal"
)

// Reason explains why a candidate was not admitted.
type Reason string

const (
	ReasonUnresolvable Reason = "unresolvable"
	ReasonExcluded     Reason = "excluded"
	ReasonDuplicate    Reason = "duplicate"
	ReasonInvalid      Reason = "invalid"
)

// Store is the persistence admission needs.
type Store interface {
	resolve.Store
	SignalExists(ctx context.Context, companyID int64, kind, dedupKey string) (bool, error)
	InsertSignal(ctx context.Context, params db.InsertSignalParams) (db.Signal, error)
}

// Admission is the outcome of one Submit. Rejections are not errors.
type Admission struct {
	Admitted    bool   `json:"admitted"`
	SignalID    int64  `json:"-"`
	SignalUUID  string `json:"signal_uuid,omitempty"`
	CompanyUUID string `json:"company_uuid,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
	Score       int    `json:"priority_score,omitempty"`
	Reason      Reason `json:"reason,omitempty"`
	Message     string `json:"message,omitempty"`
}

// RunStats tallies one run's candidates.
type RunStats struct {
	Seen         int `json:"seen"`
	Admitted     int `json:"admitted"`
	Duplicate    int `json:"duplicate"`
	Excluded     int `json:"excluded"`
	Unresolvable int `json:"unresolvable"`
	Invalid      int `json:"invalid"`
}

// Map renders the tallies for an agent run detail.
func (s RunStats) Map() map[string]any {
	return map[string]any{
		"seen":         s.Seen,
		"admitted":     s.Admitted,
		"duplicate":    s.Duplicate,
		"excluded":     s.Excluded,
		"unresolvable": s.Unresolvable,
		"invalid":      s.Invalid,
	}
}

// Processor admits candidates against one loaded roster snapshot.
type Processor struct {
	store       Store
	resolver    *resolve.Resolver
	pastClients *roster.PastClients
	exclusions  *roster.Exclusions
	logger      zerolog.Logger

	mu    sync.Mutex
	stats RunStats
}

func NewProcessor(store Store, rosters Rosters, logger zerolog.Logger) *Processor {
	return &Processor{
		store:       store,
		resolver:    resolve.New(store, logger),
		pastClients: rosters.PastClients,
		exclusions:  rosters.Exclusions,
		logger:      logger,
	}
}

// Fork returns a processor sharing rosters with p but with fresh tallies.
func (p *Processor) Fork(logger zerolog.Logger) *Processor {
	return &Processor{
		store:       p.store,
		resolver:    resolve.New(p.store, logger),
		pastClients: p.pastClients,
		exclusions:  p.exclusions,
		logger:      logger,
	}
}

// Stats returns a snapshot of the tallies so far.
func (p *Processor) Stats() RunStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Submit runs one candidate through resolution, exclusion, exact-key
// deduplication and scoring, and stores it when admitted.
func (p *Processor) Submit(ctx context.Context, candidate signal.Candidate) (Admission, error) {
	if p == nil || p.store == nil {
		return Admission{}, fmt.Errorf("intake processor is not initialized")
	}
	p.count(func(s *RunStats) { s.Seen++ })

	if err := candidate.Validate(); err != nil {
		return p.reject(candidate, ReasonInvalid, err.Error()), nil
	}
	kind, _ := signal.ParseKind(string(candidate.Kind))
	now := globaltime.UTC()
	dedupKey := admissionKey(candidate, now)
	if dedupKey == "" {
		return p.reject(candidate, ReasonInvalid, "dedup_key holds no usable part"), nil
	}

	company, ok, err := p.resolver.Resolve(ctx, candidate.RawCompanyName)
	if err != nil {
		return Admission{}, fmt.Errorf("resolve company: %w", err)
	}
	if !ok {
		return p.reject(candidate, ReasonUnresolvable, "company name is empty after normalization"), nil
	}

	if match, excluded := p.exclusions.Match(candidate.RawCompanyName); excluded {
		return p.reject(candidate, ReasonExcluded, fmt.Sprintf("matches excluded company %q (%s)", match.Entry.Name, match.Method)), nil
	}

	exists, err := p.store.SignalExists(ctx, company.CompanyID, string(kind), dedupKey)
	if err != nil {
		return Admission{}, fmt.Errorf("check existing signal: %w", err)
	}
	if exists {
		return p.reject(candidate, ReasonDuplicate, "signal already recorded"), nil
	}

	detail := candidate.Detail.Clone()
	boost := 0
	if match, isPastClient := p.pastClients.Lookup(candidate.RawCompanyName); isPastClient {
		boost = match.Boost
		detail[signal.DetailPastClient] = map[string]any{
			"name":   match.Name,
			"rank":   match.Rank,
			"boost":  match.Boost,
			"method": string(match.Method),
		}
	}

	breakdown := scoring.Initial(scoring.Inputs{
		Kind:            kind,
		Warmth:          signal.ParseWarmth(company.Warmth),
		PastClientBoost: boost,
		ActivePostings:  candidate.ActivePostings,
	})

	stored, err := p.store.InsertSignal(ctx, db.InsertSignalParams{
		CompanyID:       company.CompanyID,
		Kind:            string(kind),
		DedupKey:        dedupKey,
		Summary:         strings.TrimSpace(candidate.Summary),
		Detail:          detail,
		Status:          string(signal.StatusNew),
		PriorityScore:   breakdown.Total(),
		ScoreBreakdown:  breakdown.ToMap(),
		FirstDetectedAt: now,
	})
	if err != nil {
		if db.IsDuplicate(err) {
			return p.reject(candidate, ReasonDuplicate, "signal recorded concurrently"), nil
		}
		return Admission{}, fmt.Errorf("insert signal: %w", err)
	}

	p.count(func(s *RunStats) { s.Admitted++ })
	p.logger.Debug().
		Str("company", company.Name).
		Str("kind", string(kind)).
		Str("dedup_key", dedupKey).
		Int("priority_score", stored.PriorityScore).
		Msg("signal admitted")

	return Admission{
		Admitted:    true,
		SignalID:    stored.SignalID,
		SignalUUID:  stored.SignalUUID,
		CompanyUUID: company.CompanyUUID,
		CompanyName: company.Name,
		Score:       stored.PriorityScore,
	}, nil
}

func (p *Processor) reject(candidate signal.Candidate, reason Reason, message string) Admission {
	p.count(func(s *RunStats) {
		switch reason {
		case ReasonDuplicate:
			s.Duplicate++
		case ReasonExcluded:
			s.Excluded++
		case ReasonUnresolvable:
			s.Unresolvable++
		case ReasonInvalid:
			s.Invalid++
		}
	})
	p.logger.Debug().
		Str("company", candidate.RawCompanyName).
		Str("kind", string(candidate.Kind)).
		Str("dedup_key", candidate.DedupKey).
		Str("reason", string(reason)).
		Msg("candidate rejected")
	return Admission{Reason: reason, Message: message}
}

func (p *Processor) count(update func(*RunStats)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	update(&p.stats)
}

// admissionKey is the dedup key a candidate is stored under: URL parts in
// canonical form, with the ISO week appended for weekly sources.
func admissionKey(candidate signal.Candidate, now time.Time) string {
	key := dedup.NormalizeKey(candidate.DedupKey)
	if key == "" {
		return ""
	}
	if cadence, _ := signal.ParseCadence(string(candidate.Cadence)); cadence == signal.CadenceWeekly {
		return dedup.Key(key, dedup.WeekBucket(now))
	}
	return key
}
