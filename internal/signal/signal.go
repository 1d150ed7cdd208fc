// Package signal holds the vocabulary shared by every stage that turns a
// collector's candidate event into a stored, scored signal.
package signal

import (
	"fmt"
	"strings"
)

// Kind identifies the source category of a signal.
type Kind string

const (
	KindPhaseTransition   Kind = "phase_transition"
	KindNewIND            Kind = "new_ind"
	KindNewAward          Kind = "new_award"
	KindTransaction       Kind = "transaction"
	KindPartnership       Kind = "partnership"
	KindFunding           Kind = "funding"
	KindCompetitorPosting Kind = "competitor_posting"
	KindStalePosting      Kind = "stale_posting"
)

var knownKinds = []Kind{
	KindPhaseTransition,
	KindNewIND,
	KindNewAward,
	KindTransaction,
	KindPartnership,
	KindFunding,
	KindCompetitorPosting,
	KindStalePosting,
}

// ParseKind accepts snake_case or hyphenated tags ("new-award") in any case.
func ParseKind(raw string) (Kind, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	normalized = strings.ReplaceAll(normalized, " ", "_")
	for _, kind := range knownKinds {
		if string(kind) == normalized {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unknown signal kind %q", raw)
}

func (k Kind) String() string { return string(k) }

// Status is a signal's lifecycle position.
type Status string

const (
	StatusNew            Status = "new"
	StatusCarriedForward Status = "carried_forward"
	StatusClaimed        Status = "claimed"
	StatusContacted      Status = "contacted"
	StatusClosed         Status = "closed"
)

// ActiveStatuses are the statuses the sweep recomputes.
func ActiveStatuses() []Status {
	return []Status{StatusNew, StatusCarriedForward, StatusClaimed, StatusContacted}
}

func ParseStatus(raw string) (Status, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "_")
	switch Status(normalized) {
	case StatusNew, StatusCarriedForward, StatusClaimed, StatusContacted, StatusClosed:
		return Status(normalized), nil
	default:
		return "", fmt.Errorf("unknown signal status %q", raw)
	}
}

// Warmth is a company's existing-relationship category.
type Warmth string

const (
	WarmthActiveClient Warmth = "active_client"
	WarmthPastClient   Warmth = "past_client"
	WarmthInPipeline   Warmth = "in_pipeline"
	WarmthNewProspect  Warmth = "new_prospect"
)

// ParseWarmth maps unknown or empty input to new_prospect.
func ParseWarmth(raw string) Warmth {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "_")
	switch Warmth(normalized) {
	case WarmthActiveClient, WarmthPastClient, WarmthInPipeline:
		return Warmth(normalized)
	default:
		return WarmthNewProspect
	}
}

// Valid reports whether w is one of the known categories.
func (w Warmth) Valid() bool {
	switch w {
	case WarmthActiveClient, WarmthPastClient, WarmthInPipeline, WarmthNewProspect:
		return true
	default:
		return false
	}
}

// Cadence controls how often one source may re-signal the same event.
type Cadence string

const (
	// CadenceOnce admits a dedup key once for good.
	CadenceOnce Cadence = "once"
	// CadenceWeekly appends the ISO week to the dedup key, so a recurring
	// event re-signals at most once a week.
	CadenceWeekly Cadence = "weekly"
)

func ParseCadence(raw string) (Cadence, error) {
	switch Cadence(strings.ToLower(strings.TrimSpace(raw))) {
	case "", CadenceOnce:
		return CadenceOnce, nil
	case CadenceWeekly:
		return CadenceWeekly, nil
	default:
		return "", fmt.Errorf("unknown cadence %q", raw)
	}
}

// Candidate is one raw event handed over by a collector.
type Candidate struct {
	RawCompanyName string `json:"company"`
	Kind           Kind   `json:"kind"`
	DedupKey       string `json:"dedup_key"`
	Summary        string `json:"summary"`
	Detail         Detail `json:"detail,omitempty"`

	// Cadence is empty or CadenceOnce unless the source re-emits the event.
	Cadence Cadence `json:"cadence,omitempty"`

	// ActivePostings enables the pre-hiring adjustment when set.
	ActivePostings *int `json:"active_postings,omitempty"`
}

// Validate checks the fields every candidate must carry.
func (c Candidate) Validate() error {
	if strings.TrimSpace(c.RawCompanyName) == "" {
		return fmt.Errorf("company is required")
	}
	if _, err := ParseKind(string(c.Kind)); err != nil {
		return err
	}
	if strings.TrimSpace(c.DedupKey) == "" {
		return fmt.Errorf("dedup_key is required")
	}
	if _, err := ParseCadence(string(c.Cadence)); err != nil {
		return err
	}
	if c.ActivePostings != nil && *c.ActivePostings < 0 {
		return fmt.Errorf("active_postings must be >= 0")
	}
	return nil
}
