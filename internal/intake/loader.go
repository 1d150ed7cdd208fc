package intake

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"horse.fit/bdradar/internal/db"
	"horse.fit/bdradar/internal/roster"
)

// RosterStore reads the past-client and exclusion rosters.
type RosterStore interface {
	ListPastClients(ctx context.Context) ([]db.PastClient, error)
	ListExcludedCompanies(ctx context.Context) ([]db.ExcludedCompany, error)
}

// Rosters is one in-memory snapshot of both rosters.
type Rosters struct {
	PastClients *roster.PastClients
	Exclusions  *roster.Exclusions
}

// LoadRosters reads both rosters once.
func LoadRosters(ctx context.Context, store RosterStore) (Rosters, error) {
	pastRows, err := store.ListPastClients(ctx)
	if err != nil {
		return Rosters{}, fmt.Errorf("load past clients: %w", err)
	}
	excludedRows, err := store.ListExcludedCompanies(ctx)
	if err != nil {
		return Rosters{}, fmt.Errorf("load excluded companies: %w", err)
	}

	pastEntries := make([]roster.Entry, 0, len(pastRows))
	for _, row := range pastRows {
		if !row.Active {
			continue
		}
		pastEntries = append(pastEntries, roster.Entry{Name: row.Name, Rank: row.Rank})
	}
	excludedEntries := make([]roster.Entry, 0, len(excludedRows))
	for _, row := range excludedRows {
		excludedEntries = append(excludedEntries, roster.Entry{Name: row.Name})
	}

	pastClients := roster.NewPastClients(pastEntries)
	return Rosters{
		PastClients: pastClients,
		Exclusions:  roster.NewExclusions(excludedEntries, pastClients),
	}, nil
}

// LoaderStore is everything a loaded processor touches.
type LoaderStore interface {
	Store
	RosterStore
}

// Loader builds processors with freshly loaded rosters.
type Loader struct {
	store  LoaderStore
	logger zerolog.Logger
}

func NewLoader(store LoaderStore, logger zerolog.Logger) *Loader {
	return &Loader{store: store, logger: logger}
}

// Load reads the rosters and returns a processor for one run.
func (l *Loader) Load(ctx context.Context) (*Processor, error) {
	if l == nil || l.store == nil {
		return nil, fmt.Errorf("intake loader is not initialized")
	}
	rosters, err := LoadRosters(ctx, l.store)
	if err != nil {
		return nil, err
	}
	l.logger.Debug().
		Int("past_clients", rosters.PastClients.Len()).
		Int("excluded", rosters.Exclusions.Len()).
		Msg("rosters loaded")
	return NewProcessor(l.store, rosters, l.logger), nil
}
