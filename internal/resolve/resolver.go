// Package resolve maps free-text organization names to durable company rows.
package resolve

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"horse.fit/bdradar/internal/db"
	"horse.fit/bdradar/internal/orgname"
	"horse.fit/bdradar/internal/signal"
)

// Store is the persistence the resolver needs.
type Store interface {
	FindCompanyByKey(ctx context.Context, nameKey string) (db.Company, error)
	InsertCompany(ctx context.Context, params db.InsertCompanyParams) (db.Company, error)
}

type Resolver struct {
	store  Store
	logger zerolog.Logger
}

func New(store Store, logger zerolog.Logger) *Resolver {
	return &Resolver{
		store:  store,
		logger: logger,
	}
}

// Resolve returns the company for raw, creating it on first sight. The bool
// is false when raw normalizes to nothing; callers must skip the event.
func (r *Resolver) Resolve(ctx context.Context, raw string) (db.Company, bool, error) {
	if r == nil || r.store == nil {
		return db.Company{}, false, fmt.Errorf("resolver is not initialized")
	}

	key := orgname.Key(raw)
	if key == "" {
		return db.Company{}, false, nil
	}

	company, err := r.store.FindCompanyByKey(ctx, key)
	if err == nil {
		return company, true, nil
	}
	if !db.IsNoRows(err) {
		return db.Company{}, false, fmt.Errorf("lookup company %q: %w", key, err)
	}

	company, err = r.store.InsertCompany(ctx, db.InsertCompanyParams{
		Name:    orgname.Display(raw),
		NameKey: key,
		Warmth:  string(signal.WarmthNewProspect),
	})
	if err == nil {
		r.logger.Debug().
			Int64("company_id", company.CompanyID).
			Str("name", company.Name).
			Str("name_key", key).
			Msg("company created")
		return company, true, nil
	}
	if !db.IsDuplicate(err) {
		return db.Company{}, false, fmt.Errorf("insert company %q: %w", key, err)
	}

	// Lost the insert race; the winner's row is authoritative.
	company, err = r.store.FindCompanyByKey(ctx, key)
	if err != nil {
		return db.Company{}, false, fmt.Errorf("re-query company %q after conflict: %w", key, err)
	}
	return company, true, nil
}
