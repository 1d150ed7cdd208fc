package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm/clause"
)

// ListPastClients returns active past clients ordered by rank.
func (p *Pool) ListPastClients(ctx context.Context) ([]PastClient, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}

	var rows []PastClient
	err := p.gdb.WithContext(ctx).
		Where("active = ?", true).
		Order("rank ASC").
		Order("name ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query past clients: %w", err)
	}
	return rows, nil
}

func (p *Pool) ListExcludedCompanies(ctx context.Context) ([]ExcludedCompany, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}

	var rows []ExcludedCompany
	if err := p.gdb.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query excluded companies: %w", err)
	}
	return rows, nil
}

// UpsertPastClient inserts or updates a past client by name.
func (p *Pool) UpsertPastClient(ctx context.Context, name string, rank int, active bool) error {
	if err := p.ready(); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("past client name is required")
	}
	if rank < 1 {
		return fmt.Errorf("past client rank must be >= 1")
	}

	row := PastClient{Name: name, Rank: rank, Active: active}
	err := p.gdb.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"rank", "active", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert past client: %w", err)
	}
	return nil
}

// UpsertExcludedCompany inserts or updates an excluded company by name.
func (p *Pool) UpsertExcludedCompany(ctx context.Context, name, reason string, checkedAt time.Time) error {
	if err := p.ready(); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("excluded company name is required")
	}

	row := ExcludedCompany{Name: name}
	if trimmed := strings.TrimSpace(reason); trimmed != "" {
		row.Reason = &trimmed
	}
	if !checkedAt.IsZero() {
		checked := checkedAt.UTC()
		row.LastCheckedAt = &checked
	}

	err := p.gdb.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"reason", "last_checked_at", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert excluded company: %w", err)
	}
	return nil
}
