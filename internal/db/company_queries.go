package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// InsertCompanyParams controls company inserts.
type InsertCompanyParams struct {
	Name     string
	NameKey  string
	Industry *string
	Warmth   string
}

// FindCompanyByKey returns the company stored under the comparison key, or
// ErrNoRows.
func (p *Pool) FindCompanyByKey(ctx context.Context, nameKey string) (Company, error) {
	if err := p.ready(); err != nil {
		return Company{}, err
	}

	var rows []Company
	err := p.gdb.WithContext(ctx).
		Where("name_key = ?", strings.TrimSpace(nameKey)).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return Company{}, fmt.Errorf("query company by key: %w", err)
	}
	if len(rows) == 0 {
		return Company{}, ErrNoRows
	}
	return rows[0], nil
}

// InsertCompany inserts a new company. A concurrent insert of the same key
// surfaces as ErrDuplicate.
func (p *Pool) InsertCompany(ctx context.Context, params InsertCompanyParams) (Company, error) {
	if err := p.ready(); err != nil {
		return Company{}, err
	}
	nameKey := strings.TrimSpace(params.NameKey)
	if nameKey == "" {
		return Company{}, fmt.Errorf("company name key is required")
	}

	company := Company{
		CompanyUUID: uuid.NewString(),
		Name:        strings.TrimSpace(params.Name),
		NameKey:     nameKey,
		Industry:    params.Industry,
		Warmth:      params.Warmth,
	}
	if company.Warmth == "" {
		company.Warmth = "new_prospect"
	}

	if err := p.gdb.WithContext(ctx).Create(&company).Error; err != nil {
		return Company{}, fmt.Errorf("insert company: %w", err)
	}
	return company, nil
}

func (p *Pool) GetCompany(ctx context.Context, companyID int64) (Company, error) {
	if err := p.ready(); err != nil {
		return Company{}, err
	}

	var rows []Company
	if err := p.gdb.WithContext(ctx).Where("company_id = ?", companyID).Limit(1).Find(&rows).Error; err != nil {
		return Company{}, fmt.Errorf("query company: %w", err)
	}
	if len(rows) == 0 {
		return Company{}, ErrNoRows
	}
	return rows[0], nil
}

// SetCompanyWarmth updates warmth by company UUID. Returns ErrNoRows when no
// company matches.
func (p *Pool) SetCompanyWarmth(ctx context.Context, companyUUID, warmth string) (Company, error) {
	if err := p.ready(); err != nil {
		return Company{}, err
	}

	res := p.gdb.WithContext(ctx).
		Model(&Company{}).
		Where("company_uuid = ?", strings.TrimSpace(companyUUID)).
		Update("warmth", warmth)
	if res.Error != nil {
		return Company{}, fmt.Errorf("update company warmth: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return Company{}, ErrNoRows
	}

	var rows []Company
	if err := p.gdb.WithContext(ctx).Where("company_uuid = ?", strings.TrimSpace(companyUUID)).Limit(1).Find(&rows).Error; err != nil {
		return Company{}, fmt.Errorf("reload company: %w", err)
	}
	if len(rows) == 0 {
		return Company{}, ErrNoRows
	}
	return rows[0], nil
}

// CountCompanies returns the number of stored companies.
func (p *Pool) CountCompanies(ctx context.Context) (int64, error) {
	if err := p.ready(); err != nil {
		return 0, err
	}
	var count int64
	if err := p.gdb.WithContext(ctx).Model(&Company{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count companies: %w", err)
	}
	return count, nil
}
