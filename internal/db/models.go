package db

import (
	"time"

	"gorm.io/datatypes"
)

// Company maps companies.
type Company struct {
	CompanyID   int64     `gorm:"column:company_id;primaryKey;autoIncrement"`
	CompanyUUID string    `gorm:"column:company_uuid;type:varchar(36);not null;uniqueIndex"`
	Name        string    `gorm:"column:name;type:text;not null"`
	NameKey     string    `gorm:"column:name_key;type:varchar(512);not null;uniqueIndex"`
	Industry    *string   `gorm:"column:industry;type:text"`
	Warmth      string    `gorm:"column:warmth;type:varchar(32);not null;index"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null"`
}

func (Company) TableName() string { return "companies" }

// Signal maps signals. (company_id, kind, dedup_key) is unique.
type Signal struct {
	SignalID        int64             `gorm:"column:signal_id;primaryKey;autoIncrement"`
	SignalUUID      string            `gorm:"column:signal_uuid;type:varchar(36);not null;uniqueIndex"`
	CompanyID       int64             `gorm:"column:company_id;not null;uniqueIndex:signals_identity_key,priority:1"`
	Kind            string            `gorm:"column:kind;type:varchar(64);not null;uniqueIndex:signals_identity_key,priority:2;index"`
	DedupKey        string            `gorm:"column:dedup_key;type:varchar(1024);not null;uniqueIndex:signals_identity_key,priority:3"`
	Summary         string            `gorm:"column:summary;type:text;not null"`
	Detail          datatypes.JSONMap `gorm:"column:detail"`
	Status          string            `gorm:"column:status;type:varchar(32);not null;index"`
	PriorityScore   int               `gorm:"column:priority_score;not null"`
	ScoreBreakdown  datatypes.JSONMap `gorm:"column:score_breakdown"`
	DaysInQueue     int               `gorm:"column:days_in_queue;not null"`
	FirstDetectedAt time.Time         `gorm:"column:first_detected_at;not null;index"`
	CreatedAt       time.Time         `gorm:"column:created_at;not null"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;not null"`
}

func (Signal) TableName() string { return "signals" }

// PastClient maps past_clients.
type PastClient struct {
	PastClientID int64     `gorm:"column:past_client_id;primaryKey;autoIncrement"`
	Name         string    `gorm:"column:name;type:varchar(512);not null;uniqueIndex"`
	Rank         int       `gorm:"column:rank;not null"`
	Active       bool      `gorm:"column:active;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;not null"`
	UpdatedAt    time.Time `gorm:"column:updated_at;not null"`
}

func (PastClient) TableName() string { return "past_clients" }

// ExcludedCompany maps excluded_companies.
type ExcludedCompany struct {
	ExcludedCompanyID int64      `gorm:"column:excluded_company_id;primaryKey;autoIncrement"`
	Name              string     `gorm:"column:name;type:varchar(512);not null;uniqueIndex"`
	Reason            *string    `gorm:"column:reason;type:text"`
	LastCheckedAt     *time.Time `gorm:"column:last_checked_at"`
	CreatedAt         time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;not null"`
}

func (ExcludedCompany) TableName() string { return "excluded_companies" }

// AgentRun maps agent_runs.
type AgentRun struct {
	RunID           int64             `gorm:"column:run_id;primaryKey;autoIncrement"`
	RunUUID         string            `gorm:"column:run_uuid;type:varchar(36);not null;uniqueIndex"`
	Name            string            `gorm:"column:name;type:varchar(128);not null;index"`
	Status          string            `gorm:"column:status;type:varchar(16);not null"`
	StartedAt       time.Time         `gorm:"column:started_at;not null;index"`
	FinishedAt      *time.Time        `gorm:"column:finished_at"`
	SignalsProduced int               `gorm:"column:signals_produced;not null"`
	Detail          datatypes.JSONMap `gorm:"column:detail"`
	ErrorMessage    *string           `gorm:"column:error_message;type:text"`
	CreatedAt       time.Time         `gorm:"column:created_at;not null"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;not null"`
}

func (AgentRun) TableName() string { return "agent_runs" }

// Agent run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

func autoMigrateModels() []any {
	return []any{
		&Company{},
		&Signal{},
		&PastClient{},
		&ExcludedCompany{},
		&AgentRun{},
	}
}
