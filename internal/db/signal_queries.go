package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultQueueLimit = 50
	maxQueueLimit     = 500
	deleteBatchSize   = 500
)

// SignalRecord is a signal joined with its owning company.
type SignalRecord struct {
	Signal
	CompanyUUID   string `gorm:"column:company_uuid"`
	CompanyName   string `gorm:"column:company_name"`
	CompanyKey    string `gorm:"column:company_key"`
	CompanyWarmth string `gorm:"column:company_warmth"`
}

// InsertSignalParams controls signal inserts.
type InsertSignalParams struct {
	CompanyID       int64
	Kind            string
	DedupKey        string
	Summary         string
	Detail          map[string]any
	Status          string
	PriorityScore   int
	ScoreBreakdown  map[string]any
	FirstDetectedAt time.Time
}

// QueueFilter narrows ListQueue. An empty Status lists every open signal.
type QueueFilter struct {
	Status string
	Kind   string
	Limit  int
}

const signalRecordSelect = `
SELECT
	s.*,
	c.company_uuid AS company_uuid,
	c.name AS company_name,
	c.name_key AS company_key,
	c.warmth AS company_warmth
FROM signals s
JOIN companies c
	ON c.company_id = s.company_id
`

// SignalExists reports whether the (company, kind, dedup key) triple is stored.
func (p *Pool) SignalExists(ctx context.Context, companyID int64, kind, dedupKey string) (bool, error) {
	if err := p.ready(); err != nil {
		return false, err
	}

	var count int64
	err := p.gdb.WithContext(ctx).
		Model(&Signal{}).
		Where("company_id = ? AND kind = ? AND dedup_key = ?", companyID, kind, dedupKey).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("query signal existence: %w", err)
	}
	return count > 0, nil
}

// InsertSignal stores a new signal. A racing insert of the same triple
// surfaces as ErrDuplicate.
func (p *Pool) InsertSignal(ctx context.Context, params InsertSignalParams) (Signal, error) {
	if err := p.ready(); err != nil {
		return Signal{}, err
	}

	firstDetected := params.FirstDetectedAt.UTC()
	if params.FirstDetectedAt.IsZero() {
		firstDetected = p.gdb.NowFunc()
	}

	row := Signal{
		SignalUUID:      uuid.NewString(),
		CompanyID:       params.CompanyID,
		Kind:            params.Kind,
		DedupKey:        params.DedupKey,
		Summary:         params.Summary,
		Detail:          datatypes.JSONMap(params.Detail),
		Status:          params.Status,
		PriorityScore:   params.PriorityScore,
		ScoreBreakdown:  datatypes.JSONMap(params.ScoreBreakdown),
		DaysInQueue:     0,
		FirstDetectedAt: firstDetected,
	}
	if row.Status == "" {
		row.Status = "new"
	}
	if row.Detail == nil {
		row.Detail = datatypes.JSONMap{}
	}

	if err := p.gdb.WithContext(ctx).Create(&row).Error; err != nil {
		return Signal{}, fmt.Errorf("insert signal: %w", err)
	}
	return row, nil
}

// ListActiveSignals returns every signal that is not closed, with company data.
func (p *Pool) ListActiveSignals(ctx context.Context) ([]SignalRecord, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}

	var rows []SignalRecord
	q := signalRecordSelect + `
WHERE s.status <> 'closed'
ORDER BY s.signal_id ASC
`
	if err := p.gdb.WithContext(ctx).Raw(q).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("query active signals: %w", err)
	}
	return rows, nil
}

// ListSignalsByKinds returns every signal of the given kinds, oldest first.
func (p *Pool) ListSignalsByKinds(ctx context.Context, kinds []string) ([]SignalRecord, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if len(kinds) == 0 {
		return nil, nil
	}

	var rows []SignalRecord
	q := signalRecordSelect + `
WHERE s.kind IN ?
ORDER BY s.signal_id ASC
`
	if err := p.gdb.WithContext(ctx).Raw(q, kinds).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("query signals by kind: %w", err)
	}
	return rows, nil
}

// ListQueue returns the ranked queue: highest score first, then oldest.
func (p *Pool) ListQueue(ctx context.Context, filter QueueFilter) ([]SignalRecord, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultQueueLimit
	}
	limit = min(limit, maxQueueLimit)

	clauses := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if status := strings.TrimSpace(filter.Status); status != "" {
		clauses = append(clauses, "s.status = ?")
		args = append(args, status)
	} else {
		clauses = append(clauses, "s.status <> 'closed'")
	}
	if kind := strings.TrimSpace(filter.Kind); kind != "" {
		clauses = append(clauses, "s.kind = ?")
		args = append(args, kind)
	}
	args = append(args, limit)

	q := signalRecordSelect + `
WHERE ` + strings.Join(clauses, " AND ") + `
ORDER BY s.priority_score DESC, s.first_detected_at ASC, s.signal_id ASC
LIMIT ?
`

	var rows []SignalRecord
	if err := p.gdb.WithContext(ctx).Raw(q, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("query signal queue: %w", err)
	}
	return rows, nil
}

func (p *Pool) GetSignalByUUID(ctx context.Context, signalUUID string) (SignalRecord, error) {
	if err := p.ready(); err != nil {
		return SignalRecord{}, err
	}

	var rows []SignalRecord
	q := signalRecordSelect + `
WHERE s.signal_uuid = ?
LIMIT 1
`
	if err := p.gdb.WithContext(ctx).Raw(q, strings.TrimSpace(signalUUID)).Scan(&rows).Error; err != nil {
		return SignalRecord{}, fmt.Errorf("query signal by uuid: %w", err)
	}
	if len(rows) == 0 {
		return SignalRecord{}, ErrNoRows
	}
	return rows[0], nil
}

// UpdateSignalScore overwrites the score, breakdown and days in queue.
func (p *Pool) UpdateSignalScore(ctx context.Context, signalID int64, score int, breakdown map[string]any, daysInQueue int) error {
	if err := p.ready(); err != nil {
		return err
	}

	err := p.gdb.WithContext(ctx).
		Model(&Signal{}).
		Where("signal_id = ?", signalID).
		Updates(map[string]any{
			"priority_score":  score,
			"score_breakdown": datatypes.JSONMap(breakdown),
			"days_in_queue":   daysInQueue,
		}).Error
	if err != nil {
		return fmt.Errorf("update signal score: %w", err)
	}
	return nil
}

// CarryForwardSignals marks new signals first detected before cutoff as
// carried forward and returns how many changed.
func (p *Pool) CarryForwardSignals(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := p.ready(); err != nil {
		return 0, err
	}

	res := p.gdb.WithContext(ctx).
		Model(&Signal{}).
		Where("status = ? AND first_detected_at < ?", "new", cutoff.UTC()).
		Update("status", "carried_forward")
	if res.Error != nil {
		return 0, fmt.Errorf("carry forward signals: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteSignals removes the given signals in one transaction.
func (p *Pool) DeleteSignals(ctx context.Context, signalIDs []int64) (int64, error) {
	if err := p.ready(); err != nil {
		return 0, err
	}
	if len(signalIDs) == 0 {
		return 0, nil
	}

	var deleted int64
	err := p.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for start := 0; start < len(signalIDs); start += deleteBatchSize {
			end := min(start+deleteBatchSize, len(signalIDs))
			res := tx.Where("signal_id IN ?", signalIDs[start:end]).Delete(&Signal{})
			if res.Error != nil {
				return res.Error
			}
			deleted += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete signals: %w", err)
	}
	return deleted, nil
}

// SignalStatusCounts returns the number of signals per status.
func (p *Pool) SignalStatusCounts(ctx context.Context) (map[string]int64, error) {
	return p.groupCount(ctx, "status")
}

// SignalKindCounts returns the number of open signals per kind.
func (p *Pool) SignalKindCounts(ctx context.Context) (map[string]int64, error) {
	return p.groupCount(ctx, "kind")
}

func (p *Pool) groupCount(ctx context.Context, column string) (map[string]int64, error) {
	var q string
	switch column {
	case "status":
		q = `
SELECT status, COUNT(*)
FROM signals
GROUP BY status
`
	case "kind":
		q = `
SELECT kind, COUNT(*)
FROM signals
WHERE status <> 'closed'
GROUP BY kind
`
	default:
		return nil, fmt.Errorf("unsupported group column %q", column)
	}

	rows, err := p.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query signal %s counts: %w", column, err)
	}
	defer rows.Close()

	out := make(map[string]int64, 8)
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("scan signal %s count: %w", column, err)
		}
		out[key] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signal %s counts: %w", column, err)
	}
	return out, nil
}
