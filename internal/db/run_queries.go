package db

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	maxRunErrorLength = 4000
	defaultRunsLimit  = 50
)

// StartAgentRun records a running execution of name.
func (p *Pool) StartAgentRun(ctx context.Context, name string, startedAt time.Time) (AgentRun, error) {
	if err := p.ready(); err != nil {
		return AgentRun{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return AgentRun{}, fmt.Errorf("agent run name is required")
	}

	run := AgentRun{
		RunUUID:   uuid.NewString(),
		Name:      name,
		Status:    RunStatusRunning,
		StartedAt: startedAt.UTC(),
		Detail:    datatypes.JSONMap{},
	}
	if err := p.gdb.WithContext(ctx).Create(&run).Error; err != nil {
		return AgentRun{}, fmt.Errorf("insert agent run: %w", err)
	}
	return run, nil
}

// CompleteAgentRun finalizes a run as completed.
func (p *Pool) CompleteAgentRun(ctx context.Context, runID int64, signalsProduced int, detail map[string]any, finishedAt time.Time) error {
	return p.finishAgentRun(ctx, runID, RunStatusCompleted, signalsProduced, detail, nil, finishedAt)
}

// FailAgentRun finalizes a run as failed. The error message is truncated to
// 4000 bytes on a rune boundary.
func (p *Pool) FailAgentRun(ctx context.Context, runID int64, signalsProduced int, detail map[string]any, cause error, finishedAt time.Time) error {
	msg := "unknown error"
	if cause != nil {
		msg = strings.TrimSpace(cause.Error())
	}
	msg = truncateRunError(msg)
	return p.finishAgentRun(ctx, runID, RunStatusFailed, signalsProduced, detail, &msg, finishedAt)
}

func truncateRunError(msg string) string {
	if len(msg) <= maxRunErrorLength {
		return msg
	}
	cut := maxRunErrorLength
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}

func (p *Pool) finishAgentRun(
	ctx context.Context,
	runID int64,
	status string,
	signalsProduced int,
	detail map[string]any,
	errorMessage *string,
	finishedAt time.Time,
) error {
	if err := p.ready(); err != nil {
		return err
	}
	if detail == nil {
		detail = map[string]any{}
	}

	finished := finishedAt.UTC()
	res := p.gdb.WithContext(ctx).
		Model(&AgentRun{}).
		Where("run_id = ? AND status = ?", runID, RunStatusRunning).
		Updates(map[string]any{
			"status":           status,
			"signals_produced": signalsProduced,
			"detail":           datatypes.JSONMap(detail),
			"error_message":    errorMessage,
			"finished_at":      &finished,
		})
	if res.Error != nil {
		return fmt.Errorf("finalize agent run: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("agent run %d is not running", runID)
	}
	return nil
}

// ListAgentRuns returns the most recent runs, optionally filtered by name.
func (p *Pool) ListAgentRuns(ctx context.Context, name string, limit int) ([]AgentRun, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultRunsLimit
	}

	query := p.gdb.WithContext(ctx).Model(&AgentRun{})
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		query = query.Where("name = ?", trimmed)
	}

	var rows []AgentRun
	if err := query.Order("started_at DESC").Order("run_id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query agent runs: %w", err)
	}
	return rows, nil
}
