package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"horse.fit/bdradar/internal/collector/feed"
	"horse.fit/bdradar/internal/db"
	"horse.fit/bdradar/internal/globaltime"
	"horse.fit/bdradar/internal/signal"
	eventschema "horse.fit/bdradar/schema"
)

const (
	defaultQueueLimit = 50
	maxQueueLimit     = 500
	defaultRunsLimit  = 20
	maxRunsLimit      = 200
	maxEventsPerPost  = 1000
)

type signalItem struct {
	SignalUUID      string         `json:"signal_uuid"`
	CompanyUUID     string         `json:"company_uuid"`
	CompanyName     string         `json:"company_name"`
	Warmth          string         `json:"warmth"`
	Kind            string         `json:"kind"`
	DedupKey        string         `json:"dedup_key"`
	Summary         string         `json:"summary"`
	Detail          map[string]any `json:"detail,omitempty"`
	Status          string         `json:"status"`
	PriorityScore   int            `json:"priority_score"`
	ScoreBreakdown  map[string]any `json:"score_breakdown,omitempty"`
	DaysInQueue     int            `json:"days_in_queue"`
	FirstDetectedAt time.Time      `json:"first_detected_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

type runItem struct {
	RunUUID         string         `json:"run_uuid"`
	Name            string         `json:"name"`
	Status          string         `json:"status"`
	StartedAt       time.Time      `json:"started_at"`
	FinishedAt      *time.Time     `json:"finished_at,omitempty"`
	SignalsProduced int            `json:"signals_produced"`
	Detail          map[string]any `json:"detail,omitempty"`
	ErrorMessage    *string        `json:"error_message,omitempty"`
}

type statsResponse struct {
	Companies         int64            `json:"companies"`
	OpenSignals       int64            `json:"open_signals"`
	SignalsByStatus   map[string]int64 `json:"signals_by_status"`
	OpenSignalsByKind map[string]int64 `json:"open_signals_by_kind"`
}

type warmthRequest struct {
	Warmth string `json:"warmth"`
}

func (s *Server) handleHealth(c echo.Context) error {
	if err := s.store.Ping(c.Request().Context()); err != nil {
		s.logger.Error().Err(err).Msg("database ping failed")
		return errorWithCode(c, http.StatusServiceUnavailable, "Database unavailable")
	}
	return success(c, map[string]any{
		"service": "bdradar",
		"time":    globaltime.UTC(),
	})
}

func (s *Server) handleStats(c echo.Context) error {
	ctx := c.Request().Context()

	companies, err := s.store.CountCompanies(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("count companies failed")
		return internalError(c, "Failed to load stats")
	}
	byStatus, err := s.store.SignalStatusCounts(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("count signals by status failed")
		return internalError(c, "Failed to load stats")
	}
	byKind, err := s.store.SignalKindCounts(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("count signals by kind failed")
		return internalError(c, "Failed to load stats")
	}

	var open int64
	for _, count := range byKind {
		open += count
	}

	return success(c, statsResponse{
		Companies:         companies,
		OpenSignals:       open,
		SignalsByStatus:   byStatus,
		OpenSignalsByKind: byKind,
	})
}

func (s *Server) handleSignals(c echo.Context) error {
	fieldErrors := map[string]string{}

	filter := db.QueueFilter{}
	if raw := strings.TrimSpace(c.QueryParam("status")); raw != "" {
		status, err := signal.ParseStatus(raw)
		if err != nil {
			fieldErrors["status"] = "unknown status"
		}
		filter.Status = string(status)
	}
	if raw := strings.TrimSpace(c.QueryParam("kind")); raw != "" {
		kind, err := signal.ParseKind(raw)
		if err != nil {
			fieldErrors["kind"] = "unknown kind"
		}
		filter.Kind = string(kind)
	}
	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultQueueLimit, 1, maxQueueLimit)
	if err != nil {
		fieldErrors["limit"] = err.Error()
	}
	filter.Limit = limit

	if len(fieldErrors) > 0 {
		return failValidation(c, fieldErrors)
	}

	rows, err := s.store.ListQueue(c.Request().Context(), filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("query signal queue failed")
		return internalError(c, "Failed to load signals")
	}

	items := make([]signalItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, buildSignalItem(row))
	}

	return success(c, map[string]any{
		"items": items,
		"filters": map[string]any{
			"status": filter.Status,
			"kind":   filter.Kind,
			"limit":  filter.Limit,
		},
	})
}

func (s *Server) handleSignalDetail(c echo.Context) error {
	signalUUID := strings.TrimSpace(c.Param("signal_uuid"))
	if _, err := uuid.Parse(signalUUID); err != nil {
		return failValidation(c, map[string]string{"signal_uuid": "must be a UUID"})
	}

	row, err := s.store.GetSignalByUUID(c.Request().Context(), signalUUID)
	if err != nil {
		if db.IsNoRows(err) {
			return failNotFound(c, "Signal not found")
		}
		s.logger.Error().Err(err).Str("signal_uuid", signalUUID).Msg("query signal detail failed")
		return internalError(c, "Failed to load signal")
	}

	return success(c, buildSignalItem(row))
}

func (s *Server) handleRuns(c echo.Context) error {
	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultRunsLimit, 1, maxRunsLimit)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}
	name := strings.TrimSpace(c.QueryParam("name"))

	rows, err := s.store.ListAgentRuns(c.Request().Context(), name, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("query agent runs failed")
		return internalError(c, "Failed to load runs")
	}

	items := make([]runItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, runItem{
			RunUUID:         row.RunUUID,
			Name:            row.Name,
			Status:          row.Status,
			StartedAt:       row.StartedAt,
			FinishedAt:      row.FinishedAt,
			SignalsProduced: row.SignalsProduced,
			Detail:          map[string]any(row.Detail),
			ErrorMessage:    row.ErrorMessage,
		})
	}

	return success(c, map[string]any{
		"items": items,
		"name":  name,
		"limit": limit,
	})
}

// handleEvents accepts one event object, an array of them or NDJSON. A batch is
// rejected whole when any event fails validation.
func (s *Server) handleEvents(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return fail(c, http.StatusBadRequest, "Failed to read request body", nil)
	}

	payloads, err := feed.SplitEvents(body)
	if err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body: "+err.Error(), nil)
	}
	if len(payloads) == 0 {
		return fail(c, http.StatusBadRequest, "Request body holds no events", nil)
	}
	if len(payloads) > maxEventsPerPost {
		return fail(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("At most %d events per request", maxEventsPerPost), nil)
	}

	candidates := make([]signal.Candidate, 0, len(payloads))
	fieldErrors := map[string]string{}
	for i, payload := range payloads {
		candidate, err := eventschema.ValidateCandidateEvent(payload)
		if err != nil {
			fieldErrors[fmt.Sprintf("events[%d]", i)] = err.Error()
			continue
		}
		candidates = append(candidates, *candidate)
	}
	if len(fieldErrors) > 0 {
		return failValidation(c, fieldErrors)
	}

	admissions, stats, err := s.ops.Submit(c.Request().Context(), candidates)
	if err != nil {
		s.logger.Error().Err(err).Int("events", len(candidates)).Msg("submit events failed")
		return internalError(c, "Failed to submit events")
	}

	code := http.StatusOK
	if stats.Admitted > 0 {
		code = http.StatusCreated
	}
	return successWithStatus(c, code, map[string]any{
		"admissions": admissions,
		"stats":      stats,
	})
}

func (s *Server) handleSweep(c echo.Context) error {
	result, err := s.ops.Sweep(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("sweep failed")
		return internalError(c, "Sweep failed")
	}
	return success(c, result)
}

func (s *Server) handleDedup(c echo.Context) error {
	dryRun := false
	if raw := strings.TrimSpace(c.QueryParam("dry_run")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return failValidation(c, map[string]string{"dry_run": "must be a boolean"})
		}
		dryRun = parsed
	}

	result, err := s.ops.Dedup(c.Request().Context(), dryRun)
	if err != nil {
		s.logger.Error().Err(err).Bool("dry_run", dryRun).Msg("dedup failed")
		return internalError(c, "Dedup failed")
	}
	return success(c, result)
}

func (s *Server) handlePutWarmth(c echo.Context) error {
	companyUUID := strings.TrimSpace(c.Param("company_uuid"))
	if _, err := uuid.Parse(companyUUID); err != nil {
		return failValidation(c, map[string]string{"company_uuid": "must be a UUID"})
	}

	var req warmthRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Request body must be a JSON object", nil)
	}
	warmth := signal.Warmth(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(req.Warmth)), "-", "_"))
	if !warmth.Valid() {
		return failValidation(c, map[string]string{"warmth": "must be one of active_client, past_client, in_pipeline, new_prospect"})
	}

	company, err := s.store.SetCompanyWarmth(c.Request().Context(), companyUUID, string(warmth))
	if err != nil {
		if db.IsNoRows(err) {
			return failNotFound(c, "Company not found")
		}
		s.logger.Error().Err(err).Str("company_uuid", companyUUID).Msg("update company warmth failed")
		return internalError(c, "Failed to update warmth")
	}

	return success(c, map[string]any{
		"company_uuid": company.CompanyUUID,
		"name":         company.Name,
		"warmth":       company.Warmth,
	})
}

func buildSignalItem(row db.SignalRecord) signalItem {
	return signalItem{
		SignalUUID:      row.SignalUUID,
		CompanyUUID:     row.CompanyUUID,
		CompanyName:     row.CompanyName,
		Warmth:          row.CompanyWarmth,
		Kind:            row.Kind,
		DedupKey:        row.DedupKey,
		Summary:         row.Summary,
		Detail:          map[string]any(row.Detail),
		Status:          row.Status,
		PriorityScore:   row.PriorityScore,
		ScoreBreakdown:  map[string]any(row.ScoreBreakdown),
		DaysInQueue:     row.DaysInQueue,
		FirstDetectedAt: row.FirstDetectedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}

func parsePositiveInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}
