package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"horse.fit/bdradar/internal/auth"
	"horse.fit/bdradar/internal/db"
	"horse.fit/bdradar/internal/dedup"
	"horse.fit/bdradar/internal/intake"
	"horse.fit/bdradar/internal/orchestrate"
	"horse.fit/bdradar/internal/signal"
)

const (
	knownSignalUUID  = "11111111-1111-4111-8111-111111111111"
	knownCompanyUUID = "22222222-2222-4222-8222-222222222222"
)

type fakeStore struct {
	pingErr     error
	queue       []db.SignalRecord
	lastFilter  db.QueueFilter
	runs        []db.AgentRun
	lastRunName string
	warmth      map[string]string
}

func newFakeStore() *fakeStore {
	detected := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return &fakeStore{
		queue: []db.SignalRecord{{
			Signal: db.Signal{
				SignalUUID:      knownSignalUUID,
				Kind:            "new_ind",
				DedupKey:        "ind-1",
				Summary:         "IND cleared",
				Status:          "new",
				PriorityScore:   75,
				ScoreBreakdown:  map[string]any{"signal_strength": 30},
				FirstDetectedAt: detected,
				UpdatedAt:       detected,
			},
			CompanyUUID:   knownCompanyUUID,
			CompanyName:   "Acme Therapeutics, Inc.",
			CompanyWarmth: "new_prospect",
		}},
		runs: []db.AgentRun{{
			RunUUID:         "33333333-3333-4333-8333-333333333333",
			Name:            "sweep",
			Status:          db.RunStatusCompleted,
			StartedAt:       detected,
			SignalsProduced: 0,
		}},
		warmth: map[string]string{knownCompanyUUID: "new_prospect"},
	}
}

func (s *fakeStore) Ping(context.Context) error { return s.pingErr }

func (s *fakeStore) CountCompanies(context.Context) (int64, error) { return 3, nil }

func (s *fakeStore) SignalStatusCounts(context.Context) (map[string]int64, error) {
	return map[string]int64{"new": 4, "closed": 2}, nil
}

func (s *fakeStore) SignalKindCounts(context.Context) (map[string]int64, error) {
	return map[string]int64{"new_ind": 1, "transaction": 3}, nil
}

func (s *fakeStore) ListQueue(_ context.Context, filter db.QueueFilter) ([]db.SignalRecord, error) {
	s.lastFilter = filter
	return s.queue, nil
}

func (s *fakeStore) GetSignalByUUID(_ context.Context, signalUUID string) (db.SignalRecord, error) {
	for _, row := range s.queue {
		if row.SignalUUID == signalUUID {
			return row, nil
		}
	}
	return db.SignalRecord{}, db.ErrNoRows
}

func (s *fakeStore) ListAgentRuns(_ context.Context, name string, _ int) ([]db.AgentRun, error) {
	s.lastRunName = name
	return s.runs, nil
}

func (s *fakeStore) SetCompanyWarmth(_ context.Context, companyUUID, warmth string) (db.Company, error) {
	if _, ok := s.warmth[companyUUID]; !ok {
		return db.Company{}, db.ErrNoRows
	}
	s.warmth[companyUUID] = warmth
	return db.Company{CompanyUUID: companyUUID, Name: "Acme Therapeutics, Inc.", Warmth: warmth}, nil
}

type fakeOps struct {
	submitted  []signal.Candidate
	sweepErr   error
	dedupDry   *bool
	sweepCalls int
}

func (o *fakeOps) Submit(_ context.Context, candidates []signal.Candidate) ([]intake.Admission, intake.RunStats, error) {
	o.submitted = append(o.submitted, candidates...)
	admissions := make([]intake.Admission, 0, len(candidates))
	stats := intake.RunStats{}
	for _, candidate := range candidates {
		stats.Seen++
		if candidate.DedupKey == "dup" {
			stats.Duplicate++
			admissions = append(admissions, intake.Admission{Reason: intake.ReasonDuplicate})
			continue
		}
		stats.Admitted++
		admissions = append(admissions, intake.Admission{Admitted: true, CompanyName: candidate.RawCompanyName, Score: 60})
	}
	return admissions, stats, nil
}

func (o *fakeOps) Sweep(context.Context) (orchestrate.SweepResult, error) {
	o.sweepCalls++
	if o.sweepErr != nil {
		return orchestrate.SweepResult{}, o.sweepErr
	}
	return orchestrate.SweepResult{CarriedForward: 2, Recomputed: 5, Updated: 3}, nil
}

func (o *fakeOps) Dedup(_ context.Context, dryRun bool) (dedup.Result, error) {
	o.dedupDry = &dryRun
	return dedup.Result{Kinds: []string{"transaction"}, Examined: 4, Deleted: 1, DryRun: dryRun}, nil
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func doRequest(t *testing.T, server *Server, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec, env
}

func newTestServer() (*Server, *fakeStore, *fakeOps) {
	store := newFakeStore()
	ops := &fakeOps{}
	return NewServer(store, ops, zerolog.Nop(), Options{}), store, ops
}

func TestHealth(t *testing.T) {
	server, store, _ := newTestServer()

	rec, env := doRequest(t, server, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK || env.Status != "success" {
		t.Fatalf("unexpected health response: code=%d status=%q", rec.Code, env.Status)
	}

	store.pingErr = errors.New("down")
	rec, env = doRequest(t, server, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusServiceUnavailable || env.Status != "error" {
		t.Fatalf("unexpected unhealthy response: code=%d status=%q", rec.Code, env.Status)
	}
}

func TestStats(t *testing.T) {
	server, _, _ := newTestServer()

	rec, env := doRequest(t, server, http.MethodGet, "/api/v1/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d want %d", rec.Code, http.StatusOK)
	}
	var stats statsResponse
	if err := json.Unmarshal(env.Data, &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Companies != 3 || stats.OpenSignals != 4 || stats.SignalsByStatus["closed"] != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestSignalsNormalizesFilters(t *testing.T) {
	server, store, _ := newTestServer()

	rec, env := doRequest(t, server, http.MethodGet, "/api/v1/signals?status=Carried-Forward&kind=new-ind&limit=10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d want %d", rec.Code, http.StatusOK)
	}
	if store.lastFilter.Status != "carried_forward" || store.lastFilter.Kind != "new_ind" || store.lastFilter.Limit != 10 {
		t.Fatalf("unexpected filter: %+v", store.lastFilter)
	}

	var data struct {
		Items []signalItem `json:"items"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode signals: %v", err)
	}
	if len(data.Items) != 1 || data.Items[0].CompanyName != "Acme Therapeutics, Inc." || data.Items[0].PriorityScore != 75 {
		t.Fatalf("unexpected items: %+v", data.Items)
	}
}

func TestSignalsRejectsBadFilters(t *testing.T) {
	server, _, _ := newTestServer()

	rec, env := doRequest(t, server, http.MethodGet, "/api/v1/signals?status=lost&kind=rumor&limit=9999", "")
	if rec.Code != http.StatusBadRequest || env.Status != "fail" {
		t.Fatalf("unexpected response: code=%d status=%q", rec.Code, env.Status)
	}
	var data struct {
		ValidationErrors map[string]string `json:"validation_errors"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode validation errors: %v", err)
	}
	for _, field := range []string{"status", "kind", "limit"} {
		if data.ValidationErrors[field] == "" {
			t.Fatalf("expected validation error for %s, got %v", field, data.ValidationErrors)
		}
	}
}

func TestSignalDetail(t *testing.T) {
	server, _, _ := newTestServer()

	rec, _ := doRequest(t, server, http.MethodGet, "/api/v1/signals/"+knownSignalUUID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d want %d", rec.Code, http.StatusOK)
	}

	rec, _ = doRequest(t, server, http.MethodGet, "/api/v1/signals/44444444-4444-4444-8444-444444444444", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status code: got %d want %d", rec.Code, http.StatusNotFound)
	}

	rec, _ = doRequest(t, server, http.MethodGet, "/api/v1/signals/not-a-uuid", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status code: got %d want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestEventsSingleAndBatch(t *testing.T) {
	server, _, ops := newTestServer()

	rec, _ := doRequest(t, server, http.MethodPost, "/api/v1/events", `{"company":"Acme","kind":"funding","dedup_key":"f-1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("unexpected status code: got %d want %d", rec.Code, http.StatusCreated)
	}

	rec, env := doRequest(t, server, http.MethodPost, "/api/v1/events", `[{"company":"Beta","kind":"partnership","dedup_key":"dup"}]`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d want %d", rec.Code, http.StatusOK)
	}
	var data struct {
		Stats intake.RunStats `json:"stats"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode events response: %v", err)
	}
	if data.Stats.Duplicate != 1 {
		t.Fatalf("unexpected stats: %+v", data.Stats)
	}
	if len(ops.submitted) != 2 || ops.submitted[0].Kind != signal.KindFunding {
		t.Fatalf("unexpected submitted candidates: %+v", ops.submitted)
	}
}

func TestEventsRejectsWholeBatchOnInvalidEvent(t *testing.T) {
	server, _, ops := newTestServer()

	body := `[{"company":"Acme","kind":"funding","dedup_key":"f-1"},{"company":"Beta","kind":"rumor","dedup_key":"r-1"}]`
	rec, env := doRequest(t, server, http.MethodPost, "/api/v1/events", body)
	if rec.Code != http.StatusBadRequest || env.Status != "fail" {
		t.Fatalf("unexpected response: code=%d status=%q", rec.Code, env.Status)
	}
	if len(ops.submitted) != 0 {
		t.Fatalf("expected nothing submitted, got %d", len(ops.submitted))
	}

	rec, _ = doRequest(t, server, http.MethodPost, "/api/v1/events", `[]`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status code for empty batch: got %d", rec.Code)
	}
}

func TestSweepAndDedup(t *testing.T) {
	server, _, ops := newTestServer()

	rec, env := doRequest(t, server, http.MethodPost, "/api/v1/sweep", "")
	if rec.Code != http.StatusOK || ops.sweepCalls != 1 {
		t.Fatalf("unexpected sweep response: code=%d calls=%d", rec.Code, ops.sweepCalls)
	}
	var sweep orchestrate.SweepResult
	if err := json.Unmarshal(env.Data, &sweep); err != nil {
		t.Fatalf("decode sweep: %v", err)
	}
	if sweep.Updated != 3 {
		t.Fatalf("unexpected sweep result: %+v", sweep)
	}

	rec, _ = doRequest(t, server, http.MethodPost, "/api/v1/dedup?dry_run=true", "")
	if rec.Code != http.StatusOK || ops.dedupDry == nil || !*ops.dedupDry {
		t.Fatalf("expected dry-run dedup, code=%d", rec.Code)
	}

	rec, _ = doRequest(t, server, http.MethodPost, "/api/v1/dedup?dry_run=maybe", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status code: got %d want %d", rec.Code, http.StatusBadRequest)
	}

	ops.sweepErr = errors.New("db gone")
	rec, env = doRequest(t, server, http.MethodPost, "/api/v1/sweep", "")
	if rec.Code != http.StatusInternalServerError || env.Status != "error" {
		t.Fatalf("unexpected failed sweep response: code=%d status=%q", rec.Code, env.Status)
	}
}

func TestRuns(t *testing.T) {
	server, store, _ := newTestServer()

	rec, _ := doRequest(t, server, http.MethodGet, "/api/v1/runs?name=sweep", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d want %d", rec.Code, http.StatusOK)
	}
	if store.lastRunName != "sweep" {
		t.Fatalf("unexpected run name filter: %q", store.lastRunName)
	}
}

func TestPutWarmth(t *testing.T) {
	server, store, _ := newTestServer()

	path := "/api/v1/companies/" + knownCompanyUUID + "/warmth"
	rec, _ := doRequest(t, server, http.MethodPut, path, `{"warmth":"Active-Client"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d want %d", rec.Code, http.StatusOK)
	}
	if store.warmth[knownCompanyUUID] != "active_client" {
		t.Fatalf("unexpected stored warmth: %q", store.warmth[knownCompanyUUID])
	}

	rec, _ = doRequest(t, server, http.MethodPut, path, `{"warmth":"lukewarm"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status code: got %d want %d", rec.Code, http.StatusBadRequest)
	}

	rec, _ = doRequest(t, server, http.MethodPut, "/api/v1/companies/55555555-5555-4555-8555-555555555555/warmth", `{"warmth":"past_client"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status code: got %d want %d", rec.Code, http.StatusNotFound)
	}
}

func TestUnknownRouteUsesJSend(t *testing.T) {
	server, _, _ := newTestServer()

	rec, env := doRequest(t, server, http.MethodGet, "/api/v1/nope", "")
	if rec.Code != http.StatusNotFound || env.Status != "fail" {
		t.Fatalf("unexpected response: code=%d status=%q", rec.Code, env.Status)
	}
}

func TestWriteRoutesRequireTokenWhenConfigured(t *testing.T) {
	hash, err := auth.HashTokenWithCost("radar-token", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash token: %v", err)
	}
	ops := &fakeOps{}
	server := NewServer(newFakeStore(), ops, zerolog.Nop(), Options{TokenHash: hash})

	rec, env := doRequest(t, server, http.MethodPost, "/api/v1/sweep", "")
	if rec.Code != http.StatusUnauthorized || env.Status != "fail" {
		t.Fatalf("unexpected response without token: code=%d status=%q", rec.Code, env.Status)
	}
	if ops.sweepCalls != 0 {
		t.Fatalf("sweep must not run without a token")
	}

	for _, header := range []struct{ name, value string }{
		{name: "Authorization", value: "Bearer radar-token"},
		{name: "X-API-Token", value: "radar-token"},
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sweep", nil)
		req.Header.Set(header.name, header.value)
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("unexpected status with %s: got %d want %d", header.name, rec.Code, http.StatusOK)
		}
	}

	rec, _ = doRequest(t, server, http.MethodGet, "/api/v1/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("read routes must stay open: got %d", rec.Code)
	}
}
