package intake

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"horse.fit/bdradar/internal/db"
	"horse.fit/bdradar/internal/db/dbtest"
	"horse.fit/bdradar/internal/signal"
)

func loadProcessor(t *testing.T, pool *db.Pool) *Processor {
	t.Helper()
	processor, err := NewLoader(pool, zerolog.Nop()).Load(context.Background())
	require.NoError(t, err)
	return processor
}

func TestSubmitSameCandidateTwiceStoresOneSignal(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := dbtest.New(t)
	processor := loadProcessor(t, pool)

	candidate := signal.Candidate{
		RawCompanyName: "Acme Therapeutics, Inc., Boston, MA",
		Kind:           "new-award",
		DedupKey:       "acme-award-2026-01",
		Summary:        "NIH award for ACME-101",
	}

	first, err := processor.Submit(ctx, candidate)
	require.NoError(t, err)
	require.True(t, first.Admitted)
	require.NotEmpty(t, first.SignalUUID)
	require.Equal(t, "Acme Therapeutics, Inc.", first.CompanyName)

	second, err := processor.Submit(ctx, candidate)
	require.NoError(t, err)
	require.False(t, second.Admitted)
	require.Equal(t, ReasonDuplicate, second.Reason)

	signals, err := pool.ListSignalsByKinds(ctx, []string{"new_award"})
	require.NoError(t, err)
	require.Len(t, signals, 1)
	require.Equal(t, "Acme Therapeutics, Inc.", signals[0].CompanyName)

	companies, err := pool.CountCompanies(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, companies)

	stats := processor.Stats()
	require.Equal(t, RunStats{Seen: 2, Admitted: 1, Duplicate: 1}, stats)
}

func TestSubmitAdmitsWhenAnyIdentityPartDiffers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	processor := loadProcessor(t, dbtest.New(t))

	base := signal.Candidate{RawCompanyName: "Orion Biologics", Kind: signal.KindFunding, DedupKey: "https://filings.example/orion/1"}
	_, err := processor.Submit(ctx, base)
	require.NoError(t, err)

	otherCompany := base
	otherCompany.RawCompanyName = "Helix Biologics"
	otherKind := base
	otherKind.Kind = signal.KindTransaction
	otherKey := base
	otherKey.DedupKey = "https://filings.example/orion/2"

	for _, candidate := range []signal.Candidate{otherCompany, otherKind, otherKey} {
		admission, err := processor.Submit(ctx, candidate)
		require.NoError(t, err)
		require.True(t, admission.Admitted, "expected admission for %+v", candidate)
	}
}

func TestSubmitRejectsUnresolvableAndInvalid(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := dbtest.New(t)
	processor := loadProcessor(t, pool)

	admission, err := processor.Submit(ctx, signal.Candidate{RawCompanyName: "Inc., LLC", Kind: signal.KindFunding, DedupKey: "k"})
	require.NoError(t, err)
	require.Equal(t, ReasonUnresolvable, admission.Reason)

	admission, err = processor.Submit(ctx, signal.Candidate{RawCompanyName: "Acme", Kind: "rumor", DedupKey: "k"})
	require.NoError(t, err)
	require.Equal(t, ReasonInvalid, admission.Reason)
	require.NotEmpty(t, admission.Message)

	companies, err := pool.CountCompanies(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 0, companies)
}

func TestSubmitAppliesRosters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := dbtest.New(t)
	require.NoError(t, pool.UpsertPastClient(ctx, "Merck & Co., Inc.", 1, true))
	require.NoError(t, pool.UpsertExcludedCompany(ctx, "Merck", "headcount", time.Time{}))
	require.NoError(t, pool.UpsertExcludedCompany(ctx, "Pfizer", "headcount", time.Time{}))
	processor := loadProcessor(t, pool)

	excluded, err := processor.Submit(ctx, signal.Candidate{RawCompanyName: "Pfizer Inc.", Kind: signal.KindNewAward, DedupKey: "p1"})
	require.NoError(t, err)
	require.Equal(t, ReasonExcluded, excluded.Reason)

	admitted, err := processor.Submit(ctx, signal.Candidate{RawCompanyName: "Merck & Co., Inc., Rahway, NJ, USA", Kind: signal.KindNewAward, DedupKey: "m1"})
	require.NoError(t, err)
	require.True(t, admitted.Admitted)
	// new_award 30 + new_prospect 5 + rank-1 boost 15 + fresh recency 25
	require.Equal(t, 75, admitted.Score)

	record, err := pool.GetSignalByUUID(ctx, admitted.SignalUUID)
	require.NoError(t, err)
	note, ok := record.Detail[signal.DetailPastClient].(map[string]any)
	require.True(t, ok, "expected past client note, got %#v", record.Detail)
	require.EqualValues(t, 15, note["boost"])
	require.EqualValues(t, 15, record.ScoreBreakdown["past_client_boost"])
}

func TestSubmitPreHiringAdjustment(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	processor := loadProcessor(t, dbtest.New(t))

	none, some := 0, 4
	quiet, err := processor.Submit(ctx, signal.Candidate{RawCompanyName: "Quiet Bio", Kind: signal.KindFunding, DedupKey: "q", ActivePostings: &none})
	require.NoError(t, err)
	require.Equal(t, 50+5+0+25, quiet.Score)

	hiring, err := processor.Submit(ctx, signal.Candidate{RawCompanyName: "Busy Bio", Kind: signal.KindFunding, DedupKey: "b", ActivePostings: &some})
	require.NoError(t, err)
	require.Equal(t, 20+5+0+25, hiring.Score)
}

// blindStore never sees existing signals, so only the unique index stops a
// duplicate.
type blindStore struct {
	*db.Pool
}

func (blindStore) SignalExists(context.Context, int64, string, string) (bool, error) {
	return false, nil
}

func TestSubmitRacingDuplicateIsRejectedNotFailed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := blindStore{Pool: dbtest.New(t)}
	processor := NewProcessor(store, Rosters{}, zerolog.Nop())

	candidate := signal.Candidate{RawCompanyName: "Race Labs", Kind: signal.KindPartnership, DedupKey: "race"}
	first, err := processor.Submit(ctx, candidate)
	require.NoError(t, err)
	require.True(t, first.Admitted)

	second, err := processor.Submit(ctx, candidate)
	require.NoError(t, err)
	require.False(t, second.Admitted)
	require.Equal(t, ReasonDuplicate, second.Reason)
}

func TestForkKeepsSeparateTallies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	processor := loadProcessor(t, dbtest.New(t))
	fork := processor.Fork(zerolog.Nop())

	_, err := fork.Submit(ctx, signal.Candidate{RawCompanyName: "Fork Bio", Kind: signal.KindNewIND, DedupKey: "f"})
	require.NoError(t, err)
	require.Equal(t, 1, fork.Stats().Admitted)
	require.Equal(t, 0, processor.Stats().Seen)
}

func TestSubmitTreatsURLSpellingsAsOneKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := dbtest.New(t)
	processor := loadProcessor(t, pool)

	first, err := processor.Submit(ctx, signal.Candidate{
		RawCompanyName: "Orion Biologics",
		Kind:           signal.KindTransaction,
		DedupKey:       "https://X.com/a/",
	})
	require.NoError(t, err)
	require.True(t, first.Admitted)

	second, err := processor.Submit(ctx, signal.Candidate{
		RawCompanyName: "Orion Biologics Inc.",
		Kind:           signal.KindTransaction,
		DedupKey:       "https://x.com/a#frag",
	})
	require.NoError(t, err)
	require.False(t, second.Admitted)
	require.Equal(t, ReasonDuplicate, second.Reason)

	signals, err := pool.ListSignalsByKinds(ctx, []string{"transaction"})
	require.NoError(t, err)
	require.Len(t, signals, 1)
}

func TestSubmitRejectsKeyWithoutUsableParts(t *testing.T) {
	t.Parallel()

	processor := loadProcessor(t, dbtest.New(t))
	admission, err := processor.Submit(context.Background(), signal.Candidate{
		RawCompanyName: "Orion Biologics",
		Kind:           signal.KindFunding,
		DedupKey:       " | ",
	})
	require.NoError(t, err)
	require.Equal(t, ReasonInvalid, admission.Reason)
}

func TestAdmissionKey(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 14, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		candidate signal.Candidate
		want      string
	}{
		{
			name:      "plain key",
			candidate: signal.Candidate{DedupKey: " acme-award-2026-01 "},
			want:      "acme-award-2026-01",
		},
		{
			name:      "url with tag",
			candidate: signal.Candidate{DedupKey: "HTTPS://Jobs.Example/acme/123/|stale"},
			want:      "https://jobs.example/acme/123|stale",
		},
		{
			name:      "weekly cadence",
			candidate: signal.Candidate{DedupKey: "https://jobs.example/acme", Cadence: signal.CadenceWeekly},
			want:      "https://jobs.example/acme|2026-W03",
		},
		{
			name:      "once cadence",
			candidate: signal.Candidate{DedupKey: "https://jobs.example/acme", Cadence: signal.CadenceOnce},
			want:      "https://jobs.example/acme",
		},
	}
	for _, tc := range tests {
		if got := admissionKey(tc.candidate, now); got != tc.want {
			t.Fatalf("%s: got %q want %q", tc.name, got, tc.want)
		}
	}
}
