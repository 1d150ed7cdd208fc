package resolve

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"horse.fit/bdradar/internal/db"
	"horse.fit/bdradar/internal/db/dbtest"
)

// racingStore misses the first lookup and then loses the insert race.
type racingStore struct {
	mu       sync.Mutex
	lookups  int
	inserts  int
	existing db.Company
}

func (s *racingStore) FindCompanyByKey(_ context.Context, nameKey string) (db.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	if s.lookups == 1 {
		return db.Company{}, db.ErrNoRows
	}
	return s.existing, nil
}

func (s *racingStore) InsertCompany(context.Context, db.InsertCompanyParams) (db.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++
	return db.Company{}, fmt.Errorf("insert company: %w", db.ErrDuplicate)
}

func TestResolveEmptyNameYieldsNoIdentity(t *testing.T) {
	t.Parallel()

	r := New(dbtest.New(t), zerolog.Nop())
	for _, raw := range []string{"", "   ", "Inc.", "LLC, Ltd."} {
		_, ok, err := r.Resolve(context.Background(), raw)
		require.NoError(t, err)
		require.False(t, ok, "expected no identity for %q", raw)
	}
}

func TestResolveCreatesOnceAndReuses(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := New(dbtest.New(t), zerolog.Nop())

	first, ok, err := r.Resolve(ctx, "Acme Therapeutics, Inc., Boston, MA")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Acme Therapeutics, Inc.", first.Name)
	require.Equal(t, "acme", first.NameKey)

	for _, raw := range []string{"Acme Therapeutics, Inc., Boston, MA", "ACME THERAPEUTICS INC", "acme corp"} {
		again, ok, err := r.Resolve(ctx, raw)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, first.CompanyID, again.CompanyID, raw)
	}
}

func TestResolveConcurrentFirstSight(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := New(dbtest.New(t), zerolog.Nop())

	const workers = 8
	ids := make([]int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			company, ok, err := r.Resolve(ctx, "Zeta Biosciences LLC")
			if err != nil || !ok {
				t.Errorf("resolve failed: ok=%v err=%v", ok, err)
				return
			}
			ids[i] = company.CompanyID
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		require.Equal(t, ids[0], ids[i])
	}
}

func TestResolveRequeriesAfterDuplicateInsert(t *testing.T) {
	t.Parallel()

	store := &racingStore{existing: db.Company{CompanyID: 42, Name: "Gamma Pharma", NameKey: "gamma"}}
	r := New(store, zerolog.Nop())

	company, ok, err := r.Resolve(context.Background(), "Gamma Pharma")
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 42, company.CompanyID)
	require.Equal(t, 1, store.inserts)
	require.Equal(t, 2, store.lookups)
}
