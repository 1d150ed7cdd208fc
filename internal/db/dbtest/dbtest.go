// Package dbtest opens throwaway in-memory databases for tests.
package dbtest

import (
	"context"
	"testing"

	"horse.fit/bdradar/internal/config"
	"horse.fit/bdradar/internal/db"
)

// New returns a migrated pool backed by a private in-memory SQLite database.
// The pool is closed when the test ends.
func New(tb testing.TB) *db.Pool {
	tb.Helper()

	cfg := &config.Config{
		Environment: "test",
		LogLevel:    "silent",
		DatabaseURL: "sqlite::memory:",
		DBMinConns:  1,
		DBMaxConns:  1,
	}
	pool, err := db.NewPool(context.Background(), cfg)
	if err != nil {
		tb.Fatalf("open test database: %v", err)
	}
	tb.Cleanup(func() {
		_ = pool.Close()
	})
	return pool
}
