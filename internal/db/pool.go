package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"horse.fit/bdradar/internal/config"
	"horse.fit/bdradar/internal/globaltime"
)

var (
	ErrNoRows    = sql.ErrNoRows
	ErrDuplicate = gorm.ErrDuplicatedKey

	errPoolClosed = errors.New("database pool is not initialized")
)

const (
	dialectPostgres = "postgres"
	dialectSQLite   = "sqlite"
)

// Pool owns the gorm handle shared by every store in the process.
type Pool struct {
	gdb     *gorm.DB
	sqlDB   *sql.DB
	dialect string
}

// NewPool opens the database named by cfg.DatabaseURL, sizes the connection
// pool for its dialect and brings the schema up to date.
func NewPool(ctx context.Context, cfg *config.Config) (*Pool, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	dialector, dialect, err := openDialector(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(gormLogLevel(cfg.LogLevel, cfg.Environment)),
		TranslateError: true,
		NowFunc:        globaltime.UTC,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap %s handle: %w", dialect, err)
	}
	sizeConnections(sqlDB, dialect, int(cfg.DBMinConns), int(cfg.DBMaxConns))

	pool := &Pool{gdb: gdb, sqlDB: sqlDB, dialect: dialect}
	if err := pool.Ping(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("reach %s database: %w", dialect, err)
	}
	if err := pool.autoMigrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return pool, nil
}

func sizeConnections(sqlDB *sql.DB, dialect string, minConns, maxConns int) {
	if dialect == dialectSQLite {
		// One connection keeps in-memory databases alive and serializes writers.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxIdleTime(0)
		sqlDB.SetConnMaxLifetime(0)
		return
	}
	if maxConns <= 0 {
		maxConns = 8
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(max(1, min(minConns, maxConns)))
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
}

// Query runs a raw read; the caller closes the returned rows.
func (p *Pool) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	return p.gdb.WithContext(ctx).Raw(query, args...).Rows()
}

func (p *Pool) Close() error {
	if p == nil || p.sqlDB == nil {
		return nil
	}
	return p.sqlDB.Close()
}

// Dialect returns "postgres" or "sqlite".
func (p *Pool) Dialect() string {
	if p == nil {
		return ""
	}
	return p.dialect
}

// Ping checks that the database answers.
func (p *Pool) Ping(ctx context.Context) error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.sqlDB.PingContext(ctx)
}

func (p *Pool) ready() error {
	if p == nil || p.gdb == nil || p.sqlDB == nil {
		return errPoolClosed
	}
	return nil
}

func IsNoRows(err error) bool {
	return errors.Is(err, ErrNoRows) || errors.Is(err, gorm.ErrRecordNotFound)
}

func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// openDialector picks the driver from the DSN: postgres URLs or keyword
// strings go to postgres; "sqlite:", "file:" and *.db paths go to sqlite.
func openDialector(dsn string) (gorm.Dialector, string, error) {
	trimmed := strings.TrimSpace(dsn)
	lower := strings.ToLower(trimmed)

	switch {
	case trimmed == "":
		return nil, "", errors.New("database url is empty")
	case strings.HasPrefix(lower, "postgres://"),
		strings.HasPrefix(lower, "postgresql://"),
		strings.Contains(lower, "host="):
		return postgres.Open(trimmed), dialectPostgres, nil
	case strings.HasPrefix(lower, "sqlite:"):
		return sqlite.Open(strings.TrimPrefix(trimmed[len("sqlite:"):], "//")), dialectSQLite, nil
	case strings.HasPrefix(lower, "file:"),
		strings.HasSuffix(lower, ".db"),
		strings.HasSuffix(lower, ".sqlite"),
		strings.HasSuffix(lower, ".sqlite3"):
		return sqlite.Open(trimmed), dialectSQLite, nil
	default:
		return nil, "", fmt.Errorf("unsupported database url %q", redactDSN(trimmed))
	}
}

func redactDSN(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return "<redacted>"
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		rest = rest[at+1:]
	}
	return scheme + "://" + rest
}

// gormLogLevel keeps SQL tracing behind "trace"; everything quieter than
// that only surfaces slow queries and failures.
func gormLogLevel(appLevel, environment string) logger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(appLevel)) {
	case "trace":
		return logger.Info
	case "", "debug", "info", "warn", "warning":
		return logger.Warn
	case "error":
		return logger.Error
	case "silent", "disabled":
		return logger.Silent
	}
	if strings.EqualFold(strings.TrimSpace(environment), "local") {
		return logger.Warn
	}
	return logger.Error
}
