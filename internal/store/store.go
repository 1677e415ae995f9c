// Package store is the typed store adapter (spec component C1): a thin
// layer of execute/execute_many/query/fetch_one primitives over a
// transactional SQL datastore, with all values bound as parameters -- never
// interpolated into the SQL string, unlike the original Python
// implementation's f-string queries (scheduler/orchestrator.py,
// scheduler/models/job.py), which the spec calls out as a bug to fix rather
// than a contract to preserve.
//
// Parameter binding and transaction batching ride on *gorm.DB's raw-SQL
// surface (Exec/Raw), the way the teacher repo's postgres service
// (internal/db/postgres.go) already opens its connection pool, while the
// four operations below are implemented by hand instead of through GORM's
// model mapping -- domain rows are plain structs, not GORM models.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

var ErrNotFound = errors.New("store: row not found")

// Statement is one unit of work inside an ExecuteMany batch.
type Statement struct {
	SQL  string
	Args []any
}

// Store is the interface the rest of the core depends on. A production
// process wires *GormStore backed by Postgres; tests wire the same type
// backed by SQLite in-memory.
type Store interface {
	Execute(ctx context.Context, sqlStr string, args ...any) (int64, error)
	ExecuteMany(ctx context.Context, stmts []Statement) (int64, error)
	Query(ctx context.Context, sqlStr string, args ...any) (*sql.Rows, error)
	FetchOne(ctx context.Context, sqlStr string, args ...any) (any, error)
	Dialect() Dialect
	Close() error
}

type GormStore struct {
	db      *gorm.DB
	dialect Dialect
}

// Open connects to the store for the given dialect and DSN. For Postgres,
// dsn is a libpq/pgx connection string; for SQLite it is a file path or
// ":memory:" (tests use "file::memory:?cache=shared" so pooled connections
// see the same database).
func Open(dialect Dialect, dsn string) (*GormStore, error) {
	gcfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}

	var dialector gorm.Dialector
	switch dialect {
	case Postgres:
		dialector = postgres.Open(dsn)
	case SQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("store: unknown dialect %q", dialect)
	}

	db, err := gorm.Open(dialector, gcfg)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dialect, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("store: underlying db handle: %w", err)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)
	if dialect == SQLite {
		// SQLite serializes writers; a single connection avoids
		// "database is locked" errors under the claim protocol's
		// concurrent conditional updates.
		sqlDB.SetMaxOpenConns(1)
	}

	return &GormStore{db: db, dialect: dialect}, nil
}

func (s *GormStore) Dialect() Dialect { return s.dialect }

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) Execute(ctx context.Context, sqlStr string, args ...any) (int64, error) {
	tx := s.db.WithContext(ctx).Exec(sqlStr, args...)
	if tx.Error != nil {
		return 0, fmt.Errorf("store: execute: %w", tx.Error)
	}
	return tx.RowsAffected, nil
}

// ExecuteMany runs every statement inside one implicit transaction and
// returns the total affected-row count. If any statement fails the whole
// batch is rolled back.
func (s *GormStore) ExecuteMany(ctx context.Context, stmts []Statement) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, st := range stmts {
			res := tx.Exec(st.SQL, st.Args...)
			if res.Error != nil {
				return res.Error
			}
			total += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("store: execute_many: %w", err)
	}
	return total, nil
}

func (s *GormStore) Query(ctx context.Context, sqlStr string, args ...any) (*sql.Rows, error) {
	rows, err := s.db.WithContext(ctx).Raw(sqlStr, args...).Rows()
	if err != nil {
		return nil, fmt.Errorf("store: query: %w", err)
	}
	return rows, nil
}

// FetchOne returns the first column of the first row, or nil if the query
// produced no rows.
func (s *GormStore) FetchOne(ctx context.Context, sqlStr string, args ...any) (any, error) {
	row := s.db.WithContext(ctx).Raw(sqlStr, args...).Row()
	var v any
	err := row.Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: fetch_one: %w", err)
	}
	return v, nil
}
