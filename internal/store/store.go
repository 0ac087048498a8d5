// Package store provides SQL persistence for users, profiles, social accounts
// and tasks, plus an in-process fan-out of task change events.
package store

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/hmans/taskgraph/internal/config"
)

var ErrNotFound = errors.New("not found")

// Store wraps the database connection pool and provides data access methods.
type Store struct {
	db     *sql.DB
	driver string
	now    func() time.Time

	// Event fan-out
	subMu       sync.RWMutex
	subscribers map[uint64]*subscription
	nextSubID   uint64
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database dsn is required")
	}

	var driverName string
	switch cfg.Driver {
	case config.DriverSQLite:
		driverName = "sqlite"
	case config.DriverPostgres:
		driverName = "postgres"
	default:
		return nil, errors.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}

	// SQLite serializes writers; a single connection avoids SQLITE_BUSY between pooled connections
	if cfg.Driver == config.DriverSQLite {
		db.SetMaxOpenConns(1)
	} else {
		maxOpen := cfg.MaxOpenConns
		if maxOpen <= 0 {
			maxOpen = 25
		}
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "pinging database")
	}

	return New(db, cfg.Driver), nil
}

// New wraps an existing connection pool.
func New(db *sql.DB, driver string) *Store {
	return &Store{
		db:          db,
		driver:      driver,
		now:         func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		subscribers: make(map[uint64]*subscription),
	}
}

// DB returns the underlying *sql.DB for custom queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Driver returns the configured driver name.
func (s *Store) Driver() string {
	return s.driver
}

// Close closes all subscriber channels and the database connection.
func (s *Store) Close() error {
	s.closeSubscribers()
	return s.db.Close()
}

// Transaction runs fn within a database transaction.
func (s *Store) Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rollback failed: %v", rbErr)
		}
		return err
	}

	return errors.Wrap(tx.Commit(), "committing transaction")
}

// rebind rewrites '?' placeholders into the driver's native form.
func (s *Store) rebind(query string) string {
	if s.driver != config.DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for _, r := range query {
		switch {
		case r == '\'':
			inQuote = !inQuote
			b.WriteRune(r)
		case r == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
