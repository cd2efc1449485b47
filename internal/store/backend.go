// Package store implements the mapforms engine on a SQL database.
// SQLite is the default; PostgreSQL and MySQL share the same schema and
// queries through a small dialect table.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/mapforms/pkg/types"
)

var _ types.Engine = (*Backend)(nil)

// Backend implements types.Engine. Every operation runs in its own
// short-lived transaction.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	dialect  dialect
	qb       squirrel.StatementBuilderType

	log      zerolog.Logger
	auth     types.Authorizer
	registry *types.Registry
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger for backend events.
func WithLogger(log zerolog.Logger) Option {
	return func(b *Backend) { b.log = log }
}

// WithAuthorizer sets the authorizer consulted before writes.
func WithAuthorizer(a types.Authorizer) Option {
	return func(b *Backend) {
		if a != nil {
			b.auth = a
		}
	}
}

// WithRegistry sets the type registry used to validate cell values.
func WithRegistry(r *types.Registry) Option {
	return func(b *Backend) {
		if r != nil {
			b.registry = r
		}
	}
}

// NewBackend creates a detached backend. Call Attach before use.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{
		log:      zerolog.Nop(),
		auth:     types.AllowAll,
		registry: types.DefaultRegistry,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Attach opens the database described by config and creates the schema if
// it does not exist. Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}
	d := dialects[config.Backend]

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if d.name == types.BackendSQLite && config.DSN == "" {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return fmt.Errorf("creating data dir: %w", err)
		}
	}

	db, err := sql.Open(d.driver, dsnFor(d, config, dataDir))
	if err != nil {
		return &types.StorageError{Op: "open", Err: err}
	}

	ctx := context.Background()
	for _, stmt := range schemaDDL {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return &types.StorageError{Op: "create schema", Err: err}
		}
	}

	b.db = db
	b.config = config
	b.dialect = d
	b.qb = squirrel.StatementBuilder.PlaceholderFormat(d.placeholder)
	b.attached = true

	b.log.Info().Str("backend", d.name).Str("data_dir", dataDir).Msg("backend attached")
	return nil
}

// Detach closes the database. After Detach every operation returns
// ErrBackendDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return &types.StorageError{Op: "close", Err: err}
		}
		b.db = nil
	}
	b.attached = false
	b.log.Info().Str("backend", b.dialect.name).Msg("backend detached")
	return nil
}

// withTx runs fn in a transaction, committing when fn returns nil. The
// attach lock is held for reading so Detach waits for in-flight work.
func (b *Backend) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return b.runTx(ctx, nil, fn)
}

// withReadTx runs fn in a read-only transaction. On SQLite it begins a
// deferred transaction, so readers do not queue behind the write lock that
// withTx takes up front.
func (b *Backend) withReadTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return b.runTx(ctx, &sql.TxOptions{ReadOnly: true}, fn)
}

func (b *Backend) runTx(ctx context.Context, opts *sql.TxOptions, fn func(tx *sql.Tx) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return types.ErrBackendDetached
	}
	tx, err := b.db.BeginTx(ctx, opts)
	if err != nil {
		return &types.StorageError{Op: "begin", Err: err}
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return &types.StorageError{Op: "commit", Err: err}
	}
	return nil
}

// authorize asks the configured Authorizer about a write in teamspaceID.
func (b *Backend) authorize(ctx context.Context, teamspaceID, action string) error {
	if err := b.auth.Authorize(ctx, teamspaceID, action); err != nil {
		if errors.Is(err, types.ErrUnauthorized) {
			return err
		}
		return fmt.Errorf("%w: %v", types.ErrUnauthorized, err)
	}
	return nil
}

func execSQL(ctx context.Context, tx *sql.Tx, q squirrel.Sqlizer) (sql.Result, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building statement: %w", err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, &types.StorageError{Op: "exec", Err: err}
	}
	return res, nil
}

func querySQL(ctx context.Context, tx *sql.Tx, q squirrel.Sqlizer) (*sql.Rows, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &types.StorageError{Op: "query", Err: err}
	}
	return rows, nil
}

// scanner is the common part of *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// getOne runs q and hands the single result row to hydrate. A missing row
// becomes ErrNotFound naming what and id.
func getOne(ctx context.Context, tx *sql.Tx, q squirrel.Sqlizer, what, id string, hydrate func(scanner) error) error {
	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("building query: %w", err)
	}
	err = hydrate(tx.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, types.ErrNotFound)
	}
	if err != nil {
		return &types.StorageError{Op: "get " + what, Err: err}
	}
	return nil
}

// exists reports whether q returns at least one row.
func exists(ctx context.Context, tx *sql.Tx, q squirrel.SelectBuilder) (bool, error) {
	rows, err := querySQL(ctx, tx, q.Limit(1))
	if err != nil {
		return false, err
	}
	defer rows.Close()
	found := rows.Next()
	if err := rows.Err(); err != nil {
		return false, &types.StorageError{Op: "query", Err: err}
	}
	return found, nil
}

// nextOrdinal returns one past the largest value of col in table where
// the where clause holds, or 0 for an empty set.
func (b *Backend) nextOrdinal(ctx context.Context, tx *sql.Tx, table, col string, where squirrel.Eq) (int, error) {
	var n int
	q := b.qb.Select(fmt.Sprintf("COALESCE(MAX(%s), -1) + 1", col)).From(table).Where(where)
	if err := getOne(ctx, tx, q, table, "ordinal", func(s scanner) error { return s.Scan(&n) }); err != nil {
		return 0, err
	}
	return n, nil
}

// generateID returns a new UUID v7 for entity IDs.
func generateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

func now() time.Time {
	return time.Now().UTC()
}

// timeLayout keeps a fixed-width fraction so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isNotFound(err error) bool {
	return errors.Is(err, types.ErrNotFound)
}
