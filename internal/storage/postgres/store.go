// Package postgres implements storage.Store on PostgreSQL through pgxpool.
//
// Rows read inside a unit of work are locked with SELECT ... FOR UPDATE, so
// concurrent units touching the same account or goal serialize. Category
// deltas are applied with a single INSERT ... ON CONFLICT upsert.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"saldo/internal/core"
	"saldo/internal/storage"
)

// DefaultLockTimeout bounds how long a statement waits on a row lock.
const DefaultLockTimeout = 5 * time.Second

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	queries
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

var (
	_ storage.Store      = (*Store)(nil)
	_ storage.UnitOfWork = (*unit)(nil)
)

// Open connects to databaseURL, applies migrations and returns a ready Store.
func Open(ctx context.Context, databaseURL string, lockTimeout time.Duration) (*Store, error) {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}

	if err := RunMigrations(databaseURL); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.InfoContext(ctx, "Postgres store ready", "lock_timeout", lockTimeout)
	return &Store{queries: queries{q: pool}, pool: pool, lockTimeout: lockTimeout}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Begin implements storage.Store.
func (s *Store) Begin(ctx context.Context) (storage.UnitOfWork, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	// SET LOCAL does not accept bind parameters.
	stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
	if _, err := tx.Exec(ctx, stmt); err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("set lock timeout: %w", err)
	}
	return &unit{queries: queries{q: tx, lock: true}, tx: tx, ctx: ctx}, nil
}

type unit struct {
	queries
	tx   pgx.Tx
	ctx  context.Context
	done bool
}

func (u *unit) Commit() error {
	if u.done {
		return storage.ErrUnitClosed
	}
	u.done = true
	if err := u.tx.Commit(u.ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (u *unit) Rollback() error {
	if u.done {
		return storage.ErrUnitClosed
	}
	u.done = true
	// The request context may already be cancelled; rollback must still run.
	if err := u.tx.Rollback(context.WithoutCancel(u.ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}

// mapWriteError turns unique violations into conflicts.
func mapWriteError(op, entity string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return core.Conflict(entity, pgErr.Detail)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func requireAffected(tag pgconn.CommandTag, entity, id string) error {
	if tag.RowsAffected() == 0 {
		return core.NotFound(entity, id)
	}
	return nil
}
