package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries wraps all SQL used by the API, the OCR pipeline and the worker.
type Queries struct {
	db DBTX
}

// PGStore is the PostgreSQL Store.
type PGStore struct {
	*Queries
	db *sql.DB
}

// NewPGStore constructs a store over an open database handle. The caller owns
// the handle's lifecycle.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{Queries: &Queries{db: db}, db: db}
}

// InTx runs fn inside a transaction, committing only when fn returns nil.
func (s *PGStore) InTx(ctx context.Context, fn func(q Querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&Queries{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", mapError(err))
	}
	committed = true
	return nil
}

// mapError translates driver errors into package sentinels while keeping the
// original error in the chain.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgForeignKeyViolation, pgCheckViolation:
			return fmt.Errorf("%w: %s: %w", ErrConflict, pgErr.ConstraintName, err)
		}
	}
	return err
}

var (
	_ Querier = (*Queries)(nil)
	_ Store   = (*PGStore)(nil)
)
