package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/strandfi/facilityd/internal/domain"
)

// querier is the subset of pgx operations the store methods need. Both
// *pgxpool.Pool and pgx.Tx satisfy it, so the same methods serve plain reads
// and transactional engine operations.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Ledger implements domain.TxLedger over PostgreSQL.
type Ledger struct {
	q    querier
	pool *pgxpool.Pool
}

// NewLedger creates a Ledger backed by the given connection pool.
func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{q: pool, pool: pool}
}

// InTx runs fn against a serializable transaction. Any error from fn rolls
// the transaction back, leaving the ledger untouched.
func (l *Ledger) InTx(ctx context.Context, fn func(domain.Ledger) error) error {
	tx, err := l.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}

	if err := fn(&Ledger{q: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.TxLedger = (*Ledger)(nil)
