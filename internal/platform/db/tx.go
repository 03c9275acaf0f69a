package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/artha-erp/artha/internal/shared"
)

// serializationFailure is the SQLSTATE raised when a serializable
// transaction cannot be committed and must be retried.
const serializationFailure = "40001"

// maxSerializableRetries bounds retry-on-conflict for balance mutations.
const maxSerializableRetries = 3

// WithTx executes fn within a repeatable-read transaction. Used by plain
// multi-statement writes that do not mutate balances.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	return run(ctx, pool, pgx.TxOptions{IsoLevel: pgx.RepeatableRead}, fn)
}

// WithSerializableTx executes fn within a serializable transaction,
// retrying a bounded number of times on serialization failure. Two
// concurrent applications against the same note both read the balance; the
// loser of the commit race is replayed here rather than silently
// overwriting. When retries are exhausted the caller sees
// shared.ErrConcurrencyConflict.
func WithSerializableTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	var err error
	for attempt := 0; attempt <= maxSerializableRetries; attempt++ {
		err = run(ctx, pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, fn)
		if !isSerializationFailure(err) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", shared.ErrConcurrencyConflict, err)
}

func run(ctx context.Context, pool *pgxpool.Pool, opts pgx.TxOptions, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == serializationFailure
}
