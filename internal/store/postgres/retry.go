package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres error codes a serializable transaction may fail with while still
// being safe to run again from the start.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return true
	}
	return false
}

// withSerializableRetry runs fn in a serializable transaction and starts over
// on contention, up to opts.SaleMaxRetries extra attempts. Any other error is
// returned as is.
func (s *Store) withSerializableRetry(ctx context.Context, fn func(*sql.Tx) error) error {
	backoff := s.opts.RetryBackoff
	for attempt := 0; ; attempt++ {
		err := s.runSerializable(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		if attempt >= s.opts.SaleMaxRetries {
			return fmt.Errorf("max retries (%d) exceeded: %w", s.opts.SaleMaxRetries, err)
		}
		log.Printf("[postgres] retrying serializable transaction attempt=%d: %v", attempt+1, err)

		jitter := time.Duration(rand.Int63n(int64(backoff/4) + 1))
		select {
		case <-time.After(backoff + jitter):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}
}

func (s *Store) runSerializable(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
