// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"

	retry "github.com/avast/retry-go"
)

// withWriteRetry runs fn, retrying on lock contention with jittered
// exponential backoff up to the configured attempt budget. Exhausting the
// budget surfaces ErrStoreBusy; all other failures pass through after the
// first attempt.
func (s *Store) withWriteRetry(ctx context.Context, op string, fn func() error) error {
	err := retry.Do(
		func() error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fn()
		},
		retry.Attempts(s.opts.RetryAttempts),
		retry.Delay(s.opts.RetryBaseDelay),
		retry.MaxDelay(s.opts.RetryMaxDelay),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(s.opts.RetryBaseDelay),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil && isBusy(err)
		}),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Debug("store: retrying write", "op", op, "attempt", n+1, "error", err)
		}),
	)
	if isBusy(err) {
		s.logger.Warn("store: write retry budget exhausted", "op", op, "attempts", s.opts.RetryAttempts)
		return fmt.Errorf("%s: %w", op, ErrStoreBusy)
	}
	return classify(op, err)
}

// inTx runs fn inside a single transaction. Commit or rollback is decided
// solely by fn's error; a failed transaction leaves prior state intact.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
