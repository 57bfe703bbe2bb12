package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// TxOptions controls how WithTx opens a transaction.  A zero Timeout means
// the transaction is bounded only by the caller's context.
type TxOptions struct {
	Isolation sql.IsolationLevel
	Timeout   time.Duration
}

// ReadCommitted is the isolation used by the booking write path.
var ReadCommitted = TxOptions{Isolation: sql.LevelReadCommitted, Timeout: 5 * time.Second}

// WithTx runs fn inside a transaction on db.  The transaction is committed
// when fn returns nil and rolled back otherwise; it is also rolled back if
// fn panics, after which the panic continues.  The error returned by fn is
// returned unchanged so callers can still match it with errors.Is.
func WithTx(ctx context.Context, db *sql.DB, opts TxOptions, fn func(ctx context.Context, tx *sql.Tx) error) (err error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: opts.Isolation})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) && err != nil {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}
