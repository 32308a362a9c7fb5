package sqltx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	// ErrBegin wraps failures to start a transaction.
	ErrBegin = errors.New("sqltx: begin failed")
	// ErrCommit wraps failures to commit a transaction.
	ErrCommit = errors.New("sqltx: commit failed")
	// ErrRollback wraps failures to roll back after an earlier error.
	ErrRollback = errors.New("sqltx: rollback failed")
)

// Beginner starts transactions. *sql.DB and *sql.Conn satisfy it.
type Beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Run begins a transaction on db, calls fn with it, and commits if fn returns
// nil. Any error from fn, or a panic, rolls the transaction back. The error
// returned wraps fn's error; a rollback failure is joined to it.
func Run(ctx context.Context, db Beginner, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBegin, err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		rbErr := tx.Rollback()
		if p := recover(); p != nil {
			panic(p)
		}
		if rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("%w: %w", ErrRollback, rbErr))
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrCommit, err)
	}
	committed = true
	return nil
}

// Exec runs a single statement inside its own transaction and returns the
// number of rows it affected.
func Exec(ctx context.Context, db Beginner, query string, args ...any) (int64, error) {
	var affected int64
	err := Run(ctx, db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}
