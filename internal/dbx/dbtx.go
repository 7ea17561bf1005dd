// Package dbx provides the small DB abstractions shared by repositories:
// DBTX, implemented by both *sql.DB and *sql.Tx, a helper that runs a
// function inside a transaction, and TxRunner, the seam services use to open
// a unit of work without knowing which store backs it.
package dbx

import (
	"context"
	"database/sql"
)

// DBTX is the subset of database/sql used by our repos.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxFunc is the body of a unit of work. tx must be used for every statement
// that belongs to the unit.
type TxFunc func(ctx context.Context, tx DBTX) error

// TxRunner runs fn atomically: either every statement issued through tx
// takes effect or none does.
type TxRunner interface {
	RunInTx(ctx context.Context, fn TxFunc) error
}

// WithTx begins a transaction, runs fn with a transactional handle, and then
// commits on success or rolls back on error/panic. Panics are rethrown.
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    _, err := tx.ExecContext(ctx, "UPDATE ...")
//	    return err
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn TxFunc) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}

// SQLTxRunner is a TxRunner over a *sql.DB.
type SQLTxRunner struct {
	DB   *sql.DB
	Opts *sql.TxOptions
}

// NewSQLTxRunner returns a runner that opens transactions on db with opts (may be nil).
func NewSQLTxRunner(db *sql.DB, opts *sql.TxOptions) *SQLTxRunner {
	return &SQLTxRunner{DB: db, Opts: opts}
}

// RunInTx implements TxRunner.
func (r *SQLTxRunner) RunInTx(ctx context.Context, fn TxFunc) error {
	return WithTx(ctx, r.DB, r.Opts, fn)
}
