package dbopen

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const maxTries = 4

// IsBusy reports whether err is an SQLite BUSY/locked condition.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

func busyBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = time.Second
	return b
}

// classify stops the retry loop on anything that is not a BUSY error.
func classify(err error) error {
	if err != nil && !IsBusy(err) {
		return backoff.Permanent(err)
	}
	return err
}

// RunTx runs fn in a transaction, retrying the whole transaction while
// SQLite reports BUSY.
func RunTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, classify(runOnce(ctx, db, fn))
	}, backoff.WithBackOff(busyBackOff()), backoff.WithMaxTries(maxTries))
	return err
}

func runOnce(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Exec executes a statement, retrying while SQLite reports BUSY.
func Exec(ctx context.Context, db *sql.DB, query string, args ...any) (sql.Result, error) {
	return backoff.Retry(ctx, func() (sql.Result, error) {
		res, err := db.ExecContext(ctx, query, args...)
		return res, classify(err)
	}, backoff.WithBackOff(busyBackOff()), backoff.WithMaxTries(maxTries))
}
