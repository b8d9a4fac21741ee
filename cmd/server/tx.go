package main

import (
	"context"
	"database/sql"
	"time"

	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

// postgresTxRunner opens one SQL transaction per unit of work and carries it
// on the context so every store touched inside fn joins the same transaction.
// Satisfies the TxRunner interfaces of both the screening service and the
// monitoring runner.
type postgresTxRunner struct {
	db      *sql.DB
	timeout time.Duration
}

func newPostgresTxRunner(db *sql.DB) *postgresTxRunner {
	return &postgresTxRunner{db: db}
}

func (t *postgresTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	sqlTx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(tx.WithTx(ctx, sqlTx)); err != nil {
		return err
	}

	return sqlTx.Commit()
}
