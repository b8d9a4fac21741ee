// Package tx carries an open SQL transaction on the context so stores can
// join it without taking *sql.Tx parameters.
package tx

import (
	"context"
	"database/sql"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx returns a context carrying the transaction. A nil transaction
// leaves the context unchanged.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From returns the transaction on the context, if any. Stores fall back to
// their own connection pool when none is present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}
