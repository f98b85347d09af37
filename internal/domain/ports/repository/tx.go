package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside a storage transaction, passing the
// backend's handle via tx. Repositories accept a nil tx and then run
// outside any transaction.
//
// Usage:
//
//	tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
//		rec, err := payments.FindByPaymentID(ctx, tx, id)
//		...
//		return err
//	})
//
// The concrete type of tx is backend-defined (pgx.Tx for Postgres).
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
