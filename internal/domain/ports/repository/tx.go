package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager executes fn inside one database transaction and passes
// the infra-defined handle (pgx.Tx for Postgres) as tx.
//
// Repositories accept that handle on every method and run on the pool when
// given NoTX. fn returning an error rolls back every write made through tx.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}

// Isolation presets used by the use cases.
var (
	// WriteTx relies on row locks and unique indexes for serialization.
	WriteTx = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}
	// ReadSnapshotTx gives multi-query reads one consistent snapshot.
	ReadSnapshotTx = pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
)
