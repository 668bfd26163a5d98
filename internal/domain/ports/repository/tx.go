package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

// TransactionManager executes a function within a database transaction,
// passing the underlying handle via tx. Keeps use-case interfaces clean (no
// transaction types leaking out) while letting repositories run
// SELECT ... FOR UPDATE on the tx-bound path. Repositories MUST gracefully
// accept nil tx (non-transactional path); the concrete type of tx is
// infra-defined (pgx.Tx for Postgres).
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
