package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle. Its concrete type is backend-defined
// (pgx.Tx for Postgres, *memory.Tx for the in-memory store).
type Tx interface{}

// NoTX runs a repository call outside any transaction.
var NoTX Tx

// TransactionManager executes fn inside a transaction and commits when fn
// returns nil. Repositories MUST accept a nil Tx (non-transactional path).
//
// Per-user read-modify-write goes through WithTx + GetForUpdate so that two
// writers for the same user are serialized while different users never wait
// on each other.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
