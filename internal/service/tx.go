package service

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// TxBeginner starts a new database transaction.
// Satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
