package posting

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corefin/corefin/internal/accounts"
	"github.com/corefin/corefin/internal/journal"
	"github.com/corefin/corefin/internal/periods"
	"github.com/corefin/corefin/internal/platform/db"
	"github.com/corefin/corefin/internal/stockledger"
)

// Tx bundles every module's transactional repository over one open
// transaction. All writes performed through it commit or roll back together.
type Tx struct {
	Journal  journal.TxRepository
	Stock    stockledger.TxRepository
	Accounts accounts.TxRepository
	Periods  periods.TxRepository
}

// UnitOfWork opens cross-module transactions for orchestrated postings.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(context.Context, Tx) error) error
}

type unitOfWork struct {
	db *pgxpool.Pool
}

// NewUnitOfWork constructs UnitOfWork.
func NewUnitOfWork(db *pgxpool.Pool) UnitOfWork {
	return &unitOfWork{db: db}
}

func (u *unitOfWork) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	return db.WithTx(ctx, u.db, func(tx pgx.Tx) error {
		return fn(ctx, Tx{
			Journal:  journal.NewTx(tx),
			Stock:    stockledger.NewTx(tx),
			Accounts: accounts.NewTx(tx),
			Periods:  periods.NewTx(tx),
		})
	})
}
