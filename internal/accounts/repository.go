package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const accountColumns = `id, org_id, code, name, type, normal_balance, is_system, is_active, created_at, updated_at`

// Repository encapsulates DB operations for the chart of accounts.
type Repository interface {
	List(ctx context.Context, orgID int64) ([]Account, error)
	GetByCode(ctx context.Context, orgID int64, code string) (Account, error)
	SetActive(ctx context.Context, orgID int64, code string, active bool) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context, orgID int64) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE org_id=$1 ORDER BY code`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.OrgID, &a.Code, &a.Name, &a.Type, &a.NormalBalance, &a.IsSystem, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *repository) GetByCode(ctx context.Context, orgID int64, code string) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE org_id=$1 AND code=$2`, orgID, code)
	return scanAccount(row)
}

func (r *repository) SetActive(ctx context.Context, orgID int64, code string, active bool) error {
	cmd, err := r.db.Exec(ctx, `UPDATE accounts SET is_active=$3, updated_at=NOW() WHERE org_id=$1 AND code=$2`, orgID, code, active)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// TxRepository exposes account lookups inside another module's transaction.
type TxRepository interface {
	GetByCode(ctx context.Context, orgID int64, code string) (Account, error)
}

type txRepository struct {
	tx pgx.Tx
}

// NewTx wraps an open transaction for transactional account lookups.
func NewTx(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (r *txRepository) GetByCode(ctx context.Context, orgID int64, code string) (Account, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE org_id=$1 AND code=$2`, orgID, code)
	return scanAccount(row)
}

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.OrgID, &a.Code, &a.Name, &a.Type, &a.NormalBalance, &a.IsSystem, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}
