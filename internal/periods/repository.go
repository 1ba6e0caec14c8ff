package periods

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corefin/corefin/internal/platform/db"
)

const periodColumns = `id, org_id, name, fiscal_year, start_date, end_date, status, notes, locked_by, locked_at, closed_by, closed_at, created_at, updated_at`

// Repository encapsulates DB operations for financial periods.
type Repository interface {
	FindByDate(ctx context.Context, orgID int64, date time.Time) (Period, error)
	ListByFiscalYear(ctx context.Context, orgID int64, fiscalYear int) ([]Period, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, periodID int64) (Period, error)
	AnyOverlap(ctx context.Context, orgID int64, start, end time.Time) (bool, error)
	Insert(ctx context.Context, p Period) (Period, error)
	UpdateStatus(ctx context.Context, p Period) error
	UpdateNotes(ctx context.Context, periodID int64, notes string) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) FindByDate(ctx context.Context, orgID int64, date time.Time) (Period, error) {
	var p Period
	err := r.db.QueryRow(ctx, `SELECT `+periodColumns+`
FROM financial_periods WHERE org_id=$1 AND $2 BETWEEN start_date AND end_date ORDER BY start_date LIMIT 1`, orgID, date).
		Scan(&p.ID, &p.OrgID, &p.Name, &p.FiscalYear, &p.StartDate, &p.EndDate, &p.Status, &p.Notes, &p.LockedBy, &p.LockedAt, &p.ClosedBy, &p.ClosedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, ErrPeriodNotFound
		}
		return Period{}, err
	}
	return p, nil
}

func (r *repository) ListByFiscalYear(ctx context.Context, orgID int64, fiscalYear int) ([]Period, error) {
	rows, err := r.db.Query(ctx, `SELECT `+periodColumns+`
FROM financial_periods WHERE org_id=$1 AND fiscal_year=$2 ORDER BY start_date`, orgID, fiscalYear)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		var p Period
		if err := rows.Scan(&p.ID, &p.OrgID, &p.Name, &p.FiscalYear, &p.StartDate, &p.EndDate, &p.Status, &p.Notes, &p.LockedBy, &p.LockedAt, &p.ClosedBy, &p.ClosedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, NewTx(tx))
	})
}

type txRepository struct {
	tx pgx.Tx
}

// NewTx wraps an open transaction so other modules can run period checks
// inside their own unit of work.
func NewTx(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (r *txRepository) GetForUpdate(ctx context.Context, periodID int64) (Period, error) {
	var p Period
	err := r.tx.QueryRow(ctx, `SELECT `+periodColumns+`
FROM financial_periods WHERE id=$1 FOR UPDATE`, periodID).
		Scan(&p.ID, &p.OrgID, &p.Name, &p.FiscalYear, &p.StartDate, &p.EndDate, &p.Status, &p.Notes, &p.LockedBy, &p.LockedAt, &p.ClosedBy, &p.ClosedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, ErrPeriodNotFound
		}
		return Period{}, err
	}
	return p, nil
}

func (r *txRepository) AnyOverlap(ctx context.Context, orgID int64, start, end time.Time) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM financial_periods WHERE org_id=$1 AND start_date <= $3 AND end_date >= $2)`, orgID, start, end).Scan(&exists)
	return exists, err
}

func (r *txRepository) Insert(ctx context.Context, p Period) (Period, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO financial_periods (org_id, name, fiscal_year, start_date, end_date, status, notes)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, created_at, updated_at`,
		p.OrgID, p.Name, p.FiscalYear, p.StartDate, p.EndDate, p.Status, p.Notes)
	if err := row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Period{}, err
	}
	return p, nil
}

func (r *txRepository) UpdateStatus(ctx context.Context, p Period) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE financial_periods
SET status=$2, locked_by=$3, locked_at=$4, closed_by=$5, closed_at=$6, updated_at=NOW() WHERE id=$1`,
		p.ID, p.Status, p.LockedBy, p.LockedAt, p.ClosedBy, p.ClosedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPeriodNotFound
	}
	return nil
}

func (r *txRepository) UpdateNotes(ctx context.Context, periodID int64, notes string) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE financial_periods SET notes=$2, updated_at=NOW() WHERE id=$1`, periodID, notes)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPeriodNotFound
	}
	return nil
}
