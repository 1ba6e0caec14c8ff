package stockledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corefin/corefin/internal/platform/db"
	"github.com/corefin/corefin/internal/shared"
)

const entryColumns = `id, org_id, item_id, tx_type, source_type, source_id, quantity_change, running_balance, cost_per_unit, total_value, occurred_at, created_by, idempotency_key, created_at`

// Repository persists stock ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service and by
// the posting orchestrator's unit of work.
type TxRepository interface {
	LockItemStock(ctx context.Context, orgID, itemID int64) (float64, error)
	GetLatest(ctx context.Context, orgID, itemID int64, asOf time.Time) (Entry, error)
	FindByIdempotencyKey(ctx context.Context, orgID int64, key string) (Entry, error)
	InsertEntry(ctx context.Context, e Entry) (Entry, error)
	UpdateItemStock(ctx context.Context, orgID, itemID int64, qty float64) error
	ListForCosting(ctx context.Context, orgID, itemID int64, asOf time.Time) ([]Entry, error)
}

// ErrDuplicateIdempotencyKey signals a concurrent insert with the same key.
// Callers treat it as a retry, not a failure.
var ErrDuplicateIdempotencyKey = errors.New("stockledger: idempotency key already used")

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("stockledger: repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTx(tx))
	})
}

// FindByIdempotencyKey looks the key up outside any transaction. Append uses
// it to recover the stored entry after losing a concurrent insert race.
func (r *Repository) FindByIdempotencyKey(ctx context.Context, orgID int64, key string) (Entry, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+entryColumns+`
FROM stock_ledger WHERE org_id=$1 AND idempotency_key=$2`, orgID, key)
	return scanEntry(row)
}

// GetLatest returns the most recent entry for the item at or before asOf.
func (r *Repository) GetLatest(ctx context.Context, orgID, itemID int64, asOf time.Time) (Entry, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+entryColumns+`
FROM stock_ledger WHERE org_id=$1 AND item_id=$2 AND occurred_at <= $3
ORDER BY occurred_at DESC, id DESC LIMIT 1`, orgID, itemID, asOf)
	return scanEntry(row)
}

// FindBySource returns entries originating from one business document.
func (r *Repository) FindBySource(ctx context.Context, orgID int64, source shared.SourceDocument) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+`
FROM stock_ledger WHERE org_id=$1 AND source_type=$2 AND source_id=$3 ORDER BY id`, orgID, source.Type, source.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

// HistoryPage lists entries ascending by (event time, id) after the cursor.
type HistoryPage struct {
	OrgID     int64
	ItemID    int64
	From      time.Time
	To        time.Time
	AfterTime time.Time
	AfterID   int64
	Limit     int
}

// ListHistory returns one page of the item's ledger history using keyset
// pagination on (occurred_at, id).
func (r *Repository) ListHistory(ctx context.Context, page HistoryPage) ([]Entry, error) {
	limit := page.Limit
	if limit <= 0 {
		limit = 200
	}
	to := page.To
	if to.IsZero() {
		to = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	}
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+`
FROM stock_ledger
WHERE org_id=$1 AND item_id=$2 AND occurred_at >= $3 AND occurred_at <= $4 AND (occurred_at, id) > ($5, $6)
ORDER BY occurred_at ASC, id ASC LIMIT $7`,
		page.OrgID, page.ItemID, page.From, to, page.AfterTime, page.AfterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

// ListItemIDs returns the item ids with ledger activity for the organization.
func (r *Repository) ListItemIDs(ctx context.Context, orgID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT item_id FROM stock_ledger WHERE org_id=$1 ORDER BY item_id`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetItemStock returns the denormalized cached quantity for the item.
func (r *Repository) GetItemStock(ctx context.Context, orgID, itemID int64) (float64, error) {
	var qty float64
	err := r.pool.QueryRow(ctx, `SELECT qty FROM item_stock WHERE org_id=$1 AND item_id=$2`, orgID, itemID).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return qty, nil
}

type txRepository struct {
	tx pgx.Tx
}

// NewTx wraps an open transaction so the posting orchestrator can append
// ledger entries inside its own unit of work.
func NewTx(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// LockItemStock takes the per-item row lock that serializes appends and
// returns the cached quantity. The row is created on first use.
func (r *txRepository) LockItemStock(ctx context.Context, orgID, itemID int64) (float64, error) {
	if _, err := r.tx.Exec(ctx, `INSERT INTO item_stock (org_id, item_id, qty) VALUES ($1,$2,0)
ON CONFLICT (org_id, item_id) DO NOTHING`, orgID, itemID); err != nil {
		return 0, err
	}
	var qty float64
	err := r.tx.QueryRow(ctx, `SELECT qty FROM item_stock WHERE org_id=$1 AND item_id=$2 FOR UPDATE`, orgID, itemID).Scan(&qty)
	if err != nil {
		return 0, err
	}
	return qty, nil
}

func (r *txRepository) GetLatest(ctx context.Context, orgID, itemID int64, asOf time.Time) (Entry, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+entryColumns+`
FROM stock_ledger WHERE org_id=$1 AND item_id=$2 AND occurred_at <= $3
ORDER BY occurred_at DESC, id DESC LIMIT 1`, orgID, itemID, asOf)
	return scanEntry(row)
}

func (r *txRepository) FindByIdempotencyKey(ctx context.Context, orgID int64, key string) (Entry, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+entryColumns+`
FROM stock_ledger WHERE org_id=$1 AND idempotency_key=$2`, orgID, key)
	return scanEntry(row)
}

func (r *txRepository) InsertEntry(ctx context.Context, e Entry) (Entry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO stock_ledger
(org_id, item_id, tx_type, source_type, source_id, quantity_change, running_balance, cost_per_unit, total_value, occurred_at, created_by, idempotency_key)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12) RETURNING id, created_at`,
		e.OrgID, e.ItemID, e.Type, e.Source.Type, e.Source.ID, e.QuantityChange, e.RunningBalance, e.CostPerUnit, e.TotalValue, e.OccurredAt, e.CreatedBy, nullString(e.IdempotencyKey))
	if err := row.Scan(&e.ID, &e.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "uq_stock_ledger_idempotency_key" {
			return Entry{}, ErrDuplicateIdempotencyKey
		}
		return Entry{}, err
	}
	return e, nil
}

func (r *txRepository) UpdateItemStock(ctx context.Context, orgID, itemID int64, qty float64) error {
	_, err := r.tx.Exec(ctx, `UPDATE item_stock SET qty=$3, updated_at=NOW() WHERE org_id=$1 AND item_id=$2`, orgID, itemID, qty)
	return err
}

func (r *txRepository) ListForCosting(ctx context.Context, orgID, itemID int64, asOf time.Time) ([]Entry, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+entryColumns+`
FROM stock_ledger WHERE org_id=$1 AND item_id=$2 AND occurred_at <= $3
ORDER BY occurred_at ASC, id ASC`, orgID, itemID, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	var key *string
	err := row.Scan(&e.ID, &e.OrgID, &e.ItemID, &e.Type, &e.Source.Type, &e.Source.ID, &e.QuantityChange, &e.RunningBalance, &e.CostPerUnit, &e.TotalValue, &e.OccurredAt, &e.CreatedBy, &key, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, err
	}
	if key != nil {
		e.IdempotencyKey = *key
	}
	return e, nil
}

func collectEntries(rows pgx.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var key *string
		if err := rows.Scan(&e.ID, &e.OrgID, &e.ItemID, &e.Type, &e.Source.Type, &e.Source.ID, &e.QuantityChange, &e.RunningBalance, &e.CostPerUnit, &e.TotalValue, &e.OccurredAt, &e.CreatedBy, &key, &e.CreatedAt); err != nil {
			return nil, err
		}
		if key != nil {
			e.IdempotencyKey = *key
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
