package journal

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corefin/corefin/internal/periods"
	"github.com/corefin/corefin/internal/platform/db"
)

const entryColumns = `id, org_id, entry_number, period_id, date, source_type, source_id, memo, status, created_by, posted_by, posted_at, voided_by, voided_at, void_reason, created_at, updated_at`

// Repository encapsulates DB operations for journal entries.
type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]Entry, error)
	Get(ctx context.Context, orgID, entryID int64) (Entry, error)
	AggregateByAccount(ctx context.Context, orgID int64, from, to time.Time) ([]AccountBalanceRow, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	NextEntryNumber(ctx context.Context, orgID int64, year int) (string, error)
	InsertEntry(ctx context.Context, e Entry) (Entry, error)
	InsertLines(ctx context.Context, entryID int64, lines []Line) ([]Line, error)
	GetForUpdate(ctx context.Context, orgID, entryID int64) (Entry, error)
	MarkPosted(ctx context.Context, entryID, actorID int64, at time.Time) error
	MarkVoid(ctx context.Context, entryID, actorID int64, at time.Time, reason string) error

	// Period checks run inside journal transactions.
	Periods() periods.TxRepository
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Entry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	to := filter.To
	if to.IsZero() {
		to = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	}
	status := string(filter.Status)
	rows, err := r.db.Query(ctx, `SELECT `+entryColumns+`
FROM journal_entries
WHERE org_id=$1 AND date >= $2 AND date <= $3 AND ($4 = '' OR status = $4)
ORDER BY entry_number DESC LIMIT $5`, filter.OrgID, filter.From, to, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		e, err := scanEntryRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *repository) Get(ctx context.Context, orgID, entryID int64) (Entry, error) {
	row := r.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE org_id=$1 AND id=$2`, orgID, entryID)
	entry, err := scanEntryRow(row)
	if err != nil {
		return Entry{}, err
	}
	lines, err := queryLines(ctx, r.db, entryID)
	if err != nil {
		return Entry{}, err
	}
	entry.Lines = lines
	return entry, nil
}

// AggregateByAccount sums posted debit/credit per account over [from, to].
func (r *repository) AggregateByAccount(ctx context.Context, orgID int64, from, to time.Time) ([]AccountBalanceRow, error) {
	if to.IsZero() {
		to = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	}
	rows, err := r.db.Query(ctx, `SELECT a.id, a.code, a.name, a.type, a.normal_balance,
COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
FROM journal_lines l
JOIN journal_entries e ON e.id = l.entry_id
JOIN accounts a ON a.id = l.account_id
WHERE e.org_id=$1 AND e.status='POSTED' AND e.date >= $2 AND e.date <= $3
GROUP BY a.id, a.code, a.name, a.type, a.normal_balance
ORDER BY a.code`, orgID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountBalanceRow
	for rows.Next() {
		var row AccountBalanceRow
		if err := rows.Scan(&row.AccountID, &row.Code, &row.Name, &row.Type, &row.NormalBalance, &row.Debit, &row.Credit); err != nil {
			return nil, err
		}
		out = append(out, row)
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

// NewTx wraps an open transaction so the posting orchestrator can create
// journal entries inside its own unit of work.
func NewTx(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (r *txRepository) Periods() periods.TxRepository {
	return periods.NewTx(r.tx)
}

// NextEntryNumber allocates the next number from an atomic per-org,
// per-year sequence row. Concurrent allocations serialize on the row, so
// duplicates cannot be produced.
func (r *txRepository) NextEntryNumber(ctx context.Context, orgID int64, year int) (string, error) {
	var n int64
	err := r.tx.QueryRow(ctx, `INSERT INTO journal_sequences (org_id, year, last_number) VALUES ($1,$2,1)
ON CONFLICT (org_id, year) DO UPDATE SET last_number = journal_sequences.last_number + 1
RETURNING last_number`, orgID, year).Scan(&n)
	if err != nil {
		return "", err
	}
	return FormatEntryNumber(year, n), nil
}

func (r *txRepository) InsertEntry(ctx context.Context, e Entry) (Entry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries
(org_id, entry_number, period_id, date, source_type, source_id, memo, status, created_by, posted_by, posted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id, created_at, updated_at`,
		e.OrgID, e.EntryNumber, e.PeriodID, e.Date, e.Source.Type, e.Source.ID, e.Memo, e.Status, e.CreatedBy, e.PostedBy, e.PostedAt)
	if err := row.Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (r *txRepository) InsertLines(ctx context.Context, entryID int64, lines []Line) ([]Line, error) {
	out := make([]Line, 0, len(lines))
	for _, line := range lines {
		line.EntryID = entryID
		err := r.tx.QueryRow(ctx, `INSERT INTO journal_lines (entry_id, account_id, debit, credit, description)
VALUES ($1,$2,$3,$4,$5) RETURNING id`, entryID, line.AccountID, line.Debit, line.Credit, line.Description).Scan(&line.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, nil
}

func (r *txRepository) GetForUpdate(ctx context.Context, orgID, entryID int64) (Entry, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE org_id=$1 AND id=$2 FOR UPDATE`, orgID, entryID)
	entry, err := scanEntryRow(row)
	if err != nil {
		return Entry{}, err
	}
	lines, err := queryLines(ctx, r.tx, entryID)
	if err != nil {
		return Entry{}, err
	}
	entry.Lines = lines
	return entry, nil
}

func (r *txRepository) MarkPosted(ctx context.Context, entryID, actorID int64, at time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status=$2, posted_by=$3, posted_at=$4, updated_at=NOW() WHERE id=$1`,
		entryID, StatusPosted, actorID, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) MarkVoid(ctx context.Context, entryID, actorID int64, at time.Time, reason string) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status=$2, voided_by=$3, voided_at=$4, void_reason=$5, updated_at=NOW() WHERE id=$1`,
		entryID, StatusVoid, actorID, at, reason)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryLines(ctx context.Context, q queryer, entryID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT id, entry_id, account_id, debit, credit, description
FROM journal_lines WHERE entry_id=$1 ORDER BY id ASC`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.EntryID, &line.AccountID, &line.Debit, &line.Credit, &line.Description); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func scanEntryRow(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.OrgID, &e.EntryNumber, &e.PeriodID, &e.Date, &e.Source.Type, &e.Source.ID, &e.Memo, &e.Status,
		&e.CreatedBy, &e.PostedBy, &e.PostedAt, &e.VoidedBy, &e.VoidedAt, &e.VoidReason, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, err
	}
	return e, nil
}
