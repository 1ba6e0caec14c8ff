package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corefin/corefin/internal/journal"
)

// JournalIntegrityJob re-verifies the double-entry invariant: every posted
// journal entry must have equal debit and credit totals within the balance
// epsilon. Violations indicate data corruption and are logged loudly.
type JournalIntegrityJob struct {
	Pool   *pgxpool.Pool
	Logger *slog.Logger
}

// NewJournalIntegrityJob initialises the integrity check handler.
func NewJournalIntegrityJob(pool *pgxpool.Pool, logger *slog.Logger) *JournalIntegrityJob {
	return &JournalIntegrityJob{Pool: pool, Logger: logger}
}

// Handle executes the integrity check.
func (j *JournalIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("journal integrity: handler not configured")
	}
	var payload JournalIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	rows, err := j.Pool.Query(ctx, `SELECT e.id, e.org_id, e.entry_number,
COALESCE(SUM(l.debit), 0) AS debit, COALESCE(SUM(l.credit), 0) AS credit
FROM journal_entries e
JOIN journal_lines l ON l.entry_id = e.id
WHERE e.status = 'POSTED' AND ($1 = 0 OR e.org_id = $1)
GROUP BY e.id, e.org_id, e.entry_number
HAVING ABS(COALESCE(SUM(l.debit), 0) - COALESCE(SUM(l.credit), 0)) >= $2`,
		payload.OrgID, journal.BalanceEpsilon)
	if err != nil {
		return err
	}
	defer rows.Close()

	var violations int
	for rows.Next() {
		var (
			entryID, orgID int64
			number         string
			debit, credit  float64
		)
		if err := rows.Scan(&entryID, &orgID, &number, &debit, &credit); err != nil {
			return err
		}
		violations++
		j.Logger.Error("unbalanced posted journal entry",
			slog.Int64("org_id", orgID),
			slog.Int64("entry_id", entryID),
			slog.String("entry_number", number),
			slog.Float64("debit", debit),
			slog.Float64("credit", credit),
		)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if violations == 0 {
		j.Logger.Info("journal integrity check passed", slog.Int64("org_id", payload.OrgID))
	} else {
		j.Logger.Error("journal integrity check found violations", slog.Int("violations", violations))
	}
	return nil
}
