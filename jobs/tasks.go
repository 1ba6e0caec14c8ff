package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerReconcileScan compares ledger balances with the stock cache.
	TaskLedgerReconcileScan = "ledger:reconcile_scan"
	// TaskJournalIntegrity verifies that every posted entry balances.
	TaskJournalIntegrity = "journal:integrity"
)

// ReconcileScanPayload scopes a reconcile scan to one organization. OrgID 0
// scans every organization with ledger activity.
type ReconcileScanPayload struct {
	OrgID        int64     `json:"org_id"`
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewReconcileScanTask constructs an Asynq task for a reconcile scan.
func NewReconcileScanTask(orgID int64, at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ReconcileScanPayload{OrgID: orgID, ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerReconcileScan, body, asynq.Queue(QueueDefault)), nil
}

// JournalIntegrityPayload scopes an integrity check to one organization.
// OrgID 0 checks all organizations.
type JournalIntegrityPayload struct {
	OrgID        int64     `json:"org_id"`
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewJournalIntegrityTask constructs an Asynq task for a journal integrity check.
func NewJournalIntegrityTask(orgID int64, at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(JournalIntegrityPayload{OrgID: orgID, ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskJournalIntegrity, body, asynq.Queue(QueueDefault)), nil
}
