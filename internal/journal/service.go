package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/corefin/corefin/internal/periods"
	"github.com/corefin/corefin/internal/shared"
)

// AuditPort records journal lifecycle events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates journal entry lifecycle and reporting.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the journal service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create stores a new journal entry. The target period must exist, accept
// writes and cover the entry date. With AutoPost the entry is born POSTED;
// otherwise it starts as DRAFT.
func (s *Service) Create(ctx context.Context, input CreateInput) (Entry, error) {
	if err := input.Validate(); err != nil {
		return Entry{}, err
	}
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = CreateTx(ctx, tx, input, s.now)
		return err
	})
	if err != nil {
		return Entry{}, err
	}
	s.record(ctx, entry, input.ActorID, "journal.create", map[string]any{
		"entry_number": entry.EntryNumber,
		"status":       string(entry.Status),
		"total_debit":  entry.TotalDebit(),
	})
	return entry, nil
}

// CreateTx runs entry creation inside an externally managed transaction. The
// posting orchestrator uses it so that journal entries and stock ledger rows
// commit or roll back together.
func CreateTx(ctx context.Context, tx TxRepository, input CreateInput, now func() time.Time) (Entry, error) {
	if err := input.Validate(); err != nil {
		return Entry{}, err
	}
	period, err := tx.Periods().GetForUpdate(ctx, input.PeriodID)
	if err != nil {
		return Entry{}, err
	}
	if period.OrgID != input.OrgID {
		return Entry{}, periods.ErrPeriodNotFound
	}
	if err := periods.AssertOpen(period); err != nil {
		return Entry{}, err
	}
	if !period.Contains(input.Date) {
		return Entry{}, fmt.Errorf("journal: date %s outside period %s: %w",
			input.Date.Format("2006-01-02"), period.Name, shared.ErrValidation)
	}

	number, err := tx.NextEntryNumber(ctx, input.OrgID, input.Date.Year())
	if err != nil {
		return Entry{}, err
	}

	entry := Entry{
		OrgID:       input.OrgID,
		EntryNumber: number,
		PeriodID:    input.PeriodID,
		Date:        input.Date,
		Source:      input.Source,
		Memo:        input.Memo,
		Status:      StatusDraft,
		CreatedBy:   input.ActorID,
	}
	if input.AutoPost {
		at := now().UTC()
		entry.Status = StatusPosted
		entry.PostedBy = &input.ActorID
		entry.PostedAt = &at
	}
	inserted, err := tx.InsertEntry(ctx, entry)
	if err != nil {
		return Entry{}, err
	}
	lines := make([]Line, 0, len(input.Lines))
	for _, in := range input.Lines {
		lines = append(lines, Line{
			AccountID:   in.AccountID,
			Debit:       in.Debit,
			Credit:      in.Credit,
			Description: in.Description,
		})
	}
	inserted.Lines, err = tx.InsertLines(ctx, inserted.ID, lines)
	if err != nil {
		return Entry{}, err
	}
	return inserted, nil
}

// Post transitions a draft entry to POSTED. The entry must still balance and
// its period must still accept writes.
func (s *Service) Post(ctx context.Context, orgID, entryID, actorID int64) (Entry, error) {
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, orgID, entryID)
		if err != nil {
			return err
		}
		if err := ValidateTransition(current.Status, StatusPosted); err != nil {
			return err
		}
		if !current.Balanced() {
			return fmt.Errorf("%w: debit %.2f credit %.2f", ErrUnbalanced, current.TotalDebit(), current.TotalCredit())
		}
		period, err := tx.Periods().GetForUpdate(ctx, current.PeriodID)
		if err != nil {
			return err
		}
		if err := periods.AssertOpen(period); err != nil {
			return err
		}
		at := s.now().UTC()
		if err := tx.MarkPosted(ctx, current.ID, actorID, at); err != nil {
			return err
		}
		current.Status = StatusPosted
		current.PostedBy = &actorID
		current.PostedAt = &at
		entry = current
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	s.record(ctx, entry, actorID, "journal.post", map[string]any{"entry_number": entry.EntryNumber})
	return entry, nil
}

// Void marks an entry VOID. A reason is mandatory and the period must not be
// closed. Voided entries keep their number and lines for the audit trail.
func (s *Service) Void(ctx context.Context, input VoidInput) (Entry, error) {
	if input.Reason == "" {
		return Entry{}, ErrVoidReasonRequired
	}
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, input.OrgID, input.EntryID)
		if err != nil {
			return err
		}
		if err := ValidateTransition(current.Status, StatusVoid); err != nil {
			return err
		}
		period, err := tx.Periods().GetForUpdate(ctx, current.PeriodID)
		if err != nil {
			return err
		}
		if err := periods.AssertOpen(period); err != nil {
			return err
		}
		at := s.now().UTC()
		if err := tx.MarkVoid(ctx, current.ID, input.ActorID, at, input.Reason); err != nil {
			return err
		}
		current.Status = StatusVoid
		current.VoidedBy = &input.ActorID
		current.VoidedAt = &at
		current.VoidReason = input.Reason
		entry = current
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	s.record(ctx, entry, input.ActorID, "journal.void", map[string]any{
		"entry_number": entry.EntryNumber,
		"reason":       input.Reason,
	})
	return entry, nil
}

// Get loads one entry with its lines.
func (s *Service) Get(ctx context.Context, orgID, entryID int64) (Entry, error) {
	return s.repo.Get(ctx, orgID, entryID)
}

// List returns entries matching the filter, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Entry, error) {
	if filter.OrgID == 0 {
		return nil, errors.New("journal: org required")
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) record(ctx context.Context, entry Entry, actorID int64, action string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		OrgID:    entry.OrgID,
		ActorID:  actorID,
		Action:   action,
		Entity:   "journal_entry",
		EntityID: fmt.Sprintf("%d", entry.ID),
		Meta:     meta,
		At:       s.now(),
	})
}
