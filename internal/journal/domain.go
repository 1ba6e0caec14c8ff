package journal

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/corefin/corefin/internal/shared"
)

// BalanceEpsilon is the rounding tolerance for debit/credit equality,
// in currency units.
const BalanceEpsilon = 0.01

// Status enumerates journal lifecycle values.
type Status string

const (
	StatusDraft  Status = "DRAFT"
	StatusPosted Status = "POSTED"
	StatusVoid   Status = "VOID"
)

// transitions is the single source of truth for journal status changes.
// VOID is terminal.
var transitions = map[Status][]Status{
	StatusDraft:  {StatusPosted, StatusVoid},
	StatusPosted: {StatusVoid},
	StatusVoid:   {},
}

// ValidateTransition checks a status change against the transition table.
func ValidateTransition(current, target Status) error {
	for _, allowed := range transitions[current] {
		if allowed == target {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, target)
}

// Entry captures one double-entry journal record.
type Entry struct {
	ID          int64
	OrgID       int64
	EntryNumber string
	PeriodID    int64
	Date        time.Time
	Source      shared.SourceDocument
	Memo        string
	Status      Status
	CreatedBy   int64
	PostedBy    *int64
	PostedAt    *time.Time
	VoidedBy    *int64
	VoidedAt    *time.Time
	VoidReason  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Lines       []Line
}

// Line stores a debit or credit amount for an account.
type Line struct {
	ID          int64
	EntryID     int64
	AccountID   int64
	Debit       float64
	Credit      float64
	Description string
}

// TotalDebit sums the debit side of the entry.
func (e Entry) TotalDebit() float64 {
	var total float64
	for _, line := range e.Lines {
		total += line.Debit
	}
	return total
}

// TotalCredit sums the credit side of the entry.
func (e Entry) TotalCredit() float64 {
	var total float64
	for _, line := range e.Lines {
		total += line.Credit
	}
	return total
}

// Balanced reports whether debits equal credits within BalanceEpsilon.
func (e Entry) Balanced() bool {
	return math.Abs(e.TotalDebit()-e.TotalCredit()) < BalanceEpsilon
}

// FormatEntryNumber renders the per-organization, per-year entry number.
func FormatEntryNumber(year int, seq int64) string {
	return fmt.Sprintf("JE-%d-%06d", year, seq)
}

var (
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = errors.New("journal: lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("journal: entry requires at least two lines")
	// ErrEntryNotFound indicates missing entry.
	ErrEntryNotFound = errors.New("journal: entry not found")
	// ErrInvalidTransition indicates a status change not allowed by policy.
	ErrInvalidTransition = errors.New("journal: status transition invalid")
	// ErrEntryImmutable indicates an attempt to edit a posted or void entry.
	ErrEntryImmutable = errors.New("journal: posted entries are immutable")
	// ErrVoidReasonRequired indicates void was requested without a reason.
	ErrVoidReasonRequired = errors.New("journal: void reason required")
)
