package journal

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/corefin/corefin/internal/shared"
)

// LineInput describes a journal line for a create request.
type LineInput struct {
	AccountID   int64
	Debit       float64
	Credit      float64
	Description string
}

// CreateInput groups fields required to create a journal entry.
type CreateInput struct {
	OrgID    int64
	PeriodID int64
	Date     time.Time
	Source   shared.SourceDocument
	Memo     string
	ActorID  int64
	AutoPost bool
	Lines    []LineInput
}

// Validate ensures the entry balances and every line is well formed.
// It runs at every save, not only at creation.
func (in CreateInput) Validate() error {
	if in.OrgID == 0 {
		return errors.New("journal: org required")
	}
	if in.PeriodID == 0 {
		return errors.New("journal: period required")
	}
	if len(in.Lines) < 2 {
		return ErrTooFewLines
	}
	var debit, credit float64
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("journal: line %d missing account", idx)
		}
		if line.Debit < 0 || line.Credit < 0 {
			return fmt.Errorf("journal: line %d negative amount", idx)
		}
		if line.Debit > 0 && line.Credit > 0 {
			return fmt.Errorf("journal: line %d cannot be both debit and credit", idx)
		}
		debit += line.Debit
		credit += line.Credit
	}
	if math.Abs(debit-credit) >= BalanceEpsilon {
		return fmt.Errorf("%w: debit %.2f credit %.2f", ErrUnbalanced, debit, credit)
	}
	return in.Source.Validate()
}

// VoidInput wraps parameters for voiding.
type VoidInput struct {
	OrgID   int64
	EntryID int64
	ActorID int64
	Reason  string
}

// ListFilter narrows entry listings.
type ListFilter struct {
	OrgID  int64
	Status Status
	From   time.Time
	To     time.Time
	Limit  int
}
