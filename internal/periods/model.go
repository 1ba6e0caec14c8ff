package periods

import (
	"errors"
	"time"
)

// Status enumerates valid period states.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusLocked Status = "LOCKED"
	StatusClosed Status = "CLOSED"
)

// Period represents a fiscal period window for one organization.
type Period struct {
	ID         int64
	OrgID      int64
	Name       string
	FiscalYear int
	StartDate  time.Time
	EndDate    time.Time
	Status     Status
	Notes      string
	LockedBy   *int64
	LockedAt   *time.Time
	ClosedBy   *int64
	ClosedAt   *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

var (
	// ErrPeriodNotFound indicates no period covers the requested date.
	ErrPeriodNotFound = errors.New("periods: no period covers date")
	// ErrPeriodLocked indicates the period is locked against writes.
	ErrPeriodLocked = errors.New("periods: period locked")
	// ErrPeriodClosed indicates the period is permanently closed.
	ErrPeriodClosed = errors.New("periods: period closed")
	// ErrPeriodOverlap indicates the date range collides with an existing period.
	ErrPeriodOverlap = errors.New("periods: date range overlaps existing period")
	// ErrInvalidTransition indicates a status change not allowed by policy.
	ErrInvalidTransition = errors.New("periods: status transition invalid")
	// ErrInvalidRange indicates start date is not strictly before end date.
	ErrInvalidRange = errors.New("periods: start date must precede end date")
)

// transitions is the single source of truth for period status changes.
// CLOSED is terminal: it has no outgoing edges.
var transitions = map[Status][]Status{
	StatusOpen:   {StatusLocked, StatusClosed},
	StatusLocked: {StatusOpen, StatusClosed},
	StatusClosed: {},
}

// ValidateTransition checks a status change against the transition table.
// A no-op transition is rejected: closing a closed period is a caller error.
func ValidateTransition(current, target Status) error {
	for _, allowed := range transitions[current] {
		if allowed == target {
			return nil
		}
	}
	return ErrInvalidTransition
}

// AssertOpen reports whether the period accepts ledger and journal writes.
func AssertOpen(p Period) error {
	switch p.Status {
	case StatusOpen:
		return nil
	case StatusLocked:
		return ErrPeriodLocked
	case StatusClosed:
		return ErrPeriodClosed
	default:
		return ErrInvalidTransition
	}
}

// Contains reports whether date falls inside the period window, inclusive.
func (p Period) Contains(date time.Time) bool {
	return !date.Before(p.StartDate) && !date.After(p.EndDate)
}
