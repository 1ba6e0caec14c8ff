package periods

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/corefin/corefin/internal/shared"
)

// AuditPort records period lifecycle events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates period lookup, lifecycle and generation.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the period service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Resolve returns the period covering the supplied date for the organization.
func (s *Service) Resolve(ctx context.Context, orgID int64, date time.Time) (Period, error) {
	if orgID == 0 {
		return Period{}, errors.New("periods: org required")
	}
	return s.repo.FindByDate(ctx, orgID, date)
}

// ListFiscalYear returns all periods of one fiscal year.
func (s *Service) ListFiscalYear(ctx context.Context, orgID int64, fiscalYear int) ([]Period, error) {
	return s.repo.ListByFiscalYear(ctx, orgID, fiscalYear)
}

// Lock transitions a period to LOCKED.
func (s *Service) Lock(ctx context.Context, periodID, actorID int64) (Period, error) {
	return s.transition(ctx, periodID, actorID, StatusLocked, "period.lock")
}

// Unlock transitions a locked period back to OPEN.
func (s *Service) Unlock(ctx context.Context, periodID, actorID int64) (Period, error) {
	return s.transition(ctx, periodID, actorID, StatusOpen, "period.unlock")
}

// Close transitions a period to CLOSED. There is no reopen: once closed the
// period is permanently immutable except for notes.
func (s *Service) Close(ctx context.Context, periodID, actorID int64) (Period, error) {
	return s.transition(ctx, periodID, actorID, StatusClosed, "period.close")
}

func (s *Service) transition(ctx context.Context, periodID, actorID int64, target Status, action string) (Period, error) {
	if periodID == 0 {
		return Period{}, errors.New("periods: period id required")
	}
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		if err := ValidateTransition(current.Status, target); err != nil {
			return err
		}
		now := s.now()
		current.Status = target
		switch target {
		case StatusLocked:
			current.LockedBy = &actorID
			current.LockedAt = &now
		case StatusOpen:
			current.LockedBy = nil
			current.LockedAt = nil
		case StatusClosed:
			current.ClosedBy = &actorID
			current.ClosedAt = &now
		}
		if err := tx.UpdateStatus(ctx, current); err != nil {
			return err
		}
		period = current
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			OrgID:    period.OrgID,
			ActorID:  actorID,
			Action:   action,
			Entity:   "financial_period",
			EntityID: fmt.Sprintf("%d", period.ID),
			Meta:     map[string]any{"status": string(period.Status)},
			At:       s.now(),
		})
	}
	return period, nil
}

// UpdateNotes changes the notes field. It is the only mutation accepted for
// closed periods.
func (s *Service) UpdateNotes(ctx context.Context, periodID int64, notes string) (Period, error) {
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		if err := tx.UpdateNotes(ctx, periodID, notes); err != nil {
			return err
		}
		current.Notes = notes
		period = current
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	return period, nil
}

// GenerateInput groups parameters for fiscal-year period generation.
type GenerateInput struct {
	OrgID      int64
	FiscalYear int
	StartMonth int
	ActorID    int64
}

// GenerateFiscalYear creates 12 contiguous monthly periods covering the
// fiscal year starting at StartMonth. Fails when any generated range
// overlaps an existing period of the organization.
func (s *Service) GenerateFiscalYear(ctx context.Context, input GenerateInput) ([]Period, error) {
	if input.OrgID == 0 {
		return nil, errors.New("periods: org required")
	}
	if input.StartMonth < 1 || input.StartMonth > 12 {
		return nil, fmt.Errorf("periods: start month %d out of range: %w", input.StartMonth, shared.ErrValidation)
	}
	if input.FiscalYear < 1900 || input.FiscalYear > 9999 {
		return nil, fmt.Errorf("periods: fiscal year %d out of range: %w", input.FiscalYear, shared.ErrValidation)
	}

	spanStart := time.Date(input.FiscalYear, time.Month(input.StartMonth), 1, 0, 0, 0, 0, time.UTC)
	spanEnd := spanStart.AddDate(1, 0, -1)

	var created []Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		overlap, err := tx.AnyOverlap(ctx, input.OrgID, spanStart, spanEnd)
		if err != nil {
			return err
		}
		if overlap {
			return ErrPeriodOverlap
		}
		for i := 0; i < 12; i++ {
			start := spanStart.AddDate(0, i, 0)
			end := start.AddDate(0, 1, -1)
			period := Period{
				OrgID:      input.OrgID,
				Name:       start.Format("Jan 2006"),
				FiscalYear: input.FiscalYear,
				StartDate:  start,
				EndDate:    end,
				Status:     StatusOpen,
			}
			inserted, err := tx.Insert(ctx, period)
			if err != nil {
				return err
			}
			created = append(created, inserted)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			OrgID:    input.OrgID,
			ActorID:  input.ActorID,
			Action:   "period.generate",
			Entity:   "financial_period",
			EntityID: fmt.Sprintf("FY%d", input.FiscalYear),
			Meta:     map[string]any{"count": len(created), "start_month": input.StartMonth},
			At:       s.now(),
		})
	}
	return created, nil
}
