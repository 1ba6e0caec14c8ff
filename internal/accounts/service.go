package accounts

import "context"

// Service exposes read access to the chart of accounts.
type Service struct {
	repo Repository
}

// NewService constructs the accounts service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns the organization's chart of accounts ordered by code.
func (s *Service) List(ctx context.Context, orgID int64) ([]Account, error) {
	return s.repo.List(ctx, orgID)
}

// GetByCode fetches one account by its code.
func (s *Service) GetByCode(ctx context.Context, orgID int64, code string) (Account, error) {
	return s.repo.GetByCode(ctx, orgID, code)
}

// Deactivate retires an account from the chart. Seeded system accounts back
// posting roles and cannot be deactivated.
func (s *Service) Deactivate(ctx context.Context, orgID int64, code string) error {
	acc, err := s.repo.GetByCode(ctx, orgID, code)
	if err != nil {
		return err
	}
	if acc.IsSystem {
		return ErrSystemAccount
	}
	return s.repo.SetActive(ctx, orgID, code, false)
}

// Reactivate restores a previously deactivated account.
func (s *Service) Reactivate(ctx context.Context, orgID int64, code string) error {
	if _, err := s.repo.GetByCode(ctx, orgID, code); err != nil {
		return err
	}
	return s.repo.SetActive(ctx, orgID, code, true)
}
