package accounts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeactivateRefusesSystemAccounts(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	err := svc.Deactivate(context.Background(), 1, "1140")
	require.ErrorIs(t, err, ErrSystemAccount)
	require.True(t, repo.accounts["1140"].IsActive)
}

func TestDeactivateAndReactivateRoundTrip(t *testing.T) {
	repo := newFakeRepo()
	repo.accounts["5200"] = Account{ID: 50, OrgID: 1, Code: "5200", Name: "Marketing", IsActive: true}
	svc := NewService(repo)
	ctx := context.Background()

	require.NoError(t, svc.Deactivate(ctx, 1, "5200"))
	require.False(t, repo.accounts["5200"].IsActive)

	require.NoError(t, svc.Reactivate(ctx, 1, "5200"))
	require.True(t, repo.accounts["5200"].IsActive)
}

func TestDeactivateUnknownAccount(t *testing.T) {
	svc := NewService(newFakeRepo())
	err := svc.Deactivate(context.Background(), 1, "9999")
	require.ErrorIs(t, err, ErrAccountNotFound)
}
