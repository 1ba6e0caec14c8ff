package accounts

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	accounts map[string]Account
	calls    int
}

func newFakeRepo(missing ...string) *fakeRepo {
	skip := make(map[string]struct{}, len(missing))
	for _, code := range missing {
		skip[code] = struct{}{}
	}
	repo := &fakeRepo{accounts: make(map[string]Account)}
	var id int64
	for _, code := range DefaultRoleCodes {
		if _, ok := skip[code]; ok {
			continue
		}
		id++
		repo.accounts[code] = Account{ID: id, OrgID: 1, Code: code, IsSystem: true, IsActive: true}
	}
	return repo
}

func (r *fakeRepo) List(ctx context.Context, orgID int64) ([]Account, error) {
	var out []Account
	for _, a := range r.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (r *fakeRepo) GetByCode(ctx context.Context, orgID int64, code string) (Account, error) {
	r.calls++
	acc, ok := r.accounts[code]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return acc, nil
}

func (r *fakeRepo) SetActive(ctx context.Context, orgID int64, code string, active bool) error {
	acc, ok := r.accounts[code]
	if !ok {
		return ErrAccountNotFound
	}
	acc.IsActive = active
	r.accounts[code] = acc
	return nil
}

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	srv := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: srv.Addr()})
}

func TestResolveBuildsCompleteRoleSet(t *testing.T) {
	resolver := NewRoleResolver(newFakeRepo(), nil, time.Minute)

	set, err := resolver.Resolve(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, set.Accounts, len(DefaultRoleCodes))

	inventory, err := set.Get(RoleInventory)
	require.NoError(t, err)
	require.Equal(t, "1140", inventory.Code)
}

func TestResolveMissingRoleIsConfigurationError(t *testing.T) {
	resolver := NewRoleResolver(newFakeRepo("6000"), nil, time.Minute)

	_, err := resolver.Resolve(context.Background(), 1)
	require.ErrorIs(t, err, ErrAccountNotConfigured)
	require.ErrorContains(t, err, "6000")
}

func TestResolveCachesRoleSet(t *testing.T) {
	repo := newFakeRepo()
	resolver := NewRoleResolver(repo, testRedis(t), time.Minute)
	ctx := context.Background()

	first, err := resolver.Resolve(ctx, 1)
	require.NoError(t, err)
	lookups := repo.calls

	second, err := resolver.Resolve(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, lookups, repo.calls, "second resolve must hit the cache")
	require.Equal(t, first.Accounts[RoleCash].ID, second.Accounts[RoleCash].ID)
}

func TestResolveNeverCachesFailure(t *testing.T) {
	repo := newFakeRepo("1110")
	cache := testRedis(t)
	resolver := NewRoleResolver(repo, cache, time.Minute)
	ctx := context.Background()

	_, err := resolver.Resolve(ctx, 1)
	require.ErrorIs(t, err, ErrAccountNotConfigured)

	// Fix the configuration; the resolver must see it immediately.
	repo.accounts["1110"] = Account{ID: 99, OrgID: 1, Code: "1110"}
	set, err := resolver.Resolve(ctx, 1)
	require.NoError(t, err)
	cash, err := set.Get(RoleCash)
	require.NoError(t, err)
	require.Equal(t, int64(99), cash.ID)
}

func TestInvalidateDropsCachedSet(t *testing.T) {
	repo := newFakeRepo()
	resolver := NewRoleResolver(repo, testRedis(t), time.Minute)
	ctx := context.Background()

	_, err := resolver.Resolve(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, resolver.Invalidate(ctx, 1))

	lookups := repo.calls
	_, err = resolver.Resolve(ctx, 1)
	require.NoError(t, err)
	require.Greater(t, repo.calls, lookups, "invalidated set must be rebuilt from the repository")
}

func TestResolveRequiresOrg(t *testing.T) {
	resolver := NewRoleResolver(newFakeRepo(), nil, time.Minute)
	_, err := resolver.Resolve(context.Background(), 0)
	require.Error(t, err)
}
