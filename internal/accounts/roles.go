package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Role names the posting purpose an account serves for an organization.
type Role string

const (
	RoleCash               Role = "CASH"
	RoleBank               Role = "BANK"
	RoleAccountsReceivable Role = "ACCOUNTS_RECEIVABLE"
	RoleInventory          Role = "INVENTORY"
	RoleAccountsPayable    Role = "ACCOUNTS_PAYABLE"
	RoleSalesRevenue       Role = "SALES_REVENUE"
	RoleCOGS               Role = "COGS"
)

// DefaultRoleCodes maps posting roles to the seeded chart-of-accounts codes.
// The mapping is per tenant data, not program logic: every organization gets
// these codes at seed time and the resolver fails loudly when one is missing.
var DefaultRoleCodes = map[Role]string{
	RoleCash:               "1110",
	RoleBank:               "1120",
	RoleAccountsReceivable: "1130",
	RoleInventory:          "1140",
	RoleAccountsPayable:    "2110",
	RoleSalesRevenue:       "4100",
	RoleCOGS:               "6000",
}

// RoleSet holds the resolved accounts for one organization. It is resolved
// once per orchestration call and injected into posting logic.
type RoleSet struct {
	Accounts map[Role]Account `json:"accounts"`
}

// Get returns the account serving the role.
func (rs RoleSet) Get(role Role) (Account, error) {
	acc, ok := rs.Accounts[role]
	if !ok {
		return Account{}, fmt.Errorf("%w: role %s", ErrAccountNotConfigured, role)
	}
	return acc, nil
}

// RoleResolver resolves role sets with a short-lived Redis cache in front of
// the chart of accounts. The chart is read-heavy and effectively immutable
// during normal operation.
type RoleResolver struct {
	repo  Repository
	cache *redis.Client
	ttl   time.Duration
}

// NewRoleResolver constructs RoleResolver. cache may be nil.
func NewRoleResolver(repo Repository, cache *redis.Client, ttl time.Duration) *RoleResolver {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RoleResolver{repo: repo, cache: cache, ttl: ttl}
}

func roleSetCacheKey(orgID int64) string {
	return fmt.Sprintf("accounts:org:%d:roleset", orgID)
}

// Resolve builds the role set for the organization. A missing role account
// is a configuration error and never cached.
func (r *RoleResolver) Resolve(ctx context.Context, orgID int64) (RoleSet, error) {
	if orgID == 0 {
		return RoleSet{}, errors.New("accounts: org required")
	}
	if r.cache != nil {
		raw, err := r.cache.Get(ctx, roleSetCacheKey(orgID)).Bytes()
		if err == nil {
			var cached RoleSet
			if err := json.Unmarshal(raw, &cached); err == nil && len(cached.Accounts) == len(DefaultRoleCodes) {
				return cached, nil
			}
		}
	}

	set := RoleSet{Accounts: make(map[Role]Account, len(DefaultRoleCodes))}
	for role, code := range DefaultRoleCodes {
		acc, err := r.repo.GetByCode(ctx, orgID, code)
		if err != nil {
			if errors.Is(err, ErrAccountNotFound) {
				return RoleSet{}, fmt.Errorf("%w: role %s code %s", ErrAccountNotConfigured, role, code)
			}
			return RoleSet{}, err
		}
		set.Accounts[role] = acc
	}

	if r.cache != nil {
		if raw, err := json.Marshal(set); err == nil {
			_ = r.cache.Set(ctx, roleSetCacheKey(orgID), raw, r.ttl).Err()
		}
	}
	return set, nil
}

// Invalidate drops the cached role set, used after chart changes.
func (r *RoleResolver) Invalidate(ctx context.Context, orgID int64) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Del(ctx, roleSetCacheKey(orgID)).Err()
}
