package accounts

import (
	"errors"
	"time"
)

// AccountType enumerates chart-of-accounts categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
	AccountTypeCOGS      AccountType = "COGS"
)

// NormalBalance indicates which side increases the account.
type NormalBalance string

const (
	NormalBalanceDebit  NormalBalance = "DEBIT"
	NormalBalanceCredit NormalBalance = "CREDIT"
)

// Account models a chart of accounts node.
type Account struct {
	ID            int64
	OrgID         int64
	Code          string
	Name          string
	Type          AccountType
	NormalBalance NormalBalance
	IsSystem      bool
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

var (
	// ErrAccountNotFound indicates a missing account.
	ErrAccountNotFound = errors.New("accounts: account not found")
	// ErrAccountNotConfigured indicates a required posting role has no
	// account for the organization. Fatal for the enclosing operation.
	ErrAccountNotConfigured = errors.New("accounts: required account not configured")
	// ErrSystemAccount protects seeded role accounts from deactivation.
	ErrSystemAccount = errors.New("accounts: system account cannot be deactivated")
)
