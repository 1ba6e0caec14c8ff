package journal

import (
	"context"
	"math"
	"time"

	"github.com/corefin/corefin/internal/accounts"
)

// AccountBalanceRow is the per-account aggregate of posted journal lines.
type AccountBalanceRow struct {
	AccountID     int64
	Code          string
	Name          string
	Type          accounts.AccountType
	NormalBalance accounts.NormalBalance
	Debit         float64
	Credit        float64
}

// Balance returns the signed balance in the account's normal direction.
func (r AccountBalanceRow) Balance() float64 {
	if r.NormalBalance == accounts.NormalBalanceCredit {
		return r.Credit - r.Debit
	}
	return r.Debit - r.Credit
}

// TrialBalance lists every account with posted activity and checks that total
// debits equal total credits.
type TrialBalance struct {
	OrgID       int64
	From        time.Time
	To          time.Time
	Rows        []AccountBalanceRow
	TotalDebit  float64
	TotalCredit float64
	Balanced    bool
}

// BuildTrialBalance aggregates posted entries over [from, to]. Draft and void
// entries never contribute.
func (s *Service) BuildTrialBalance(ctx context.Context, orgID int64, from, to time.Time) (TrialBalance, error) {
	rows, err := s.repo.AggregateByAccount(ctx, orgID, from, to)
	if err != nil {
		return TrialBalance{}, err
	}
	tb := TrialBalance{OrgID: orgID, From: from, To: to, Rows: rows}
	for _, row := range rows {
		tb.TotalDebit += row.Debit
		tb.TotalCredit += row.Credit
	}
	tb.Balanced = math.Abs(tb.TotalDebit-tb.TotalCredit) < BalanceEpsilon
	return tb, nil
}

// PLSection is one block of the profit and loss statement.
type PLSection struct {
	Rows  []AccountBalanceRow
	Total float64
}

// ProfitAndLoss summarizes revenue against cost of goods sold and operating
// expenses over a date range.
type ProfitAndLoss struct {
	OrgID       int64
	From        time.Time
	To          time.Time
	Revenue     PLSection
	COGS        PLSection
	Expenses    PLSection
	GrossProfit float64
	NetProfit   float64
}

// BuildProfitAndLoss derives the P&L from posted entries. Gross profit is
// revenue minus cost of goods sold; net profit subtracts the remaining
// expenses.
func (s *Service) BuildProfitAndLoss(ctx context.Context, orgID int64, from, to time.Time) (ProfitAndLoss, error) {
	rows, err := s.repo.AggregateByAccount(ctx, orgID, from, to)
	if err != nil {
		return ProfitAndLoss{}, err
	}
	pl := ProfitAndLoss{OrgID: orgID, From: from, To: to}
	for _, row := range rows {
		switch row.Type {
		case accounts.AccountTypeRevenue:
			pl.Revenue.Rows = append(pl.Revenue.Rows, row)
			pl.Revenue.Total += row.Balance()
		case accounts.AccountTypeCOGS:
			pl.COGS.Rows = append(pl.COGS.Rows, row)
			pl.COGS.Total += row.Balance()
		case accounts.AccountTypeExpense:
			pl.Expenses.Rows = append(pl.Expenses.Rows, row)
			pl.Expenses.Total += row.Balance()
		}
	}
	pl.GrossProfit = pl.Revenue.Total - pl.COGS.Total
	pl.NetProfit = pl.GrossProfit - pl.Expenses.Total
	return pl, nil
}
