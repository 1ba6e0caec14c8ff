package journal

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/corefin/corefin/internal/accounts"
)

func sampleRows() []AccountBalanceRow {
	return []AccountBalanceRow{
		{AccountID: 1, Code: "1110", Name: "Cash", Type: accounts.AccountTypeAsset, NormalBalance: accounts.NormalBalanceDebit, Debit: 1500, Credit: 0},
		{AccountID: 2, Code: "1140", Name: "Inventory", Type: accounts.AccountTypeAsset, NormalBalance: accounts.NormalBalanceDebit, Debit: 1000, Credit: 850},
		{AccountID: 3, Code: "4100", Name: "Sales Revenue", Type: accounts.AccountTypeRevenue, NormalBalance: accounts.NormalBalanceCredit, Debit: 0, Credit: 1500},
		{AccountID: 4, Code: "6000", Name: "Cost of Goods Sold", Type: accounts.AccountTypeCOGS, NormalBalance: accounts.NormalBalanceDebit, Debit: 850, Credit: 0},
		{AccountID: 5, Code: "5100", Name: "Operating Expenses", Type: accounts.AccountTypeExpense, NormalBalance: accounts.NormalBalanceDebit, Debit: 200, Credit: 0},
		{AccountID: 6, Code: "2110", Name: "Accounts Payable", Type: accounts.AccountTypeLiability, NormalBalance: accounts.NormalBalanceCredit, Debit: 0, Credit: 1200},
	}
}

func TestTrialBalanceTotals(t *testing.T) {
	repo := newMemoryRepo()
	repo.rows = sampleRows()
	svc := NewService(repo, nil)

	tb, err := svc.BuildTrialBalance(context.Background(), 1, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.InDelta(t, 3550.0, tb.TotalDebit, 0.001)
	require.InDelta(t, 3550.0, tb.TotalCredit, 0.001)
	require.True(t, tb.Balanced)
	require.Len(t, tb.Rows, 6)
}

func TestTrialBalanceDetectsImbalance(t *testing.T) {
	repo := newMemoryRepo()
	repo.rows = []AccountBalanceRow{
		{Code: "1110", Debit: 100, NormalBalance: accounts.NormalBalanceDebit},
		{Code: "4100", Credit: 90, NormalBalance: accounts.NormalBalanceCredit},
	}
	svc := NewService(repo, nil)

	tb, err := svc.BuildTrialBalance(context.Background(), 1, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.False(t, tb.Balanced)
}

func TestAccountBalanceSignedByNormalDirection(t *testing.T) {
	debit := AccountBalanceRow{NormalBalance: accounts.NormalBalanceDebit, Debit: 1000, Credit: 850}
	require.InDelta(t, 150.0, debit.Balance(), 0.001)

	credit := AccountBalanceRow{NormalBalance: accounts.NormalBalanceCredit, Debit: 100, Credit: 1500}
	require.InDelta(t, 1400.0, credit.Balance(), 0.001)
}

func TestProfitAndLossSectionsAndTotals(t *testing.T) {
	repo := newMemoryRepo()
	repo.rows = sampleRows()
	svc := NewService(repo, nil)

	pl, err := svc.BuildProfitAndLoss(context.Background(), 1, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.InDelta(t, 1500.0, pl.Revenue.Total, 0.001)
	require.InDelta(t, 850.0, pl.COGS.Total, 0.001)
	require.InDelta(t, 200.0, pl.Expenses.Total, 0.001)
	require.InDelta(t, 650.0, pl.GrossProfit, 0.001)
	require.InDelta(t, 450.0, pl.NetProfit, 0.001)

	// Balance-sheet accounts never enter the statement.
	require.Len(t, pl.Revenue.Rows, 1)
	require.Len(t, pl.COGS.Rows, 1)
	require.Len(t, pl.Expenses.Rows, 1)
}

func TestWriteTrialBalanceCSV(t *testing.T) {
	repo := newMemoryRepo()
	repo.rows = sampleRows()
	svc := NewService(repo, nil)

	tb, err := svc.BuildTrialBalance(context.Background(), 1, time.Time{}, time.Time{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteTrialBalanceCSV(&buf, tb))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 8)
	require.Equal(t, "Code,Account,Type,Debit,Credit,Balance", lines[0])
	require.Contains(t, lines[1], "1110,Cash,ASSET")
	require.Contains(t, lines[len(lines)-1], "TOTAL")
	require.Contains(t, lines[len(lines)-1], "3,550.00")
}

func TestWriteProfitAndLossCSV(t *testing.T) {
	repo := newMemoryRepo()
	repo.rows = sampleRows()
	svc := NewService(repo, nil)

	pl, err := svc.BuildProfitAndLoss(context.Background(), 1, time.Time{}, time.Time{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteProfitAndLossCSV(&buf, pl))

	out := buf.String()
	require.Contains(t, out, "Revenue,4100,Sales Revenue,")
	require.Contains(t, out, "Total Cost of Goods Sold,850.00")
	require.Contains(t, out, "Gross Profit,650.00")
	require.Contains(t, out, "Net Profit,450.00")
}
