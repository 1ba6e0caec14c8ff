package journal

import (
	"encoding/csv"
	"fmt"
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// amounts in exports carry thousands separators for spreadsheet review.
var exportPrinter = message.NewPrinter(language.English)

func formatAmount(v float64) string {
	return exportPrinter.Sprintf("%.2f", v)
}

// WriteTrialBalanceCSV renders the trial balance as CSV.
func WriteTrialBalanceCSV(w io.Writer, tb TrialBalance) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Code", "Account", "Type", "Debit", "Credit", "Balance"}); err != nil {
		return err
	}
	for _, row := range tb.Rows {
		record := []string{
			row.Code,
			row.Name,
			string(row.Type),
			formatAmount(row.Debit),
			formatAmount(row.Credit),
			formatAmount(row.Balance()),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	if err := cw.Write([]string{"", "TOTAL", "", formatAmount(tb.TotalDebit), formatAmount(tb.TotalCredit), ""}); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// WriteProfitAndLossCSV renders the P&L statement as CSV.
func WriteProfitAndLossCSV(w io.Writer, pl ProfitAndLoss) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Section", "Code", "Account", "Amount"}); err != nil {
		return err
	}
	sections := []struct {
		name    string
		section PLSection
	}{
		{"Revenue", pl.Revenue},
		{"Cost of Goods Sold", pl.COGS},
		{"Expenses", pl.Expenses},
	}
	for _, sec := range sections {
		for _, row := range sec.section.Rows {
			if err := cw.Write([]string{sec.name, row.Code, row.Name, formatAmount(row.Balance())}); err != nil {
				return err
			}
		}
		if err := cw.Write([]string{sec.name, "", fmt.Sprintf("Total %s", sec.name), formatAmount(sec.section.Total)}); err != nil {
			return err
		}
	}
	if err := cw.Write([]string{"", "", "Gross Profit", formatAmount(pl.GrossProfit)}); err != nil {
		return err
	}
	if err := cw.Write([]string{"", "", "Net Profit", formatAmount(pl.NetProfit)}); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
