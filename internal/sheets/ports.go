package sheets

import (
	"context"
	"strconv"

	"saldo/internal/core"
)

// Ports for outbound adapters.
type (
	// ClosureExporter mirrors committed closures into an external ledger.
	// Exporting the same closure twice must not create a second row.
	ClosureExporter interface {
		ExportClosure(ctx context.Context, c core.MonthClosure) (rowRef string, err error)
	}
)

// ClosureHeader is the header row written above the exported closures.
var ClosureHeader = []string{
	"closure_id", "user_id", "month_year", "closure_date",
	"total_income", "total_expenses", "net_balance", "accumulated_balance",
	"currency_code", "notes",
}

// ClosureRow renders a closure as one row, in ClosureHeader order. Amounts
// use a dot decimal separator and two decimals.
func ClosureRow(c core.MonthClosure) []string {
	return []string{
		strconv.FormatInt(c.ID, 10),
		c.UserID,
		c.MonthYear,
		c.ClosureDate.UTC().Format("2006-01-02 15:04:05"),
		c.TotalIncome.String(),
		c.TotalExpenses.String(),
		c.NetBalance.String(),
		c.AccumulatedBalance.String(),
		c.CurrencyCode,
		c.Notes,
	}
}
