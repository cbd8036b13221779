package extract

import (
	"github.com/rotisserie/eris"

	"github.com/halcyon-research/market-cli/internal/schedule"
)

// Financial statement endpoints share a payload shape: "annualReports" and
// "quarterlyReports" arrays of flat string-valued objects keyed by
// fiscalDateEnding.

// statementFields maps target column to upstream field for one statement
// table. period_end, report_type, and reported_currency are handled by the
// shared transform.
type statementFields map[string]string

func statementColumns(order []string) []string {
	cols := []string{"period_end", "report_type", "reported_currency"}
	return append(cols, order...)
}

// statementTransform builds a TransformFunc over both report arrays.
func statementTransform(fields statementFields) TransformFunc {
	return func(symbol string, payload map[string]any) ([]Record, error) {
		var out []Record
		for _, section := range []struct {
			key        string
			reportType string
		}{
			{"annualReports", "annual"},
			{"quarterlyReports", "quarterly"},
		} {
			reports, ok := payload[section.key].([]any)
			if !ok {
				continue
			}
			for _, raw := range reports {
				report, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				period := dateOrZero(str(report, "fiscalDateEnding"))
				if period.IsZero() {
					return nil, eris.Errorf("statement: %s report for %s missing fiscalDateEnding", section.reportType, symbol)
				}
				rec := Record{
					Period: period,
					Fields: map[string]any{
						"period_end":        period,
						"report_type":       section.reportType,
						"reported_currency": str(report, "reportedCurrency"),
					},
				}
				for col, field := range fields {
					rec.Fields[col] = numOrNil(str(report, field))
				}
				out = append(out, rec)
			}
		}
		return out, nil
	}
}

var balanceSheetFields = statementFields{
	"total_assets":              "totalAssets",
	"total_current_assets":      "totalCurrentAssets",
	"cash_and_equivalents":      "cashAndCashEquivalentsAtCarryingValue",
	"inventory":                 "inventory",
	"total_liabilities":         "totalLiabilities",
	"total_current_liabilities": "totalCurrentLiabilities",
	"long_term_debt":            "longTermDebt",
	"short_term_debt":           "shortTermDebt",
	"total_shareholder_equity":  "totalShareholderEquity",
	"retained_earnings":         "retainedEarnings",
	"common_shares_outstanding": "commonStockSharesOutstanding",
}

var balanceSheetOrder = []string{
	"total_assets", "total_current_assets", "cash_and_equivalents", "inventory",
	"total_liabilities", "total_current_liabilities", "long_term_debt",
	"short_term_debt", "total_shareholder_equity", "retained_earnings",
	"common_shares_outstanding",
}

var incomeStatementFields = statementFields{
	"total_revenue":                 "totalRevenue",
	"cost_of_revenue":               "costOfRevenue",
	"gross_profit":                  "grossProfit",
	"operating_income":              "operatingIncome",
	"operating_expenses":            "operatingExpenses",
	"ebitda":                        "ebitda",
	"depreciation_and_amortization": "depreciationAndAmortization",
	"interest_expense":              "interestExpense",
	"income_before_tax":             "incomeBeforeTax",
	"income_tax_expense":            "incomeTaxExpense",
	"net_income":                    "netIncome",
}

var incomeStatementOrder = []string{
	"total_revenue", "cost_of_revenue", "gross_profit", "operating_income",
	"operating_expenses", "ebitda", "depreciation_and_amortization",
	"interest_expense", "income_before_tax", "income_tax_expense", "net_income",
}

var cashFlowFields = statementFields{
	"operating_cashflow":       "operatingCashflow",
	"capital_expenditures":     "capitalExpenditures",
	"cashflow_from_investment": "cashflowFromInvestment",
	"cashflow_from_financing":  "cashflowFromFinancing",
	"dividend_payout":          "dividendPayout",
	"stock_repurchase":         "paymentsForRepurchaseOfCommonStock",
	"change_in_cash":           "changeInCashAndCashEquivalents",
	"net_income":               "netIncome",
}

var cashFlowOrder = []string{
	"operating_cashflow", "capital_expenditures", "cashflow_from_investment",
	"cashflow_from_financing", "dividend_payout", "stock_repurchase",
	"change_in_cash", "net_income",
}

var statementKey = []string{"entity_id", "period_end", "report_type"}

func symbolParams(symbol string) map[string]string {
	return map[string]string{"symbol": symbol}
}

func newStatementSpec(name, table, fn string, fields statementFields, order []string, lagDays int) *TableSpec {
	return &TableSpec{
		Name:        name,
		Table:       table,
		APIFunction: fn,
		Columns:     statementColumns(order),
		NaturalKey:  statementKey,
		AssetTypes:  []string{"Stock"},
		Rule:        schedule.QuarterlyWithLag{LagDays: lagDays},
		Params:      symbolParams,
		Transform:   statementTransform(fields),
	}
}
