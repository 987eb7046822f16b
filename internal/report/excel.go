// Package report renders daily reports into downloadable formats.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"dukani/backend/internal/domain"
)

// WriteDailyXLSX writes a one-sheet workbook for the report: the
// per-currency figures side by side, then the USD summary block.
func WriteDailyXLSX(w io.Writer, report domain.DailyReport) error {
	file := excelize.NewFile()
	defer file.Close()

	const sheet = "Daily Report"
	index, err := file.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	file.SetActiveSheet(index)
	if err := file.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}

	rows := [][]any{
		{"Date", report.Date},
		{"Exchange rate (1 USD)", report.Rate.USDToCDF.String() + " CDF"},
		{"Sales count", report.SaleCount},
		{},
		{"", "USD", "CDF"},
		{"Sales", report.Sales.USD.String(), report.Sales.CDF.String()},
		{"Purchases", report.Purchases.USD.String(), report.Purchases.CDF.String()},
		{"Expenses", report.Expenses.USD.String(), report.Expenses.CDF.String()},
		{"Payments received", report.Payments.USD.String(), report.Payments.CDF.String()},
		{},
		{"Totals in USD"},
		{"Sales", report.SalesUSD.String()},
		{"Purchases", report.PurchasesUSD.String()},
		{"Expenses", report.ExpensesUSD.String()},
		{"Payments received", report.PaymentsUSD.String()},
		{"Estimated cost of goods sold", report.EstimatedCostUSD.String()},
		{"Estimated profit", report.EstimatedProfitUSD.String()},
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := file.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if _, err := file.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
