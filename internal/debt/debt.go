// Package debt derives customer balances from credit sales and
// payments on every read. There is no persisted balance: Sale and
// Payment rows are the single source of truth, so the ledger can never
// drift from them.
package debt

import (
	"sort"

	"github.com/shopspring/decimal"

	"dukani/backend/internal/domain"
)

// Compute returns the raw per-currency balance for a customer:
// credit-sale totals minus payments, per currency. The raw value may
// be negative (overpayment); Clamp is the user-facing view.
func Compute(creditSales []domain.Sale, payments []domain.Payment) domain.CurrencyTotals {
	raw := domain.CurrencyTotals{USD: decimal.Zero, CDF: decimal.Zero}

	for _, sale := range creditSales {
		raw.USD = raw.USD.Add(sale.TotalUSD)
		raw.CDF = raw.CDF.Add(sale.TotalCDF)
	}
	for _, payment := range payments {
		switch payment.Currency {
		case domain.USD:
			raw.USD = raw.USD.Sub(payment.Amount)
		case domain.CDF:
			raw.CDF = raw.CDF.Sub(payment.Amount)
		}
	}
	return raw
}

// Clamp floors each currency at zero for display.
func Clamp(raw domain.CurrencyTotals) domain.CurrencyTotals {
	clamped := raw
	if clamped.USD.IsNegative() {
		clamped.USD = decimal.Zero
	}
	if clamped.CDF.IsNegative() {
		clamped.CDF = decimal.Zero
	}
	return clamped
}

// Breakdown allocates the payment pool against credit sales
// oldest-first, independently per currency, and reports each invoice's
// remaining debt. The sum of remainders per currency equals the
// unclamped Compute output whenever that output is positive.
func Breakdown(creditSales []domain.Sale, payments []domain.Payment) []domain.DebtBreakdownEntry {
	pool := map[domain.Currency]decimal.Decimal{
		domain.USD: decimal.Zero,
		domain.CDF: decimal.Zero,
	}
	for _, payment := range payments {
		if _, ok := pool[payment.Currency]; !ok {
			continue
		}
		pool[payment.Currency] = pool[payment.Currency].Add(payment.Amount)
	}

	ordered := make([]domain.Sale, len(creditSales))
	copy(ordered, creditSales)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	entries := make([]domain.DebtBreakdownEntry, 0, 2*len(ordered))
	for _, sale := range ordered {
		for _, part := range []struct {
			currency domain.Currency
			total    decimal.Decimal
		}{
			{domain.USD, sale.TotalUSD},
			{domain.CDF, sale.TotalCDF},
		} {
			if part.total.IsZero() {
				continue
			}
			consumed := pool[part.currency]
			remaining := part.total.Sub(consumed)
			if remaining.IsNegative() {
				remaining = decimal.Zero
			}
			paid := part.total.Sub(remaining)
			pool[part.currency] = consumed.Sub(paid)

			entries = append(entries, domain.DebtBreakdownEntry{
				SaleID:        sale.ID,
				InvoiceNumber: sale.InvoiceNumber,
				Currency:      part.currency,
				Total:         part.total,
				Remaining:     remaining,
				CreatedAt:     sale.CreatedAt,
			})
		}
	}
	return entries
}
