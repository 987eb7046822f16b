// Package money is the multi-currency aggregator: per-currency sums,
// USD normalization against an exchange rate, and the primary-currency
// rule that keeps the legacy single currency+total pair on a sale
// consistent with its per-currency subtotals.
package money

import (
	"github.com/shopspring/decimal"

	"dukani/backend/internal/domain"
)

// Sum partitions currency-tagged amounts into per-currency sums. No
// conversion happens here.
func Sum(amounts []domain.Amount) domain.CurrencyTotals {
	totals := domain.CurrencyTotals{USD: decimal.Zero, CDF: decimal.Zero}
	for _, a := range amounts {
		switch a.Currency {
		case domain.USD:
			totals.USD = totals.USD.Add(a.Value)
		case domain.CDF:
			totals.CDF = totals.CDF.Add(a.Value)
		}
	}
	return totals
}

// ConvertToUSD normalizes an amount to USD. The rate is stored as
// "1 USD = N CDF", so CDF amounts are divided, never multiplied.
func ConvertToUSD(amount decimal.Decimal, cur domain.Currency, rate domain.ExchangeRate) decimal.Decimal {
	if cur == domain.USD {
		return amount
	}
	if rate.USDToCDF.IsZero() {
		return amount
	}
	return amount.DivRound(rate.USDToCDF, 6)
}

// TotalsUSD collapses per-currency totals into a single USD figure.
func TotalsUSD(totals domain.CurrencyTotals, rate domain.ExchangeRate) decimal.Decimal {
	return totals.USD.Add(ConvertToUSD(totals.CDF, domain.CDF, rate))
}

// PrimaryCurrency picks whichever of USD/CDF has the strictly larger
// total; ties favor USD. Returns the currency and its total.
func PrimaryCurrency(totals domain.CurrencyTotals) (domain.Currency, decimal.Decimal) {
	if totals.CDF.GreaterThan(totals.USD) {
		return domain.CDF, totals.CDF
	}
	return domain.USD, totals.USD
}

// FallbackRate is the 1:1 degenerate rate used when no exchange rate
// row exists at all. Not a designed default; it only keeps reports
// from dividing by zero on a fresh database.
func FallbackRate() domain.ExchangeRate {
	one := decimal.NewFromInt(1)
	return domain.ExchangeRate{USDToCDF: one, CDFToUSD: one}
}
