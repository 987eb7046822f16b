package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"dukani/backend/internal/domain"
	"dukani/backend/internal/money"
	"dukani/backend/internal/stock"
	"dukani/backend/internal/store"
)

// DailyReport aggregates one calendar day (UTC): per-currency totals
// for sales, purchases, expenses and payments, their USD conversions
// under the day's resolved rate, and the estimated cost of goods sold.
func (s *Service) DailyReport(ctx context.Context, dateStr string) (domain.DailyReport, error) {
	day := s.now()
	if dateStr != "" {
		parsed, err := time.ParseInLocation("2006-01-02", dateStr, time.UTC)
		if err != nil {
			return domain.DailyReport{}, invalid("date must be YYYY-MM-DD")
		}
		day = parsed
	}
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	rate, err := s.ResolveRateForDate(ctx, from)
	if err != nil {
		return domain.DailyReport{}, err
	}

	sales, err := s.repo.ListSalesBetween(ctx, from, to)
	if err != nil {
		return domain.DailyReport{}, err
	}
	purchases, err := s.repo.ListPurchasesBetween(ctx, from, to)
	if err != nil {
		return domain.DailyReport{}, err
	}
	expenses, err := s.repo.ListExpensesBetween(ctx, from, to)
	if err != nil {
		return domain.DailyReport{}, err
	}
	payments, err := s.repo.ListPaymentsBetween(ctx, from, to)
	if err != nil {
		return domain.DailyReport{}, err
	}

	report := domain.DailyReport{
		Date:      from.Format("2006-01-02"),
		Rate:      rate,
		SaleCount: int64(len(sales)),
	}

	for _, sale := range sales {
		report.Sales.USD = report.Sales.USD.Add(sale.TotalUSD)
		report.Sales.CDF = report.Sales.CDF.Add(sale.TotalCDF)
	}
	report.Purchases = money.Sum(amountsOfPurchases(purchases))
	report.Expenses = money.Sum(amountsOfExpenses(expenses))
	report.Payments = money.Sum(amountsOfPayments(payments))

	report.SalesUSD = money.TotalsUSD(report.Sales, rate)
	report.PurchasesUSD = money.TotalsUSD(report.Purchases, rate)
	report.ExpensesUSD = money.TotalsUSD(report.Expenses, rate)
	report.PaymentsUSD = money.TotalsUSD(report.Payments, rate)

	report.EstimatedCostUSD = s.estimateCostUSD(ctx, sales, rate)
	report.EstimatedProfitUSD = report.SalesUSD.Sub(report.EstimatedCostUSD)

	return report, nil
}

// estimateCostUSD walks the day's sale items, estimates a per-sale-unit
// cost for each product from its purchase history, and converts to USD.
// A product that disappeared since the sale contributes nothing; this
// is a best-effort reporting figure.
func (s *Service) estimateCostUSD(ctx context.Context, sales []domain.Sale, rate domain.ExchangeRate) decimal.Decimal {
	productIDs := make(map[string]struct{})
	for _, sale := range sales {
		for _, item := range sale.Items {
			productIDs[item.ProductID] = struct{}{}
		}
	}

	cost := decimal.Zero
	for productID := range productIDs {
		product, err := s.repo.GetProduct(ctx, productID)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				log.Printf("[service] WARN: cost estimate skipped product %s: %v", productID, err)
			}
			continue
		}

		qtySold := decimal.Zero
		for _, sale := range sales {
			for _, item := range sale.Items {
				if item.ProductID != productID {
					continue
				}
				qtySold = qtySold.Add(stock.EffectiveSaleQty(item.Qty, item.UnitTag, product.ConversionFactor))
			}
		}
		if !qtySold.IsPositive() {
			continue
		}

		history, err := s.repo.ListPurchasesByProduct(ctx, productID)
		if err != nil {
			log.Printf("[service] WARN: cost estimate skipped product %s: %v", productID, err)
			continue
		}
		unitCost := money.EstimateUnitCost(*product, history, qtySold)
		unitCostUSD := money.ConvertToUSD(unitCost, product.Currency, rate)
		cost = cost.Add(qtySold.Mul(unitCostUSD))
	}
	return cost
}

func amountsOfPurchases(purchases []domain.Purchase) []domain.Amount {
	amounts := make([]domain.Amount, 0, len(purchases))
	for _, p := range purchases {
		amounts = append(amounts, domain.Amount{Value: p.Total, Currency: p.Currency})
	}
	return amounts
}

func amountsOfExpenses(expenses []domain.Expense) []domain.Amount {
	amounts := make([]domain.Amount, 0, len(expenses))
	for _, e := range expenses {
		amounts = append(amounts, domain.Amount{Value: e.Amount, Currency: e.Currency})
	}
	return amounts
}

func amountsOfPayments(payments []domain.Payment) []domain.Amount {
	amounts := make([]domain.Amount, 0, len(payments))
	for _, p := range payments {
		amounts = append(amounts, domain.Amount{Value: p.Amount, Currency: p.Currency})
	}
	return amounts
}
