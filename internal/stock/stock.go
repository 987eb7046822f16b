// Package stock holds the unit-conversion arithmetic behind every stock
// mutation. Stock is a single additive counter in sale-units; these
// helpers compute the deltas and the display decomposition, while the
// store applies them inside its transactions.
package stock

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"dukani/backend/internal/domain"
)

// PurchaseDelta is the stock increase for a purchase of qty
// purchase-units: qty x conversionFactor sale-units. The same delta is
// subtracted when a purchase is reversed.
func PurchaseDelta(qty decimal.Decimal, conversionFactor int64) decimal.Decimal {
	return qty.Mul(decimal.NewFromInt(conversionFactor))
}

// EffectiveSaleQty converts a sale item quantity to sale-units. A
// "purchase"-tagged quantity is multiplied by the conversion factor;
// a "sale"-tagged quantity passes through unchanged.
func EffectiveSaleQty(qty decimal.Decimal, tag domain.UnitTag, conversionFactor int64) decimal.Decimal {
	if tag == domain.UnitPurchase {
		return qty.Mul(decimal.NewFromInt(conversionFactor))
	}
	return qty
}

// Sufficient reports whether available stock covers an effective
// sale-unit quantity.
func Sufficient(available, required decimal.Decimal) bool {
	return available.GreaterThanOrEqual(required)
}

// Display decomposes a sale-unit stock level into whole purchase-units
// and a sale-unit remainder. Pure; the persisted counter is never
// floored or modded.
func Display(p domain.Product) (wholeUnits int64, remainder decimal.Decimal, display string) {
	factor := decimal.NewFromInt(p.ConversionFactor)
	if p.ConversionFactor < 1 {
		factor = decimal.NewFromInt(1)
	}

	wholeUnits = p.Stock.Div(factor).Floor().IntPart()
	remainder = p.Stock.Sub(decimal.NewFromInt(wholeUnits).Mul(factor))

	parts := make([]string, 0, 2)
	if wholeUnits != 0 || remainder.IsZero() {
		parts = append(parts, fmt.Sprintf("%d %s", wholeUnits, p.PurchaseUnit))
	}
	if !remainder.IsZero() {
		parts = append(parts, fmt.Sprintf("%s %s", remainder.String(), p.SaleUnit))
	}
	return wholeUnits, remainder, strings.Join(parts, " + ")
}
