package money

import (
	"github.com/shopspring/decimal"

	"dukani/backend/internal/domain"
)

// EstimateUnitCost approximates the real per-sale-unit cost of goods
// sold for a product by walking its purchase history newest-first
// against the current stock level.
//
// Purchases that are still "covered" by current stock are skipped;
// once the walk crosses below the current stock level, the consumed
// part of each batch contributes its unit cost weighted by the
// quantity taken from it. If the history runs out before qtySold is
// covered, the oldest purchase's unit cost fills the gap; with no
// history at all, the product's static purchase price is used.
//
// This keys off the current stock counter rather than a persisted lot
// log, so the estimate for a past sale can shift as stock moves. It is
// a reporting approximation, not an inventory-costing method.
//
// purchases must be ordered newest-first. All quantities are in
// sale-units; purchase quantities are converted with the product's
// conversion factor. The returned cost is per sale-unit, in the
// purchase's currency converted to USD by the caller when needed.
func EstimateUnitCost(p domain.Product, purchases []domain.Purchase, qtySold decimal.Decimal) decimal.Decimal {
	if qtySold.LessThanOrEqual(decimal.Zero) {
		return staticUnitCost(p)
	}
	if len(purchases) == 0 {
		return staticUnitCost(p)
	}

	factor := decimal.NewFromInt(p.ConversionFactor)
	if p.ConversionFactor < 1 {
		factor = decimal.NewFromInt(1)
	}

	// Walk newest-first: quantities above the current stock level are
	// still on the shelf, everything below it has been consumed.
	ahead := p.Stock
	remaining := qtySold
	weighted := decimal.Zero
	consumed := decimal.Zero

	for _, purchase := range purchases {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}

		batchQty := purchase.Qty.Mul(factor)
		batchUnitCost := decimal.Zero
		if !batchQty.IsZero() {
			batchUnitCost = purchase.Total.DivRound(batchQty, 6)
		}

		if ahead.GreaterThanOrEqual(batchQty) {
			ahead = ahead.Sub(batchQty)
			continue
		}

		available := batchQty.Sub(ahead)
		ahead = decimal.Zero

		take := remaining
		if take.GreaterThan(available) {
			take = available
		}
		weighted = weighted.Add(take.Mul(batchUnitCost))
		consumed = consumed.Add(take)
		remaining = remaining.Sub(take)
	}

	if remaining.GreaterThan(decimal.Zero) {
		// History exhausted: price the tail at the oldest batch's cost.
		oldest := purchases[len(purchases)-1]
		oldestQty := oldest.Qty.Mul(factor)
		tailCost := staticUnitCost(p)
		if !oldestQty.IsZero() {
			tailCost = oldest.Total.DivRound(oldestQty, 6)
		}
		weighted = weighted.Add(remaining.Mul(tailCost))
		consumed = consumed.Add(remaining)
	}

	if consumed.IsZero() {
		return staticUnitCost(p)
	}
	return weighted.DivRound(consumed, 6)
}

func staticUnitCost(p domain.Product) decimal.Decimal {
	if p.ConversionFactor < 1 {
		return p.PurchasePrice
	}
	return p.PurchasePrice.DivRound(decimal.NewFromInt(p.ConversionFactor), 6)
}
