package money

import (
	"testing"

	"github.com/shopspring/decimal"

	"dukani/backend/internal/domain"
)

// product: casier of 12 bouteilles, 36 bottles on the shelf.
func costingProduct(stock string) domain.Product {
	return domain.Product{
		ConversionFactor: 12,
		Stock:            dec(stock),
		PurchasePrice:    dec("12"),
	}
}

func TestEstimateUnitCostSkipsBatchesCoveredByStock(t *testing.T) {
	// Newest-first history. 24 bottles of current stock cover the two
	// newest batches entirely, so the sold quantity prices at the
	// oldest batch's cost: 6 per casier of 12 = 0.5 per bottle.
	purchases := []domain.Purchase{
		{Qty: dec("1"), Total: dec("24")},
		{Qty: dec("1"), Total: dec("18")},
		{Qty: dec("1"), Total: dec("6")},
	}
	p := costingProduct("24")
	got := EstimateUnitCost(p, purchases, dec("6"))
	if !got.Equal(dec("0.5")) {
		t.Fatalf("expected 0.5 per bottle, got %s", got)
	}
}

func TestEstimateUnitCostWeightsAcrossBatches(t *testing.T) {
	// 6 bottles still on the shelf. Selling 12 consumes the uncovered
	// 6 bottles of the newest batch (cost 2 each) plus 6 of the older
	// batch (cost 1 each): weighted average 1.5.
	purchases := []domain.Purchase{
		{Qty: dec("1"), Total: dec("24")},
		{Qty: dec("1"), Total: dec("12")},
	}
	p := costingProduct("6")
	got := EstimateUnitCost(p, purchases, dec("12"))
	if !got.Equal(dec("1.5")) {
		t.Fatalf("expected 1.5 per bottle, got %s", got)
	}
}

func TestEstimateUnitCostTailFallsBackToOldestBatch(t *testing.T) {
	// History exhausted: tail quantities price at the oldest batch.
	purchases := []domain.Purchase{
		{Qty: dec("1"), Total: dec("12")},
	}
	p := costingProduct("0")
	got := EstimateUnitCost(p, purchases, dec("24"))
	if !got.Equal(dec("1")) {
		t.Fatalf("expected 1 per bottle, got %s", got)
	}
}

func TestEstimateUnitCostNoHistoryUsesStaticPrice(t *testing.T) {
	p := costingProduct("0")
	got := EstimateUnitCost(p, nil, dec("5"))
	if !got.Equal(dec("1")) {
		t.Fatalf("expected static 12/12=1 per bottle, got %s", got)
	}
}

func TestEstimateUnitCostZeroQtySold(t *testing.T) {
	p := costingProduct("10")
	got := EstimateUnitCost(p, nil, decimal.Zero)
	if !got.Equal(dec("1")) {
		t.Fatalf("expected static unit cost, got %s", got)
	}
}
