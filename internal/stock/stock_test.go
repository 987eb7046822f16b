package stock

import (
	"testing"

	"github.com/shopspring/decimal"

	"dukani/backend/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPurchaseDelta(t *testing.T) {
	got := PurchaseDelta(dec("3"), 12)
	if !got.Equal(dec("36")) {
		t.Fatalf("expected 36 sale-units, got %s", got)
	}
}

func TestEffectiveSaleQty(t *testing.T) {
	if got := EffectiveSaleQty(dec("5"), domain.UnitSale, 12); !got.Equal(dec("5")) {
		t.Fatalf("sale-tagged qty should pass through, got %s", got)
	}
	if got := EffectiveSaleQty(dec("2"), domain.UnitPurchase, 12); !got.Equal(dec("24")) {
		t.Fatalf("purchase-tagged qty should be converted, got %s", got)
	}
}

func TestSufficient(t *testing.T) {
	if !Sufficient(dec("10"), dec("10")) {
		t.Fatalf("exact stock should be sufficient")
	}
	if Sufficient(dec("9.99"), dec("10")) {
		t.Fatalf("short stock should be insufficient")
	}
}

func TestDisplayDecomposition(t *testing.T) {
	p := domain.Product{
		PurchaseUnit:     "casier",
		SaleUnit:         "bouteille",
		ConversionFactor: 12,
		Stock:            dec("30"),
	}
	whole, remainder, display := Display(p)
	if whole != 2 {
		t.Fatalf("expected 2 whole units, got %d", whole)
	}
	if !remainder.Equal(dec("6")) {
		t.Fatalf("expected remainder 6, got %s", remainder)
	}
	if display != "2 casier + 6 bouteille" {
		t.Fatalf("unexpected display %q", display)
	}
}

func TestDisplayWholeOnly(t *testing.T) {
	p := domain.Product{PurchaseUnit: "sac", SaleUnit: "kg", ConversionFactor: 25, Stock: dec("50")}
	whole, remainder, display := Display(p)
	if whole != 2 || !remainder.IsZero() {
		t.Fatalf("expected 2 whole and zero remainder, got %d and %s", whole, remainder)
	}
	if display != "2 sac" {
		t.Fatalf("unexpected display %q", display)
	}
}

func TestDisplayZeroStock(t *testing.T) {
	p := domain.Product{PurchaseUnit: "sac", SaleUnit: "kg", ConversionFactor: 25}
	whole, remainder, display := Display(p)
	if whole != 0 || !remainder.IsZero() {
		t.Fatalf("expected zeroes, got %d and %s", whole, remainder)
	}
	if display != "0 sac" {
		t.Fatalf("unexpected display %q", display)
	}
}

func TestDisplayFractionalRemainder(t *testing.T) {
	p := domain.Product{PurchaseUnit: "sac", SaleUnit: "kg", ConversionFactor: 25, Stock: dec("26.5")}
	whole, remainder, _ := Display(p)
	if whole != 1 {
		t.Fatalf("expected 1 whole unit, got %d", whole)
	}
	if !remainder.Equal(dec("1.5")) {
		t.Fatalf("expected remainder 1.5, got %s", remainder)
	}
}
