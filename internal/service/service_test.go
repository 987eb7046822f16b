package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"dukani/backend/internal/cache"
	"dukani/backend/internal/domain"
	"dukani/backend/internal/retry"
	"dukani/backend/internal/store"
	"dukani/backend/internal/store/memory"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestService() (*Service, *memory.Store) {
	repo := memory.New()
	svc := New(repo, cache.NoopListCache{}, time.Second)
	svc.retry = retry.Policy{
		MaxAttempts: 3,
		Backoff:     func(int) time.Duration { return 0 },
		Sleep:       func(time.Duration) {},
	}
	return svc, repo
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})
}

func clerkCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "clerk", Role: "clerk"})
}

func mustCreateProduct(t *testing.T, svc *Service, req domain.ProductCreateRequest) domain.ProductView {
	t.Helper()
	created, err := svc.CreateProduct(adminCtx(), req)
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return created
}

func waterProduct() domain.ProductCreateRequest {
	return domain.ProductCreateRequest{
		Name:             "Eau minérale 600ml",
		PurchaseUnit:     "casier",
		SaleUnit:         "bouteille",
		ConversionFactor: 12,
		PurchasePrice:    dec("6"),
		SalePrice:        dec("0.7"),
		Currency:         domain.USD,
	}
}

func TestPurchaseIncreasesStockByConversionFactor(t *testing.T) {
	svc, _ := newTestService()
	product := mustCreateProduct(t, svc, waterProduct())

	purchase, err := svc.CreatePurchase(adminCtx(), domain.PurchaseCreateRequest{
		ProductID: product.ID,
		Qty:       dec("3"),
		UnitPrice: dec("6"),
		Currency:  domain.USD,
	})
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}
	if !purchase.Total.Equal(dec("18")) {
		t.Fatalf("expected total 18, got %s", purchase.Total)
	}

	got, err := svc.GetProduct(adminCtx(), product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if !got.Stock.Equal(dec("36")) {
		t.Fatalf("expected 36 bouteilles in stock, got %s", got.Stock)
	}
	if got.StockPurchaseUnits != 3 || !got.StockRemainder.IsZero() {
		t.Fatalf("expected display 3 casier, got %d + %s", got.StockPurchaseUnits, got.StockRemainder)
	}

	if err := svc.DeletePurchase(adminCtx(), purchase.ID); err != nil {
		t.Fatalf("delete purchase: %v", err)
	}
	got, err = svc.GetProduct(adminCtx(), product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if !got.Stock.IsZero() {
		t.Fatalf("deleting the purchase must reverse its stock delta, got %s", got.Stock)
	}
}

func TestPurchaseUpdateAppliesNetStockDelta(t *testing.T) {
	svc, _ := newTestService()
	product := mustCreateProduct(t, svc, waterProduct())

	purchase, err := svc.CreatePurchase(adminCtx(), domain.PurchaseCreateRequest{
		ProductID: product.ID,
		Qty:       dec("2"),
		UnitPrice: dec("6"),
		Currency:  domain.USD,
	})
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}

	newQty := dec("5")
	if _, err := svc.UpdatePurchase(adminCtx(), purchase.ID, domain.PurchaseUpdateRequest{Qty: &newQty}); err != nil {
		t.Fatalf("update purchase: %v", err)
	}

	got, err := svc.GetProduct(adminCtx(), product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if !got.Stock.Equal(dec("60")) {
		t.Fatalf("expected 60 bouteilles after update, got %s", got.Stock)
	}
}

func TestSaleDecrementsStockPerUnitTag(t *testing.T) {
	svc, _ := newTestService()
	req := waterProduct()
	req.InitialStock = dec("36")
	product := mustCreateProduct(t, svc, req)

	_, err := svc.CreateSale(clerkCtx(), domain.SaleCreateRequest{
		Items: []domain.SaleItemInput{
			{ProductID: product.ID, Qty: dec("5"), UnitTag: domain.UnitSale, UnitPrice: dec("0.7"), Currency: domain.USD},
			{ProductID: product.ID, Qty: dec("2"), UnitTag: domain.UnitPurchase, UnitPrice: dec("7"), Currency: domain.USD},
		},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	got, err := svc.GetProduct(adminCtx(), product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	// 5 bottles + 2 casiers of 12 = 29 bottles sold.
	if !got.Stock.Equal(dec("7")) {
		t.Fatalf("expected 7 bouteilles left, got %s", got.Stock)
	}
}

func TestSaleInsufficientStockCarriesDetails(t *testing.T) {
	svc, _ := newTestService()
	req := waterProduct()
	req.InitialStock = dec("10")
	product := mustCreateProduct(t, svc, req)

	_, err := svc.CreateSale(clerkCtx(), domain.SaleCreateRequest{
		Items: []domain.SaleItemInput{
			{ProductID: product.ID, Qty: dec("2"), UnitTag: domain.UnitPurchase, UnitPrice: dec("7"), Currency: domain.USD},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	var detail *store.InsufficientStockError
	if !errors.As(err, &detail) {
		t.Fatalf("expected typed insufficient stock error, got %T", err)
	}
	if detail.ProductName != "Eau minérale 600ml" || detail.Unit != "bouteille" {
		t.Fatalf("unexpected error detail: %+v", detail)
	}
	if !detail.Required.Equal(dec("24")) || !detail.Available.Equal(dec("10")) {
		t.Fatalf("expected required 24 / available 10, got %s / %s", detail.Required, detail.Available)
	}

	// A rejected sale must not touch stock.
	got, err := svc.GetProduct(adminCtx(), product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if !got.Stock.Equal(dec("10")) {
		t.Fatalf("stock must be untouched after rejection, got %s", got.Stock)
	}
}

func TestSaleDuplicateLinesCheckedAgainstRemainingStock(t *testing.T) {
	svc, _ := newTestService()
	req := waterProduct()
	req.InitialStock = dec("10")
	product := mustCreateProduct(t, svc, req)

	_, err := svc.CreateSale(clerkCtx(), domain.SaleCreateRequest{
		Items: []domain.SaleItemInput{
			{ProductID: product.ID, Qty: dec("6"), UnitTag: domain.UnitSale, UnitPrice: dec("0.7"), Currency: domain.USD},
			{ProductID: product.ID, Qty: dec("6"), UnitTag: domain.UnitSale, UnitPrice: dec("0.7"), Currency: domain.USD},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("second line must see stock claimed by the first, got %v", err)
	}
}

func TestSaleTotalsKeepPerCurrencySubtotals(t *testing.T) {
	svc, _ := newTestService()
	req := waterProduct()
	req.InitialStock = dec("100")
	product := mustCreateProduct(t, svc, req)

	sale, err := svc.CreateSale(clerkCtx(), domain.SaleCreateRequest{
		Items: []domain.SaleItemInput{
			{ProductID: product.ID, Qty: dec("4"), UnitTag: domain.UnitSale, UnitPrice: dec("1"), Currency: domain.USD},
			{ProductID: product.ID, Qty: dec("2"), UnitTag: domain.UnitSale, UnitPrice: dec("7000"), Currency: domain.CDF},
		},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if !sale.TotalUSD.Equal(dec("4")) || !sale.TotalCDF.Equal(dec("14000")) {
		t.Fatalf("expected subtotals 4 USD / 14000 CDF, got %s / %s", sale.TotalUSD, sale.TotalCDF)
	}
	// CDF side is numerically larger so it becomes the primary pair.
	if sale.Currency != domain.CDF || !sale.Total.Equal(dec("14000")) {
		t.Fatalf("expected primary CDF 14000, got %s %s", sale.Currency, sale.Total)
	}
	if sale.InvoiceNumber == "" {
		t.Fatalf("expected generated invoice number")
	}
}

func TestSalePrimaryCurrencyTieFavorsUSD(t *testing.T) {
	svc, _ := newTestService()
	req := waterProduct()
	req.InitialStock = dec("100")
	product := mustCreateProduct(t, svc, req)

	sale, err := svc.CreateSale(clerkCtx(), domain.SaleCreateRequest{
		Items: []domain.SaleItemInput{
			{ProductID: product.ID, Qty: dec("1"), UnitTag: domain.UnitSale, UnitPrice: dec("100"), Currency: domain.USD},
			{ProductID: product.ID, Qty: dec("1"), UnitTag: domain.UnitSale, UnitPrice: dec("100"), Currency: domain.CDF},
		},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if sale.Currency != domain.USD {
		t.Fatalf("equal totals must favor USD, got %s", sale.Currency)
	}
}

func TestCreditSaleRequiresCustomer(t *testing.T) {
	svc, _ := newTestService()
	req := waterProduct()
	req.InitialStock = dec("100")
	product := mustCreateProduct(t, svc, req)

	_, err := svc.CreateSale(clerkCtx(), domain.SaleCreateRequest{
		IsCredit: true,
		Items: []domain.SaleItemInput{
			{ProductID: product.ID, Qty: dec("1"), UnitTag: domain.UnitSale, UnitPrice: dec("1"), Currency: domain.USD},
		},
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeleteSaleRestocks(t *testing.T) {
	svc, _ := newTestService()
	req := waterProduct()
	req.InitialStock = dec("36")
	product := mustCreateProduct(t, svc, req)

	sale, err := svc.CreateSale(clerkCtx(), domain.SaleCreateRequest{
		Items: []domain.SaleItemInput{
			{ProductID: product.ID, Qty: dec("12"), UnitTag: domain.UnitSale, UnitPrice: dec("0.7"), Currency: domain.USD},
		},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	if err := svc.DeleteSale(adminCtx(), sale.ID); err != nil {
		t.Fatalf("delete sale: %v", err)
	}
	got, err := svc.GetProduct(adminCtx(), product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if !got.Stock.Equal(dec("36")) {
		t.Fatalf("deleting a sale must restock its items, got %s", got.Stock)
	}
}

func TestCustomerDebtAndBreakdown(t *testing.T) {
	svc, _ := newTestService()
	req := waterProduct()
	req.InitialStock = dec("100")
	product := mustCreateProduct(t, svc, req)

	customer, err := svc.CreateCustomer(clerkCtx(), domain.CustomerCreateRequest{Name: "Mama Kanku"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}

	for _, price := range []string{"20", "30"} {
		_, err := svc.CreateSale(clerkCtx(), domain.SaleCreateRequest{
			CustomerID: customer.ID,
			IsCredit:   true,
			Items: []domain.SaleItemInput{
				{ProductID: product.ID, Qty: dec("1"), UnitTag: domain.UnitSale, UnitPrice: dec(price), Currency: domain.USD},
			},
		})
		if err != nil {
			t.Fatalf("create credit sale: %v", err)
		}
	}

	if _, err := svc.CreatePayment(clerkCtx(), domain.PaymentCreateRequest{
		CustomerID: customer.ID,
		Amount:     dec("35"),
		Currency:   domain.USD,
	}); err != nil {
		t.Fatalf("create payment: %v", err)
	}

	view, err := svc.CustomerDebt(clerkCtx(), customer.ID)
	if err != nil {
		t.Fatalf("customer debt: %v", err)
	}
	if !view.Raw.USD.Equal(dec("15")) || !view.Clamped.USD.Equal(dec("15")) {
		t.Fatalf("expected 15 USD owed, got raw %s clamped %s", view.Raw.USD, view.Clamped.USD)
	}

	breakdown, err := svc.CustomerDebtBreakdown(clerkCtx(), customer.ID)
	if err != nil {
		t.Fatalf("debt breakdown: %v", err)
	}
	if len(breakdown.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(breakdown.Entries))
	}
	if !breakdown.Entries[0].Remaining.IsZero() {
		t.Fatalf("oldest invoice should be settled first, got %s", breakdown.Entries[0].Remaining)
	}
	if !breakdown.Entries[1].Remaining.Equal(dec("15")) {
		t.Fatalf("expected 15 remaining on the newest invoice, got %s", breakdown.Entries[1].Remaining)
	}
}

func TestOverpaymentClampsToZero(t *testing.T) {
	svc, _ := newTestService()
	req := waterProduct()
	req.InitialStock = dec("100")
	product := mustCreateProduct(t, svc, req)

	customer, err := svc.CreateCustomer(clerkCtx(), domain.CustomerCreateRequest{Name: "Papa Ilunga"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	if _, err := svc.CreateSale(clerkCtx(), domain.SaleCreateRequest{
		CustomerID: customer.ID,
		IsCredit:   true,
		Items: []domain.SaleItemInput{
			{ProductID: product.ID, Qty: dec("1"), UnitTag: domain.UnitSale, UnitPrice: dec("10"), Currency: domain.USD},
		},
	}); err != nil {
		t.Fatalf("create credit sale: %v", err)
	}
	if _, err := svc.CreatePayment(clerkCtx(), domain.PaymentCreateRequest{
		CustomerID: customer.ID,
		Amount:     dec("25"),
		Currency:   domain.USD,
	}); err != nil {
		t.Fatalf("create payment: %v", err)
	}

	view, err := svc.CustomerDebt(clerkCtx(), customer.ID)
	if err != nil {
		t.Fatalf("customer debt: %v", err)
	}
	if !view.Raw.USD.Equal(dec("-15")) {
		t.Fatalf("raw balance must show the overpayment, got %s", view.Raw.USD)
	}
	if !view.Clamped.USD.IsZero() {
		t.Fatalf("clamped balance must floor at zero, got %s", view.Clamped.USD)
	}
}

func TestRateResolutionFallbackChain(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	day1 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	day3 := time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC)

	// Empty table resolves to the degenerate 1:1 rate.
	rate, err := svc.ResolveRateForDate(ctx, day1)
	if err != nil {
		t.Fatalf("resolve rate: %v", err)
	}
	if !rate.USDToCDF.Equal(dec("1")) {
		t.Fatalf("expected 1:1 fallback, got %s", rate.USDToCDF)
	}

	if _, err := repo.CreateExchangeRate(ctx, domain.ExchangeRate{
		Date: day1, USDToCDF: dec("2800"), CDFToUSD: dec("0.000357143"), CreatedAt: day1,
	}); err != nil {
		t.Fatalf("seed rate: %v", err)
	}
	if _, err := repo.CreateExchangeRate(ctx, domain.ExchangeRate{
		Date: day3, USDToCDF: dec("2900"), CDFToUSD: dec("0.000344828"), CreatedAt: day3,
	}); err != nil {
		t.Fatalf("seed rate: %v", err)
	}

	// A day between the two rates sees the newest one at or before it.
	rate, err = svc.ResolveRateForDate(ctx, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("resolve rate: %v", err)
	}
	if !rate.USDToCDF.Equal(dec("2800")) {
		t.Fatalf("expected day1 rate 2800, got %s", rate.USDToCDF)
	}

	// A rate created at exactly the next midnight belongs to the next
	// day, not to the day being resolved.
	boundary := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	if _, err := repo.CreateExchangeRate(ctx, domain.ExchangeRate{
		Date: boundary, USDToCDF: dec("3000"), CDFToUSD: dec("0.000333333"), CreatedAt: boundary,
	}); err != nil {
		t.Fatalf("seed rate: %v", err)
	}
	rate, err = svc.ResolveRateForDate(ctx, day3)
	if err != nil {
		t.Fatalf("resolve rate: %v", err)
	}
	if !rate.USDToCDF.Equal(dec("2900")) {
		t.Fatalf("midnight boundary rate leaked into the prior day, got %s", rate.USDToCDF)
	}
	rate, err = svc.ResolveRateForDate(ctx, boundary)
	if err != nil {
		t.Fatalf("resolve rate: %v", err)
	}
	if !rate.USDToCDF.Equal(dec("3000")) {
		t.Fatalf("expected the boundary rate on its own day, got %s", rate.USDToCDF)
	}

	// A day before any rate falls back to the newest rate overall.
	rate, err = svc.ResolveRateForDate(ctx, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("resolve rate: %v", err)
	}
	if !rate.USDToCDF.Equal(dec("3000")) {
		t.Fatalf("expected latest-overall rate 3000, got %s", rate.USDToCDF)
	}
}

func TestDailyReportTotalsAndProfit(t *testing.T) {
	svc, _ := newTestService()

	req := domain.ProductCreateRequest{
		Name:             "Huile 1L",
		PurchaseUnit:     "carton",
		SaleUnit:         "bouteille",
		ConversionFactor: 12,
		PurchasePrice:    dec("12"),
		SalePrice:        dec("2"),
		Currency:         domain.USD,
	}
	product := mustCreateProduct(t, svc, req)

	if _, err := svc.CreateExchangeRate(adminCtx(), domain.ExchangeRateCreateRequest{USDToCDF: dec("2000")}); err != nil {
		t.Fatalf("create rate: %v", err)
	}
	if _, err := svc.CreatePurchase(adminCtx(), domain.PurchaseCreateRequest{
		ProductID: product.ID,
		Qty:       dec("2"),
		UnitPrice: dec("12"),
		Currency:  domain.USD,
	}); err != nil {
		t.Fatalf("create purchase: %v", err)
	}
	if _, err := svc.CreateSale(clerkCtx(), domain.SaleCreateRequest{
		Items: []domain.SaleItemInput{
			{ProductID: product.ID, Qty: dec("6"), UnitTag: domain.UnitSale, UnitPrice: dec("2"), Currency: domain.USD},
		},
	}); err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if _, err := svc.CreateExpense(clerkCtx(), domain.ExpenseCreateRequest{
		Description: "transport",
		Amount:      dec("4000"),
		Currency:    domain.CDF,
	}); err != nil {
		t.Fatalf("create expense: %v", err)
	}

	today := time.Now().UTC().Format("2006-01-02")
	report, err := svc.DailyReport(adminCtx(), today)
	if err != nil {
		t.Fatalf("daily report: %v", err)
	}

	if report.SaleCount != 1 {
		t.Fatalf("expected 1 sale, got %d", report.SaleCount)
	}
	if !report.Sales.USD.Equal(dec("12")) {
		t.Fatalf("expected 12 USD sales, got %s", report.Sales.USD)
	}
	if !report.Purchases.USD.Equal(dec("24")) {
		t.Fatalf("expected 24 USD purchases, got %s", report.Purchases.USD)
	}
	if !report.ExpensesUSD.Equal(dec("2")) {
		t.Fatalf("expected 4000 CDF = 2 USD expenses, got %s", report.ExpensesUSD)
	}
	// One batch of 24 bottles at 1 USD each; 6 sold.
	if !report.EstimatedCostUSD.Equal(dec("6")) {
		t.Fatalf("expected estimated cost 6 USD, got %s", report.EstimatedCostUSD)
	}
	if !report.EstimatedProfitUSD.Equal(dec("6")) {
		t.Fatalf("expected estimated profit 6 USD, got %s", report.EstimatedProfitUSD)
	}
}

// flakyRepo fails CreateSale with a transaction conflict a fixed
// number of times before delegating.
type flakyRepo struct {
	store.Repository
	failures int
	calls    int
}

func (f *flakyRepo) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return nil, store.ErrConflict
	}
	return f.Repository.CreateSale(ctx, sale)
}

func TestSaleRetriesOnConflict(t *testing.T) {
	svc, repo := newTestService()
	flaky := &flakyRepo{Repository: repo, failures: 2}
	svc.repo = flaky

	req := waterProduct()
	req.InitialStock = dec("100")
	product := mustCreateProduct(t, svc, req)

	sale, err := svc.CreateSale(clerkCtx(), domain.SaleCreateRequest{
		Items: []domain.SaleItemInput{
			{ProductID: product.ID, Qty: dec("1"), UnitTag: domain.UnitSale, UnitPrice: dec("1"), Currency: domain.USD},
		},
	})
	if err != nil {
		t.Fatalf("expected retries to succeed, got %v", err)
	}
	if flaky.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", flaky.calls)
	}
	if sale.ID == "" {
		t.Fatalf("expected a persisted sale")
	}
}

func TestSaleConflictExhaustionReportsAttempts(t *testing.T) {
	svc, repo := newTestService()
	flaky := &flakyRepo{Repository: repo, failures: 10}
	svc.repo = flaky

	req := waterProduct()
	req.InitialStock = dec("100")
	product := mustCreateProduct(t, svc, req)

	_, err := svc.CreateSale(clerkCtx(), domain.SaleCreateRequest{
		Items: []domain.SaleItemInput{
			{ProductID: product.ID, Qty: dec("1"), UnitTag: domain.UnitSale, UnitPrice: dec("1"), Currency: domain.USD},
		},
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected wrapped conflict, got %v", err)
	}
	if !strings.Contains(err.Error(), "3 attempts") {
		t.Fatalf("error should name the attempt count, got %q", err)
	}
	if flaky.calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", flaky.calls)
	}
}

func TestAdminOnlyOperationsRejectClerk(t *testing.T) {
	svc, _ := newTestService()
	product := mustCreateProduct(t, svc, waterProduct())

	if _, err := svc.CreateProduct(clerkCtx(), waterProduct()); !errors.Is(err, ErrForbidden) {
		t.Fatalf("clerk must not create products, got %v", err)
	}
	if _, err := svc.CreatePurchase(clerkCtx(), domain.PurchaseCreateRequest{
		ProductID: product.ID, Qty: dec("1"), UnitPrice: dec("6"), Currency: domain.USD,
	}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("clerk must not record purchases, got %v", err)
	}
	if err := svc.DeleteProduct(clerkCtx(), product.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("clerk must not delete products, got %v", err)
	}
}

// recordingCache keeps values in a map and counts operations.
type recordingCache struct {
	data        map[string][]byte
	sets        int
	hits        int
	invalidated []string
}

func newRecordingCache() *recordingCache {
	return &recordingCache{data: make(map[string][]byte)}
}

func (c *recordingCache) Get(_ context.Context, key string, dest any) (bool, error) {
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(raw, dest)
}

func (c *recordingCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = raw
	c.sets++
	return nil
}

func (c *recordingCache) Invalidate(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(c.data, key)
		c.invalidated = append(c.invalidated, key)
	}
	return nil
}

func TestProductListCacheAside(t *testing.T) {
	repo := memory.New()
	rec := newRecordingCache()
	svc := New(repo, rec, time.Minute)
	svc.retry = retry.Policy{MaxAttempts: 1, Backoff: func(int) time.Duration { return 0 }, Sleep: func(time.Duration) {}}

	mustCreateProduct(t, svc, waterProduct())
	rec.invalidated = nil

	if _, err := svc.ListProducts(clerkCtx()); err != nil {
		t.Fatalf("list products: %v", err)
	}
	if rec.sets != 1 {
		t.Fatalf("first list should fill the cache, sets=%d", rec.sets)
	}
	if _, err := svc.ListProducts(clerkCtx()); err != nil {
		t.Fatalf("list products: %v", err)
	}
	if rec.hits != 1 {
		t.Fatalf("second list should hit the cache, hits=%d", rec.hits)
	}

	mustCreateProduct(t, svc, domain.ProductCreateRequest{
		Name: "Sucre 1kg", PurchaseUnit: "sac", SaleUnit: "kg", ConversionFactor: 50,
		PurchasePrice: dec("110000"), SalePrice: dec("2800"), Currency: domain.CDF,
	})
	found := false
	for _, key := range rec.invalidated {
		if key == cacheKeyProducts {
			found = true
		}
	}
	if !found {
		t.Fatalf("product writes must invalidate the product list cache, got %v", rec.invalidated)
	}
}
