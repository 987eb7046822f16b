package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dukani/backend/internal/cache"
	"dukani/backend/internal/debt"
	"dukani/backend/internal/domain"
	"dukani/backend/internal/money"
	"dukani/backend/internal/retry"
	"dukani/backend/internal/stock"
	"dukani/backend/internal/store"
	"dukani/backend/internal/xid"
)

// ErrForbidden marks an operation the actor's role does not allow.
var ErrForbidden = errors.New("admin role required")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

const (
	cacheKeyProducts = "dukani:products"
	cacheKeySales    = "dukani:sales"
)

type Service struct {
	repo     store.Repository
	cache    cache.ListCache
	cacheTTL time.Duration
	retry    retry.Policy
	now      func() time.Time
}

func New(repo store.Repository, listCache cache.ListCache, cacheTTL time.Duration) *Service {
	if listCache == nil {
		listCache = cache.NoopListCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &Service{
		repo:     repo,
		cache:    listCache,
		cacheTTL: cacheTTL,
		retry:    retry.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return ErrForbidden
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", store.ErrValidation, fmt.Sprintf(format, args...))
}

// ListProducts is cache-aside: serve from the list cache when warm,
// fall through to the repository and refill otherwise. Cache errors
// are logged and treated as misses.
func (s *Service) ListProducts(ctx context.Context) ([]domain.ProductView, error) {
	var cached []domain.ProductView
	hit, err := s.cache.Get(ctx, cacheKeyProducts, &cached)
	if err != nil {
		log.Printf("[service] WARN: product cache read failed: %v", err)
	}
	if hit {
		return cached, nil
	}

	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]domain.ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, productView(p))
	}
	if err := s.cache.Set(ctx, cacheKeyProducts, views, s.cacheTTL); err != nil {
		log.Printf("[service] WARN: product cache write failed: %v", err)
	}
	return views, nil
}

func productView(p domain.Product) domain.ProductView {
	whole, remainder, display := stock.Display(p)
	return domain.ProductView{
		Product:            p,
		StockPurchaseUnits: whole,
		StockRemainder:     remainder,
		StockDisplay:       display,
	}
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.ProductView, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.ProductView{}, err
	}
	return productView(*p), nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.ProductView, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.ProductView{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.PurchaseUnit = strings.TrimSpace(req.PurchaseUnit)
	req.SaleUnit = strings.TrimSpace(req.SaleUnit)

	if req.Name == "" {
		return domain.ProductView{}, invalid("product name required")
	}
	if req.PurchaseUnit == "" || req.SaleUnit == "" {
		return domain.ProductView{}, invalid("purchase and sale units required")
	}
	if req.ConversionFactor < 1 {
		return domain.ProductView{}, invalid("conversion factor must be >= 1")
	}
	if !req.Currency.Valid() {
		return domain.ProductView{}, invalid("currency must be USD or CDF")
	}
	if req.PurchasePrice.IsNegative() || req.SalePrice.IsNegative() || req.InitialStock.IsNegative() {
		return domain.ProductView{}, invalid("prices and initial stock must not be negative")
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:             req.Name,
		PurchaseUnit:     req.PurchaseUnit,
		SaleUnit:         req.SaleUnit,
		ConversionFactor: req.ConversionFactor,
		Stock:            req.InitialStock,
		PurchasePrice:    req.PurchasePrice,
		SalePrice:        req.SalePrice,
		Currency:         req.Currency,
	})
	if err != nil {
		return domain.ProductView{}, err
	}
	s.invalidate(ctx, cacheKeyProducts)
	s.logAudit(ctx, "product_create", created.ID, fmt.Sprintf("name=%s", created.Name))
	return productView(*created), nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.ProductView, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.ProductView{}, err
	}

	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.ProductView{}, err
	}

	p := *existing
	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.PurchaseUnit != nil {
		p.PurchaseUnit = strings.TrimSpace(*req.PurchaseUnit)
	}
	if req.SaleUnit != nil {
		p.SaleUnit = strings.TrimSpace(*req.SaleUnit)
	}
	if req.ConversionFactor != nil {
		p.ConversionFactor = *req.ConversionFactor
	}
	if req.PurchasePrice != nil {
		p.PurchasePrice = *req.PurchasePrice
	}
	if req.SalePrice != nil {
		p.SalePrice = *req.SalePrice
	}
	if req.Currency != nil {
		p.Currency = *req.Currency
	}

	if p.Name == "" || p.PurchaseUnit == "" || p.SaleUnit == "" {
		return domain.ProductView{}, invalid("product name and units required")
	}
	if p.ConversionFactor < 1 {
		return domain.ProductView{}, invalid("conversion factor must be >= 1")
	}
	if !p.Currency.Valid() {
		return domain.ProductView{}, invalid("currency must be USD or CDF")
	}
	if p.PurchasePrice.IsNegative() || p.SalePrice.IsNegative() {
		return domain.ProductView{}, invalid("prices must not be negative")
	}

	updated, err := s.repo.UpdateProduct(ctx, p)
	if err != nil {
		return domain.ProductView{}, err
	}
	s.invalidate(ctx, cacheKeyProducts)
	s.logAudit(ctx, "product_update", updated.ID, fmt.Sprintf("name=%s", updated.Name))
	return productView(*updated), nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	// The cascade also removes the product's sale items, so the cached
	// sale list is stale too.
	s.invalidate(ctx, cacheKeyProducts, cacheKeySales)
	s.logAudit(ctx, "product_delete", id, "")
	return nil
}

func (s *Service) ListPurchases(ctx context.Context) ([]domain.Purchase, error) {
	return s.repo.ListPurchases(ctx)
}

func (s *Service) CreatePurchase(ctx context.Context, req domain.PurchaseCreateRequest) (domain.Purchase, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Purchase{}, err
	}
	if req.ProductID == "" {
		return domain.Purchase{}, invalid("product id required")
	}
	if !req.Qty.IsPositive() {
		return domain.Purchase{}, invalid("purchase qty must be positive")
	}
	if req.UnitPrice.IsNegative() {
		return domain.Purchase{}, invalid("unit price must not be negative")
	}
	if !req.Currency.Valid() {
		return domain.Purchase{}, invalid("currency must be USD or CDF")
	}

	purchase := domain.Purchase{
		ProductID: req.ProductID,
		Qty:       req.Qty,
		UnitPrice: req.UnitPrice,
		Total:     req.Qty.Mul(req.UnitPrice),
		Currency:  req.Currency,
		Supplier:  strings.TrimSpace(req.Supplier),
	}

	var created *domain.Purchase
	err := s.withConflictRetry(ctx, "purchase_create", func() error {
		var err error
		created, err = s.repo.CreatePurchase(ctx, purchase)
		return err
	})
	if err != nil {
		return domain.Purchase{}, err
	}
	s.invalidate(ctx, cacheKeyProducts)
	s.logAudit(ctx, "purchase_create", created.ID, fmt.Sprintf("product=%s qty=%s", created.ProductID, created.Qty.String()))
	return *created, nil
}

func (s *Service) UpdatePurchase(ctx context.Context, id string, req domain.PurchaseUpdateRequest) (domain.Purchase, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Purchase{}, err
	}

	existing, err := s.repo.GetPurchase(ctx, id)
	if err != nil {
		return domain.Purchase{}, err
	}

	p := *existing
	if req.Qty != nil {
		p.Qty = *req.Qty
	}
	if req.UnitPrice != nil {
		p.UnitPrice = *req.UnitPrice
	}
	if req.Currency != nil {
		p.Currency = *req.Currency
	}
	if req.Supplier != nil {
		p.Supplier = strings.TrimSpace(*req.Supplier)
	}
	if !p.Qty.IsPositive() {
		return domain.Purchase{}, invalid("purchase qty must be positive")
	}
	if p.UnitPrice.IsNegative() {
		return domain.Purchase{}, invalid("unit price must not be negative")
	}
	if !p.Currency.Valid() {
		return domain.Purchase{}, invalid("currency must be USD or CDF")
	}
	p.Total = p.Qty.Mul(p.UnitPrice)

	var updated *domain.Purchase
	err = s.withConflictRetry(ctx, "purchase_update", func() error {
		var err error
		updated, err = s.repo.UpdatePurchase(ctx, p)
		return err
	})
	if err != nil {
		return domain.Purchase{}, err
	}
	s.invalidate(ctx, cacheKeyProducts)
	s.logAudit(ctx, "purchase_update", updated.ID, fmt.Sprintf("qty=%s", updated.Qty.String()))
	return *updated, nil
}

func (s *Service) DeletePurchase(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	err := s.withConflictRetry(ctx, "purchase_delete", func() error {
		return s.repo.DeletePurchase(ctx, id)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, cacheKeyProducts)
	s.logAudit(ctx, "purchase_delete", id, "")
	return nil
}

func (s *Service) ListSales(ctx context.Context) ([]domain.Sale, error) {
	var cached []domain.Sale
	hit, err := s.cache.Get(ctx, cacheKeySales, &cached)
	if err != nil {
		log.Printf("[service] WARN: sales cache read failed: %v", err)
	}
	if hit {
		return cached, nil
	}

	sales, err := s.repo.ListSales(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, cacheKeySales, sales, s.cacheTTL); err != nil {
		log.Printf("[service] WARN: sales cache write failed: %v", err)
	}
	return sales, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

// buildSale validates the items, prices each line at qty x unit price
// in the line's currency, and derives both total representations: the
// per-currency subtotals and the legacy primary currency+total pair.
func (s *Service) buildSale(req domain.SaleCreateRequest) (domain.Sale, error) {
	if len(req.Items) == 0 {
		return domain.Sale{}, invalid("sale needs at least one item")
	}
	if req.IsCredit && req.CustomerID == "" {
		return domain.Sale{}, invalid("credit sale requires a customer")
	}

	items := make([]domain.SaleItem, 0, len(req.Items))
	amounts := make([]domain.Amount, 0, len(req.Items))
	for _, in := range req.Items {
		if in.ProductID == "" {
			return domain.Sale{}, invalid("sale item product id required")
		}
		if !in.Qty.IsPositive() {
			return domain.Sale{}, invalid("sale item qty must be positive")
		}
		if in.UnitTag == "" {
			in.UnitTag = domain.UnitSale
		}
		if !in.UnitTag.Valid() {
			return domain.Sale{}, invalid("sale item unit must be sale or purchase")
		}
		if !in.Currency.Valid() {
			return domain.Sale{}, invalid("sale item currency must be USD or CDF")
		}
		if in.UnitPrice.IsNegative() {
			return domain.Sale{}, invalid("sale item unit price must not be negative")
		}

		total := in.Qty.Mul(in.UnitPrice)
		items = append(items, domain.SaleItem{
			ProductID: in.ProductID,
			Qty:       in.Qty,
			UnitTag:   in.UnitTag,
			UnitPrice: in.UnitPrice,
			Total:     total,
			Currency:  in.Currency,
		})
		amounts = append(amounts, domain.Amount{Value: total, Currency: in.Currency})
	}

	totals := money.Sum(amounts)
	primary, primaryTotal := money.PrimaryCurrency(totals)

	invoice := strings.TrimSpace(req.InvoiceNumber)
	if invoice == "" {
		invoice = fmt.Sprintf("INV-%s-%s", s.now().Format("20060102"), xid.New("n"))
	}

	return domain.Sale{
		CustomerID:    req.CustomerID,
		InvoiceNumber: invoice,
		IsCredit:      req.IsCredit,
		Currency:      primary,
		Total:         primaryTotal,
		TotalUSD:      totals.USD,
		TotalCDF:      totals.CDF,
		Items:         items,
	}, nil
}

func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (domain.Sale, error) {
	sale, err := s.buildSale(req)
	if err != nil {
		return domain.Sale{}, err
	}
	if sale.CustomerID != "" {
		if _, err := s.repo.GetCustomer(ctx, sale.CustomerID); err != nil {
			return domain.Sale{}, err
		}
	}

	var created *domain.Sale
	err = s.withConflictRetry(ctx, "sale_create", func() error {
		var err error
		created, err = s.repo.CreateSale(ctx, sale)
		return err
	})
	if err != nil {
		return domain.Sale{}, err
	}
	s.invalidate(ctx, cacheKeyProducts, cacheKeySales)
	s.logAudit(ctx, "sale_create", created.ID, fmt.Sprintf("invoice=%s total=%s %s", created.InvoiceNumber, created.Total.String(), created.Currency))
	return *created, nil
}

func (s *Service) UpdateSale(ctx context.Context, id string, req domain.SaleUpdateRequest) (domain.Sale, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Sale{}, err
	}

	existing, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}

	createReq := domain.SaleCreateRequest{
		CustomerID:    existing.CustomerID,
		InvoiceNumber: existing.InvoiceNumber,
		IsCredit:      existing.IsCredit,
	}
	if req.CustomerID != nil {
		createReq.CustomerID = *req.CustomerID
	}
	if req.InvoiceNumber != nil {
		createReq.InvoiceNumber = *req.InvoiceNumber
	}
	if req.IsCredit != nil {
		createReq.IsCredit = *req.IsCredit
	}
	if req.Items != nil {
		createReq.Items = *req.Items
	} else {
		for _, item := range existing.Items {
			createReq.Items = append(createReq.Items, domain.SaleItemInput{
				ProductID: item.ProductID,
				Qty:       item.Qty,
				UnitTag:   item.UnitTag,
				UnitPrice: item.UnitPrice,
				Currency:  item.Currency,
			})
		}
	}

	sale, err := s.buildSale(createReq)
	if err != nil {
		return domain.Sale{}, err
	}
	sale.ID = existing.ID
	sale.CreatedAt = existing.CreatedAt
	if sale.CustomerID != "" {
		if _, err := s.repo.GetCustomer(ctx, sale.CustomerID); err != nil {
			return domain.Sale{}, err
		}
	}

	var updated *domain.Sale
	err = s.withConflictRetry(ctx, "sale_update", func() error {
		var err error
		updated, err = s.repo.UpdateSale(ctx, sale)
		return err
	})
	if err != nil {
		return domain.Sale{}, err
	}
	s.invalidate(ctx, cacheKeyProducts, cacheKeySales)
	s.logAudit(ctx, "sale_update", updated.ID, fmt.Sprintf("invoice=%s", updated.InvoiceNumber))
	return *updated, nil
}

func (s *Service) DeleteSale(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	err := s.withConflictRetry(ctx, "sale_delete", func() error {
		return s.repo.DeleteSale(ctx, id)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, cacheKeyProducts, cacheKeySales)
	s.logAudit(ctx, "sale_delete", id, "")
	return nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Customer{}, invalid("customer name required")
	}
	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		Name:  req.Name,
		Phone: strings.TrimSpace(req.Phone),
	})
	if err != nil {
		return domain.Customer{}, err
	}
	s.logAudit(ctx, "customer_create", created.ID, fmt.Sprintf("name=%s", created.Name))
	return *created, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteCustomer(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "customer_delete", id, "")
	return nil
}

// CustomerDebt recomputes the balance from the customer's credit sales
// and payments. Nothing is persisted; the raw figure may be negative
// when the customer overpaid.
func (s *Service) CustomerDebt(ctx context.Context, customerID string) (domain.DebtView, error) {
	if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
		return domain.DebtView{}, err
	}
	sales, err := s.repo.ListCreditSalesByCustomer(ctx, customerID)
	if err != nil {
		return domain.DebtView{}, err
	}
	payments, err := s.repo.ListPaymentsByCustomer(ctx, customerID)
	if err != nil {
		return domain.DebtView{}, err
	}
	raw := debt.Compute(sales, payments)
	return domain.DebtView{
		CustomerID: customerID,
		Raw:        raw,
		Clamped:    debt.Clamp(raw),
	}, nil
}

func (s *Service) CustomerDebtBreakdown(ctx context.Context, customerID string) (domain.DebtBreakdown, error) {
	if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
		return domain.DebtBreakdown{}, err
	}
	sales, err := s.repo.ListCreditSalesByCustomer(ctx, customerID)
	if err != nil {
		return domain.DebtBreakdown{}, err
	}
	payments, err := s.repo.ListPaymentsByCustomer(ctx, customerID)
	if err != nil {
		return domain.DebtBreakdown{}, err
	}
	return domain.DebtBreakdown{
		CustomerID: customerID,
		Entries:    debt.Breakdown(sales, payments),
	}, nil
}

func (s *Service) ListPayments(ctx context.Context) ([]domain.Payment, error) {
	return s.repo.ListPayments(ctx)
}

func (s *Service) CreatePayment(ctx context.Context, req domain.PaymentCreateRequest) (domain.Payment, error) {
	if req.CustomerID == "" {
		return domain.Payment{}, invalid("customer id required")
	}
	if !req.Amount.IsPositive() {
		return domain.Payment{}, invalid("payment amount must be positive")
	}
	if !req.Currency.Valid() {
		return domain.Payment{}, invalid("currency must be USD or CDF")
	}

	created, err := s.repo.CreatePayment(ctx, domain.Payment{
		CustomerID: req.CustomerID,
		Amount:     req.Amount,
		Currency:   req.Currency,
	})
	if err != nil {
		return domain.Payment{}, err
	}
	s.logAudit(ctx, "payment_create", created.ID, fmt.Sprintf("customer=%s amount=%s %s", created.CustomerID, created.Amount.String(), created.Currency))
	return *created, nil
}

func (s *Service) DeletePayment(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeletePayment(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "payment_delete", id, "")
	return nil
}

func (s *Service) ListExpenses(ctx context.Context) ([]domain.Expense, error) {
	return s.repo.ListExpenses(ctx)
}

func (s *Service) CreateExpense(ctx context.Context, req domain.ExpenseCreateRequest) (domain.Expense, error) {
	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" {
		return domain.Expense{}, invalid("expense description required")
	}
	if !req.Amount.IsPositive() {
		return domain.Expense{}, invalid("expense amount must be positive")
	}
	if !req.Currency.Valid() {
		return domain.Expense{}, invalid("currency must be USD or CDF")
	}

	created, err := s.repo.CreateExpense(ctx, domain.Expense{
		Description: req.Description,
		Amount:      req.Amount,
		Currency:    req.Currency,
	})
	if err != nil {
		return domain.Expense{}, err
	}
	s.logAudit(ctx, "expense_create", created.ID, fmt.Sprintf("amount=%s %s", created.Amount.String(), created.Currency))
	return *created, nil
}

func (s *Service) DeleteExpense(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteExpense(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "expense_delete", id, "")
	return nil
}

func (s *Service) ListExchangeRates(ctx context.Context) ([]domain.ExchangeRate, error) {
	return s.repo.ListExchangeRates(ctx)
}

func (s *Service) CreateExchangeRate(ctx context.Context, req domain.ExchangeRateCreateRequest) (domain.ExchangeRate, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.ExchangeRate{}, err
	}
	if !req.USDToCDF.IsPositive() {
		return domain.ExchangeRate{}, invalid("usd_to_cdf must be positive")
	}

	date := s.now().Truncate(24 * time.Hour)
	if strings.TrimSpace(req.Date) != "" {
		parsed, err := time.ParseInLocation("2006-01-02", req.Date, time.UTC)
		if err != nil {
			return domain.ExchangeRate{}, invalid("date must be YYYY-MM-DD")
		}
		date = parsed
	}

	created, err := s.repo.CreateExchangeRate(ctx, domain.ExchangeRate{
		Date:     date,
		USDToCDF: req.USDToCDF,
		CDFToUSD: decimal.NewFromInt(1).DivRound(req.USDToCDF, 9),
	})
	if err != nil {
		return domain.ExchangeRate{}, err
	}
	s.logAudit(ctx, "rate_create", created.ID, fmt.Sprintf("usd_to_cdf=%s", created.USDToCDF.String()))
	return *created, nil
}

// ResolveRateForDate picks the exchange rate a given day's figures are
// converted with: the newest rate recorded within or before that day,
// else the newest rate overall, else a logged 1:1 fallback. A rate
// created at exactly the next midnight belongs to the next day.
func (s *Service) ResolveRateForDate(ctx context.Context, date time.Time) (domain.ExchangeRate, error) {
	nextMidnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)

	rate, err := s.repo.LatestExchangeRateBefore(ctx, nextMidnight)
	if err == nil {
		return *rate, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.ExchangeRate{}, err
	}

	rate, err = s.repo.LatestExchangeRate(ctx)
	if err == nil {
		return *rate, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.ExchangeRate{}, err
	}

	log.Printf("[service] WARN: no exchange rate recorded, using 1:1 for %s", date.Format("2006-01-02"))
	return money.FallbackRate(), nil
}

// withConflictRetry reruns a store transaction when it aborts on a
// serialization conflict. Non-conflict errors pass through untouched;
// exhaustion surfaces the wrapped conflict with the attempt count.
func (s *Service) withConflictRetry(ctx context.Context, op string, fn func() error) error {
	attempt := 0
	err := s.retry.Do(ctx, func() error {
		attempt++
		err := fn()
		if errors.Is(err, store.ErrConflict) {
			log.Printf("[service] WARN: %s hit a transaction conflict (attempt %d)", op, attempt)
		}
		return err
	}, func(err error) bool {
		return errors.Is(err, store.ErrConflict)
	})
	return err
}

func (s *Service) invalidate(ctx context.Context, keys ...string) {
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		log.Printf("[service] WARN: cache invalidation failed for %v: %v", keys, err)
	}
}

func (s *Service) logAudit(ctx context.Context, action string, entityID string, detail string) {
	actor, _ := ActorFromContext(ctx)
	username := actor.Username
	if username == "" {
		username = "unknown"
	}
	log.Printf("[audit] actor=%s action=%s entity=%s %s", username, action, entityID, detail)
}
