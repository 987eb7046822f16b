package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"dukani/backend/internal/domain"
	"dukani/backend/internal/stock"
	"dukani/backend/internal/store"
	"dukani/backend/internal/xid"
)

// Store is the in-memory Repository used for dev mode and tests. The
// single mutex makes every write path trivially serializable, so the
// conflict/retry machinery never fires against it.
type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	purchases       map[string]domain.Purchase
	sales           map[string]domain.Sale
	customers       map[string]domain.Customer
	payments        map[string]domain.Payment
	expenses        map[string]domain.Expense
	rates           []domain.ExchangeRate
	usersByUsername map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		products:        make(map[string]domain.Product),
		purchases:       make(map[string]domain.Purchase),
		sales:           make(map[string]domain.Sale),
		customers:       make(map[string]domain.Customer),
		payments:        make(map[string]domain.Payment),
		expenses:        make(map[string]domain.Expense),
		rates:           make([]domain.ExchangeRate, 0, 8),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// seedUsers builds the initial accounts for dev/demo mode. Credentials
// come from SEED_ADMIN_PASSWORD and SEED_CLERK_PASSWORD; hardcoded dev
// defaults are used with a warning when unset. Production runs against
// PostgreSQL and never hits this path.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	clerkPwd := envOr("SEED_CLERK_PASSWORD", "clerk123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CLERK_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CLERK_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"clerk", clerkPwd, "clerk"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	now := time.Now().UTC()
	products := []domain.Product{
		{Name: "Eau minérale 600ml", PurchaseUnit: "casier", SaleUnit: "bouteille", ConversionFactor: 12, Stock: decimal.NewFromInt(48), PurchasePrice: decimal.NewFromInt(6), SalePrice: decimal.RequireFromString("0.7"), Currency: domain.USD},
		{Name: "Sucre 1kg", PurchaseUnit: "sac", SaleUnit: "kg", ConversionFactor: 50, Stock: decimal.NewFromInt(150), PurchasePrice: decimal.NewFromInt(110000), SalePrice: decimal.NewFromInt(2800), Currency: domain.CDF},
		{Name: "Riz 25kg", PurchaseUnit: "sac", SaleUnit: "kg", ConversionFactor: 25, Stock: decimal.NewFromInt(75), PurchasePrice: decimal.NewFromInt(32), SalePrice: decimal.RequireFromString("1.6"), Currency: domain.USD},
		{Name: "Savon de ménage", PurchaseUnit: "carton", SaleUnit: "pièce", ConversionFactor: 24, Stock: decimal.NewFromInt(96), PurchasePrice: decimal.NewFromInt(28000), SalePrice: decimal.NewFromInt(1500), Currency: domain.CDF},
		{Name: "Huile végétale 1L", PurchaseUnit: "carton", SaleUnit: "bouteille", ConversionFactor: 12, Stock: decimal.NewFromInt(36), PurchasePrice: decimal.NewFromInt(30), SalePrice: decimal.RequireFromString("3.2"), Currency: domain.USD},
		{Name: "Farine de maïs 1kg", PurchaseUnit: "sac", SaleUnit: "kg", ConversionFactor: 25, Stock: decimal.NewFromInt(50), PurchasePrice: decimal.NewFromInt(45000), SalePrice: decimal.NewFromInt(2200), Currency: domain.CDF},
	}

	s := New()
	s.usersByUsername = seedUsers()
	for _, p := range products {
		p.ID = xid.New("prd")
		p.CreatedAt = now
		s.products[p.ID] = p
	}
	s.rates = append(s.rates, domain.ExchangeRate{
		ID:        xid.New("rate"),
		Date:      time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		USDToCDF:  decimal.NewFromInt(2850),
		CDFToUSD:  decimal.NewFromInt(1).DivRound(decimal.NewFromInt(2850), 9),
		CreatedAt: now,
	})
	return s
}

// applyStockDelta mutates a product's stock counter and logs when a
// reversal drives it negative. The value is kept as-is so the purchase
// history stays the source of truth.
func (s *Store) applyStockDelta(productID string, delta decimal.Decimal) {
	p, ok := s.products[productID]
	if !ok {
		return
	}
	p.Stock = p.Stock.Add(delta)
	if p.Stock.IsNegative() {
		log.Printf("[memory-store] WARN: stock for %s (%s) is negative: %s", p.Name, p.ID, p.Stock.String())
	}
	s.products[productID] = p
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return strings.Compare(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	s.products[product.ID] = product
	return &product, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[product.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	product.CreatedAt = existing.CreatedAt
	s.products[product.ID] = product
	return &product, nil
}

// DeleteProduct cascades like the postgres constraints do: the
// product's purchases are removed and its sale items are stripped from
// their sales. Sale rows and their stored totals stay.
func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.products, id)

	for purchaseID, purchase := range s.purchases {
		if purchase.ProductID == id {
			delete(s.purchases, purchaseID)
		}
	}
	for saleID, sale := range s.sales {
		kept := sale.Items[:0:0]
		for _, item := range sale.Items {
			if item.ProductID != id {
				kept = append(kept, item)
			}
		}
		if len(kept) != len(sale.Items) {
			sale.Items = kept
			s.sales[saleID] = sale
		}
	}
	return nil
}

func (s *Store) ListPurchases(_ context.Context) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.purchasesNewestFirst(""), nil
}

func (s *Store) ListPurchasesByProduct(_ context.Context, productID string) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.purchasesNewestFirst(productID), nil
}

func (s *Store) purchasesNewestFirst(productID string) []domain.Purchase {
	purchases := make([]domain.Purchase, 0, len(s.purchases))
	for _, p := range s.purchases {
		if productID != "" && p.ProductID != productID {
			continue
		}
		purchases = append(purchases, p)
	}
	slices.SortFunc(purchases, func(a, b domain.Purchase) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return purchases
}

func (s *Store) GetPurchase(_ context.Context, id string) (*domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.purchases[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) CreatePurchase(_ context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[purchase.ProductID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if purchase.ID == "" {
		purchase.ID = xid.New("pur")
	}
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = time.Now().UTC()
	}
	s.purchases[purchase.ID] = purchase
	s.applyStockDelta(product.ID, stock.PurchaseDelta(purchase.Qty, product.ConversionFactor))
	return &purchase, nil
}

func (s *Store) UpdatePurchase(_ context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.purchases[purchase.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	product, ok := s.products[old.ProductID]
	if !ok {
		return nil, store.ErrNotFound
	}

	purchase.ProductID = old.ProductID
	purchase.CreatedAt = old.CreatedAt
	s.purchases[purchase.ID] = purchase

	delta := stock.PurchaseDelta(purchase.Qty, product.ConversionFactor).
		Sub(stock.PurchaseDelta(old.Qty, product.ConversionFactor))
	s.applyStockDelta(product.ID, delta)
	return &purchase, nil
}

func (s *Store) DeletePurchase(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.purchases[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(s.purchases, id)
	if product, ok := s.products[old.ProductID]; ok {
		s.applyStockDelta(product.ID, stock.PurchaseDelta(old.Qty, product.ConversionFactor).Neg())
	}
	return nil
}

func (s *Store) ListSales(_ context.Context) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		sales = append(sales, cloneSale(sale))
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return sales, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneSale(sale)
	return &out, nil
}

// decrementForItems checks sufficiency and applies the stock decrement
// for every item, or fails without touching anything. Working against a
// scratch copy keeps duplicate-product carts honest: the second line of
// the same product sees stock the first line already claimed.
func (s *Store) decrementForItems(items []domain.SaleItem) error {
	scratch := make(map[string]decimal.Decimal, len(items))
	for _, item := range items {
		product, ok := s.products[item.ProductID]
		if !ok {
			return store.ErrNotFound
		}
		available, seen := scratch[item.ProductID]
		if !seen {
			available = product.Stock
		}
		required := stock.EffectiveSaleQty(item.Qty, item.UnitTag, product.ConversionFactor)
		if !stock.Sufficient(available, required) {
			return &store.InsufficientStockError{
				ProductName: product.Name,
				Required:    required,
				Available:   available,
				Unit:        product.SaleUnit,
			}
		}
		scratch[item.ProductID] = available.Sub(required)
	}
	for id, remaining := range scratch {
		p := s.products[id]
		p.Stock = remaining
		s.products[id] = p
	}
	return nil
}

// restockItems reverses the stock effect of a sale's items. Not
// clamped; a warning is logged if a counter goes negative.
func (s *Store) restockItems(items []domain.SaleItem) {
	for _, item := range items {
		product, ok := s.products[item.ProductID]
		if !ok {
			continue
		}
		s.applyStockDelta(product.ID, stock.EffectiveSaleQty(item.Qty, item.UnitTag, product.ConversionFactor))
	}
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.CustomerID != "" {
		if _, ok := s.customers[sale.CustomerID]; !ok {
			return nil, store.ErrNotFound
		}
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	for i := range sale.Items {
		if sale.Items[i].ID == "" {
			sale.Items[i].ID = xid.New("item")
		}
		sale.Items[i].SaleID = sale.ID
	}

	if err := s.decrementForItems(sale.Items); err != nil {
		return nil, err
	}
	s.sales[sale.ID] = cloneSale(sale)
	return &sale, nil
}

func (s *Store) UpdateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.sales[sale.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if sale.CustomerID != "" {
		if _, ok := s.customers[sale.CustomerID]; !ok {
			return nil, store.ErrNotFound
		}
	}

	s.restockItems(old.Items)
	for i := range sale.Items {
		if sale.Items[i].ID == "" {
			sale.Items[i].ID = xid.New("item")
		}
		sale.Items[i].SaleID = sale.ID
	}
	if err := s.decrementForItems(sale.Items); err != nil {
		// Put the old items back so a failed update is a no-op.
		if derr := s.decrementForItems(old.Items); derr != nil {
			log.Printf("[memory-store] WARN: could not restore stock after failed sale update %s: %v", sale.ID, derr)
		}
		return nil, err
	}

	sale.CreatedAt = old.CreatedAt
	s.sales[sale.ID] = cloneSale(sale)
	return &sale, nil
}

func (s *Store) DeleteSale(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.sales[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(s.sales, id)
	s.restockItems(old.Items)
	return nil
}

func (s *Store) ListCreditSalesByCustomer(_ context.Context, customerID string) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, 8)
	for _, sale := range s.sales {
		if !sale.IsCredit || sale.CustomerID != customerID {
			continue
		}
		sales = append(sales, cloneSale(sale))
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return sales, nil
}

func (s *Store) ListSalesBetween(_ context.Context, from, to time.Time) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, 16)
	for _, sale := range s.sales {
		if inRange(sale.CreatedAt, from, to) {
			sales = append(sales, cloneSale(sale))
		}
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return sales, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return strings.Compare(a.Name, b.Name)
	})
	return customers, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.ID == "" {
		customer.ID = xid.New("cus")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	s.customers[customer.ID] = customer
	return &customer, nil
}

// DeleteCustomer refuses when sales or payments still reference the
// customer, matching the postgres foreign keys. The debt history has
// to be deleted first.
func (s *Store) DeleteCustomer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[id]; !ok {
		return store.ErrNotFound
	}
	for _, sale := range s.sales {
		if sale.CustomerID == id {
			return store.ErrValidation
		}
	}
	for _, payment := range s.payments {
		if payment.CustomerID == id {
			return store.ErrValidation
		}
	}
	delete(s.customers, id)
	return nil
}

func (s *Store) ListPayments(_ context.Context) ([]domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paymentsOldestFirst(""), nil
}

func (s *Store) ListPaymentsByCustomer(_ context.Context, customerID string) ([]domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paymentsOldestFirst(customerID), nil
}

func (s *Store) paymentsOldestFirst(customerID string) []domain.Payment {
	payments := make([]domain.Payment, 0, len(s.payments))
	for _, p := range s.payments {
		if customerID != "" && p.CustomerID != customerID {
			continue
		}
		payments = append(payments, p)
	}
	slices.SortFunc(payments, func(a, b domain.Payment) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return payments
}

func (s *Store) CreatePayment(_ context.Context, payment domain.Payment) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[payment.CustomerID]; !ok {
		return nil, store.ErrNotFound
	}
	if payment.ID == "" {
		payment.ID = xid.New("pay")
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	s.payments[payment.ID] = payment
	return &payment, nil
}

func (s *Store) DeletePayment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.payments[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.payments, id)
	return nil
}

func (s *Store) ListPaymentsBetween(_ context.Context, from, to time.Time) ([]domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payments := make([]domain.Payment, 0, 8)
	for _, p := range s.payments {
		if inRange(p.CreatedAt, from, to) {
			payments = append(payments, p)
		}
	}
	slices.SortFunc(payments, func(a, b domain.Payment) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return payments, nil
}

func (s *Store) ListExpenses(_ context.Context) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expenses := make([]domain.Expense, 0, len(s.expenses))
	for _, e := range s.expenses {
		expenses = append(expenses, e)
	}
	slices.SortFunc(expenses, func(a, b domain.Expense) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return expenses, nil
}

func (s *Store) CreateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}
	s.expenses[expense.ID] = expense
	return &expense, nil
}

func (s *Store) DeleteExpense(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.expenses[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.expenses, id)
	return nil
}

func (s *Store) ListExpensesBetween(_ context.Context, from, to time.Time) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expenses := make([]domain.Expense, 0, 8)
	for _, e := range s.expenses {
		if inRange(e.CreatedAt, from, to) {
			expenses = append(expenses, e)
		}
	}
	slices.SortFunc(expenses, func(a, b domain.Expense) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return expenses, nil
}

func (s *Store) ListPurchasesBetween(_ context.Context, from, to time.Time) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	purchases := make([]domain.Purchase, 0, 8)
	for _, p := range s.purchases {
		if inRange(p.CreatedAt, from, to) {
			purchases = append(purchases, p)
		}
	}
	slices.SortFunc(purchases, func(a, b domain.Purchase) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return purchases, nil
}

func (s *Store) ListExchangeRates(_ context.Context) ([]domain.ExchangeRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rates := make([]domain.ExchangeRate, len(s.rates))
	copy(rates, s.rates)
	slices.SortFunc(rates, func(a, b domain.ExchangeRate) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return rates, nil
}

func (s *Store) CreateExchangeRate(_ context.Context, rate domain.ExchangeRate) (*domain.ExchangeRate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rate.ID == "" {
		rate.ID = xid.New("rate")
	}
	if rate.CreatedAt.IsZero() {
		rate.CreatedAt = time.Now().UTC()
	}
	s.rates = append(s.rates, rate)
	return &rate, nil
}

func (s *Store) LatestExchangeRateBefore(_ context.Context, cutoff time.Time) (*domain.ExchangeRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *domain.ExchangeRate
	for i := range s.rates {
		r := s.rates[i]
		if !r.CreatedAt.Before(cutoff) {
			continue
		}
		if best == nil || r.CreatedAt.After(best.CreatedAt) {
			best = &r
		}
	}
	if best == nil {
		return nil, store.ErrNotFound
	}
	out := *best
	return &out, nil
}

func (s *Store) LatestExchangeRate(_ context.Context) (*domain.ExchangeRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *domain.ExchangeRate
	for i := range s.rates {
		r := s.rates[i]
		if best == nil || r.CreatedAt.After(best.CreatedAt) {
			best = &r
		}
	}
	if best == nil {
		return nil, store.ErrNotFound
	}
	out := *best
	return &out, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrValidation
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	u.Password = password
	s.usersByUsername[username] = u
	return nil
}

func (s *Store) SetUserActive(_ context.Context, username string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	u.Active = active
	s.usersByUsername[username] = u
	return nil
}

func cloneSale(sale domain.Sale) domain.Sale {
	out := sale
	out.Items = make([]domain.SaleItem, len(sale.Items))
	copy(out.Items, sale.Items)
	return out
}

// inRange is [from, to).
func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}
