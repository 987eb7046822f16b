package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"dukani/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("invalid request")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrConflict          = errors.New("transaction conflict")
)

// InsufficientStockError carries enough detail for an actionable 409:
// which product, how much was asked for and how much is on the shelf,
// both in sale-units.
type InsufficientStockError struct {
	ProductName string
	Required    decimal.Decimal
	Available   decimal.Decimal
	Unit        string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: need %s %s, have %s",
		e.ProductName, e.Required.String(), e.Unit, e.Available.String())
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	// ListPurchases returns rows newest-first; ListPurchasesByProduct
	// keeps the same order for the cost estimator.
	ListPurchases(ctx context.Context) ([]domain.Purchase, error)
	ListPurchasesByProduct(ctx context.Context, productID string) ([]domain.Purchase, error)
	GetPurchase(ctx context.Context, id string) (*domain.Purchase, error)
	// CreatePurchase inserts the row and adds qty x factor sale-units to
	// the product's stock in one transaction.
	CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error)
	// UpdatePurchase reverses the old stock delta and applies the new
	// one atomically.
	UpdatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error)
	// DeletePurchase removes the row and subtracts its stock delta. The
	// result may go negative; the store logs it and proceeds.
	DeletePurchase(ctx context.Context, id string) error

	ListSales(ctx context.Context) ([]domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	// CreateSale locks each item's product row, checks sufficiency in
	// sale-units, decrements stock, and writes the sale with its items
	// in a single serializable transaction. Returns an
	// *InsufficientStockError when any item cannot be covered, and
	// ErrConflict on a serialization failure.
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	// UpdateSale restocks the old items and applies the new ones
	// atomically under the same locking discipline as CreateSale.
	UpdateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	// DeleteSale removes the sale and restocks its items.
	DeleteSale(ctx context.Context, id string) error
	// ListCreditSalesByCustomer returns the customer's credit sales
	// oldest-first, for debt computation and breakdowns.
	ListCreditSalesByCustomer(ctx context.Context, customerID string) ([]domain.Sale, error)
	ListSalesBetween(ctx context.Context, from, to time.Time) ([]domain.Sale, error)

	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error

	ListPayments(ctx context.Context) ([]domain.Payment, error)
	ListPaymentsByCustomer(ctx context.Context, customerID string) ([]domain.Payment, error)
	CreatePayment(ctx context.Context, payment domain.Payment) (*domain.Payment, error)
	DeletePayment(ctx context.Context, id string) error
	ListPaymentsBetween(ctx context.Context, from, to time.Time) ([]domain.Payment, error)

	ListExpenses(ctx context.Context) ([]domain.Expense, error)
	CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	DeleteExpense(ctx context.Context, id string) error
	ListExpensesBetween(ctx context.Context, from, to time.Time) ([]domain.Expense, error)

	ListPurchasesBetween(ctx context.Context, from, to time.Time) ([]domain.Purchase, error)

	ListExchangeRates(ctx context.Context) ([]domain.ExchangeRate, error)
	CreateExchangeRate(ctx context.Context, rate domain.ExchangeRate) (*domain.ExchangeRate, error)
	// LatestExchangeRateBefore returns the rate row with the newest
	// created_at strictly before the cutoff, or ErrNotFound. Callers
	// pass the start of the day after the one they are resolving.
	LatestExchangeRateBefore(ctx context.Context, cutoff time.Time) (*domain.ExchangeRate, error)
	// LatestExchangeRate returns the newest rate row overall, or
	// ErrNotFound on an empty table.
	LatestExchangeRate(ctx context.Context) (*domain.ExchangeRate, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
	SetUserActive(ctx context.Context, username string, active bool) error
}
