package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Currency string

const (
	USD Currency = "USD"
	CDF Currency = "CDF"
)

func (c Currency) Valid() bool {
	return c == USD || c == CDF
}

// UnitTag marks which unit a sale item quantity is expressed in.
type UnitTag string

const (
	UnitSale     UnitTag = "sale"
	UnitPurchase UnitTag = "purchase"
)

func (u UnitTag) Valid() bool {
	return u == UnitSale || u == UnitPurchase
}

// CurrencyTotals is a per-currency pair of sums. Amounts are never
// converted inside this struct; conversion happens explicitly against
// an exchange rate.
type CurrencyTotals struct {
	USD decimal.Decimal `json:"usd"`
	CDF decimal.Decimal `json:"cdf"`
}

// Amount is a currency-tagged monetary value, the unit every
// aggregation works over.
type Amount struct {
	Value    decimal.Decimal
	Currency Currency
}

// Product stock is always held in sale-units. One purchase-unit equals
// ConversionFactor sale-units.
type Product struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	PurchaseUnit     string          `json:"purchase_unit"`
	SaleUnit         string          `json:"sale_unit"`
	ConversionFactor int64           `json:"conversion_factor"`
	Stock            decimal.Decimal `json:"stock"`
	PurchasePrice    decimal.Decimal `json:"purchase_price"`
	SalePrice        decimal.Decimal `json:"sale_price"`
	Currency         Currency        `json:"currency"`
	CreatedAt        time.Time       `json:"created_at"`
}

type ProductCreateRequest struct {
	Name             string          `json:"name"`
	PurchaseUnit     string          `json:"purchase_unit"`
	SaleUnit         string          `json:"sale_unit"`
	ConversionFactor int64           `json:"conversion_factor"`
	PurchasePrice    decimal.Decimal `json:"purchase_price"`
	SalePrice        decimal.Decimal `json:"sale_price"`
	Currency         Currency        `json:"currency"`
	InitialStock     decimal.Decimal `json:"initial_stock"`
}

type ProductUpdateRequest struct {
	Name             *string          `json:"name,omitempty"`
	PurchaseUnit     *string          `json:"purchase_unit,omitempty"`
	SaleUnit         *string          `json:"sale_unit,omitempty"`
	ConversionFactor *int64           `json:"conversion_factor,omitempty"`
	PurchasePrice    *decimal.Decimal `json:"purchase_price,omitempty"`
	SalePrice        *decimal.Decimal `json:"sale_price,omitempty"`
	Currency         *Currency        `json:"currency,omitempty"`
}

// ProductView is a Product with the display-stock decomposition
// attached: whole purchase-units, the sale-unit remainder, and a human
// display string.
type ProductView struct {
	Product
	StockPurchaseUnits int64           `json:"stock_purchase_units"`
	StockRemainder     decimal.Decimal `json:"stock_remainder"`
	StockDisplay       string          `json:"stock_display"`
}

// Purchase quantity is in purchase-units. Creating one increases the
// product stock by Qty x ConversionFactor sale-units.
type Purchase struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Qty       decimal.Decimal `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
	Currency  Currency        `json:"currency"`
	Supplier  string          `json:"supplier,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type PurchaseCreateRequest struct {
	ProductID string          `json:"product_id"`
	Qty       decimal.Decimal `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Currency  Currency        `json:"currency"`
	Supplier  string          `json:"supplier,omitempty"`
}

type PurchaseUpdateRequest struct {
	Qty       *decimal.Decimal `json:"qty,omitempty"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	Currency  *Currency        `json:"currency,omitempty"`
	Supplier  *string          `json:"supplier,omitempty"`
}

// SaleItem quantity is interpreted through UnitTag: "purchase" means
// the quantity is in purchase-units and is multiplied by the product's
// conversion factor before touching stock; "sale" is used as-is.
type SaleItem struct {
	ID        string          `json:"id"`
	SaleID    string          `json:"sale_id"`
	ProductID string          `json:"product_id"`
	Qty       decimal.Decimal `json:"qty"`
	UnitTag   UnitTag         `json:"unit_tag"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
	Currency  Currency        `json:"currency"`
}

// Sale keeps the legacy single currency+total pair (the "primary"
// currency, whichever of USD/CDF has the larger item total) alongside
// the per-currency subtotals. Both representations are written
// together and must stay consistent.
type Sale struct {
	ID            string          `json:"id"`
	CustomerID    string          `json:"customer_id,omitempty"`
	InvoiceNumber string          `json:"invoice_number"`
	IsCredit      bool            `json:"is_credit"`
	Currency      Currency        `json:"currency"`
	Total         decimal.Decimal `json:"total"`
	TotalUSD      decimal.Decimal `json:"total_usd"`
	TotalCDF      decimal.Decimal `json:"total_cdf"`
	CreatedAt     time.Time       `json:"created_at"`
	Items         []SaleItem      `json:"items,omitempty"`
}

type SaleItemInput struct {
	ProductID string          `json:"product_id"`
	Qty       decimal.Decimal `json:"qty"`
	UnitTag   UnitTag         `json:"unit_tag"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Currency  Currency        `json:"currency"`
}

type SaleCreateRequest struct {
	CustomerID    string          `json:"customer_id,omitempty"`
	InvoiceNumber string          `json:"invoice_number,omitempty"`
	IsCredit      bool            `json:"is_credit"`
	Items         []SaleItemInput `json:"items"`
}

type SaleUpdateRequest struct {
	CustomerID    *string          `json:"customer_id,omitempty"`
	InvoiceNumber *string          `json:"invoice_number,omitempty"`
	IsCredit      *bool            `json:"is_credit,omitempty"`
	Items         *[]SaleItemInput `json:"items,omitempty"`
}

type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CustomerCreateRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// Payment is money received against a customer's credit-sale debt.
type Payment struct {
	ID         string          `json:"id"`
	CustomerID string          `json:"customer_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   Currency        `json:"currency"`
	CreatedAt  time.Time       `json:"created_at"`
}

type PaymentCreateRequest struct {
	CustomerID string          `json:"customer_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   Currency        `json:"currency"`
}

type Expense struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    Currency        `json:"currency"`
	CreatedAt   time.Time       `json:"created_at"`
}

type ExpenseCreateRequest struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    Currency        `json:"currency"`
}

// ExchangeRate rows are append-only. USDToCDF is stored as
// "1 USD = N CDF"; CDFToUSD is persisted redundantly.
type ExchangeRate struct {
	ID        string          `json:"id"`
	Date      time.Time       `json:"date"`
	USDToCDF  decimal.Decimal `json:"usd_to_cdf"`
	CDFToUSD  decimal.Decimal `json:"cdf_to_usd"`
	CreatedAt time.Time       `json:"created_at"`
}

type ExchangeRateCreateRequest struct {
	Date     string          `json:"date,omitempty"`
	USDToCDF decimal.Decimal `json:"usd_to_cdf"`
}

// DebtView carries both the raw per-currency balance (negative means
// overpayment) and the clamped-at-zero figure shown to users.
type DebtView struct {
	CustomerID string         `json:"customer_id"`
	Raw        CurrencyTotals `json:"raw"`
	Clamped    CurrencyTotals `json:"clamped"`
}

// DebtBreakdownEntry is the per-invoice remaining debt after payments
// are allocated oldest-first within each currency.
type DebtBreakdownEntry struct {
	SaleID        string          `json:"sale_id"`
	InvoiceNumber string          `json:"invoice_number"`
	Currency      Currency        `json:"currency"`
	Total         decimal.Decimal `json:"total"`
	Remaining     decimal.Decimal `json:"remaining"`
	CreatedAt     time.Time       `json:"created_at"`
}

type DebtBreakdown struct {
	CustomerID string               `json:"customer_id"`
	Entries    []DebtBreakdownEntry `json:"entries"`
}

type DailyReport struct {
	Date               string          `json:"date"`
	Rate               ExchangeRate    `json:"rate"`
	SaleCount          int64           `json:"sale_count"`
	Sales              CurrencyTotals  `json:"sales"`
	Purchases          CurrencyTotals  `json:"purchases"`
	Expenses           CurrencyTotals  `json:"expenses"`
	Payments           CurrencyTotals  `json:"payments"`
	SalesUSD           decimal.Decimal `json:"sales_usd"`
	PurchasesUSD       decimal.Decimal `json:"purchases_usd"`
	ExpensesUSD        decimal.Decimal `json:"expenses_usd"`
	PaymentsUSD        decimal.Decimal `json:"payments_usd"`
	EstimatedCostUSD   decimal.Decimal `json:"estimated_cost_usd"`
	EstimatedProfitUSD decimal.Decimal `json:"estimated_profit_usd"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type ClerkCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type ClerkUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}
