package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Unit          string          `json:"unit"`
	Stock         int             `json:"stock"`
	Price         decimal.Decimal `json:"price"`
	LimitPerOrder int             `json:"limit_per_order,omitempty"` // 0 = no limit
	IsActive      bool            `json:"is_active"`
}

func (p Product) HasLimit() bool { return p.LimitPerOrder > 0 }

type Representative struct {
	ID         int64  `json:"id"`
	Code       string `json:"code"`
	ExternalID int64  `json:"telegram_id"`
	FullName   string `json:"full_name"`
	IsActive   bool   `json:"is_active"`
}

// LineItem is a snapshot taken at submission; it is never recomputed from the catalog.
type LineItem struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type Order struct {
	ID             int64           `json:"id"`
	ExternalID     int64           `json:"telegram_id"`
	Handle         string          `json:"telegram_username,omitempty"`
	RepCode        string          `json:"rep_code"`
	RepName        string          `json:"full_name"`
	Institution    string          `json:"institution"`
	Items          []LineItem      `json:"items"`
	TotalItems     int             `json:"total_items"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	PaymentPercent int             `json:"payment_percent"`
	PaymentAmount  decimal.Decimal `json:"payment_amount"`
	Status         Status          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	LedgerRow      *int            `json:"ledger_row,omitempty"`
}

// CartLine is one requested (product, quantity) pair.
type CartLine struct {
	ProductID int64 `json:"product_id"`
	Qty       int   `json:"quantity"`
}

// StockDelta is the total quantity to take from one product.
type StockDelta struct {
	ProductID int64
	Qty       int
}

type SubmitRequest struct {
	ExternalID     int64
	Handle         string
	Institution    string
	PaymentPercent int
	Items          []CartLine
}
