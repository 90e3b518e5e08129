package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is the aggregate row of the target schema, one per distinct
// order_id. TotalSalesAmountUSD is always the sum of the order's line items;
// it is never set independently.
type Order struct {
	OrderID             string          `json:"order_id"`
	CustomerID          string          `json:"customer_id"`
	TotalSalesAmountUSD decimal.Decimal `json:"total_sales_amount_usd"`
	Region              string          `json:"region"`
	OrderDate           time.Time       `json:"order_date"`
}

// OrderProduct is one line item of the target schema. OrderProductID is a
// surrogate key derived deterministically from (order_id, product_id), so
// re-running the mapper on the same input yields the same keys.
type OrderProduct struct {
	OrderProductID    string           `json:"order_product_id"`
	OrderID           string           `json:"order_id"`
	ProductID         string           `json:"product_id"`
	SaleAmountUSD     decimal.Decimal  `json:"sale_amount_usd"`
	SaleAmount        decimal.Decimal  `json:"sale_amount"`
	BaseCurrency      string           `json:"base_currency"`
	ExchangeRate      decimal.Decimal  `json:"exchange_rate"`
	ExchangeTimestamp time.Time        `json:"exchange_timestamp"`
	Discount          *decimal.Decimal `json:"discount,omitempty"` // Nullable in the target schema
}
