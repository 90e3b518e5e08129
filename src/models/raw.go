package models

import "strings"

// RawSaleRecord represents a single sales transaction row as read from the
// source file. Every field is kept as unparsed text; normalization happens
// during validation. A record is immutable once read.
type RawSaleRecord struct {
	OrderID    string `json:"order_id"`
	ProductID  string `json:"product_id"`
	CustomerID string `json:"customer_id"`
	SaleAmount string `json:"sale_amount"`
	Currency   string `json:"currency"`
	Discount   string `json:"discount"` // Optional; empty string means no discount
	OrderDate  string `json:"order_date"`
	Region     string `json:"region"`
	RawLine    string `json:"raw_line"` // The original CSV line, kept for audit
}

// CompositeKey returns the natural key of the record, shared by the
// duplicate check and the surrogate key derivation. IDs are trimmed so the
// key agrees with the normalized record downstream.
func (r RawSaleRecord) CompositeKey() string {
	return strings.TrimSpace(r.OrderID) + "|" + strings.TrimSpace(r.ProductID)
}

// ProductRef is one row of the product reference table. It is loaded once per
// run and used for lookups only; the pipeline never validates against it.
type ProductRef struct {
	ProductID        string `json:"product_id"`
	ProductName      string `json:"product_name"`
	ProductReference string `json:"product_reference"`
}
