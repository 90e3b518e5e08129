package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EnrichedRecord is a ValidatedRecord with the USD conversion attached. The
// original currency, the rate and the fetch timestamp are carried alongside
// the converted amount; enrichment appends, never replaces.
type EnrichedRecord struct {
	ValidatedRecord
	SaleAmountUSD     decimal.Decimal `json:"sale_amount_usd"` // Rounded to 2dp at storage, half-up
	ExchangeRate      decimal.Decimal `json:"exchange_rate"`
	ExchangeTimestamp time.Time       `json:"exchange_timestamp"`
	BaseCurrency      string          `json:"base_currency"`
	RateSource        RateSource      `json:"rate_source"`
}
