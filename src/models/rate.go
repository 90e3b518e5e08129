package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RateSource marks whether a rate came from the live API or from the
// fallback policy (last successfully fetched rate for the currency).
type RateSource string

const (
	RateSourceLive     RateSource = "live"
	RateSourceFallback RateSource = "fallback"
)

// ExchangeRate is the conversion rate from BaseCurrency to USD on AsOfDate.
type ExchangeRate struct {
	BaseCurrency string          `json:"base_currency"`
	AsOfDate     time.Time       `json:"as_of_date"`
	Rate         decimal.Decimal `json:"rate"`
	FetchedAt    time.Time       `json:"fetched_at"`
	Source       RateSource      `json:"source"`
}

// RateAPIResponse mirrors the JSON rate table returned by the exchange-rate
// service for a single base currency and date.
type RateAPIResponse struct {
	Base  string                     `json:"base"`
	Date  string                     `json:"date"`
	Rates map[string]decimal.Decimal `json:"rates"`
}
