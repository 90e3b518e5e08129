// src/processors/enrichment_processor.go
package processors

import (
	"context"
	"time"

	"github.com/username/salespipe/src/logger"
	"github.com/username/salespipe/src/models"
)

// usdScale is the scale of the stored USD amount. Rounding happens only at
// the final stored value; intermediate arithmetic keeps full precision.
const usdScale = 2

// RateProvider is what the enricher needs from the rate layer.
type RateProvider interface {
	GetExchangeRate(ctx context.Context, currency string, date time.Time) (models.ExchangeRate, error)
}

// CurrencyEnricher attaches the USD-converted amount and rate metadata to
// validated records. The processing date is fixed once per run: every lookup
// in a run uses the same as-of date.
type CurrencyEnricher struct {
	rates          RateProvider
	processingDate time.Time
	now            func() time.Time
}

// NewCurrencyEnricher creates an enricher bound to one run's processing date.
func NewCurrencyEnricher(rates RateProvider, processingDate time.Time) *CurrencyEnricher {
	return &CurrencyEnricher{rates: rates, processingDate: processingDate, now: time.Now}
}

// Enrich converts one validated record to USD. On rate unavailability the
// record is returned as a quarantine entry with a reason distinct from
// business-rule rejects, so operators can tell an API outage from bad data.
func (e *CurrencyEnricher) Enrich(ctx context.Context, rec models.ValidatedRecord) (models.EnrichedRecord, *models.QuarantineRecord) {
	exRate, err := e.rates.GetExchangeRate(ctx, rec.Currency, e.processingDate)
	if err != nil {
		logger.L.Warn("Could not enrich record, quarantining",
			"orderID", rec.OrderID, "productID", rec.ProductID, "currency", rec.Currency, "error", err)
		return models.EnrichedRecord{}, &models.QuarantineRecord{
			Record:        rec.Raw,
			Reasons:       []models.ReasonCode{models.ReasonExternalServiceUnavailable},
			Stage:         models.StageEnrichment,
			QuarantinedAt: e.now(),
		}
	}

	// Decimal multiplication keeps full precision; the stored amount is
	// rounded half-up to cents.
	usd := rec.SaleAmount.Mul(exRate.Rate).Round(usdScale)

	return models.EnrichedRecord{
		ValidatedRecord:   rec,
		SaleAmountUSD:     usd,
		ExchangeRate:      exRate.Rate,
		ExchangeTimestamp: exRate.FetchedAt,
		BaseCurrency:      rec.Currency,
		RateSource:        exRate.Source,
	}, nil
}
