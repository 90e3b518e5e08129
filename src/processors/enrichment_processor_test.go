package processors

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/salespipe/src/models"
)

// staticRates serves fixed rates and records the dates it was asked for.
type staticRates struct {
	rates     map[string]string
	err       error
	datesSeen []time.Time
}

func (s *staticRates) GetExchangeRate(ctx context.Context, currency string, date time.Time) (models.ExchangeRate, error) {
	s.datesSeen = append(s.datesSeen, date)
	if s.err != nil {
		return models.ExchangeRate{}, s.err
	}
	r, ok := s.rates[currency]
	if !ok {
		return models.ExchangeRate{}, ErrRateUnavailable
	}
	return models.ExchangeRate{
		BaseCurrency: currency,
		AsOfDate:     date,
		Rate:         decimal.RequireFromString(r),
		FetchedAt:    time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC),
		Source:       models.RateSourceLive,
	}, nil
}

func validatedRecord(orderID, productID, amount, currency string) models.ValidatedRecord {
	return models.ValidatedRecord{
		OrderID:    orderID,
		ProductID:  productID,
		CustomerID: "CUST-1",
		SaleAmount: decimal.RequireFromString(amount),
		Currency:   currency,
		OrderDate:  time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Region:     "EMEA",
		Raw:        models.RawSaleRecord{OrderID: orderID, ProductID: productID},
	}
}

func TestCurrencyEnricher_ConvertsInDecimal(t *testing.T) {
	rates := &staticRates{rates: map[string]string{"EUR": "1.0850"}}
	enricher := NewCurrencyEnricher(rates, testDate)

	enriched, q := enricher.Enrich(context.Background(), validatedRecord("ORD-1", "PRD-1", "100.10", "EUR"))

	require.Nil(t, q)
	// 100.10 * 1.0850 = 108.6085, stored value rounds half-up to 108.61.
	assert.True(t, enriched.SaleAmountUSD.Equal(decimal.RequireFromString("108.61")),
		"got %s", enriched.SaleAmountUSD)
}

func TestCurrencyEnricher_AuditFieldsAlwaysPresent(t *testing.T) {
	rates := &staticRates{rates: map[string]string{"GBP": "1.27"}}
	enricher := NewCurrencyEnricher(rates, testDate)

	enriched, q := enricher.Enrich(context.Background(), validatedRecord("ORD-1", "PRD-1", "10.00", "GBP"))

	require.Nil(t, q)
	assert.Equal(t, "GBP", enriched.BaseCurrency, "original currency is stored alongside, never replaced")
	assert.True(t, enriched.ExchangeRate.Equal(decimal.RequireFromString("1.27")))
	assert.False(t, enriched.ExchangeTimestamp.IsZero())
	// Round-trip: usd ~= amount * rate within rounding tolerance.
	expected := enriched.SaleAmount.Mul(enriched.ExchangeRate)
	diff := enriched.SaleAmountUSD.Sub(expected).Abs()
	assert.True(t, diff.LessThanOrEqual(decimal.RequireFromString("0.005")))
}

func TestCurrencyEnricher_NegativeAmountConverts(t *testing.T) {
	rates := &staticRates{rates: map[string]string{"EUR": "2"}}
	enricher := NewCurrencyEnricher(rates, testDate)

	enriched, q := enricher.Enrich(context.Background(), validatedRecord("ORD-1", "PRD-1", "-10.00", "EUR"))

	require.Nil(t, q)
	assert.True(t, enriched.SaleAmountUSD.Equal(decimal.RequireFromString("-20")))
}

func TestCurrencyEnricher_UnavailableRateQuarantines(t *testing.T) {
	rates := &staticRates{err: ErrRateUnavailable}
	enricher := NewCurrencyEnricher(rates, testDate)

	_, q := enricher.Enrich(context.Background(), validatedRecord("ORD-1", "PRD-1", "10.00", "EUR"))

	require.NotNil(t, q)
	assert.Equal(t, []models.ReasonCode{models.ReasonExternalServiceUnavailable}, q.Reasons)
	assert.Equal(t, models.StageEnrichment, q.Stage)
	assert.False(t, q.QuarantinedAt.IsZero())
}

func TestCurrencyEnricher_ProcessingDateFixedPerRun(t *testing.T) {
	rates := &staticRates{rates: map[string]string{"EUR": "1.1", "GBP": "1.3"}}
	enricher := NewCurrencyEnricher(rates, testDate)

	enricher.Enrich(context.Background(), validatedRecord("ORD-1", "PRD-1", "10", "EUR"))
	enricher.Enrich(context.Background(), validatedRecord("ORD-2", "PRD-2", "20", "GBP"))

	require.Len(t, rates.datesSeen, 2)
	for _, d := range rates.datesSeen {
		assert.True(t, d.Equal(testDate), "every lookup in a run uses the fixed processing date")
	}
}
