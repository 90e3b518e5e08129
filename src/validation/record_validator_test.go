package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/salespipe/src/models"
)

func validRaw() models.RawSaleRecord {
	return models.RawSaleRecord{
		OrderID:    "ORD-100",
		ProductID:  "PRD-1",
		CustomerID: "CUST-9",
		SaleAmount: "125.50",
		Currency:   "EUR",
		Discount:   "",
		OrderDate:  "2024-03-15",
		Region:     "EMEA",
	}
}

func TestRecordValidator_ValidRecord(t *testing.T) {
	v := NewRecordValidator()

	outcome := v.Validate(validRaw())

	require.True(t, outcome.IsValid())
	rec := outcome.Valid
	assert.Equal(t, "ORD-100", rec.OrderID)
	assert.Equal(t, "EUR", rec.Currency)
	assert.False(t, rec.HasDiscount)
	assert.Equal(t, "125.5", rec.SaleAmount.String())
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), rec.OrderDate)
}

func TestRecordValidator_NegativeAndZeroAmountsAreValid(t *testing.T) {
	v := NewRecordValidator()

	refund := validRaw()
	refund.SaleAmount = "-10.00"
	outcome := v.Validate(refund)
	require.True(t, outcome.IsValid(), "refunds must not be rejected")

	promo := validRaw()
	promo.ProductID = "PRD-2" // distinct composite key
	promo.SaleAmount = "0.00"
	outcome = v.Validate(promo)
	require.True(t, outcome.IsValid(), "zero amounts must not be rejected")
}

func TestRecordValidator_CollectsAllReasons(t *testing.T) {
	v := NewRecordValidator()

	raw := validRaw()
	raw.CustomerID = ""
	raw.SaleAmount = "not-a-number"
	raw.OrderDate = "15/03/2024"
	raw.Currency = "EUROS"

	outcome := v.Validate(raw)

	require.False(t, outcome.IsValid())
	q := outcome.Quarantined
	assert.Equal(t, []models.ReasonCode{
		models.ReasonMissingField,
		models.ReasonInvalidNumericFormat,
		models.ReasonInvalidDateFormat,
		models.ReasonUnknownCurrency,
	}, q.Reasons, "every failed rule must be recorded, in rule order")
	assert.Equal(t, models.StageValidation, q.Stage)
}

func TestRecordValidator_QuarantineTimestampIsClassificationTime(t *testing.T) {
	classifiedAt := time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)
	v := NewRecordValidatorWithClock(func() time.Time { return classifiedAt })

	raw := validRaw()
	raw.OrderID = ""
	outcome := v.Validate(raw)

	require.False(t, outcome.IsValid())
	assert.Equal(t, classifiedAt, outcome.Quarantined.QuarantinedAt)
}

func TestRecordValidator_DuplicateDetection(t *testing.T) {
	v := NewRecordValidator()

	first := v.Validate(validRaw())
	require.True(t, first.IsValid(), "first occurrence of a key is valid")

	second := v.Validate(validRaw())
	require.False(t, second.IsValid(), "second occurrence must be quarantined")
	assert.Equal(t, []models.ReasonCode{models.ReasonDuplicateKey}, second.Quarantined.Reasons)
}

func TestRecordValidator_MalformedRecordDoesNotClaimKey(t *testing.T) {
	v := NewRecordValidator()

	malformed := validRaw()
	malformed.SaleAmount = "garbage"
	outcome := v.Validate(malformed)
	require.False(t, outcome.IsValid())

	// A later well-formed record with the same key must still be accepted.
	outcome = v.Validate(validRaw())
	assert.True(t, outcome.IsValid(), "malformed record must not block a later clean duplicate")
}

func TestRecordValidator_DuplicateAppendedToOtherReasons(t *testing.T) {
	v := NewRecordValidator()

	require.True(t, v.Validate(validRaw()).IsValid())

	dup := validRaw()
	dup.Currency = "??"
	outcome := v.Validate(dup)

	require.False(t, outcome.IsValid())
	assert.Equal(t, []models.ReasonCode{
		models.ReasonUnknownCurrency,
		models.ReasonDuplicateKey,
	}, outcome.Quarantined.Reasons)
}

func TestKeySet(t *testing.T) {
	s := NewKeySet()
	assert.False(t, s.Contains("a|b"))
	s.Add("a|b")
	assert.True(t, s.Contains("a|b"))
	assert.Equal(t, 1, s.Len())
}
