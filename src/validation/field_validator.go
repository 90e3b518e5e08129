// src/validation/field_validator.go
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/salespipe/src/models"
)

// ErrValidationFailed is the sentinel wrapped by every field-level failure.
var ErrValidationFailed = fmt.Errorf("validation failed")

// OrderDateFormat is the expected layout of the order_date field.
const OrderDateFormat = "2006-01-02"

// Failure describes one failed business rule on one field. A nil *Failure
// means the check passed.
type Failure struct {
	Reason models.ReasonCode
	Field  string
	Detail string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%v: %s (%s): %s", ErrValidationFailed, f.Field, f.Reason, f.Detail)
}

var currencyCodeRegex = regexp.MustCompile(`^[A-Z]{3}$`)

// CheckMandatoryField fails with MISSING_FIELD when the value is empty after
// trimming.
func CheckMandatoryField(value, fieldName string) *Failure {
	if strings.TrimSpace(value) == "" {
		return &Failure{Reason: models.ReasonMissingField, Field: fieldName, Detail: "field is empty"}
	}
	return nil
}

// normalizeDecimalString strips whitespace and quotes and accepts a comma as
// the decimal separator, as some source exports use it.
func normalizeDecimalString(s string) string {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.Trim(cleaned, "\"")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	return cleaned
}

// CheckDecimalField parses a mandatory decimal field. Negative and zero
// values are valid: refunds and free promotions are legitimate sales rows.
// An empty value passes here; CheckMandatoryField owns that failure.
func CheckDecimalField(value, fieldName string) (decimal.Decimal, *Failure) {
	trimmed := normalizeDecimalString(value)
	if trimmed == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, &Failure{
			Reason: models.ReasonInvalidNumericFormat,
			Field:  fieldName,
			Detail: fmt.Sprintf("'%s' is not a valid decimal", value),
		}
	}
	return d, nil
}

// CheckOptionalDecimalField parses a nullable decimal field such as discount.
// The second return reports whether a value was present at all.
func CheckOptionalDecimalField(value, fieldName string) (decimal.Decimal, bool, *Failure) {
	trimmed := normalizeDecimalString(value)
	if trimmed == "" {
		return decimal.Zero, false, nil
	}
	d, fail := CheckDecimalField(value, fieldName)
	if fail != nil {
		return decimal.Zero, false, fail
	}
	return d, true, nil
}

// CheckDateField parses order_date against OrderDateFormat. The round-trip
// comparison rejects dates the parser silently normalizes (e.g. 2024-02-31).
// An empty value passes here; CheckMandatoryField owns that failure.
func CheckDateField(value, fieldName string) (time.Time, *Failure) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(OrderDateFormat, trimmed)
	if err != nil || t.Format(OrderDateFormat) != trimmed {
		return time.Time{}, &Failure{
			Reason: models.ReasonInvalidDateFormat,
			Field:  fieldName,
			Detail: fmt.Sprintf("'%s' is not a valid date (expected %s)", value, OrderDateFormat),
		}
	}
	return t, nil
}

// CheckCurrencyField normalizes the currency code to uppercase and verifies
// it is a plausible ISO 4217 code. An empty value passes here;
// CheckMandatoryField owns that failure.
func CheckCurrencyField(value string) (string, *Failure) {
	trimmed := strings.ToUpper(strings.TrimSpace(value))
	if trimmed == "" {
		return "", nil
	}
	if !currencyCodeRegex.MatchString(trimmed) {
		return "", &Failure{
			Reason: models.ReasonUnknownCurrency,
			Field:  "currency",
			Detail: fmt.Sprintf("'%s' is not a 3-letter currency code", value),
		}
	}
	return trimmed, nil
}
