// src/validation/record_validator.go
package validation

import (
	"strings"
	"sync"
	"time"

	"github.com/username/salespipe/src/models"
)

// KeySet is the accumulator of composite keys already claimed by valid
// records in this run. It is an explicit structure (not ambient state) so
// duplicate logic can be tested with a synthetic set, and mutex-guarded so a
// future parallel validation pass can merge into it safely.
type KeySet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewKeySet returns an empty key set.
func NewKeySet() *KeySet {
	return &KeySet{keys: make(map[string]struct{})}
}

// Contains reports whether the key has been claimed.
func (s *KeySet) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[key]
	return ok
}

// Add claims a key.
func (s *KeySet) Add(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = struct{}{}
}

// Len returns the number of claimed keys.
func (s *KeySet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

// RecordValidator classifies raw records as valid or quarantined. One
// instance is scoped to one pipeline run.
type RecordValidator struct {
	seen *KeySet
	now  func() time.Time // Injectable clock for tests
}

// NewRecordValidator creates a validator with a fresh seen-keys set.
func NewRecordValidator() *RecordValidator {
	return &RecordValidator{seen: NewKeySet(), now: time.Now}
}

// NewRecordValidatorWithClock creates a validator using the given clock for
// quarantine timestamps.
func NewRecordValidatorWithClock(now func() time.Time) *RecordValidator {
	return &RecordValidator{seen: NewKeySet(), now: now}
}

// Validate runs every field validator against the record, collecting all
// failures rather than stopping at the first, then applies the duplicate
// check against the seen-keys set. The key is claimed only when every
// non-duplicate check passed, so a malformed record cannot block a later
// well-formed record with the same key.
func (v *RecordValidator) Validate(raw models.RawSaleRecord) models.ValidationOutcome {
	var failures []*Failure

	collect := func(f *Failure) {
		if f != nil {
			failures = append(failures, f)
		}
	}

	collect(CheckMandatoryField(raw.OrderID, "order_id"))
	collect(CheckMandatoryField(raw.ProductID, "product_id"))
	collect(CheckMandatoryField(raw.CustomerID, "customer_id"))
	collect(CheckMandatoryField(raw.SaleAmount, "sale_amount"))
	collect(CheckMandatoryField(raw.Currency, "currency"))
	collect(CheckMandatoryField(raw.OrderDate, "order_date"))

	saleAmount, fail := CheckDecimalField(raw.SaleAmount, "sale_amount")
	collect(fail)

	discount, hasDiscount, fail2 := CheckOptionalDecimalField(raw.Discount, "discount")
	collect(fail2)

	orderDate, fail3 := CheckDateField(raw.OrderDate, "order_date")
	collect(fail3)

	currency, fail4 := CheckCurrencyField(raw.Currency)
	collect(fail4)

	key := raw.CompositeKey()
	isDuplicate := v.seen.Contains(key)

	if len(failures) == 0 && !isDuplicate {
		// The first otherwise-clean occurrence of a key wins it.
		v.seen.Add(key)
		return models.ValidationOutcome{Valid: &models.ValidatedRecord{
			OrderID:     strings.TrimSpace(raw.OrderID),
			ProductID:   strings.TrimSpace(raw.ProductID),
			CustomerID:  strings.TrimSpace(raw.CustomerID),
			SaleAmount:  saleAmount,
			Currency:    currency,
			Discount:    discount,
			HasDiscount: hasDiscount,
			OrderDate:   orderDate,
			Region:      strings.TrimSpace(raw.Region),
			Raw:         raw,
		}}
	}

	reasons := make([]models.ReasonCode, 0, len(failures)+1)
	for _, f := range failures {
		reasons = append(reasons, f.Reason)
	}
	if isDuplicate {
		reasons = append(reasons, models.ReasonDuplicateKey)
	}

	return models.ValidationOutcome{Quarantined: &models.QuarantineRecord{
		Record:        raw,
		Reasons:       reasons,
		Stage:         models.StageValidation,
		QuarantinedAt: v.now(),
	}}
}
