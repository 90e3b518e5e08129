package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReasonCode identifies why a record was quarantined. The codes are stable
// identifiers that end up in the quarantine table, so operators can tell
// business-rule rejects apart from API outages.
type ReasonCode string

const (
	ReasonMissingField         ReasonCode = "MISSING_FIELD"
	ReasonDuplicateKey         ReasonCode = "DUPLICATE_KEY"
	ReasonInvalidNumericFormat ReasonCode = "INVALID_NUMERIC_FORMAT"
	ReasonInvalidDateFormat    ReasonCode = "INVALID_DATE_FORMAT"
	ReasonUnknownCurrency      ReasonCode = "UNKNOWN_CURRENCY"
	// ReasonNegativeThreshold is reserved. Negative amounts are legitimate
	// refunds and must not be rejected by default.
	ReasonNegativeThreshold          ReasonCode = "NEGATIVE_THRESHOLD_VIOLATION"
	ReasonExternalServiceUnavailable ReasonCode = "EXTERNAL_SERVICE_UNAVAILABLE"
	ReasonIntegrityMismatch          ReasonCode = "INTEGRITY_MISMATCH"
)

// PipelineStage records where in the run a record was quarantined.
type PipelineStage string

const (
	StageValidation PipelineStage = "validation"
	StageEnrichment PipelineStage = "enrichment"
	StageMapping    PipelineStage = "mapping"
)

// ValidatedRecord is a RawSaleRecord whose fields parsed cleanly. Amounts are
// decimal from here on; float64 never touches money.
type ValidatedRecord struct {
	OrderID     string          `json:"order_id"`
	ProductID   string          `json:"product_id"`
	CustomerID  string          `json:"customer_id"`
	SaleAmount  decimal.Decimal `json:"sale_amount"`
	Currency    string          `json:"currency"` // Normalized to uppercase
	Discount    decimal.Decimal `json:"discount"`
	HasDiscount bool            `json:"has_discount"`
	OrderDate   time.Time       `json:"order_date"`
	Region      string          `json:"region"`
	Raw         RawSaleRecord   `json:"-"`
}

// QuarantineRecord holds a rejected record together with every rule it
// failed, in rule order, and the timestamp of classification (not of input).
type QuarantineRecord struct {
	Record        RawSaleRecord `json:"record"`
	Reasons       []ReasonCode  `json:"reasons"`
	Stage         PipelineStage `json:"stage"`
	QuarantinedAt time.Time     `json:"quarantined_at"`
}

// ValidationOutcome is the classification of one raw record: exactly one of
// Valid or Quarantined is set.
type ValidationOutcome struct {
	Valid       *ValidatedRecord
	Quarantined *QuarantineRecord
}

// IsValid reports whether the record survived validation.
func (o ValidationOutcome) IsValid() bool { return o.Valid != nil }
