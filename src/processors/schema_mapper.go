// src/processors/schema_mapper.go
package processors

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/shopspring/decimal"

	"github.com/username/salespipe/src/logger"
	"github.com/username/salespipe/src/models"
)

// SchemaMapper folds the run's enriched line-level records into Order
// aggregates and OrderProduct line items for the target schema.
type SchemaMapper struct {
	now func() time.Time
}

// NewSchemaMapper creates a mapper.
func NewSchemaMapper() *SchemaMapper {
	return &SchemaMapper{now: time.Now}
}

// MapResult carries the mapper's three outputs. Quarantined holds whole
// order groups whose lines disagreed on customer_id, region or order_date;
// such a group is never partially accepted.
type MapResult struct {
	Orders      []models.Order
	Lines       []models.OrderProduct
	Quarantined []models.QuarantineRecord
}

// OrderProductID derives the surrogate key for a line item from its natural
// composite key. The derivation is a plain hash of the key, so re-running
// the mapper on identical input yields identical IDs.
func OrderProductID(orderID, productID string) string {
	hash := sha256.Sum256([]byte(orderID + "|" + productID))
	return hex.EncodeToString(hash[:])
}

// Map groups enriched records by order_id, checks intra-order consistency,
// and computes each order's USD total as the decimal sum of its lines.
// Groups are emitted in first-seen input order.
func (m *SchemaMapper) Map(enriched []models.EnrichedRecord) MapResult {
	groups := make(map[string][]models.EnrichedRecord)
	var orderIDs []string
	for _, rec := range enriched {
		if _, seen := groups[rec.OrderID]; !seen {
			orderIDs = append(orderIDs, rec.OrderID)
		}
		groups[rec.OrderID] = append(groups[rec.OrderID], rec)
	}

	var result MapResult
	for _, orderID := range orderIDs {
		group := groups[orderID]

		if !groupConsistent(group) {
			logger.L.Warn("Order group failed integrity check, quarantining whole order",
				"orderID", orderID, "lines", len(group))
			quarantinedAt := m.now()
			for _, rec := range group {
				result.Quarantined = append(result.Quarantined, models.QuarantineRecord{
					Record:        rec.Raw,
					Reasons:       []models.ReasonCode{models.ReasonIntegrityMismatch},
					Stage:         models.StageMapping,
					QuarantinedAt: quarantinedAt,
				})
			}
			continue
		}

		total := decimal.Zero
		for _, rec := range group {
			line := models.OrderProduct{
				OrderProductID:    OrderProductID(rec.OrderID, rec.ProductID),
				OrderID:           rec.OrderID,
				ProductID:         rec.ProductID,
				SaleAmountUSD:     rec.SaleAmountUSD,
				SaleAmount:        rec.SaleAmount,
				BaseCurrency:      rec.BaseCurrency,
				ExchangeRate:      rec.ExchangeRate,
				ExchangeTimestamp: rec.ExchangeTimestamp,
			}
			if rec.HasDiscount {
				d := rec.Discount
				line.Discount = &d
			}
			result.Lines = append(result.Lines, line)
			total = total.Add(rec.SaleAmountUSD)
		}

		head := group[0]
		result.Orders = append(result.Orders, models.Order{
			OrderID:             orderID,
			CustomerID:          head.CustomerID,
			TotalSalesAmountUSD: total,
			Region:              head.Region,
			OrderDate:           head.OrderDate,
		})
	}

	return result
}

// groupConsistent verifies that every line of an order agrees on the
// order-level attributes.
func groupConsistent(group []models.EnrichedRecord) bool {
	head := group[0]
	for _, rec := range group[1:] {
		if rec.CustomerID != head.CustomerID ||
			rec.Region != head.Region ||
			!rec.OrderDate.Equal(head.OrderDate) {
			return false
		}
	}
	return true
}
