// src/database/sink.go
package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/username/salespipe/src/logger"
	"github.com/username/salespipe/src/models"
)

// RunSink writes one completed pipeline run into the target schema. The
// whole run goes out in a single transaction: the threshold verdict was
// already settled upstream, so either everything lands or nothing does.
type RunSink struct {
	db *sql.DB
}

// NewRunSink creates a sink over an initialized database connection.
func NewRunSink(db *sql.DB) *RunSink {
	return &RunSink{db: db}
}

// CommitRun persists the accepted orders and line items, the quarantine
// records, and the product reference rows referenced by the run's lines.
func (s *RunSink) CommitRun(
	orders []models.Order,
	lines []models.OrderProduct,
	quarantine []models.QuarantineRecord,
	productRefs map[string]models.ProductRef,
) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("sink: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insertedAt := time.Now().UTC()

	if err := s.upsertProductRefs(tx, lines, productRefs, insertedAt); err != nil {
		return err
	}

	orderStmt, err := tx.Prepare(`
		INSERT INTO orders (order_id, customer_id, total_sales_amount_usd, region, order_date, inserted_datetime)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sink: failed to prepare orders insert: %w", err)
	}
	defer orderStmt.Close()

	for _, o := range orders {
		if _, err := orderStmt.Exec(
			o.OrderID, o.CustomerID, o.TotalSalesAmountUSD.String(),
			o.Region, o.OrderDate.Format("2006-01-02"), insertedAt,
		); err != nil {
			return fmt.Errorf("sink: failed to insert order %s: %w", o.OrderID, err)
		}
	}

	lineStmt, err := tx.Prepare(`
		INSERT INTO order_product (order_product_id, order_id, product_id, sale_amount_usd, sale_amount,
			base_currency, exchange_rate, exchange_timestamp, discount, inserted_datetime)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sink: failed to prepare order_product insert: %w", err)
	}
	defer lineStmt.Close()

	for _, l := range lines {
		var discount any
		if l.Discount != nil {
			discount = l.Discount.String()
		}
		if _, err := lineStmt.Exec(
			l.OrderProductID, l.OrderID, l.ProductID,
			l.SaleAmountUSD.String(), l.SaleAmount.String(),
			l.BaseCurrency, l.ExchangeRate.String(), l.ExchangeTimestamp,
			discount, insertedAt,
		); err != nil {
			return fmt.Errorf("sink: failed to insert order product %s: %w", l.OrderProductID, err)
		}
	}

	quarStmt, err := tx.Prepare(`
		INSERT INTO quarantine (order_id, product_id, raw_record, reasons, stage, quarantined_at, inserted_datetime)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sink: failed to prepare quarantine insert: %w", err)
	}
	defer quarStmt.Close()

	for _, q := range quarantine {
		reasons := make([]string, len(q.Reasons))
		for i, r := range q.Reasons {
			reasons[i] = string(r)
		}
		if _, err := quarStmt.Exec(
			q.Record.OrderID, q.Record.ProductID, q.Record.RawLine,
			strings.Join(reasons, ","), string(q.Stage), q.QuarantinedAt, insertedAt,
		); err != nil {
			return fmt.Errorf("sink: failed to insert quarantine record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sink: failed to commit run: %w", err)
	}

	logger.L.Info("Run committed to database",
		"orders", len(orders), "lines", len(lines), "quarantined", len(quarantine))
	return nil
}

// upsertProductRefs writes reference rows for every product that appears in
// the run's accepted lines. Products without a reference entry are skipped;
// the reference table is lookups only and never gates the pipeline.
func (s *RunSink) upsertProductRefs(
	tx *sql.Tx,
	lines []models.OrderProduct,
	productRefs map[string]models.ProductRef,
	insertedAt time.Time,
) error {
	stmt, err := tx.Prepare(`
		INSERT INTO product_ref (product_id, product_name, product_reference, inserted_datetime)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(product_id) DO UPDATE SET
			product_name = excluded.product_name,
			product_reference = excluded.product_reference,
			inserted_datetime = excluded.inserted_datetime`)
	if err != nil {
		return fmt.Errorf("sink: failed to prepare product_ref upsert: %w", err)
	}
	defer stmt.Close()

	written := make(map[string]struct{})
	for _, l := range lines {
		if _, done := written[l.ProductID]; done {
			continue
		}
		ref, ok := productRefs[l.ProductID]
		if !ok {
			continue
		}
		if _, err := stmt.Exec(ref.ProductID, ref.ProductName, ref.ProductReference, insertedAt); err != nil {
			return fmt.Errorf("sink: failed to upsert product ref %s: %w", ref.ProductID, err)
		}
		written[l.ProductID] = struct{}{}
	}
	return nil
}
