// src/parsers/salescsv/parser.go
package salescsv

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/username/salespipe/src/models"
)

// Column order of the sales export:
// order_id, product_id, customer_id, sale_amount, currency, discount, order_date, region
const expectedColumns = 8

// Parser reads a sales CSV export into raw records. No validation happens
// here: every field stays text, and structurally short rows are padded so the
// validators can reject them with proper reason codes instead of the parser
// silently dropping them.
type Parser struct{}

// NewParser creates a new instance of the sales CSV parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse reads the full CSV and converts each data row into a RawSaleRecord.
func (p *Parser) Parse(file io.Reader) ([]models.RawSaleRecord, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields per record

	// Read and discard the header row
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("sales parser: input file is empty")
		}
		return nil, fmt.Errorf("sales parser: failed to read CSV header: %w", err)
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("sales parser: failed to read all CSV records: %w", err)
	}

	var raws []models.RawSaleRecord
	for _, record := range records {
		// Pad short rows; missing trailing fields become empty strings and
		// fail the mandatory-field validators downstream.
		for len(record) < expectedColumns {
			record = append(record, "")
		}
		raws = append(raws, models.RawSaleRecord{
			OrderID:    record[0],
			ProductID:  record[1],
			CustomerID: record[2],
			SaleAmount: record[3],
			Currency:   record[4],
			Discount:   record[5],
			OrderDate:  record[6],
			Region:     record[7],
			RawLine:    strings.Join(record, ","),
		})
	}

	return raws, nil
}
