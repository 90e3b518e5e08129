// src/services/reference_service.go
package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/username/salespipe/src/logger"
	"github.com/username/salespipe/src/models"
)

const (
	ckProductRefTable      = "ref_product_table"
	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

// ReferenceService loads and session-caches the product reference table.
// Reference data is reloaded every run; the cache only spares repeated reads
// within a session. Lookups only: the pipeline never validates records
// against this table.
type ReferenceService struct {
	sessionCache *cache.Cache
	dataPath     string
}

// NewReferenceService creates a service reading reference data from dataPath.
func NewReferenceService(dataPath string) *ReferenceService {
	return &ReferenceService{
		sessionCache: cache.New(DefaultCacheExpiration, CacheCleanupInterval),
		dataPath:     dataPath,
	}
}

// Load reads the product reference CSV (product_id, product_name,
// product_reference) and caches the table keyed by product_id.
func (s *ReferenceService) Load() (map[string]models.ProductRef, error) {
	if cached, found := s.sessionCache.Get(ckProductRefTable); found {
		return cached.(map[string]models.ProductRef), nil
	}

	f, err := os.Open(s.dataPath)
	if err != nil {
		return nil, fmt.Errorf("reference service: failed to open %s: %w", s.dataPath, err)
	}
	defer f.Close()

	table, err := parseProductRefs(f)
	if err != nil {
		return nil, err
	}

	s.sessionCache.Set(ckProductRefTable, table, cache.DefaultExpiration)
	logger.L.Info("Product reference table loaded", "path", s.dataPath, "products", len(table))
	return table, nil
}

// Invalidate drops the cached table so the next Load rereads the file. The
// pipeline entrypoint calls this at the start of every run.
func (s *ReferenceService) Invalidate() {
	s.sessionCache.Delete(ckProductRefTable)
}

func parseProductRefs(r io.Reader) (map[string]models.ProductRef, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	// Header row
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return map[string]models.ProductRef{}, nil
		}
		return nil, fmt.Errorf("reference service: failed to read CSV header: %w", err)
	}

	table := make(map[string]models.ProductRef)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reference service: failed to read CSV record: %w", err)
		}
		if len(record) < 3 || record[0] == "" {
			continue
		}
		table[record[0]] = models.ProductRef{
			ProductID:        record[0],
			ProductName:      record[1],
			ProductReference: record[2],
		}
	}
	return table, nil
}
