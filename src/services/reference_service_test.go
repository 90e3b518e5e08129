package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRefFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "products.csv")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestReferenceService_Load(t *testing.T) {
	path := writeRefFile(t, "product_id,product_name,product_reference\nPRD-A,Widget,REF-001\nPRD-B,Gadget,REF-002\n")
	svc := NewReferenceService(path)

	table, err := svc.Load()

	require.NoError(t, err)
	require.Len(t, table, 2)
	assert.Equal(t, "Widget", table["PRD-A"].ProductName)
	assert.Equal(t, "REF-002", table["PRD-B"].ProductReference)
}

func TestReferenceService_CachesWithinSession(t *testing.T) {
	path := writeRefFile(t, "product_id,product_name,product_reference\nPRD-A,Widget,REF-001\n")
	svc := NewReferenceService(path)

	_, err := svc.Load()
	require.NoError(t, err)

	// Rewrite the file; the cached table must still be served.
	require.NoError(t, os.WriteFile(path, []byte("product_id,product_name,product_reference\n"), 0o644))
	table, err := svc.Load()
	require.NoError(t, err)
	assert.Len(t, table, 1)

	// Invalidate forces a reread, as happens at the start of every run.
	svc.Invalidate()
	table, err = svc.Load()
	require.NoError(t, err)
	assert.Empty(t, table)
}

func TestReferenceService_SkipsMalformedRows(t *testing.T) {
	path := writeRefFile(t, "product_id,product_name,product_reference\n,NoID,REF-001\nPRD-B,Gadget,REF-002\n")
	svc := NewReferenceService(path)

	table, err := svc.Load()

	require.NoError(t, err)
	require.Len(t, table, 1)
	assert.Contains(t, table, "PRD-B")
}

func TestReferenceService_MissingFile(t *testing.T) {
	svc := NewReferenceService(filepath.Join(t.TempDir(), "missing.csv"))
	_, err := svc.Load()
	assert.Error(t, err)
}
