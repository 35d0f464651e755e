//go:build integration
// +build integration

package testutil

import (
	"context"
	"testing"
)

// TestSetupTestDB_Integration verifies that SetupTestDB creates a functional
// PostgreSQL container with pgvector and the documents schema.
//
// Run with: go test -tags=integration ./internal/testutil -v
func TestSetupTestDB_Integration(t *testing.T) {
	db, cleanup := SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	if err := db.Pool.Ping(ctx); err != nil {
		t.Fatalf("Pool.Ping() unexpected error: %v", err)
	}

	// pgvector extension installed
	var hasVector bool
	err := db.Pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'vector')").Scan(&hasVector)
	if err != nil {
		t.Fatalf("checking vector extension: %v", err)
	}
	if !hasVector {
		t.Error("pgvector extension not installed")
	}

	// documents table exists
	var count int
	if err := db.Pool.QueryRow(ctx, "SELECT count(*) FROM documents").Scan(&count); err != nil {
		t.Fatalf("querying documents table: %v", err)
	}
	if count != 0 {
		t.Errorf("fresh documents table has %d rows, want 0", count)
	}
}
