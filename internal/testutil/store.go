package testutil

import (
	"context"
	"testing"

	"github.com/HerbHall/ihttstats/internal/services"
	"github.com/HerbHall/ihttstats/internal/store"
)

// NewStore creates an in-memory SQLiteStore for testing.
// The store is automatically closed when the test completes.
func NewStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	db, err := store.Open(context.Background(), store.Options{Path: ":memory:"})
	if err != nil {
		t.Fatalf("testutil.NewStore: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// NewExportRepository returns an export history repository backed by a
// migrated in-memory store.
func NewExportRepository(t *testing.T) *services.SQLiteExportRepository {
	t.Helper()
	db := NewStore(t)
	if err := db.Migrate(context.Background(), "reports", services.ExportMigrations); err != nil {
		t.Fatalf("testutil.NewExportRepository: migrate: %v", err)
	}
	return services.NewSQLiteExportRepository(db.DB())
}
