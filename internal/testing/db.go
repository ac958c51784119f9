// Package testing provides testing utilities and helpers for the screener project.
package testing

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aristath/screener/internal/database"
)

// SeedDate is the as-of date used for demo data in tests. Quarter-range
// queries in tests should compile with a clock fixed to this date.
var SeedDate = time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

// NewTestDB creates a file-backed SQLite database for testing with automatic schema migration.
// Returns the database instance and a cleanup function that closes the connection
// and removes the file.
//
// Supported schema names:
//   - "fundamentals" - applies fundamentals_schema.sql
//   - Unknown names - creates empty database (no schema applied)
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	// Temporary files keep tests isolated from each other
	tmpFile, err := os.CreateTemp("", fmt.Sprintf("test_%s_*.db", name))
	if err != nil {
		t.Fatalf("Failed to create temporary database file: %v", err)
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()

	db, err := database.New(database.Config{
		Path:    tmpPath,
		Profile: database.ProfileEphemeral,
		Name:    name,
	})
	if err != nil {
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	return db, func() {
		if err := db.Close(); err != nil {
			// Cleanup should be idempotent
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
		_ = os.Remove(tmpPath + "-wal")
		_ = os.Remove(tmpPath + "-shm")
		if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
			t.Logf("Warning: Failed to remove temporary database file %s: %v", tmpPath, err)
		}
	}
}

// NewSeededDB returns a fundamentals database loaded with the demo universe as of SeedDate.
func NewSeededDB(t *testing.T) (*database.DB, func()) {
	t.Helper()

	db, cleanup := NewTestDB(t, "fundamentals")
	if err := database.SeedFundamentals(context.Background(), db, database.DemoFundamentals(), SeedDate); err != nil {
		cleanup()
		t.Fatalf("Failed to seed test database: %v", err)
	}
	return db, cleanup
}

// FixedClock returns a clock function that always reports SeedDate.
func FixedClock() func() time.Time {
	return func() time.Time { return SeedDate }
}
