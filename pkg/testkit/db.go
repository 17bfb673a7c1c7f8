package testkit

import (
	"path/filepath"
	"testing"

	"seatdesk/pkg/persistence"
)

// OpenDatabase resets the persistence singleton onto a fresh temp database
// and returns its operations handle. Cleanup closes the connection.
func OpenDatabase(t *testing.T) *persistence.DatabaseOperations {
	t.Helper()

	if err := persistence.Reset(); err != nil {
		t.Fatalf("failed to reset database singleton: %v", err)
	}

	dbPath := filepath.Join(t.TempDir(), "test.db")
	if err := persistence.Initialize(dbPath); err != nil {
		t.Fatalf("failed to initialize test database: %v", err)
	}
	t.Cleanup(func() { _ = persistence.Reset() })

	return persistence.Ops()
}
