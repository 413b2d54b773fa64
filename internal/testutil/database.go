// Package testutil provides shared test helpers: in-memory history databases,
// entry fixtures and a scripted classifier.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/fraudwatch/internal/model"
	"github.com/Veraticus/fraudwatch/internal/storage"
)

// TestDB is a migrated in-memory history database.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database.
// It automatically handles migrations and cleanup.
//
// Example:
//
//	db := testutil.SetupTestDB(t)
//	db.Seed(testutil.FlaggedEntry("a", 529, 0.97))
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	return SetupTestDBWithOptions(t, TestDBOptions{})
}

// TestDBOptions provides configuration options for test database setup.
type TestDBOptions struct {
	CustomSetup    func(context.Context, *storage.SQLiteStorage) error
	Entries        []model.FeedEntry
	SkipMigrations bool
}

// SetupTestDBWithOptions creates a test database with custom options.
func SetupTestDBWithOptions(t *testing.T, opts TestDBOptions) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx := context.Background()
	if !opts.SkipMigrations {
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
	}

	db := &TestDB{Storage: store, t: t}
	db.Seed(opts.Entries...)

	if opts.CustomSetup != nil {
		if err := opts.CustomSetup(ctx, store); err != nil {
			t.Fatalf("custom setup failed: %v", err)
		}
	}

	return db
}

// Seed saves entries or fails the test.
func (db *TestDB) Seed(entries ...model.FeedEntry) {
	db.t.Helper()
	for _, e := range entries {
		if err := db.Storage.SaveEntry(context.Background(), e); err != nil {
			db.t.Fatalf("failed to seed entry %q: %v", e.ID, err)
		}
	}
}

// MustList returns every stored entry or fails the test.
func (db *TestDB) MustList() []model.FeedEntry {
	db.t.Helper()
	entries, err := db.Storage.ListEntries(context.Background(), storage.ListOptions{})
	if err != nil {
		db.t.Fatalf("failed to list entries: %v", err)
	}
	return entries
}
