package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/cockroachdb/errors"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Feed history",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS feed_entries (
					id TEXT PRIMARY KEY,
					source TEXT NOT NULL,
					status TEXT NOT NULL,
					display_amount REAL NOT NULL,
					fraud INTEGER,
					fraud_score REAL,
					legitimate_probability REAL,
					label TEXT,
					confidence TEXT,
					risk_level TEXT,
					transaction_id TEXT,
					classified_at DATETIME,
					error TEXT,
					error_kind TEXT,
					submitted_at DATETIME NOT NULL,
					resolved_at DATETIME,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_feed_entries_status ON feed_entries(status)`,
				`CREATE INDEX idx_feed_entries_submitted ON feed_entries(submitted_at)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return errors.Wrap(err, "failed to execute query")
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Track cold-start retries per entry",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`ALTER TABLE feed_entries ADD COLUMN retries INTEGER NOT NULL DEFAULT 0`); err != nil {
				return errors.Wrap(err, "failed to add retries column")
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Index feed entries by source",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_feed_entries_source ON feed_entries(source)`); err != nil {
				return errors.Wrap(err, "failed to create source index")
			}
			return nil
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return errors.Wrap(txErr, "failed to begin transaction")
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return errors.Wrapf(upErr, "migration %d failed", migration.Version)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return errors.Wrap(execErr, "failed to update schema version")
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return errors.Wrapf(commitErr, "failed to commit migration %d", migration.Version)
		}

		slog.Debug("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if finalVersion != ExpectedSchemaVersion {
		return errors.Newf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion returns the applied schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, errors.Wrap(err, "failed to get schema version")
	}
	return version, nil
}
