package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations[i] brings the schema from user_version i to i+1. Released
// entries are never edited; changes go in a new entry.
var migrations = [][]string{
	{
		`CREATE TABLE chat_settings (
			chat_id         INTEGER PRIMARY KEY,
			welcome_enabled INTEGER NOT NULL DEFAULT 1,
			welcome_type    INTEGER NOT NULL DEFAULT 0,
			welcome_text    TEXT    NOT NULL DEFAULT '',
			welcome_file    TEXT    NOT NULL DEFAULT '',
			welcome_buttons TEXT    NOT NULL DEFAULT '[]',
			goodbye_enabled INTEGER NOT NULL DEFAULT 1,
			goodbye_type    INTEGER NOT NULL DEFAULT 0,
			goodbye_text    TEXT    NOT NULL DEFAULT '',
			goodbye_file    TEXT    NOT NULL DEFAULT '',
			goodbye_buttons TEXT    NOT NULL DEFAULT '[]',
			mute_policy     TEXT    NOT NULL DEFAULT 'off',
			clean_service   INTEGER NOT NULL DEFAULT 0,
			clean_welcome   INTEGER NOT NULL DEFAULT 0,
			last_welcome_id INTEGER NOT NULL DEFAULT 0,
			last_join_id    INTEGER NOT NULL DEFAULT 0,
			updated_at      TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		)`,
		`CREATE TABLE human_checks (
			user_id   INTEGER NOT NULL,
			chat_id   INTEGER NOT NULL,
			passed_at TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
			PRIMARY KEY (user_id, chat_id)
		)`,
	},
	{
		`CREATE TABLE notes (
			chat_id INTEGER NOT NULL,
			name    TEXT    NOT NULL,
			type    INTEGER NOT NULL DEFAULT 0,
			text    TEXT    NOT NULL DEFAULT '',
			file_id TEXT    NOT NULL DEFAULT '',
			buttons TEXT    NOT NULL DEFAULT '[]',
			PRIMARY KEY (chat_id, name)
		)`,
	},
	{
		`CREATE TABLE gbans (
			user_id    INTEGER PRIMARY KEY,
			reason     TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		)`,
	},
}

// schemaVersion is the user_version of a fully migrated database.
var schemaVersion = len(migrations)

func userVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("sqlite: read user_version: %w", err)
	}
	return v, nil
}

// migrate applies the migrations the database has not seen yet, each in
// its own transaction. A database newer than this binary is refused.
func migrate(ctx context.Context, db *sql.DB) error {
	current, err := userVersion(ctx, db)
	if err != nil {
		return err
	}
	if current > schemaVersion {
		return fmt.Errorf("sqlite: database schema version %d is newer than supported version %d", current, schemaVersion)
	}

	for v := current; v < schemaVersion; v++ {
		if err := applyMigration(ctx, db, v+1, migrations[v]); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, version int, stmts []string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: migration %d: %w", version, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migration %d: %w", version, err)
		}
	}
	// PRAGMA does not take bind parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("sqlite: migration %d: set user_version: %w", version, err)
	}
	return tx.Commit()
}
