package database

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered schema history of the event store. The FTS
// index uses external content so the bulk loader writes events once and
// the triggers keep the index in sync.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_events",
		SQL: `
			CREATE TABLE IF NOT EXISTS events (
				event_id TEXT NOT NULL UNIQUE,
				datetime TEXT NOT NULL,
				type TEXT NOT NULL,
				summary TEXT NOT NULL DEFAULT '',
				body TEXT,
				url TEXT NOT NULL DEFAULT '',
				location_name TEXT NOT NULL DEFAULT '',
				latitude REAL,
				longitude REAL
			);
			CREATE INDEX IF NOT EXISTS idx_events_datetime ON events(datetime);
			CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
			CREATE INDEX IF NOT EXISTS idx_events_location ON events(location_name COLLATE NOCASE);
		`,
	},
	{
		Version: 2,
		Name:    "create_events_fts",
		SQL: `
			CREATE VIRTUAL TABLE IF NOT EXISTS events_fts USING fts5(
				type, summary, body,
				content='events',
				content_rowid='rowid',
				tokenize='porter unicode61 remove_diacritics 2'
			);
			CREATE TRIGGER IF NOT EXISTS events_fts_ai AFTER INSERT ON events BEGIN
				INSERT INTO events_fts(rowid, type, summary, body)
				VALUES (new.rowid, new.type, new.summary, new.body);
			END;
			CREATE TRIGGER IF NOT EXISTS events_fts_ad AFTER DELETE ON events BEGIN
				INSERT INTO events_fts(events_fts, rowid, type, summary, body)
				VALUES ('delete', old.rowid, old.type, old.summary, old.body);
			END;
			CREATE TRIGGER IF NOT EXISTS events_fts_au AFTER UPDATE ON events BEGIN
				INSERT INTO events_fts(events_fts, rowid, type, summary, body)
				VALUES ('delete', old.rowid, old.type, old.summary, old.body);
				INSERT INTO events_fts(rowid, type, summary, body)
				VALUES (new.rowid, new.type, new.summary, new.body);
			END;
		`,
	},
	{
		Version: 3,
		Name:    "create_grid_cells",
		SQL: `
			CREATE TABLE IF NOT EXISTS event_cells (
				event_id TEXT NOT NULL,
				resolution INTEGER NOT NULL,
				h3_cell TEXT NOT NULL,
				PRIMARY KEY (event_id, resolution)
			);
			CREATE INDEX IF NOT EXISTS idx_event_cells_cell ON event_cells(resolution, h3_cell);
		`,
	},
}

// Migrate applies all pending migrations to the given database.
func Migrate(db *sql.DB) error {
	if err := initMigrationsTable(db); err != nil {
		return err
	}

	applied, err := appliedMigrations(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return err
		}
	}
	return nil
}

func initMigrationsTable(db *sql.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	_, err := db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

func appliedMigrations(db *sql.DB) (map[int]bool, error) {
	rows, err := db.Query("SELECT version FROM migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func applyMigration(db *sql.DB, m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := tx.Exec(m.SQL); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to execute migration %d: %w", m.Version, err)
	}

	if _, err := tx.Exec("INSERT INTO migrations (version, name) VALUES (?, ?)", m.Version, m.Name); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
	}

	slog.Info("applied migration", "version", m.Version, "name", m.Name)
	return nil
}
