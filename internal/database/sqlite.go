package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	_ "modernc.org/sqlite"
)

var (
	db *sql.DB
	mu sync.Mutex
)

// ErrNotInitialized is returned when the event store handle is requested
// before Init has succeeded. It maps to a service-unavailable condition,
// distinct from caller errors.
var ErrNotInitialized = errors.New("database not initialized")

// Config holds database configuration
type Config struct {
	Path string
	// MustExist fails Init when the database file is absent instead of
	// creating an empty one. Set by the batch commands, which never own
	// the event store.
	MustExist bool
}

// Init initializes the database connection. A failed Init leaves no
// handle behind: Get keeps reporting not-ready and a later Init may
// retry once the path becomes usable.
func Init(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	if db != nil {
		return nil
	}

	if cfg.MustExist {
		if _, err := os.Stat(cfg.Path); err != nil {
			return fmt.Errorf("event store not found: %w", err)
		}
	}

	handle, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return err
	}

	handle.SetMaxOpenConns(10)
	handle.SetMaxIdleConns(5)

	// WAL keeps concurrent readers safe while a batch run writes
	if _, err := handle.Exec("PRAGMA journal_mode=WAL"); err != nil {
		handle.Close()
		return err
	}
	if _, err := handle.Exec("PRAGMA foreign_keys=ON"); err != nil {
		handle.Close()
		return err
	}
	if err := handle.Ping(); err != nil {
		handle.Close()
		return err
	}

	db = handle
	slog.Info("database initialized", "path", cfg.Path)
	return nil
}

// Get returns the database instance, or ErrNotInitialized before a
// successful Init.
func Get() (*sql.DB, error) {
	mu.Lock()
	defer mu.Unlock()
	if db == nil {
		return nil, ErrNotInitialized
	}
	return db, nil
}

// Close closes the database connection and returns the package to the
// not-ready state.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if db == nil {
		return nil
	}
	err := db.Close()
	db = nil
	return err
}

// Transaction executes a function within a database transaction
func Transaction(fn func(*sql.Tx) error) error {
	handle, err := Get()
	if err != nil {
		return err
	}

	tx, err := handle.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
