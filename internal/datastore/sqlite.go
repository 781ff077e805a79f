package datastore

import (
	"fmt"
	"path/filepath"

	"github.com/insectos/insectos-go/internal/conf"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SQLiteStore implements Interface for SQLite
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

// Open sets up the SQLite database connection and migrates the schema.
func (store *SQLiteStore) Open() error {
	dbPath := store.Settings.Output.SQLite.Path
	if dbPath == "" {
		return fmt.Errorf("sqlite database path is not configured")
	}
	absolutePath, err := filepath.Abs(dbPath)
	if err != nil {
		absolutePath = dbPath
	}

	db, err := gorm.Open(sqlite.Open(absolutePath), &gorm.Config{Logger: createGormLogger()})
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}

	store.DB = db
	return performAutoMigration(db, store.Settings.Debug, "SQLite")
}

// Close is a no-op for SQLite, the connection is released on process exit.
func (store *SQLiteStore) Close() error {
	return nil
}
