package database

import (
	"fmt"
	"strings"

	"github.com/pixora-ai/pixora-api/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// sqliteDSN makes every transaction take the write lock up front so concurrent
// ledger writers queue instead of failing lock upgrades.
func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_busy_timeout=5000&_txlock=immediate&_foreign_keys=on"
}

func newSQLite(config models.DatabaseConfig) (*DB, error) {
	if config.FilePath == "" {
		return nil, fmt.Errorf("file_path is required for SQLite")
	}

	gormDB, err := gorm.Open(sqlite.Open(sqliteDSN(config.FilePath)), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	// SQLite has a single writer; one connection keeps in-memory databases shared too.
	if config.MaxOpenConns == 0 {
		config.MaxOpenConns = 1
	}

	db := &DB{
		DB:         gormDB,
		config:     config,
		driverName: "sqlite3",
	}

	db.setConnectionPool()

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping SQLite: %w", err)
	}

	return db, nil
}
