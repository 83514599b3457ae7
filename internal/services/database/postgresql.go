package database

import (
	"fmt"

	"github.com/pixora-ai/pixora-api/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// postgresDSN pins the session time zone so created_at ordering is stable across hosts.
func postgresDSN(config models.DatabaseConfig) string {
	if config.DSN != "" {
		return config.DSN
	}

	port := config.Port
	if port == 0 {
		port = 5432
	}

	sslMode := config.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		config.Host,
		port,
		config.Username,
		config.Password,
		config.Database,
		sslMode,
	)
}

func newPostgreSQL(config models.DatabaseConfig) (*DB, error) {
	gormDB, err := gorm.Open(postgres.Open(postgresDSN(config)), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL connection: %w", err)
	}

	db := &DB{
		DB:         gormDB,
		config:     config,
		driverName: "postgres",
	}

	db.setConnectionPool()

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	return db, nil
}
