package database

import (
	"fmt"

	"github.com/pixora-ai/pixora-api/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func mysqlDSN(config models.DatabaseConfig) string {
	if config.DSN != "" {
		return config.DSN
	}

	port := config.Port
	if port == 0 {
		port = 3306
	}

	return fmt.Sprintf(
		"%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		config.Username,
		config.Password,
		config.Host,
		port,
		config.Database,
	)
}

func newMySQL(config models.DatabaseConfig) (*DB, error) {
	gormDB, err := gorm.Open(mysql.Open(mysqlDSN(config)), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db := &DB{
		DB:         gormDB,
		config:     config,
		driverName: "mysql",
	}

	db.setConnectionPool()

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	return db, nil
}
