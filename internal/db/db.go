// Package db stores file requests in sqlite through gorm. The default DSN
// is an in-memory database, so state still ends with the process.
package db

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

// Open connects to the sqlite database at dsn and migrates the schema. The
// pool is capped at one connection: an in-memory database exists per
// connection, and a single connection serializes transactions.
func Open(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = MemoryDSN
	}
	d, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := d.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := d.AutoMigrate(&FileRequest{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return d, nil
}
