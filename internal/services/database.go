package services

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/openpayflow/orchestrator/internal/models"
)

// InitDB initializes the database connection with connection pooling
func InitDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	// Get underlying sql.DB to configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// Connection pool settings
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Println("Database connection established")
	return db, nil
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	log.Println("Running database migrations...")

	err := db.AutoMigrate(
		&models.Merchant{},
		&models.Payment{},
		&models.PaymentAttempt{},
		&models.Refund{},
		&models.Event{},
		&models.WebhookEndpoint{},
		&models.WebhookDelivery{},
		&models.Outbox{},
	)
	if err != nil {
		return err
	}

	log.Println("Database migrations completed")
	return nil
}

// InitSQLiteDB opens a fresh in-memory SQLite database for tests, letting
// the transactional invariants in package tests run without a live
// Postgres. The driver is gorm.io/driver/sqlite, which wraps the cgo-based
// github.com/mattn/go-sqlite3, so it needs CGO_ENABLED=1. Each call gets
// its own uniquely-named shared cache so concurrent or sequential test functions never see each
// other's rows, and the pool is capped at one connection since SQLite's
// in-memory databases are per-connection unless explicitly shared.
func InitSQLiteDB() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
