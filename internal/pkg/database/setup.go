package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/ManuelReschke/EventFox/app/models"
	"github.com/ManuelReschke/EventFox/internal/pkg/env"
)

const maxRetries = 5

var DB *gorm.DB

// GetDB returns the shared connection set up by SetupDatabase.
func GetDB() *gorm.DB {
	return DB
}

// SetDB replaces the shared connection, e.g. with a mock in tests.
func SetDB(db *gorm.DB) {
	DB = db
}

func dsn() string {
	// "user:pass@tcp(127.0.0.1:3306)/dbname?charset=utf8mb4&parseTime=True&loc=Local"
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		env.GetEnv("DB_USER", ""),
		env.GetEnv("DB_PASSWORD", ""),
		env.GetEnv("DB_HOST", "127.0.0.1"),
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", ""),
	)
}

// SetupDatabase connects to MySQL with exponential backoff and migrates the
// payment schema. It panics when the database stays unreachable.
func SetupDatabase() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		db, err := gorm.Open(mysql.New(mysql.Config{
			DSN:                       dsn(), // data source name
			DefaultStringSize:         256,   // default size for string fields
			DisableDatetimePrecision:  true,  // disable datetime precision, which not supported before MySQL 5.6
			DontSupportRenameIndex:    true,  // drop & create when rename index, rename index not supported before MySQL 5.7, MariaDB
			DontSupportRenameColumn:   true,  // `change` when rename column, rename column not supported before MySQL 8, MariaDB
			SkipInitializeWithVersion: false, // auto configure based on currently MySQL version
		}), &gorm.Config{})
		if err != nil {
			log.Printf("Failed to connect to database (try %d/%d): %v", attempt, maxRetries+1, err)
			return err
		}
		DB = db
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx))
	if err != nil {
		panic(err)
	}

	if env.GetEnvBool("DB_AUTO_MIGRATE", env.IsDev()) {
		if err := AutoMigrate(DB); err != nil {
			panic(err)
		}
	}
}

// AutoMigrate creates or updates the tables of the payment pipeline.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Event{},
		&models.Movie{},
		&models.StoragePlan{},
		&models.UserStoragePlan{},
		&models.Payment{},
		&models.Ticket{},
		&models.PurchasedVideo{},
		&models.StorageCredit{},
	)
}
