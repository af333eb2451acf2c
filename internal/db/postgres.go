package db

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"domiflash/internal/config"
	"domiflash/internal/models"
)

// ConnectWithRetry opens the postgres pool, retrying while the server comes up.
func ConnectWithRetry(cfg *config.Config, maxAttempts int, delay time.Duration, log logrus.FieldLogger) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	for i := 0; i < maxAttempts; i++ {
		db, err = gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Error),
		})
		if err == nil {
			sqlDB, err := db.DB()
			if err != nil {
				return nil, fmt.Errorf("db: access sql.DB: %w", err)
			}

			sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
			sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
			sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime())

			return db, nil
		}
		log.WithError(err).WithFields(logrus.Fields{
			"attempt": i + 1,
			"max":     maxAttempts,
		}).Warn("database connection failed")
		time.Sleep(delay)
	}
	return nil, fmt.Errorf("db: no connection after %d attempts: %w", maxAttempts, err)
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Restaurant{},
		&models.Category{},
		&models.Product{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
	)
}

// IsUniqueViolation reports whether err is a postgres unique constraint failure.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
