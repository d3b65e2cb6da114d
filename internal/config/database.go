package config

import (
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"travel_tracker/internal/models"
)

// OpenDB connects to PostgreSQL through the lib/pq driver and, when
// enabled, migrates the travel tables.
func OpenDB(cfg DBConfig, migrate bool) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DriverName: "postgres",
		DSN:        cfg.DSN(),
	}), &gorm.Config{
		Logger: gormlogger.New(logrus.StandardLogger(), gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if migrate {
		if err := db.AutoMigrate(models.All()...); err != nil {
			return nil, fmt.Errorf("auto-migration failed: %w", err)
		}
		logrus.Info("Database schema migrated")
	}
	return db, nil
}

// CloseDB closes the pool underneath db.
func CloseDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
