package database

import (
	"fmt"
	"time"

	"github.com/pathakanu/medguardian/internal/model"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLitePath is the database file used when no DATABASE_URL is configured.
const SQLitePath = "medguardian.db"

// New opens the documents and deadlines database and migrates its schema.
// A non-empty databaseURL selects PostgreSQL, otherwise the local SQLite file
// is used with a single writer connection.
func New(databaseURL string, log *zap.Logger) (*gorm.DB, error) {
	log = log.Named("database")
	gormConfig := &gorm.Config{Logger: gormLogger(log)}

	dialector := sqlite.Open(SQLitePath + "?_busy_timeout=5000")
	if databaseURL != "" {
		dialector = postgres.Open(databaseURL)
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialector.Name(), err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sql handle: %w", err)
	}
	if db.Dialector.Name() == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info("database ready", zap.String("dialector", db.Dialector.Name()))
	return db, nil
}

// Migrate creates the documents and deadlines tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.Document{}, &model.Deadline{})
}

// gormLogger routes slow queries and errors through zap. Missing rows are
// normal for deadline lookups and are not logged.
func gormLogger(log *zap.Logger) logger.Interface {
	return logger.New(zap.NewStdLog(log), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}
