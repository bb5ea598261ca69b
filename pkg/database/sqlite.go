package database

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SQLiteFile is the database file created inside the data directory.
const SQLiteFile = "polls.db"

// NewSQLite opens the embedded sqlite database under dataDir, creating the directory if needed.
// An empty dataDir opens a private in-memory database.
func NewSQLite(dataDir string, logger *zap.Logger) (*gorm.DB, error) {
	dsn := "file::memory:"
	if dataDir != "" {
		if _, err := os.Stat(dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read data dir: %w", err)
			}
			if err := os.MkdirAll(dataDir, fs.ModePerm); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		// WAL journal mode, wait on a busy writer instead of failing
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", filepath.Join(dataDir, SQLiteFile))
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	// One writer at a time; also keeps an in-memory database alive on a single connection.
	sqlDB.SetMaxOpenConns(1)

	if logger != nil {
		logger.Info("SQLite database opened", zap.String("dsn", dsn))
	}
	return db, nil
}
