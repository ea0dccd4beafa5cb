// Package datastore persists per-user life lists through GORM, in SQLite or MySQL.
package datastore

import (
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/lifer/internal/errors"
	"github.com/tphakala/lifer/internal/logger"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// DefaultSlowQueryThreshold is the duration above which queries are logged as slow.
const DefaultSlowQueryThreshold = 200 * time.Millisecond

// GetLogger returns the datastore module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("datastore")
}

// Store is the GORM-backed life-list store.
type Store struct {
	DB *gorm.DB
}

// Open opens or creates the database at path and migrates the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.Newf("database path is required").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if path != MemoryPath {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.New(err).
					Component("datastore").
					Category(errors.CategoryFileIO).
					Context("operation", "create_database_dir").
					Context("path", dir).
					Build()
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, dbError(err, "open", "path", path)
	}

	if path == MemoryPath {
		// Every pooled connection would otherwise get its own empty database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, dbError(err, "open", "path", path)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return newStore(db, "sqlite", path)
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: logger.NewGormLogger(GetLogger(), DefaultSlowQueryThreshold),
	}
}

// newStore migrates the schema on an open connection.
func newStore(db *gorm.DB, backend, target string) (*Store, error) {
	store := &Store{DB: db}
	if err := store.migrate(); err != nil {
		_ = store.Close()
		return nil, err
	}

	GetLogger().Debug("database opened",
		logger.String("backend", backend),
		logger.String("target", target))
	return store, nil
}

func (s *Store) migrate() error {
	start := time.Now()
	if err := s.DB.AutoMigrate(&LifeListEntry{}, &LifeListImport{}, &UserSettings{}); err != nil {
		return dbError(err, "auto_migrate")
	}
	GetLogger().Debug("database migration completed", logger.Duration("duration", time.Since(start)))
	return nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	if s.DB == nil {
		return nil
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return dbError(err, "close")
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close")
	}
	return nil
}

// dbError creates a properly categorized database error with context
func dbError(err error, operation string, context ...any) error {
	builder := errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation)

	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}

	return builder.Build()
}
