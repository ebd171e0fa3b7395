// Package dbtest opens throwaway in-memory SQLite stores for tests.
package dbtest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/iliyamo/tradeflow/internal/repository"
)

// New returns a migrated Store backed by a private in-memory database. A
// single connection is used, so concurrent callers run one transaction at
// a time: tests built on it cover the serialized path only. Lost races on
// MySQL or PostgreSQL surface as serialization failures, which the
// repositories map onto ErrConflict and ErrDuplicate.
func New(t testing.TB) *repository.Store {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to resolve sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store := repository.NewStore(db)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	return store
}
