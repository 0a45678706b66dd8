// Package dbtest opens throwaway SQLite databases carrying the production
// schema for repository and service tests.
package dbtest

import (
	"context"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/srms-platform/srms-backend/pkg/db"
	"github.com/srms-platform/srms-backend/pkg/migrate"
)

var nameReplacer = strings.NewReplacer("/", "_", " ", "_", "#", "_")

// Open returns a client over an in-memory database private to t with every
// embedded migration applied.
func Open(t testing.TB) *db.Client {
	t.Helper()

	dsn := "file:" + nameReplacer.Replace(t.Name()) + "?mode=memory&cache=shared&_foreign_keys=on"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migrate.Apply(context.Background(), sqlDB, "sqlite3"); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db.NewFromGorm(conn)
}
