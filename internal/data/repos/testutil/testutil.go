package testutil

import (
	"sync"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"os"

	"github.com/lumachat/luma-backend/internal/data/db"
	"github.com/lumachat/luma-backend/internal/platform/logger"
)

var (
	dbOnce sync.Once
	gdb    *gorm.DB
	dbErr  error

	logOnce sync.Once
	logg    *logger.Logger
	logErr  error
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

// DB returns a migrated test database. With TEST_POSTGRES_DSN set it runs
// against Postgres; otherwise it falls back to in-memory SQLite so the repo
// suite works without infrastructure.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	dbOnce.Do(func() {
		cfg := &gorm.Config{
			Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
			TranslateError: true,
		}

		var err error
		if dsn := os.Getenv("TEST_POSTGRES_DSN"); dsn != "" {
			gdb, err = gorm.Open(postgres.Open(dsn), cfg)
		} else {
			gdb, err = gorm.Open(sqlite.Open("file::memory:?cache=shared"), cfg)
		}
		if err != nil {
			dbErr = err
			return
		}

		dbErr = db.AutoMigrateAll(gdb)
	})

	if dbErr != nil {
		tb.Fatalf("failed to init test db: %v", dbErr)
	}
	return gdb
}

// Tx opens a transaction that is rolled back when the test ends, so tests
// never leak rows into each other.
func Tx(tb testing.TB, gdb *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := gdb.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}
