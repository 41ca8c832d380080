package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jmylchreest/xtreamer/internal/config"
	"github.com/jmylchreest/xtreamer/internal/models"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(config.DatabaseConfig{
		Driver:          "sqlite",
		DSN:             ":memory:",
		ConnMaxLifetime: time.Hour,
		LogLevel:        "silent",
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestNew_SQLite(t *testing.T) {
	db := setupTestDB(t)

	assert.NoError(t, db.Ping(context.Background()))
	assert.Equal(t, "sqlite", db.Driver())
	assert.True(t, db.Migrator().HasTable(&models.FavoriteEntry{}))
}

func TestNew_SQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xtreamer.db")
	db, err := New(config.DatabaseConfig{Driver: "sqlite", DSN: path, MaxOpenConns: 4, LogLevel: "silent"}, nil)
	require.NoError(t, err)
	defer db.Close()

	var journalMode string
	require.NoError(t, db.Raw("PRAGMA journal_mode").Scan(&journalMode).Error)
	assert.Equal(t, "wal", journalMode)
}

func TestNew_InvalidDriver(t *testing.T) {
	db, err := New(config.DatabaseConfig{Driver: "invalid", DSN: ":memory:"}, nil)
	assert.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestDB_Close(t *testing.T) {
	db, err := New(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:", LogLevel: "silent"}, nil)
	require.NoError(t, err)

	assert.NoError(t, db.Close())
	assert.Error(t, db.Ping(context.Background()))
}

func TestDB_Stats(t *testing.T) {
	db := setupTestDB(t)

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats["max_open_connections"])
	assert.Contains(t, stats, "in_use")
}

func TestDB_FavoriteEntryUniqueness(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	entry := models.FavoriteEntry{Store: models.FavoritesStore, Key: models.FavoriteChannelsKey, Value: "101"}
	require.NoError(t, db.WithContext(ctx).Create(&entry).Error)
	assert.False(t, entry.ID.IsZero())

	dup := models.FavoriteEntry{Store: models.FavoritesStore, Key: models.FavoriteChannelsKey, Value: "101"}
	assert.Error(t, db.WithContext(ctx).Create(&dup).Error)
}

func TestDB_Transaction(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := db.Transaction(ctx, func(tx *gorm.DB) error {
		return tx.Create(&models.FavoriteEntry{Store: "s", Key: "k", Value: "a"}).Error
	})
	require.NoError(t, err)

	forced := errors.New("forced rollback")
	err = db.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&models.FavoriteEntry{Store: "s", Key: "k", Value: "b"}).Error; err != nil {
			return err
		}
		return forced
	})
	assert.ErrorIs(t, err, forced)

	var count int64
	require.NoError(t, db.Model(&models.FavoriteEntry{}).Where("store = ?", "s").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGormLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected logger.LogLevel
	}{
		{"silent", logger.Silent},
		{"error", logger.Error},
		{"warn", logger.Warn},
		{"info", logger.Info},
		{"unknown", logger.Warn},
		{"", logger.Warn},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, gormLogLevel(tt.level))
		})
	}
}

func TestTruncateSQL(t *testing.T) {
	short := "SELECT 1"
	assert.Equal(t, short, truncateSQL(short))

	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	got := truncateSQL(string(long))
	assert.Len(t, got, maxSQLLogLength+len("... (truncated)"))
}
