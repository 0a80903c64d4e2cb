// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"quad/internal/config"
	"quad/internal/database"
	"quad/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestMessageKey is the message encryption secret used by test databases.
const TestMessageKey = "test-message-encryption-key"

var dbSeq atomic.Int64

// NewSQLiteDB opens a private in-memory database with the schema migrated
// and message encryption registered, exactly as production wiring does.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:quadtest%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	cfg := &config.Config{
		Env:                  "test",
		MessageEncryptionKey: TestMessageKey,
		DBMaxOpenConns:       1,
		DBMaxIdleConns:       1,
	}
	require.NoError(t, database.Prepare(db, cfg))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// CreateUser inserts a user with predictable credentials.
func CreateUser(t *testing.T, db *gorm.DB, username string, opts ...func(*models.User)) *models.User {
	t.Helper()
	u := &models.User{
		Username:    username,
		Email:       username + "@quad.test",
		Password:    "not-a-real-hash",
		DisplayName: username,
	}
	for _, opt := range opts {
		opt(u)
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// Connect inserts a connection edge with the given status.
func Connect(t *testing.T, db *gorm.DB, from, to uint, status models.ConnectionStatus) *models.Connection {
	t.Helper()
	c := &models.Connection{RequesterID: from, AddresseeID: to, Status: status}
	require.NoError(t, db.Omit("Requester", "Addressee").Create(c).Error)
	return c
}
