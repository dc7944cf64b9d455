package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Wikid82/phishguard/internal/config"
	"github.com/Wikid82/phishguard/internal/database"
	"github.com/Wikid82/phishguard/internal/models"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestSeed_Idempotent(t *testing.T) {
	db := openDB(t)
	cfg := config.Config{JWTSecret: "test-secret"}

	var out bytes.Buffer
	require.NoError(t, seed(db, cfg, &out, "root@example.com", "password123"))
	assert.Contains(t, out.String(), "Created default admin: root@example.com")

	out.Reset()
	require.NoError(t, seed(db, cfg, &out, "root@example.com", "password123"))
	assert.Contains(t, out.String(), "Training cases added: 0")
	assert.Contains(t, out.String(), "User already exists")

	var blacklisted int64
	require.NoError(t, db.Model(&models.BlacklistEntry{}).Count(&blacklisted).Error)
	assert.Equal(t, int64(len(sampleBlacklist)), blacklisted)

	var admin models.User
	require.NoError(t, db.Where("email = ?", "root@example.com").First(&admin).Error)
	assert.Equal(t, models.RoleAdmin, admin.Role)
}

func TestSeed_NoPasswordSkipsAdmin(t *testing.T) {
	db := openDB(t)

	var out bytes.Buffer
	require.NoError(t, seed(db, config.Config{JWTSecret: "x"}, &out, "", ""))
	assert.Contains(t, out.String(), "skipping admin account")

	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.Zero(t, users)
}
