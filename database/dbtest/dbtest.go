// Package dbtest 提供测试用的 SQLite 数据库
package dbtest

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/anoixa/pattern-vault/database/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open 每个测试一个临时文件数据库，已完成迁移
// 单连接保证 SQLite 写入串行，并发测试不会出现 database is locked
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	dsn := fmt.Sprintf("%s?_busy_timeout=5000&_foreign_keys=on", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

// SeedUsers 创建 n 个测试用户，邮箱为 user<i>@example.com
func SeedUsers(t testing.TB, db *gorm.DB, n int) []models.User {
	t.Helper()
	users := make([]models.User, n)
	for i := range users {
		users[i] = models.User{Email: fmt.Sprintf("user%d@example.com", i), PasswordHash: "x"}
		require.NoError(t, db.Create(&users[i]).Error)
	}
	return users
}

// SeedGroup 直接写入一个群组和成员关系，adminID 为管理员且自动成为成员
func SeedGroup(t testing.TB, db *gorm.DB, adminID uint, memberIDs ...uint) *models.Group {
	t.Helper()
	var existing int64
	require.NoError(t, db.Model(&models.Group{}).Count(&existing).Error)
	g := &models.Group{
		Name:       "seeded",
		InviteCode: fmt.Sprintf("SEED%02d", existing+1),
		AdminID:    adminID,
	}
	require.NoError(t, db.Create(g).Error)
	for _, id := range append([]uint{adminID}, memberIDs...) {
		m := &models.GroupMembership{UserID: id, GroupID: g.ID, JoinedAt: time.Now()}
		require.NoError(t, db.Create(m).Error)
	}
	return g
}
