package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"testbank_backend/internal/model"
	"testbank_backend/pkg/database"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// DB 每个测试独立的内存 SQLite，已迁移并写入默认难度
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	dsn := fmt.Sprintf("file:testbank_%d?mode=memory&cache=shared&_foreign_keys=on", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("open test db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("sql db: %v", err)
	}
	// 单连接：内存库在最后一个连接关闭时销毁，同时串行化事务
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	return db
}

// Difficulties 返回迁移时写入的难度，按 SortOrder 排序
func Difficulties(tb testing.TB, db *gorm.DB) []model.Difficulty {
	tb.Helper()
	var ds []model.Difficulty
	if err := db.Order("sort_order asc").Find(&ds).Error; err != nil {
		tb.Fatalf("load difficulties: %v", err)
	}
	return ds
}
