package database

import (
	"fmt"
	"log"

	"testbank_backend/internal/config"
	"testbank_backend/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func dialector(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "mysql", "":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=UTC",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.DBName,
			cfg.Charset,
			cfg.ParseTime,
		)
		return mysql.Open(dsn), nil
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			cfg.Host,
			cfg.Port,
			cfg.User,
			cfg.Password,
			cfg.DBName,
		)
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(cfg.Path + "?_foreign_keys=on&_busy_timeout=5000"), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func InitDB(cfg *config.DatabaseConfig, debug bool) (*gorm.DB, error) {
	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	level := logger.Warn
	if debug {
		level = logger.Info
	}

	db, err := gorm.Open(d, &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Database connection established (%s)", cfg.Driver)
	return db, nil
}

// Migrate 建表并写入默认数据，可重复执行
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.Lesson{},
		&model.Topic{},
		&model.Difficulty{},
		&model.Question{},
		&model.Option{},
		&model.ExamSession{},
		&model.SessionQuestion{},
		&model.ExamAnswer{},
	)
	if err != nil {
		return err
	}

	// 默认难度等级
	var count int64
	db.Model(&model.Difficulty{}).Count(&count)
	if count == 0 {
		defaults := []model.Difficulty{
			{Name: "Easy", SortOrder: 1},
			{Name: "Medium", SortOrder: 2},
			{Name: "Hard", SortOrder: 3},
		}
		if err := db.Create(&defaults).Error; err != nil {
			return err
		}
	}

	return nil
}
