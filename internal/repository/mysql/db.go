package mysql

import (
	"sync"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/example/bundleshop/internal/config"
	"github.com/example/bundleshop/internal/datamodels/bundle"
	"github.com/example/bundleshop/internal/datamodels/inventory"
	"github.com/example/bundleshop/internal/datamodels/order"
	"github.com/example/bundleshop/internal/datamodels/product"
)

var (
	db   *gorm.DB
	once sync.Once
)

// Init 初始化全局 GORM 实例并自动迁移表结构
func Init(cfg *config.MySQLConfig) *gorm.DB {
	once.Do(func() {
		var err error
		db, err = gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{TranslateError: true})
		if err != nil {
			zap.L().Fatal("failed to connect mysql", zap.Error(err))
		}

		if err = Migrate(db); err != nil {
			zap.L().Fatal("auto migrate failed", zap.Error(err))
		}
	})
	return db
}

// Migrate 建表，测试里对 sqlite 也走这里
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&product.Product{},
		&bundle.Bundle{},
		&bundle.Item{},
		&bundle.OptionGroup{},
		&bundle.Option{},
		&order.Order{},
		&order.Item{},
		&order.StatusHistory{},
		&inventory.StockAlert{},
	)
}

// DB 获取全局 DB
func DB() *gorm.DB {
	return db
}
