// Package testutil 测试用的 sqlite 内存库与目录数据
package testutil

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/bundleshop/internal/datamodels/bundle"
	"github.com/example/bundleshop/internal/datamodels/product"
	"github.com/example/bundleshop/internal/repository/mysql"
)

// NewDB 每个测试一个独立的内存库，单连接保证事务串行
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := mysql.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Catalog 常用的目录数据
type Catalog struct {
	Mug, Coaster, Shirt, ShirtXL, Cap, CapGold *product.Product
	// Fixed 500 元：1 个 Mug + 3 个 Coaster
	Fixed *bundle.Bundle
	// Configurable 基础价 300：Size(M +0 / XL +50)，Color(Red +0 / Gold +20)
	Configurable *bundle.Bundle
}

// SizeGroup / ColorGroup 与写入顺序一致
func (c *Catalog) SizeGroup() *bundle.OptionGroup  { return &c.Configurable.OptionGroups[0] }
func (c *Catalog) ColorGroup() *bundle.OptionGroup { return &c.Configurable.OptionGroups[1] }

// SeedCatalog 写入两个商品组合和它们背后的商品
func SeedCatalog(t testing.TB, db *gorm.DB) *Catalog {
	t.Helper()
	mk := func(name string, stock int64) *product.Product {
		p := &product.Product{Name: name, Price: decimal.NewFromInt(100), StockQuantity: stock}
		if err := db.Create(p).Error; err != nil {
			t.Fatalf("seed product: %v", err)
		}
		return p
	}
	c := &Catalog{
		Mug:     mk("Mug", 10),
		Coaster: mk("Coaster", 30),
		Shirt:   mk("Shirt M", 5),
		ShirtXL: mk("Shirt XL", 4),
		Cap:     mk("Cap Red", 8),
		CapGold: mk("Cap Gold", 2),
	}

	c.Fixed = &bundle.Bundle{
		Slug:      "coffee-set",
		Name:      "Coffee Set",
		Type:      bundle.TypeFixed,
		BasePrice: decimal.NewFromInt(500),
		Category:  "kitchen",
		Items: []bundle.Item{
			{ProductID: c.Mug.ID, Quantity: 1},
			{ProductID: c.Coaster.ID, Quantity: 3},
		},
	}
	c.Configurable = &bundle.Bundle{
		Slug:      "merch-pack",
		Name:      "Merch Pack",
		Type:      bundle.TypeConfigurable,
		BasePrice: decimal.NewFromInt(300),
		Category:  "apparel",
		OptionGroups: []bundle.OptionGroup{
			{Name: "Size", SortOrder: 1, Options: []bundle.Option{
				{ProductID: c.Shirt.ID, Name: "M", PriceModifier: decimal.Zero, SortOrder: 1},
				{ProductID: c.ShirtXL.ID, Name: "XL", PriceModifier: decimal.NewFromInt(50), SortOrder: 2},
			}},
			{Name: "Color", SortOrder: 2, Options: []bundle.Option{
				{ProductID: c.Cap.ID, Name: "Red", PriceModifier: decimal.Zero, SortOrder: 1},
				{ProductID: c.CapGold.ID, Name: "Gold", PriceModifier: decimal.NewFromInt(20), SortOrder: 2},
			}},
		},
	}
	for _, b := range []*bundle.Bundle{c.Fixed, c.Configurable} {
		if err := db.Create(b).Error; err != nil {
			t.Fatalf("seed bundle: %v", err)
		}
	}
	return c
}

// Stock 直接读库存
func Stock(t testing.TB, db *gorm.DB, productID int64) int64 {
	t.Helper()
	var p product.Product
	if err := db.First(&p, productID).Error; err != nil {
		t.Fatalf("load product %d: %v", productID, err)
	}
	return p.StockQuantity
}
