package main

import (
	"context"
	"errors"
	"flag"
	"log"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/bundleshop/internal/config"
	"github.com/example/bundleshop/internal/datamodels/bundle"
	"github.com/example/bundleshop/internal/datamodels/product"
	"github.com/example/bundleshop/internal/infra/logger"
	"github.com/example/bundleshop/internal/repository/mysql"
	"github.com/example/bundleshop/internal/service"
)

// 写入一套演示目录：一个 fixed bundle 和一个 configurable bundle。
// slug 已存在时跳过，可以重复执行。
func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	l, err := logger.Init(&cfg.Log)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = l.Sync() }()

	db := mysql.Init(&cfg.MySQL)
	catalog := service.NewCatalogService(mysql.NewProductRepository(db), mysql.NewBundleRepository(db))
	ctx := context.Background()

	if _, err := catalog.GetBundle(ctx, "starter-box"); err == nil {
		zap.L().Info("demo catalog already present, nothing to do")
		return
	} else if !errors.Is(err, bundle.ErrNotFound) {
		zap.L().Fatal("check catalog", zap.Error(err))
	}

	mk := func(name string, price, stock int64, dims string) *product.Product {
		p := &product.Product{Name: name, Price: decimal.NewFromInt(price), StockQuantity: stock, Dimensions: dims}
		if err := catalog.CreateProduct(ctx, p); err != nil {
			zap.L().Fatal("create product", zap.String("name", name), zap.Error(err))
		}
		return p
	}
	mug := mk("Ceramic Mug", 180, 40, "9x9x11cm")
	coaster := mk("Cork Coaster", 40, 120, "10x10x0.5cm")
	teeM := mk("Logo Tee M", 250, 25, "")
	teeXL := mk("Logo Tee XL", 250, 15, "")
	capBlack := mk("Cap Black", 150, 30, "")
	capSand := mk("Cap Sand", 150, 10, "")

	starter := &bundle.Bundle{
		Slug:      "starter-box",
		Name:      "Starter Box",
		Type:      bundle.TypeFixed,
		BasePrice: decimal.NewFromInt(500),
		Category:  "home",
		Items: []bundle.Item{
			{ProductID: mug.ID, Quantity: 1},
			{ProductID: coaster.ID, Quantity: 3},
		},
	}
	merch := &bundle.Bundle{
		Slug:      "merch-pack",
		Name:      "Merch Pack",
		Type:      bundle.TypeConfigurable,
		BasePrice: decimal.NewFromInt(300),
		Category:  "apparel",
		OptionGroups: []bundle.OptionGroup{
			{Name: "Size", SortOrder: 1, Options: []bundle.Option{
				{ProductID: teeM.ID, Name: "M", PriceModifier: decimal.Zero, SortOrder: 1},
				{ProductID: teeXL.ID, Name: "XL", PriceModifier: decimal.NewFromInt(50), SortOrder: 2},
			}},
			{Name: "Cap", SortOrder: 2, Options: []bundle.Option{
				{ProductID: capBlack.ID, Name: "Black", PriceModifier: decimal.Zero, SortOrder: 1},
				{ProductID: capSand.ID, Name: "Sand", PriceModifier: decimal.NewFromInt(20), SortOrder: 2},
			}},
		},
	}
	for _, b := range []*bundle.Bundle{starter, merch} {
		if err := catalog.CreateBundle(ctx, b); err != nil {
			zap.L().Fatal("create bundle", zap.String("slug", b.Slug), zap.Error(err))
		}
	}
	zap.L().Info("demo catalog seeded", zap.Int64("starter_box", starter.ID), zap.Int64("merch_pack", merch.ID))
}
