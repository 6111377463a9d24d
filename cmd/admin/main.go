package main

import (
	"flag"
	"log"

	"github.com/kataras/iris/v12"
	"go.uber.org/zap"

	"github.com/example/bundleshop/internal/auth"
	"github.com/example/bundleshop/internal/config"
	"github.com/example/bundleshop/internal/infra/logger"
	"github.com/example/bundleshop/internal/infra/mq"
	"github.com/example/bundleshop/internal/infra/redis"
	"github.com/example/bundleshop/internal/repository/mysql"
	"github.com/example/bundleshop/internal/server"
	"github.com/example/bundleshop/internal/service"
)

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
	redisClient := redis.Init(&cfg.Redis)

	pub, err := mq.NewPublisher(cfg)
	if err != nil {
		zap.L().Fatal("init event publisher", zap.Error(err))
	}
	dispatcher := service.NewDispatcher(pub, cfg.Notify.Timeout)
	defer dispatcher.Close()

	productRepo := mysql.NewProductRepository(db)
	bundleRepo := mysql.NewBundleRepository(db)
	orderRepo := mysql.NewOrderRepository(db)

	app := iris.New()
	server.RegisterAdminRoutes(app, cfg, &server.Admin{
		Catalog:   service.NewCatalogService(productRepo, bundleRepo),
		Orders:    service.NewOrderService(orderRepo, bundleRepo, productRepo, dispatcher, cfg),
		Status:    service.NewStatusService(db, orderRepo, dispatcher),
		Inventory: service.NewInventoryService(productRepo, mysql.NewAlertRepository(db)),
		Tokens:    auth.NewTokenCache(redisClient, cfg.JWT.TTL),
	})

	addr := cfg.AdminServer.Addr()
	zap.L().Info("admin server listening", zap.String("addr", addr))
	if err := app.Run(iris.Addr(addr), iris.WithoutServerError(iris.ErrServerClosed)); err != nil {
		zap.L().Fatal("failed to run admin server", zap.Error(err))
	}
}
