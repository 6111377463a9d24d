package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/example/bundleshop/internal/config"
	"github.com/example/bundleshop/internal/infra/logger"
	"github.com/example/bundleshop/internal/repository/mysql"
	"github.com/example/bundleshop/internal/service"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	interval := flag.Duration("interval", 5*time.Minute, "audit interval")
	once := flag.Bool("once", false, "run a single audit and exit")
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
	inv := service.NewInventoryService(mysql.NewProductRepository(db), mysql.NewAlertRepository(db))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 立即执行一次
	runAudit(ctx, inv)
	if *once {
		return
	}

	zap.L().Info("stock audit started", zap.Duration("interval", *interval))
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runAudit(ctx, inv)
		}
	}
}

func runAudit(ctx context.Context, inv *service.InventoryService) {
	created, err := inv.Audit(ctx)
	if err != nil {
		zap.L().Error("stock audit failed", zap.Error(err))
		return
	}
	open, err := inv.ListOpenAlerts(ctx, 0)
	if err != nil {
		zap.L().Error("list open alerts failed", zap.Error(err))
		return
	}
	zap.L().Info("stock audit finished", zap.Int("new_alerts", created), zap.Int("open_alerts", len(open)))
}
