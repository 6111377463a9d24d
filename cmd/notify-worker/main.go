package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/example/bundleshop/internal/config"
	"github.com/example/bundleshop/internal/datamodels/event"
	"github.com/example/bundleshop/internal/infra/logger"
	"github.com/example/bundleshop/internal/infra/mq"
	"github.com/example/bundleshop/internal/repository/mongo"
)

// archiver 事件落库，重复的 event_id 视为成功
type archiver interface {
	Save(ctx context.Context, e event.Event) error
}

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	archive, err := mongo.NewEventArchive(ctx, &cfg.Mongo)
	if err != nil {
		zap.L().Fatal("connect mongo", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = archive.Close(closeCtx)
	}()

	conn := mq.Init(&cfg.RabbitMQ)
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		zap.L().Fatal("failed to open channel", zap.Error(err))
	}
	defer ch.Close()

	if err := mq.DeclareTopology(ch, &cfg.RabbitMQ); err != nil {
		zap.L().Fatal("failed to declare topology", zap.Error(err))
	}
	if err := ch.Qos(16, 0, false); err != nil {
		zap.L().Fatal("failed to set qos", zap.Error(err))
	}

	// 手动确认模式（auto-ack=false）
	msgs, err := ch.Consume(cfg.RabbitMQ.Queue, "notify-worker", false, false, false, false, nil)
	if err != nil {
		zap.L().Fatal("failed to consume", zap.Error(err))
	}

	zap.L().Info("notify worker started", zap.String("queue", cfg.RabbitMQ.Queue))
	for {
		select {
		case <-ctx.Done():
			zap.L().Info("notify worker stopping")
			return
		case d, ok := <-msgs:
			if !ok {
				zap.L().Warn("delivery channel closed")
				return
			}
			handleDelivery(ctx, archive, d)
		}
	}
}

func handleDelivery(ctx context.Context, store archiver, d amqp.Delivery) {
	var e event.Event
	if err := json.Unmarshal(d.Body, &e); err != nil {
		zap.L().Warn("invalid event message", zap.String("message_id", d.MessageId), zap.Error(err))
		// 消息格式错误，拒绝并丢弃
		_ = d.Nack(false, false)
		return
	}
	if e.ID == "" {
		e.ID = d.MessageId
	}

	saveCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := store.Save(saveCtx, e); err != nil {
		zap.L().Error("archive event failed",
			zap.String("event_id", e.ID),
			zap.String("order_no", e.OrderNo),
			zap.Error(err))
		// 只重投一次，第二次失败丢弃
		_ = d.Nack(false, !d.Redelivered)
		return
	}

	zap.L().Info("event archived",
		zap.String("event_id", e.ID),
		zap.String("type", string(e.Type)),
		zap.String("order_no", e.OrderNo))
	_ = d.Ack(false)
}
