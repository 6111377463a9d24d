package mq

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/example/bundleshop/internal/config"
	"github.com/example/bundleshop/internal/service"
)

var (
	_ service.Publisher = (*RabbitPublisher)(nil)
	_ service.Publisher = (*NatsPublisher)(nil)
)

// NewPublisher 按 notify.driver 选择发布端，noop 返回 nil
func NewPublisher(cfg *config.Config) (service.Publisher, error) {
	switch cfg.Notify.Driver {
	case "rabbitmq":
		p, err := NewRabbitPublisher(Init(&cfg.RabbitMQ), &cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "nats":
		p, err := NewNatsPublisher(cfg.NATS.URL)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "noop", "":
		zap.L().Info("event notifications disabled")
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown notify driver %q", cfg.Notify.Driver)
	}
}
