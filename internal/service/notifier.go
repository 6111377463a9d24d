package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/bundleshop/internal/datamodels/event"
)

// Publisher 事件投递后端：RabbitMQ / NATS / noop
type Publisher interface {
	Publish(ctx context.Context, e event.Event) error
	Close() error
}

// NoopPublisher notify.driver=noop 时使用，只打日志
type NoopPublisher struct{}

func (NoopPublisher) Publish(_ context.Context, e event.Event) error {
	zap.L().Debug("event dropped by noop publisher",
		zap.String("type", string(e.Type)),
		zap.String("order_no", e.OrderNo))
	return nil
}

func (NoopPublisher) Close() error { return nil }

// Dispatcher 异步投递事件。投递失败只记日志和计数，不影响调用方
type Dispatcher struct {
	pub     Publisher
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewDispatcher pub 为 nil 时退化为 noop
func NewDispatcher(pub Publisher, timeout time.Duration) *Dispatcher {
	if pub == nil {
		pub = NoopPublisher{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{pub: pub, timeout: timeout}
}

// Dispatch 立即返回
func (d *Dispatcher) Dispatch(e event.Event) {
	if d == nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				GetMonitor().RecordNotifyError()
				zap.L().Error("publish event panicked", zap.Any("panic", r), zap.String("type", string(e.Type)))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.pub.Publish(ctx, e); err != nil {
			GetMonitor().RecordNotifyError()
			zap.L().Warn("publish event failed",
				zap.String("type", string(e.Type)),
				zap.Int64("order_id", e.OrderID),
				zap.String("order_no", e.OrderNo),
				zap.Error(err))
			return
		}
		GetMonitor().RecordNotifySent()
	}()
}

// Wait 等待已派发的事件投递完成，关停和测试时使用
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

// Close 等待投递结束后关闭后端
func (d *Dispatcher) Close() error {
	if d == nil {
		return nil
	}
	d.wg.Wait()
	return d.pub.Close()
}
