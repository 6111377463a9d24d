package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/bundleshop/internal/datamodels/event"
	"github.com/example/bundleshop/internal/datamodels/order"
	"github.com/example/bundleshop/internal/repository/mysql"
)

var (
	ErrConcurrentUpdate = errors.New("order was modified concurrently, please retry")
	ErrInvalidSlipURL   = errors.New("payment slip url is required")

	// errVersionConflict 乐观锁没写进去，重新读取后重试
	errVersionConflict = errors.New("order version conflict")
)

const transitionAttempts = 3

// StatusService 履约与支付两条状态机。所有写入都带 version 和原状态条件，
// 第一次进入 confirmed 时在同一事务内扣减库存。
type StatusService struct {
	db         *gorm.DB
	orders     order.Repository
	dispatcher *Dispatcher
	now        func() time.Time
}

func NewStatusService(db *gorm.DB, orders order.Repository, dispatcher *Dispatcher) *StatusService {
	return &StatusService{db: db, orders: orders, dispatcher: dispatcher, now: time.Now}
}

// SetFulfillmentStatus 目标状态不在枚举内返回 order.ErrInvalidStatus，
// 不在流转表内返回 order.ErrInvalidTransition，与当前状态相同时什么也不做。
func (s *StatusService) SetFulfillmentStatus(ctx context.Context, orderID int64, target, actor string) (*order.Order, error) {
	to, err := order.ParseFulfillmentStatus(strings.TrimSpace(target))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, target)
	}

	for attempt := 0; attempt < transitionAttempts; attempt++ {
		o, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if o.Status == to {
			return o, nil
		}
		if !o.Status.CanTransition(to) {
			return nil, fmt.Errorf("%w: %s -> %s", order.ErrInvalidTransition, o.Status, to)
		}

		var d *deduction
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			repo := mysql.NewOrderRepository(tx)
			ok, err := repo.CompareAndSetFulfillment(ctx, o.ID, o.Version, o.Status, to)
			if err != nil {
				return err
			}
			if !ok {
				return errVersionConflict
			}
			if err := repo.AddHistory(ctx, &order.StatusHistory{
				OrderID: o.ID,
				Axis:    order.AxisFulfillment,
				From:    string(o.Status),
				To:      string(to),
				Actor:   actor,
			}); err != nil {
				return err
			}
			if to == order.StatusConfirmed {
				d, err = deductStock(ctx, tx, o, s.now())
				return err
			}
			return nil
		})
		if errors.Is(err, errVersionConflict) {
			GetMonitor().RecordConcurrentRetry()
			continue
		}
		if err != nil {
			GetMonitor().RecordDBError()
			return nil, fmt.Errorf("update fulfillment status: %w", err)
		}

		zap.L().Info("fulfillment status changed",
			zap.Int64("order_id", o.ID),
			zap.String("from", string(o.Status)),
			zap.String("to", string(to)),
			zap.String("actor", actor))
		s.reportDeduction(o, d)
		return s.orders.GetByID(ctx, o.ID)
	}
	return nil, ErrConcurrentUpdate
}

// SetPaymentStatus rejected -> unpaid 只改支付状态，不影响履约状态
func (s *StatusService) SetPaymentStatus(ctx context.Context, orderID int64, target, actor string) (*order.Order, error) {
	to, err := order.ParsePaymentStatus(strings.TrimSpace(target))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, target)
	}

	for attempt := 0; attempt < transitionAttempts; attempt++ {
		o, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if o.PaymentStatus == to {
			return o, nil
		}
		if !o.PaymentStatus.CanTransition(to) {
			return nil, fmt.Errorf("%w: %s -> %s", order.ErrInvalidTransition, o.PaymentStatus, to)
		}

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			repo := mysql.NewOrderRepository(tx)
			ok, err := repo.CompareAndSetPayment(ctx, o.ID, o.Version, o.PaymentStatus, to)
			if err != nil {
				return err
			}
			if !ok {
				return errVersionConflict
			}
			return repo.AddHistory(ctx, &order.StatusHistory{
				OrderID: o.ID,
				Axis:    order.AxisPayment,
				From:    string(o.PaymentStatus),
				To:      string(to),
				Actor:   actor,
			})
		})
		if errors.Is(err, errVersionConflict) {
			GetMonitor().RecordConcurrentRetry()
			continue
		}
		if err != nil {
			GetMonitor().RecordDBError()
			return nil, fmt.Errorf("update payment status: %w", err)
		}

		zap.L().Info("payment status changed",
			zap.Int64("order_id", o.ID),
			zap.String("from", string(o.PaymentStatus)),
			zap.String("to", string(to)),
			zap.String("actor", actor))
		return s.orders.GetByID(ctx, o.ID)
	}
	return nil, ErrConcurrentUpdate
}

// AttachSlip 买家上传付款凭证：保存 URL 并把支付状态推到 pending。
// rejected 的订单先回到 unpaid 再进入 pending，两步都记历史。
func (s *StatusService) AttachSlip(ctx context.Context, ref, slipURL, actor string) (*order.Order, error) {
	slipURL = strings.TrimSpace(slipURL)
	if slipURL == "" {
		return nil, ErrInvalidSlipURL
	}

	for attempt := 0; attempt < transitionAttempts; attempt++ {
		o, err := s.orders.GetByRef(ctx, ref)
		if err != nil {
			return nil, err
		}
		if o.PaymentStatus == order.PaymentPaid {
			return nil, fmt.Errorf("%w: %s -> %s", order.ErrInvalidTransition, o.PaymentStatus, order.PaymentPending)
		}

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			repo := mysql.NewOrderRepository(tx)
			from, version := o.PaymentStatus, o.Version
			if from == order.PaymentRejected {
				ok, err := repo.CompareAndSetPayment(ctx, o.ID, version, from, order.PaymentUnpaid)
				if err != nil {
					return err
				}
				if !ok {
					return errVersionConflict
				}
				if err := repo.AddHistory(ctx, &order.StatusHistory{
					OrderID: o.ID, Axis: order.AxisPayment, From: string(from), To: string(order.PaymentUnpaid), Actor: actor,
				}); err != nil {
					return err
				}
				from, version = order.PaymentUnpaid, version+1
			}

			ok, err := repo.AttachSlip(ctx, o.ID, version, from, slipURL)
			if err != nil {
				return err
			}
			if !ok {
				return errVersionConflict
			}
			if from == order.PaymentPending {
				return nil
			}
			return repo.AddHistory(ctx, &order.StatusHistory{
				OrderID: o.ID, Axis: order.AxisPayment, From: string(from), To: string(order.PaymentPending), Actor: actor,
			})
		})
		if errors.Is(err, errVersionConflict) {
			GetMonitor().RecordConcurrentRetry()
			continue
		}
		if err != nil {
			GetMonitor().RecordDBError()
			return nil, fmt.Errorf("attach payment slip: %w", err)
		}

		updated, err := s.orders.GetByID(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		zap.L().Info("payment slip attached", zap.Int64("order_id", o.ID), zap.String("order_no", o.OrderNo))
		s.dispatcher.Dispatch(event.FromOrder(event.TypePaymentSlipUploaded, updated))
		return updated, nil
	}
	return nil, ErrConcurrentUpdate
}

// reportDeduction 事务提交后才计数，回滚的扣减不算
func (s *StatusService) reportDeduction(o *order.Order, d *deduction) {
	if d == nil || !d.claimed {
		return
	}
	GetMonitor().RecordStockDeduction()
	for _, a := range d.alerts {
		GetMonitor().RecordOversold()
		zap.L().Warn("stock oversold on confirmation",
			zap.Int64("order_id", o.ID),
			zap.String("order_no", o.OrderNo),
			zap.Int64("product_id", a.ProductID),
			zap.Int64("requested", a.Requested),
			zap.Int64("stock_after", a.StockAfter))
	}
}
