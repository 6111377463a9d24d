package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/bundleshop/internal/datamodels/order"
)

type orderRepo struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储，db 可以是事务句柄
func NewOrderRepository(db *gorm.DB) order.Repository {
	return &orderRepo{db: db}
}

// Create 订单头和明细放在同一个事务里，明细写失败时订单头一起回滚
func (r *orderRepo) Create(ctx context.Context, o *order.Order) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(o).Error; err != nil {
			return err
		}
		if len(o.Items) == 0 {
			return nil
		}
		for i := range o.Items {
			o.Items[i].OrderID = o.ID
		}
		return tx.Create(&o.Items).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return order.ErrAlreadyExists
	}
	return err
}

func (r *orderRepo) first(ctx context.Context, query string, args ...interface{}) (*order.Order, error) {
	var o order.Order
	if err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where(query, args...).
		First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, order.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *orderRepo) GetByOrderNo(ctx context.Context, orderNo string) (*order.Order, error) {
	return r.first(ctx, "order_no = ?", orderNo)
}

func (r *orderRepo) GetByFriendlyID(ctx context.Context, friendlyID string) (*order.Order, error) {
	return r.first(ctx, "friendly_id = ?", friendlyID)
}

func (r *orderRepo) GetByRef(ctx context.Context, ref string) (*order.Order, error) {
	o, err := r.GetByOrderNo(ctx, ref)
	if errors.Is(err, order.ErrNotFound) {
		return r.GetByFriendlyID(ctx, ref)
	}
	return o, err
}

func (r *orderRepo) RefExists(ctx context.Context, orderNo, friendlyID string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).
		Model(&order.Order{}).
		Where("order_no = ? OR friendly_id = ?", orderNo, friendlyID).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *orderRepo) ListRecent(ctx context.Context, limit int) ([]*order.Order, error) {
	if limit <= 0 {
		limit = 20
	}
	var list []*order.Order
	if err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// casUpdate 仅当 version 与当前状态都匹配时写入，并把 version +1
func (r *orderRepo) casUpdate(ctx context.Context, id, version int64, column, from string, values map[string]interface{}) (bool, error) {
	values["version"] = gorm.Expr("version + 1")
	res := r.db.WithContext(ctx).
		Model(&order.Order{}).
		Where("id = ? AND version = ?", id, version).
		Where(column+" = ?", from).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *orderRepo) CompareAndSetFulfillment(ctx context.Context, id, version int64, from, to order.FulfillmentStatus) (bool, error) {
	return r.casUpdate(ctx, id, version, "status", string(from), map[string]interface{}{
		"status": string(to),
	})
}

func (r *orderRepo) CompareAndSetPayment(ctx context.Context, id, version int64, from, to order.PaymentStatus) (bool, error) {
	return r.casUpdate(ctx, id, version, "payment_status", string(from), map[string]interface{}{
		"payment_status": string(to),
	})
}

func (r *orderRepo) AttachSlip(ctx context.Context, id, version int64, from order.PaymentStatus, slipURL string) (bool, error) {
	return r.casUpdate(ctx, id, version, "payment_status", string(from), map[string]interface{}{
		"payment_status":   string(order.PaymentPending),
		"payment_slip_url": slipURL,
	})
}

func (r *orderRepo) ClaimStockDeduction(ctx context.Context, id int64, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&order.Order{}).
		Where("id = ? AND stock_deducted_at IS NULL", id).
		Update("stock_deducted_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *orderRepo) AddHistory(ctx context.Context, h *order.StatusHistory) error {
	return r.db.WithContext(ctx).Create(h).Error
}

func (r *orderRepo) ListHistory(ctx context.Context, orderID int64) ([]*order.StatusHistory, error) {
	var list []*order.StatusHistory
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
