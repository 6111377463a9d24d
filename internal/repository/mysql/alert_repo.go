package mysql

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/example/bundleshop/internal/datamodels/inventory"
)

type alertRepo struct {
	db *gorm.DB
}

// NewAlertRepository 创建超卖告警仓储
func NewAlertRepository(db *gorm.DB) inventory.AlertRepository {
	return &alertRepo{db: db}
}

func (r *alertRepo) Create(ctx context.Context, a *inventory.StockAlert) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *alertRepo) ListOpen(ctx context.Context, limit int) ([]*inventory.StockAlert, error) {
	if limit <= 0 {
		limit = 50
	}
	var list []*inventory.StockAlert
	if err := r.db.WithContext(ctx).
		Where("resolved_at IS NULL").
		Order("id DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *alertRepo) HasOpen(ctx context.Context, productID int64) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).
		Model(&inventory.StockAlert{}).
		Where("product_id = ? AND resolved_at IS NULL", productID).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *alertRepo) Resolve(ctx context.Context, id int64, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&inventory.StockAlert{}).
		Where("id = ? AND resolved_at IS NULL", id).
		Update("resolved_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return inventory.ErrAlertNotFound
	}
	return nil
}
