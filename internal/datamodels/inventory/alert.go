package inventory

import (
	"context"
	"errors"
	"time"
)

var ErrAlertNotFound = errors.New("stock alert not found")

// Source 告警来源
type Source string

const (
	SourceConfirmation Source = "confirmation" // 确认订单扣减时发现超卖
	SourceAudit        Source = "audit"        // 定时巡检发现负库存
)

// StockAlert 超卖告警。扣减不会因为库存不足而失败，只在这里留痕
type StockAlert struct {
	ID         int64      `gorm:"primaryKey" json:"id"`
	ProductID  int64      `gorm:"index;not null" json:"product_id"`
	OrderID    int64      `gorm:"index" json:"order_id,omitempty"`
	Requested  int64      `gorm:"not null" json:"requested"`
	StockAfter int64      `gorm:"not null" json:"stock_after"`
	Source     Source     `gorm:"size:16;not null" json:"source"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Shortfall 缺口数量
func (a *StockAlert) Shortfall() int64 {
	if a.StockAfter >= 0 {
		return 0
	}
	return -a.StockAfter
}

// AlertRepository 超卖告警仓储
type AlertRepository interface {
	Create(ctx context.Context, a *StockAlert) error
	ListOpen(ctx context.Context, limit int) ([]*StockAlert, error)
	HasOpen(ctx context.Context, productID int64) (bool, error)
	Resolve(ctx context.Context, id int64, at time.Time) error
}
