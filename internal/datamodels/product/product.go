package product

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("product not found")

// Product 商品模型，StockQuantity 允许为负数（超卖后由告警处理）
type Product struct {
	ID            int64           `gorm:"primaryKey" json:"id"`
	Name          string          `gorm:"size:128;not null" json:"name"`
	Price         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	StockQuantity int64           `gorm:"not null;default:0" json:"stock_quantity"`
	Dimensions    string          `gorm:"size:64" json:"dimensions"` // 例如 30x20x10cm
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Repository 商品仓储接口
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Product, error)
	GetByIDs(ctx context.Context, ids []int64) (map[int64]*Product, error)
	ListAll(ctx context.Context) ([]*Product, error)
	// ListOversold 返回库存为负的商品
	ListOversold(ctx context.Context) ([]*Product, error)
	GetStock(ctx context.Context, id int64) (int64, error)
	// DecrementStock 原子扣减库存并返回扣减后的库存，结果可能为负
	DecrementStock(ctx context.Context, id, amount int64) (int64, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
}
