package order

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/bundleshop/internal/datamodels/bundle"
)

var (
	ErrNotFound      = errors.New("order not found")
	ErrAlreadyExists = errors.New("order number already exists")
)

// PaymentMethod 支付方式
type PaymentMethod string

const (
	PaymentPromptPay    PaymentMethod = "promptpay"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentCOD          PaymentMethod = "cod"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentPromptPay, PaymentBankTransfer, PaymentCOD:
		return true
	}
	return false
}

// Customer 下单时填写的联系方式与收货地址
type Customer struct {
	Name    string `gorm:"size:128;not null" json:"name"`
	Phone   string `gorm:"size:32;not null" json:"phone"`
	Email   string `gorm:"size:128" json:"email"`
	Address string `gorm:"size:512;not null" json:"address"`
	Note    string `gorm:"size:512" json:"note"`
}

// Order 订单头。创建后只允许通过状态流转修改 Status / PaymentStatus / PaymentSlipURL
type Order struct {
	ID             int64             `gorm:"primaryKey" json:"id"`
	OrderNo        string            `gorm:"uniqueIndex;size:32;not null" json:"order_no"`
	FriendlyID     string            `gorm:"uniqueIndex;size:16;not null" json:"friendly_id"`
	Customer       Customer          `gorm:"embedded;embeddedPrefix:customer_" json:"customer"`
	TotalAmount    decimal.Decimal   `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	Status         FulfillmentStatus `gorm:"size:16;index;not null" json:"status"`
	PaymentStatus  PaymentStatus     `gorm:"size:16;index;not null" json:"payment_status"`
	PaymentMethod  PaymentMethod     `gorm:"size:32;not null" json:"payment_method"`
	PaymentSlipURL string            `gorm:"size:512" json:"payment_slip_url,omitempty"`
	// StockDeductedAt 非空表示该订单的库存已经扣减过，只能被设置一次
	StockDeductedAt *time.Time `json:"stock_deducted_at,omitempty"`
	// Version 乐观锁版本号，每次状态写入 +1
	Version   int64     `gorm:"not null;default:1" json:"version"`
	Items     []Item    `gorm:"foreignKey:OrderID" json:"items"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Item 订单明细，所有字段都是下单时刻的快照
type Item struct {
	ID            int64           `gorm:"primaryKey" json:"id"`
	OrderID       int64           `gorm:"index;not null" json:"order_id"`
	BundleID      int64           `gorm:"index;not null" json:"bundle_id"`
	BundleName    string          `gorm:"size:128;not null" json:"bundle_name"`
	BundleType    bundle.Type     `gorm:"size:16;not null" json:"bundle_type"`
	Quantity      int64           `gorm:"not null" json:"quantity"`
	Price         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	ChosenOptions []ChosenOption  `gorm:"serializer:json;type:text" json:"chosen_options,omitempty"`
	Components    []Component     `gorm:"serializer:json;type:text" json:"components,omitempty"`
}

func (Item) TableName() string { return "order_items" }

// ChosenOption 选项快照，库存扣减只认这里的 ProductID
type ChosenOption struct {
	GroupID       int64           `json:"group_id"`
	GroupName     string          `json:"group_name"`
	OptionID      int64           `json:"option_id"`
	OptionName    string          `json:"option_name"`
	ProductID     int64           `json:"product_id"`
	PriceModifier decimal.Decimal `json:"price_modifier"`
}

// Component fixed bundle 组成快照，每份扣减 Quantity 个 ProductID
type Component struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

// LineTotal 单行金额
func (it Item) LineTotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(it.Quantity))
}

// ItemsTotal Σ(price × quantity)
func (o *Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// StatusHistory 状态流转记录
type StatusHistory struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	OrderID   int64     `gorm:"index;not null" json:"order_id"`
	Axis      string    `gorm:"size:16;not null" json:"axis"` // fulfillment / payment
	From      string    `gorm:"size:16;not null" json:"from"`
	To        string    `gorm:"size:16;not null" json:"to"`
	Actor     string    `gorm:"size:64" json:"actor"`
	CreatedAt time.Time `json:"created_at"`
}

func (StatusHistory) TableName() string { return "order_status_histories" }

// Repository 订单仓储接口
type Repository interface {
	// Create 在同一事务内写入订单头和明细
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id int64) (*Order, error)
	GetByOrderNo(ctx context.Context, orderNo string) (*Order, error)
	GetByFriendlyID(ctx context.Context, friendlyID string) (*Order, error)
	// GetByRef 先按 order_no 再按 friendly_id 查找
	GetByRef(ctx context.Context, ref string) (*Order, error)
	RefExists(ctx context.Context, orderNo, friendlyID string) (bool, error)
	ListRecent(ctx context.Context, limit int) ([]*Order, error)

	// CompareAndSetFulfillment 仅当 version 与 from 都匹配时写入，返回是否写入成功
	CompareAndSetFulfillment(ctx context.Context, id, version int64, from, to FulfillmentStatus) (bool, error)
	CompareAndSetPayment(ctx context.Context, id, version int64, from, to PaymentStatus) (bool, error)
	AttachSlip(ctx context.Context, id, version int64, from PaymentStatus, slipURL string) (bool, error)
	// ClaimStockDeduction 原子地把 stock_deducted_at 从 NULL 置为 at，只有第一个调用者返回 true
	ClaimStockDeduction(ctx context.Context, id int64, at time.Time) (bool, error)

	AddHistory(ctx context.Context, h *StatusHistory) error
	ListHistory(ctx context.Context, orderID int64) ([]*StatusHistory, error)
}
