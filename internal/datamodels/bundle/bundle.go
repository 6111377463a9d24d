package bundle

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound     = errors.New("bundle not found")
	ErrInvalidShape = errors.New("bundle type does not match its contents")
)

// Type bundle 的两种组成方式
type Type string

const (
	TypeFixed        Type = "fixed"
	TypeConfigurable Type = "configurable"
)

func (t Type) Valid() bool {
	return t == TypeFixed || t == TypeConfigurable
}

// Bundle 可售卖单元：fixed 只有 Items，configurable 只有 OptionGroups
type Bundle struct {
	ID           int64           `gorm:"primaryKey" json:"id"`
	Slug         string          `gorm:"uniqueIndex;size:128;not null" json:"slug"`
	Name         string          `gorm:"size:128;not null" json:"name"`
	Type         Type            `gorm:"size:16;not null" json:"type"`
	BasePrice    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"base_price"`
	Category     string          `gorm:"size:32;index" json:"category"`
	Items        []Item          `gorm:"foreignKey:BundleID" json:"items,omitempty"`
	OptionGroups []OptionGroup   `gorm:"foreignKey:BundleID" json:"option_groups,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Item fixed bundle 的组成商品，Quantity 只决定内容不影响价格
type Item struct {
	ID        int64 `gorm:"primaryKey" json:"id"`
	BundleID  int64 `gorm:"index;not null" json:"bundle_id"`
	ProductID int64 `gorm:"index;not null" json:"product_id"`
	Quantity  int64 `gorm:"not null" json:"quantity"`
}

func (Item) TableName() string { return "bundle_items" }

// OptionGroup configurable bundle 的选项组，买家必须且只能选一个 Option
type OptionGroup struct {
	ID        int64    `gorm:"primaryKey" json:"id"`
	BundleID  int64    `gorm:"index;not null" json:"bundle_id"`
	Name      string   `gorm:"size:64;not null" json:"name"`
	SortOrder int      `gorm:"not null;default:0" json:"sort_order"`
	Options   []Option `gorm:"foreignKey:GroupID" json:"options"`
}

// Option 选项，由 ProductID 对应的商品提供库存
type Option struct {
	ID            int64           `gorm:"primaryKey" json:"id"`
	GroupID       int64           `gorm:"index;not null" json:"group_id"`
	ProductID     int64           `gorm:"index;not null" json:"product_id"`
	Name          string          `gorm:"size:64;not null" json:"name"`
	PriceModifier decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price_modifier"`
	SortOrder     int             `gorm:"not null;default:0" json:"sort_order"`
}

// Validate 检查类型与内容是否一致
func (b *Bundle) Validate() error {
	if !b.Type.Valid() {
		return ErrInvalidShape
	}
	switch b.Type {
	case TypeFixed:
		if len(b.Items) == 0 || len(b.OptionGroups) > 0 {
			return ErrInvalidShape
		}
		for _, it := range b.Items {
			if it.Quantity <= 0 {
				return ErrInvalidShape
			}
		}
	case TypeConfigurable:
		if len(b.OptionGroups) == 0 || len(b.Items) > 0 {
			return ErrInvalidShape
		}
		for _, g := range b.OptionGroups {
			if len(g.Options) == 0 {
				return ErrInvalidShape
			}
		}
	}
	return nil
}

// Group 按 ID 查找选项组
func (b *Bundle) Group(id int64) (*OptionGroup, bool) {
	for i := range b.OptionGroups {
		if b.OptionGroups[i].ID == id {
			return &b.OptionGroups[i], true
		}
	}
	return nil, false
}

// Option 按 ID 查找组内选项
func (g *OptionGroup) Option(id int64) (*Option, bool) {
	for i := range g.Options {
		if g.Options[i].ID == id {
			return &g.Options[i], true
		}
	}
	return nil, false
}

// Repository bundle 目录仓储接口
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Bundle, error)
	// GetByRef 支持数字 ID 或 slug
	GetByRef(ctx context.Context, ref string) (*Bundle, error)
	ListAll(ctx context.Context) ([]*Bundle, error)
	Create(ctx context.Context, b *Bundle) error
	// Update 只更新 bundle 自身字段，不动 Items / OptionGroups
	Update(ctx context.Context, b *Bundle) error
}
