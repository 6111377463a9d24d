package cart

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/example/bundleshop/internal/datamodels/bundle"
)

// SelectedOption 加购时所选的选项，价格与名称只用于展示
type SelectedOption struct {
	GroupID       int64           `json:"group_id"`
	GroupName     string          `json:"group_name,omitempty"`
	OptionID      int64           `json:"option_id"`
	OptionName    string          `json:"option_name,omitempty"`
	PriceModifier decimal.Decimal `json:"price_modifier"`
}

// Line 购物车行，由客户端持有，Price 为加购时的单价
type Line struct {
	BundleID   int64            `json:"bundle_id"`
	BundleName string           `json:"bundle_name,omitempty"`
	Quantity   int64            `json:"quantity"`
	Price      decimal.Decimal  `json:"price"`
	Options    []SelectedOption `json:"options,omitempty"`
}

// Selection 把行上的选项还原成 bundle.Selection
func (l Line) Selection() bundle.Selection {
	sel := make(bundle.Selection, len(l.Options))
	for _, o := range l.Options {
		sel.Choose(o.GroupID, o.OptionID)
	}
	return sel
}

// Key 同一个 bundle 的不同配置是不同的行
func (l Line) Key() string {
	return fmt.Sprintf("%d|%s", l.BundleID, l.Selection().Signature())
}

func (l Line) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(l.Quantity))
}

// Cart 购物车快照
type Cart struct {
	Lines []Line `json:"lines"`
}

// Find 按 key 查找行下标
func (c *Cart) Find(key string) int {
	for i, l := range c.Lines {
		if l.Key() == key {
			return i
		}
	}
	return -1
}

// Add 相同 key 合并数量并以新价格为准，否则追加新行。返回该行下标。
func (c *Cart) Add(line Line) int {
	if i := c.Find(line.Key()); i >= 0 {
		c.Lines[i].Quantity += line.Quantity
		c.Lines[i].Price = line.Price
		return i
	}
	c.Lines = append(c.Lines, line)
	return len(c.Lines) - 1
}

// Remove 删除行，不存在时返回 false
func (c *Cart) Remove(key string) bool {
	i := c.Find(key)
	if i < 0 {
		return false
	}
	c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	return true
}

// SetQuantity 修改行数量，qty <= 0 等价于删除
func (c *Cart) SetQuantity(key string, qty int64) bool {
	i := c.Find(key)
	if i < 0 {
		return false
	}
	if qty <= 0 {
		return c.Remove(key)
	}
	c.Lines[i].Quantity = qty
	return true
}

// Total Σ(line.price × line.quantity)
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

func (c *Cart) Empty() bool {
	return len(c.Lines) == 0
}

// Clear 下单成功后清空
func (c *Cart) Clear() {
	c.Lines = nil
}
