package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/bundleshop/internal/config"
	"github.com/example/bundleshop/internal/datamodels/bundle"
	"github.com/example/bundleshop/internal/datamodels/cart"
	"github.com/example/bundleshop/internal/datamodels/product"
	"github.com/example/bundleshop/internal/pricing"
)

var (
	ErrDuplicateSubmission  = errors.New("duplicate add-to-cart submission, please wait")
	ErrInvalidQuantity      = errors.New("quantity must be between 1 and 9999")
	ErrOutOfStock           = errors.New("bundle is out of stock")
	ErrQuantityExceedsStock = errors.New("quantity exceeds available stock")
	ErrLineNotFound         = errors.New("cart line not found")
)

// maxLineQuantity 单行数量上限，扣减量 = 组成数量 × 行数量，不能溢出
const maxLineQuantity = 9999

const (
	cartAddKey  = "cart:add:%s:%d" // clientID, bundleID
	cartIdemKey = "cart:idem:%s"   // idempotency key
)

// CartService 购物车由客户端持有，服务端只负责定价、校验数量和防重复提交
type CartService struct {
	bundles  bundle.Repository
	products product.Repository
	guard    Guard
	window   time.Duration
}

// NewCartService guard 为 nil 时不做防重复
func NewCartService(bundles bundle.Repository, products product.Repository, guard Guard, cfg *config.CartConfig) *CartService {
	return &CartService{
		bundles:  bundles,
		products: products,
		guard:    guard,
		window:   cfg.DedupeWindow,
	}
}

// Quote 某个 bundle 在给定选择下的单价和可购买上限
type Quote struct {
	Bundle      *bundle.Bundle           `json:"-"`
	UnitPrice   decimal.Decimal          `json:"unit_price"`
	MaxQuantity int64                    `json:"max_quantity"`
	Options     []cart.SelectedOption    `json:"options,omitempty"`
	Resolved    []pricing.ResolvedOption `json:"-"`
}

func (s *CartService) Quote(ctx context.Context, ref string, sel bundle.Selection) (*Quote, error) {
	b, err := s.bundles.GetByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.quote(ctx, b, sel)
}

func (s *CartService) quote(ctx context.Context, b *bundle.Bundle, sel bundle.Selection) (*Quote, error) {
	resolved, err := pricing.Resolve(b, sel)
	if err != nil {
		return nil, err
	}
	price, err := pricing.UnitPrice(b, sel)
	if err != nil {
		return nil, err
	}
	ceiling, err := maxAvailableStock(ctx, s.products, b, resolved)
	if err != nil {
		return nil, fmt.Errorf("load stock: %w", err)
	}

	q := &Quote{Bundle: b, UnitPrice: price, MaxQuantity: ceiling, Resolved: resolved}
	for _, r := range resolved {
		q.Options = append(q.Options, cart.SelectedOption{
			GroupID:       r.Group.ID,
			GroupName:     r.Group.Name,
			OptionID:      r.Option.ID,
			OptionName:    r.Option.Name,
			PriceModifier: r.Option.PriceModifier,
		})
	}
	return q, nil
}

// AddLineRequest 加购请求，Cart 为客户端当前持有的购物车。
// FallbackKey 在没有 ClientID 时作为防重身份，例如来源 IP
type AddLineRequest struct {
	ClientID       string
	FallbackKey    string
	IdempotencyKey string
	Cart           cart.Cart
	BundleRef      string
	Quantity       int64
	Selection      bundle.Selection
}

type AddLineResult struct {
	ClientID    string    `json:"client_id"`
	Cart        cart.Cart `json:"cart"`
	Line        cart.Line `json:"line"`
	MaxQuantity int64     `json:"max_quantity"`
}

// AddLine 定价并合并到购物车。单价以服务端计算为准，客户端传来的价格不参与
func (s *CartService) AddLine(ctx context.Context, req AddLineRequest) (*AddLineResult, error) {
	if req.Quantity < 1 || req.Quantity > maxLineQuantity {
		return nil, ErrInvalidQuantity
	}
	b, err := s.bundles.GetByRef(ctx, req.BundleRef)
	if err != nil {
		return nil, err
	}
	q, err := s.quote(ctx, b, req.Selection)
	if err != nil {
		return nil, err
	}
	if q.MaxQuantity <= 0 {
		return nil, ErrOutOfStock
	}

	line := cart.Line{
		BundleID:   b.ID,
		BundleName: b.Name,
		Quantity:   req.Quantity,
		Price:      q.UnitPrice,
		Options:    q.Options,
	}
	c := req.Cart
	existing := int64(0)
	if i := c.Find(line.Key()); i >= 0 {
		existing = c.Lines[i].Quantity
	}
	if existing+req.Quantity > q.MaxQuantity {
		return nil, ErrQuantityExceedsStock
	}

	clientID := req.ClientID
	keys := make([]string, 0, 2)
	if clientID == "" {
		clientID = uuid.NewString()
		// 首次加购还没有客户端标识，先按来源防重
		if req.FallbackKey != "" {
			keys = append(keys, fmt.Sprintf(cartAddKey, req.FallbackKey, b.ID))
		}
	}
	// 新发的 client id 也占住窗口，客户端带上它再次提交同样会被拦下
	keys = append(keys, fmt.Sprintf(cartAddKey, clientID, b.ID))
	for _, key := range keys {
		if !s.claim(ctx, key) {
			GetMonitor().RecordDuplicateSubmission()
			return nil, ErrDuplicateSubmission
		}
	}
	if req.IdempotencyKey != "" && !s.claim(ctx, fmt.Sprintf(cartIdemKey, req.IdempotencyKey)) {
		GetMonitor().RecordDuplicateSubmission()
		return nil, ErrDuplicateSubmission
	}

	idx := c.Add(line)
	GetMonitor().RecordCartAdd()
	return &AddLineResult{
		ClientID:    clientID,
		Cart:        c,
		Line:        c.Lines[idx],
		MaxQuantity: q.MaxQuantity,
	}, nil
}

// claim 防重只是尽力而为，Redis 出错时放行
func (s *CartService) claim(ctx context.Context, key string) bool {
	if s.guard == nil || s.window <= 0 {
		return true
	}
	ok, err := s.guard.Claim(ctx, key, s.window)
	if err != nil {
		GetMonitor().RecordRedisError()
		zap.L().Warn("cart guard unavailable, letting request through", zap.String("key", key), zap.Error(err))
		return true
	}
	return ok
}

// SetLineQuantity 修改某一行的数量，qty 为 0 时删除该行
func (s *CartService) SetLineQuantity(ctx context.Context, c cart.Cart, key string, qty int64) (cart.Cart, error) {
	i := c.Find(key)
	if i < 0 {
		return c, ErrLineNotFound
	}
	if qty < 0 || qty > maxLineQuantity {
		return c, ErrInvalidQuantity
	}
	if qty == 0 {
		c.Remove(key)
		return c, nil
	}

	l := c.Lines[i]
	b, err := s.bundles.GetByID(ctx, l.BundleID)
	if err != nil {
		return c, err
	}
	q, err := s.quote(ctx, b, l.Selection())
	if err != nil {
		return c, err
	}
	if qty > q.MaxQuantity {
		return c, ErrQuantityExceedsStock
	}
	c.SetQuantity(key, qty)
	return c, nil
}

// MaxAvailableStock 按当前库存计算还能买多少份
func (s *CartService) MaxAvailableStock(ctx context.Context, b *bundle.Bundle, sel bundle.Selection) (int64, error) {
	resolved, err := pricing.Resolve(b, sel)
	if err != nil {
		return 0, err
	}
	return maxAvailableStock(ctx, s.products, b, resolved)
}

// maxAvailableStock fixed: min(floor(stock / item.quantity))；
// configurable: 所选选项背后商品的最小库存。负库存按 0 计。
func maxAvailableStock(ctx context.Context, products product.Repository, b *bundle.Bundle, resolved []pricing.ResolvedOption) (int64, error) {
	perUnit := make(map[int64]int64)
	switch b.Type {
	case bundle.TypeFixed:
		for _, it := range b.Items {
			perUnit[it.ProductID] += it.Quantity
		}
	case bundle.TypeConfigurable:
		for _, r := range resolved {
			perUnit[r.Option.ProductID]++
		}
	}
	if len(perUnit) == 0 {
		return 0, nil
	}

	ids := make([]int64, 0, len(perUnit))
	for id := range perUnit {
		ids = append(ids, id)
	}
	stock, err := products.GetByIDs(ctx, ids)
	if err != nil {
		return 0, err
	}

	ceiling := int64(-1)
	for id, per := range perUnit {
		p, ok := stock[id]
		if !ok || per <= 0 {
			return 0, nil
		}
		avail := p.StockQuantity
		if avail < 0 {
			avail = 0
		}
		if n := avail / per; ceiling < 0 || n < ceiling {
			ceiling = n
		}
	}
	return ceiling, nil
}
