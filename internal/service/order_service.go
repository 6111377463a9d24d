package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/bundleshop/internal/config"
	"github.com/example/bundleshop/internal/datamodels/bundle"
	"github.com/example/bundleshop/internal/datamodels/cart"
	"github.com/example/bundleshop/internal/datamodels/event"
	"github.com/example/bundleshop/internal/datamodels/order"
	"github.com/example/bundleshop/internal/datamodels/product"
	"github.com/example/bundleshop/internal/pricing"
	"github.com/example/bundleshop/internal/promptpay"
)

var (
	ErrEmptyCart              = errors.New("cart is empty")
	ErrInvalidCustomer        = errors.New("invalid customer details")
	ErrInvalidPaymentMethod   = errors.New("invalid payment method")
	ErrOrderNoExhausted       = errors.New("could not allocate a unique order number")
	ErrPromptPayNotConfigured = errors.New("promptpay receiver is not configured")
)

const (
	orderNoPrefix    = "BS"
	refAttempts      = 5
	friendlyIDLength = 8
	// Crockford base32，去掉了 I L O U
	friendlyAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"
)

// OrderService 下单、查单与付款二维码
type OrderService struct {
	repo       order.Repository
	bundles    bundle.Repository
	products   product.Repository
	dispatcher *Dispatcher
	orderCfg   config.OrderConfig
	paymentCfg config.PaymentConfig

	now     func() time.Time
	newRefs func(now time.Time) (orderNo, friendlyID string, err error)
}

// NewOrderService 创建订单服务
func NewOrderService(
	repo order.Repository,
	bundles bundle.Repository,
	products product.Repository,
	dispatcher *Dispatcher,
	cfg *config.Config,
) *OrderService {
	return &OrderService{
		repo:       repo,
		bundles:    bundles,
		products:   products,
		dispatcher: dispatcher,
		orderCfg:   cfg.Order,
		paymentCfg: cfg.Payment,
		now:        time.Now,
		newRefs:    generateRefs,
	}
}

// CreateOrderInput 下单参数，Cart 为客户端持有的购物车快照
type CreateOrderInput struct {
	Cart          cart.Cart
	Customer      order.Customer
	PaymentMethod order.PaymentMethod
	SlipURL       string
}

// CreateOrder 校验购物车并按当前目录重新定价，订单头与明细在同一事务内写入。
// 下单时不预留也不扣减库存，扣减发生在第一次确认订单时。
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*order.Order, error) {
	if in.Cart.Empty() {
		return nil, ErrEmptyCart
	}
	customer, err := normalizeCustomer(in.Customer)
	if err != nil {
		return nil, err
	}
	if !in.PaymentMethod.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, in.PaymentMethod)
	}

	items, err := s.snapshotItems(ctx, in.Cart)
	if err != nil {
		return nil, err
	}

	o := &order.Order{
		Customer:       customer,
		Status:         order.StatusNew,
		PaymentStatus:  order.PaymentUnpaid,
		PaymentMethod:  in.PaymentMethod,
		PaymentSlipURL: strings.TrimSpace(in.SlipURL),
		Version:        1,
		Items:          items,
	}
	if o.PaymentSlipURL != "" {
		o.PaymentStatus = order.PaymentPending
	}
	o.TotalAmount = o.ItemsTotal()

	if err := s.persist(ctx, o); err != nil {
		GetMonitor().RecordOrderCreateFailed()
		return nil, err
	}

	GetMonitor().RecordOrderCreated()
	zap.L().Info("order created",
		zap.Int64("order_id", o.ID),
		zap.String("order_no", o.OrderNo),
		zap.String("total", o.TotalAmount.StringFixed(2)),
		zap.Int("items", len(o.Items)))

	s.dispatcher.Dispatch(event.FromOrder(event.TypeOrderCreated, o))
	if o.PaymentStatus == order.PaymentPending {
		s.dispatcher.Dispatch(event.FromOrder(event.TypePaymentSlipUploaded, o))
	}
	return o, nil
}

// snapshotItems 每一行都按当前目录重新定价，并把名称、类型、选项复制成快照
func (s *OrderService) snapshotItems(ctx context.Context, c cart.Cart) ([]order.Item, error) {
	items := make([]order.Item, 0, len(c.Lines))
	for i, l := range c.Lines {
		if l.Quantity < 1 || l.Quantity > maxLineQuantity {
			return nil, fmt.Errorf("line %d: %w", i+1, ErrInvalidQuantity)
		}
		b, err := s.bundles.GetByID(ctx, l.BundleID)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		sel := l.Selection()
		resolved, err := pricing.Resolve(b, sel)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		price, err := pricing.UnitPrice(b, sel)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}

		if s.orderCfg.StrictStockCheck {
			ceiling, err := maxAvailableStock(ctx, s.products, b, resolved)
			if err != nil {
				return nil, fmt.Errorf("line %d: load stock: %w", i+1, err)
			}
			if l.Quantity > ceiling {
				return nil, fmt.Errorf("line %d (%s): %w", i+1, b.Name, ErrQuantityExceedsStock)
			}
		}

		it := order.Item{
			BundleID:   b.ID,
			BundleName: b.Name,
			BundleType: b.Type,
			Quantity:   l.Quantity,
			Price:      price,
		}
		for _, bi := range b.Items {
			it.Components = append(it.Components, order.Component{ProductID: bi.ProductID, Quantity: bi.Quantity})
		}
		for _, r := range resolved {
			it.ChosenOptions = append(it.ChosenOptions, order.ChosenOption{
				GroupID:       r.Group.ID,
				GroupName:     r.Group.Name,
				OptionID:      r.Option.ID,
				OptionName:    r.Option.Name,
				ProductID:     r.Option.ProductID,
				PriceModifier: r.Option.PriceModifier,
			})
		}
		items = append(items, it)
	}
	return items, nil
}

// persist 生成订单号并写库，号码冲突时重试
func (s *OrderService) persist(ctx context.Context, o *order.Order) error {
	for attempt := 0; attempt < refAttempts; attempt++ {
		orderNo, friendlyID, err := s.newRefs(s.now())
		if err != nil {
			return fmt.Errorf("generate order number: %w", err)
		}
		exists, err := s.repo.RefExists(ctx, orderNo, friendlyID)
		if err != nil {
			GetMonitor().RecordDBError()
			return fmt.Errorf("check order number: %w", err)
		}
		if exists {
			continue
		}

		o.OrderNo, o.FriendlyID = orderNo, friendlyID
		err = s.repo.Create(ctx, o)
		if errors.Is(err, order.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			GetMonitor().RecordDBError()
			return fmt.Errorf("save order: %w", err)
		}
		return nil
	}
	return ErrOrderNoExhausted
}

func normalizeCustomer(c order.Customer) (order.Customer, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Email = strings.TrimSpace(c.Email)
	c.Address = strings.TrimSpace(c.Address)
	c.Note = strings.TrimSpace(c.Note)

	var missing []string
	if c.Name == "" {
		missing = append(missing, "name")
	}
	if c.Phone == "" {
		missing = append(missing, "phone")
	}
	if c.Address == "" {
		missing = append(missing, "address")
	}
	if len(missing) > 0 {
		return c, fmt.Errorf("%w: %s required", ErrInvalidCustomer, strings.Join(missing, ", "))
	}
	return c, nil
}

// generateRefs BS + yymmdd + 6 位随机数字，friendly id 为 8 位 Crockford 字符
func generateRefs(now time.Time) (string, string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", "", err
	}
	orderNo := fmt.Sprintf("%s%s%06d", orderNoPrefix, now.Format("060102"), n.Int64())

	buf := make([]byte, friendlyIDLength)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	for i, b := range buf {
		buf[i] = friendlyAlphabet[int(b)%len(friendlyAlphabet)]
	}
	return orderNo, string(buf), nil
}

// GetOrder 按 order_no 或 friendly_id 查询订单及明细
func (s *OrderService) GetOrder(ctx context.Context, ref string) (*order.Order, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, order.ErrNotFound
	}
	return s.repo.GetByRef(ctx, ref)
}

// ListRecent 查询最新的订单记录
func (s *OrderService) ListRecent(ctx context.Context, limit int) ([]*order.Order, error) {
	return s.repo.ListRecent(ctx, limit)
}

// History 订单的状态流转记录
func (s *OrderService) History(ctx context.Context, ref string) ([]*order.StatusHistory, error) {
	o, err := s.GetOrder(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.repo.ListHistory(ctx, o.ID)
}

// PaymentInstructions 继续付款时需要的信息，金额取下单时保存的 total_amount
type PaymentInstructions struct {
	OrderNo       string              `json:"order_no"`
	FriendlyID    string              `json:"friendly_id"`
	Amount        decimal.Decimal     `json:"amount"`
	PaymentMethod order.PaymentMethod `json:"payment_method"`
	PaymentStatus order.PaymentStatus `json:"payment_status"`
	AccountName   string              `json:"account_name,omitempty"`
	Payload       string              `json:"promptpay_payload"`
}

// PromptPay 为订单重新生成付款二维码载荷
func (s *OrderService) PromptPay(ctx context.Context, ref string) (*PaymentInstructions, error) {
	if s.paymentCfg.PromptPayID == "" {
		return nil, ErrPromptPayNotConfigured
	}
	o, err := s.GetOrder(ctx, ref)
	if err != nil {
		return nil, err
	}
	payload, err := promptpay.Generate(s.paymentCfg.PromptPayID, decimal.NewNullDecimal(o.TotalAmount))
	if err != nil {
		return nil, fmt.Errorf("generate promptpay payload: %w", err)
	}
	return &PaymentInstructions{
		OrderNo:       o.OrderNo,
		FriendlyID:    o.FriendlyID,
		Amount:        o.TotalAmount,
		PaymentMethod: o.PaymentMethod,
		PaymentStatus: o.PaymentStatus,
		AccountName:   s.paymentCfg.AccountName,
		Payload:       payload,
	}, nil
}
