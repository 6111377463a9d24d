package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/bundleshop/internal/config"
	"github.com/example/bundleshop/internal/datamodels/bundle"
	"github.com/example/bundleshop/internal/datamodels/cart"
	"github.com/example/bundleshop/internal/datamodels/event"
	"github.com/example/bundleshop/internal/datamodels/order"
	"github.com/example/bundleshop/internal/pricing"
	"github.com/example/bundleshop/internal/promptpay"
	"github.com/example/bundleshop/internal/repository/mysql"
	"github.com/example/bundleshop/internal/testutil"
)

type orderFixture struct {
	db         *gorm.DB
	cat        *testutil.Catalog
	cfg        *config.Config
	pub        *MockPublisher
	dispatcher *Dispatcher
	orders     *OrderService
	status     *StatusService
	ctx        context.Context
}

func newOrderFixture(t *testing.T, mutate ...func(*config.Config)) *orderFixture {
	t.Helper()
	GetMonitor().Reset()
	db := testutil.NewDB(t)
	cat := testutil.SeedCatalog(t, db)

	cfg := config.DefaultConfig()
	cfg.Payment.PromptPayID = "0812345678"
	cfg.Payment.AccountName = "Bundle Shop"
	for _, m := range mutate {
		m(cfg)
	}

	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil)
	dispatcher := NewDispatcher(pub, time.Second)

	orderRepo := mysql.NewOrderRepository(db)
	f := &orderFixture{
		db:         db,
		cat:        cat,
		cfg:        cfg,
		pub:        pub,
		dispatcher: dispatcher,
		orders:     NewOrderService(orderRepo, mysql.NewBundleRepository(db), mysql.NewProductRepository(db), dispatcher, cfg),
		status:     NewStatusService(db, orderRepo, dispatcher),
		ctx:        context.Background(),
	}
	t.Cleanup(dispatcher.Wait)
	return f
}

func customer() order.Customer {
	return order.Customer{Name: "Somchai", Phone: "0812345678", Address: "99 Sukhumvit, Bangkok"}
}

func (f *orderFixture) fixedLine(qty int64) cart.Line {
	return cart.Line{BundleID: f.cat.Fixed.ID, Quantity: qty, Price: decimal.NewFromInt(500)}
}

func (f *orderFixture) configurableLine(qty int64, size, color int) cart.Line {
	sg, cg := f.cat.SizeGroup(), f.cat.ColorGroup()
	return cart.Line{
		BundleID: f.cat.Configurable.ID,
		Quantity: qty,
		Options: []cart.SelectedOption{
			{GroupID: sg.ID, OptionID: sg.Options[size].ID},
			{GroupID: cg.ID, OptionID: cg.Options[color].ID},
		},
	}
}

func (f *orderFixture) create(t *testing.T, lines ...cart.Line) *order.Order {
	t.Helper()
	o, err := f.orders.CreateOrder(f.ctx, CreateOrderInput{
		Cart:          cart.Cart{Lines: lines},
		Customer:      customer(),
		PaymentMethod: order.PaymentPromptPay,
	})
	require.NoError(t, err)
	return o
}

func TestCreateOrder_TotalScenario(t *testing.T) {
	f := newOrderFixture(t)

	o := f.create(t, f.fixedLine(2), f.configurableLine(1, 1, 0))

	assert.True(t, o.TotalAmount.Equal(decimal.NewFromInt(1350)), o.TotalAmount.String())
	require.Len(t, o.Items, 2)
	assert.Equal(t, order.StatusNew, o.Status)
	assert.Equal(t, order.PaymentUnpaid, o.PaymentStatus)
	assert.True(t, strings.HasPrefix(o.OrderNo, "BS"+time.Now().Format("060102")), o.OrderNo)
	assert.Len(t, o.OrderNo, 14)
	assert.Len(t, o.FriendlyID, 8)

	conf := o.Items[1]
	assert.Equal(t, "Merch Pack", conf.BundleName)
	assert.Equal(t, bundle.TypeConfigurable, conf.BundleType)
	require.Len(t, conf.ChosenOptions, 2)
	assert.Equal(t, "XL", conf.ChosenOptions[0].OptionName)
	assert.Equal(t, f.cat.ShirtXL.ID, conf.ChosenOptions[0].ProductID)

	f.dispatcher.Wait()
	assert.Equal(t, []event.Type{event.TypeOrderCreated}, publishedTypes(f.pub))
	assert.Equal(t, int64(1), GetMonitor().OrdersCreated)
}

func TestCreateOrder_NoStockMovementAtCommit(t *testing.T) {
	f := newOrderFixture(t)

	// 默认不校验实时库存：下单数量超过库存也能成功，库存不变
	f.create(t, f.fixedLine(11))

	assert.Equal(t, int64(10), testutil.Stock(t, f.db, f.cat.Mug.ID))
	assert.Equal(t, int64(30), testutil.Stock(t, f.db, f.cat.Coaster.ID))
}

func TestCreateOrder_StrictStockCheck(t *testing.T) {
	f := newOrderFixture(t, func(c *config.Config) { c.Order.StrictStockCheck = true })

	_, err := f.orders.CreateOrder(f.ctx, CreateOrderInput{
		Cart:          cart.Cart{Lines: []cart.Line{f.fixedLine(11)}},
		Customer:      customer(),
		PaymentMethod: order.PaymentCOD,
	})
	assert.ErrorIs(t, err, ErrQuantityExceedsStock)

	f.create(t, f.fixedLine(10))
}

func TestCreateOrder_ClientPriceIgnored(t *testing.T) {
	f := newOrderFixture(t)
	line := f.fixedLine(1)
	line.Price = decimal.NewFromInt(1)

	o := f.create(t, line)
	assert.True(t, o.TotalAmount.Equal(decimal.NewFromInt(500)))
}

func TestCreateOrder_Validation(t *testing.T) {
	f := newOrderFixture(t)
	valid := cart.Cart{Lines: []cart.Line{f.fixedLine(1)}}

	_, err := f.orders.CreateOrder(f.ctx, CreateOrderInput{Customer: customer(), PaymentMethod: order.PaymentCOD})
	assert.ErrorIs(t, err, ErrEmptyCart)

	_, err = f.orders.CreateOrder(f.ctx, CreateOrderInput{Cart: valid, Customer: order.Customer{Name: " "}, PaymentMethod: order.PaymentCOD})
	require.ErrorIs(t, err, ErrInvalidCustomer)
	assert.Contains(t, err.Error(), "name, phone, address")

	_, err = f.orders.CreateOrder(f.ctx, CreateOrderInput{Cart: valid, Customer: customer(), PaymentMethod: "cash"})
	assert.ErrorIs(t, err, ErrInvalidPaymentMethod)

	missing := f.configurableLine(1, 0, 0)
	missing.Options = missing.Options[1:]
	_, err = f.orders.CreateOrder(f.ctx, CreateOrderInput{Cart: cart.Cart{Lines: []cart.Line{missing}}, Customer: customer(), PaymentMethod: order.PaymentCOD})
	require.ErrorIs(t, err, pricing.ErrMissingOptionSelections)
	var mErr *pricing.MissingOptionSelectionsError
	require.True(t, errors.As(err, &mErr))
	assert.Equal(t, []string{"Size"}, mErr.Groups)

	_, err = f.orders.CreateOrder(f.ctx, CreateOrderInput{
		Cart:          cart.Cart{Lines: []cart.Line{{BundleID: 4242, Quantity: 1}}},
		Customer:      customer(),
		PaymentMethod: order.PaymentCOD,
	})
	assert.ErrorIs(t, err, bundle.ErrNotFound)

	for _, qty := range []int64{0, maxLineQuantity + 1} {
		_, err = f.orders.CreateOrder(f.ctx, CreateOrderInput{
			Cart:          cart.Cart{Lines: []cart.Line{f.fixedLine(qty)}},
			Customer:      customer(),
			PaymentMethod: order.PaymentCOD,
		})
		assert.ErrorIs(t, err, ErrInvalidQuantity, "qty %d", qty)
	}

	var n int64
	require.NoError(t, f.db.Model(&order.Order{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestCreateOrder_WithSlipStartsPending(t *testing.T) {
	f := newOrderFixture(t)

	o, err := f.orders.CreateOrder(f.ctx, CreateOrderInput{
		Cart:          cart.Cart{Lines: []cart.Line{f.fixedLine(1)}},
		Customer:      customer(),
		PaymentMethod: order.PaymentBankTransfer,
		SlipURL:       "https://slips.example/1.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, order.PaymentPending, o.PaymentStatus)

	f.dispatcher.Wait()
	assert.ElementsMatch(t, []event.Type{event.TypeOrderCreated, event.TypePaymentSlipUploaded}, publishedTypes(f.pub))
}

func TestCreateOrder_OrderNoCollisionExhausted(t *testing.T) {
	f := newOrderFixture(t)
	calls := 0
	f.orders.newRefs = func(time.Time) (string, string, error) {
		calls++
		return "BS261019000001", "AAAAAAAA", nil
	}

	f.create(t, f.fixedLine(1))
	calls = 0

	_, err := f.orders.CreateOrder(f.ctx, CreateOrderInput{
		Cart:          cart.Cart{Lines: []cart.Line{f.fixedLine(1)}},
		Customer:      customer(),
		PaymentMethod: order.PaymentCOD,
	})
	assert.ErrorIs(t, err, ErrOrderNoExhausted)
	assert.Equal(t, refAttempts, calls)
}

func TestCreateOrder_SnapshotSurvivesCatalogEdits(t *testing.T) {
	f := newOrderFixture(t)
	o := f.create(t, f.fixedLine(1), f.configurableLine(1, 1, 1))

	xl := f.cat.SizeGroup().Options[1]
	require.NoError(t, f.db.Model(&bundle.Bundle{}).Where("id = ?", f.cat.Configurable.ID).
		Updates(map[string]interface{}{"name": "Renamed", "base_price": decimal.NewFromInt(999)}).Error)
	require.NoError(t, f.db.Model(&bundle.Option{}).Where("id = ?", xl.ID).
		Updates(map[string]interface{}{"name": "XXL", "price_modifier": decimal.NewFromInt(80)}).Error)

	got, err := f.orders.GetOrder(f.ctx, o.OrderNo)
	require.NoError(t, err)
	assert.True(t, got.TotalAmount.Equal(decimal.NewFromInt(870)), got.TotalAmount.String())
	assert.Equal(t, "Merch Pack", got.Items[1].BundleName)
	assert.True(t, got.Items[1].Price.Equal(decimal.NewFromInt(370)))
	assert.Equal(t, "XL", got.Items[1].ChosenOptions[0].OptionName)
}

func TestGetOrder_RoundTripByBothRefs(t *testing.T) {
	f := newOrderFixture(t)
	o := f.create(t, f.fixedLine(2), f.configurableLine(1, 1, 0))

	byNo, err := f.orders.GetOrder(f.ctx, o.OrderNo)
	require.NoError(t, err)
	byFriendly, err := f.orders.GetOrder(f.ctx, o.FriendlyID)
	require.NoError(t, err)

	assert.True(t, byNo.TotalAmount.Equal(byFriendly.TotalAmount))
	require.Equal(t, len(byNo.Items), len(byFriendly.Items))
	for i := range byNo.Items {
		assert.Equal(t, byNo.Items[i].ID, byFriendly.Items[i].ID)
		assert.Equal(t, byNo.Items[i].Quantity, byFriendly.Items[i].Quantity)
		assert.True(t, byNo.Items[i].Price.Equal(byFriendly.Items[i].Price))
	}

	_, err = f.orders.GetOrder(f.ctx, "  ")
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestPromptPay_UsesStoredTotal(t *testing.T) {
	f := newOrderFixture(t)
	o := f.create(t, f.fixedLine(2), f.configurableLine(1, 1, 0))

	// 改价不影响已下单订单的付款金额
	require.NoError(t, f.db.Model(&bundle.Bundle{}).Where("id = ?", f.cat.Fixed.ID).Update("base_price", decimal.NewFromInt(1)).Error)

	pi, err := f.orders.PromptPay(f.ctx, o.FriendlyID)
	require.NoError(t, err)
	assert.True(t, pi.Amount.Equal(decimal.NewFromInt(1350)))
	assert.Contains(t, pi.Payload, "54071350.00")
	assert.Equal(t, "Bundle Shop", pi.AccountName)

	want, err := promptpay.Generate("0812345678", decimal.NewNullDecimal(decimal.NewFromInt(1350)))
	require.NoError(t, err)
	assert.Equal(t, want, pi.Payload)
}

func TestPromptPay_NotConfigured(t *testing.T) {
	f := newOrderFixture(t, func(c *config.Config) { c.Payment.PromptPayID = "" })
	o := f.create(t, f.fixedLine(1))

	_, err := f.orders.PromptPay(f.ctx, o.OrderNo)
	assert.ErrorIs(t, err, ErrPromptPayNotConfigured)
}
