package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/bundleshop/internal/config"
	"github.com/example/bundleshop/internal/datamodels/bundle"
	"github.com/example/bundleshop/internal/datamodels/cart"
	"github.com/example/bundleshop/internal/datamodels/product"
	"github.com/example/bundleshop/internal/pricing"
	"github.com/example/bundleshop/internal/repository/mysql"
	"github.com/example/bundleshop/internal/testutil"
)

type cartFixture struct {
	svc *CartService
	cat *testutil.Catalog
	ctx context.Context
}

func newCartFixture(t *testing.T) *cartFixture {
	t.Helper()
	db := testutil.NewDB(t)
	cat := testutil.SeedCatalog(t, db)
	guard, _ := newRedisGuard(t)
	svc := NewCartService(
		mysql.NewBundleRepository(db),
		mysql.NewProductRepository(db),
		guard,
		&config.CartConfig{DedupeWindow: 3 * time.Second},
	)
	return &cartFixture{svc: svc, cat: cat, ctx: context.Background()}
}

func (f *cartFixture) xlRed() bundle.Selection {
	return bundle.Selection{
		f.cat.SizeGroup().ID:  f.cat.SizeGroup().Options[1].ID,
		f.cat.ColorGroup().ID: f.cat.ColorGroup().Options[0].ID,
	}
}

func (f *cartFixture) xlGold() bundle.Selection {
	return bundle.Selection{
		f.cat.SizeGroup().ID:  f.cat.SizeGroup().Options[1].ID,
		f.cat.ColorGroup().ID: f.cat.ColorGroup().Options[1].ID,
	}
}

func TestCartService_CartTotalScenario(t *testing.T) {
	f := newCartFixture(t)

	res, err := f.svc.AddLine(f.ctx, AddLineRequest{BundleRef: "coffee-set", Quantity: 2})
	require.NoError(t, err)
	assert.NotEmpty(t, res.ClientID)
	assert.True(t, res.Line.Price.Equal(decimal.NewFromInt(500)))

	res, err = f.svc.AddLine(f.ctx, AddLineRequest{
		ClientID:  res.ClientID,
		Cart:      res.Cart,
		BundleRef: "merch-pack",
		Quantity:  1,
		Selection: f.xlRed(),
	})
	require.NoError(t, err)

	require.Len(t, res.Cart.Lines, 2)
	assert.True(t, res.Line.Price.Equal(decimal.NewFromInt(350)), res.Line.Price.String())
	assert.True(t, res.Cart.Total().Equal(decimal.NewFromInt(1350)), res.Cart.Total().String())
	require.Len(t, res.Line.Options, 2)
	assert.Equal(t, "Size", res.Line.Options[0].GroupName)
	assert.Equal(t, "XL", res.Line.Options[0].OptionName)
}

func TestCartService_DuplicateSubmissionSuppressed(t *testing.T) {
	f := newCartFixture(t)

	first, err := f.svc.AddLine(f.ctx, AddLineRequest{ClientID: "c1", BundleRef: "coffee-set", Quantity: 1})
	require.NoError(t, err)

	_, err = f.svc.AddLine(f.ctx, AddLineRequest{ClientID: "c1", Cart: first.Cart, BundleRef: "coffee-set", Quantity: 1})
	assert.ErrorIs(t, err, ErrDuplicateSubmission)
	assert.Len(t, first.Cart.Lines, 1)
	assert.Equal(t, int64(1), first.Cart.Lines[0].Quantity)

	// 其他客户端不受影响
	_, err = f.svc.AddLine(f.ctx, AddLineRequest{ClientID: "c2", BundleRef: "coffee-set", Quantity: 1})
	assert.NoError(t, err)
}

func TestCartService_FirstAddWithoutClientIDSuppressed(t *testing.T) {
	f := newCartFixture(t)

	first, err := f.svc.AddLine(f.ctx, AddLineRequest{FallbackKey: "ip:10.0.0.7", BundleRef: "coffee-set", Quantity: 1})
	require.NoError(t, err)
	require.NotEmpty(t, first.ClientID)

	// 客户端还没保存 client id 就重复提交
	_, err = f.svc.AddLine(f.ctx, AddLineRequest{FallbackKey: "ip:10.0.0.7", Cart: first.Cart, BundleRef: "coffee-set", Quantity: 1})
	assert.ErrorIs(t, err, ErrDuplicateSubmission)

	_, err = f.svc.AddLine(f.ctx, AddLineRequest{FallbackKey: "ip:10.0.0.8", BundleRef: "coffee-set", Quantity: 1})
	assert.NoError(t, err)
}

func TestCartService_IdempotencyKey(t *testing.T) {
	f := newCartFixture(t)

	_, err := f.svc.AddLine(f.ctx, AddLineRequest{ClientID: "c1", IdempotencyKey: "req-1", BundleRef: "coffee-set", Quantity: 1})
	require.NoError(t, err)

	_, err = f.svc.AddLine(f.ctx, AddLineRequest{ClientID: "c9", IdempotencyKey: "req-1", BundleRef: "merch-pack", Quantity: 1, Selection: f.xlRed()})
	assert.ErrorIs(t, err, ErrDuplicateSubmission)
}

func TestCartService_GuardFailsOpen(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.SeedCatalog(t, db)
	guard, mr := newRedisGuard(t)
	svc := NewCartService(mysql.NewBundleRepository(db), mysql.NewProductRepository(db), guard,
		&config.CartConfig{DedupeWindow: 3 * time.Second})
	mr.SetError("LOADING")

	for i := 0; i < 2; i++ {
		_, err := svc.AddLine(context.Background(), AddLineRequest{ClientID: "c1", BundleRef: "coffee-set", Quantity: 1})
		assert.NoError(t, err)
	}
}

func TestCartService_ServerPriceWins(t *testing.T) {
	f := newCartFixture(t)
	held := cart.Cart{Lines: []cart.Line{{BundleID: f.cat.Fixed.ID, Quantity: 1, Price: decimal.NewFromInt(1)}}}

	res, err := f.svc.AddLine(f.ctx, AddLineRequest{ClientID: "c1", Cart: held, BundleRef: "coffee-set", Quantity: 1})
	require.NoError(t, err)
	require.Len(t, res.Cart.Lines, 1)
	assert.Equal(t, int64(2), res.Cart.Lines[0].Quantity)
	assert.True(t, res.Cart.Total().Equal(decimal.NewFromInt(1000)))
}

func TestCartService_Validation(t *testing.T) {
	f := newCartFixture(t)

	_, err := f.svc.AddLine(f.ctx, AddLineRequest{ClientID: "c1", BundleRef: "coffee-set", Quantity: 0})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = f.svc.AddLine(f.ctx, AddLineRequest{ClientID: "c1", BundleRef: "missing", Quantity: 1})
	assert.ErrorIs(t, err, bundle.ErrNotFound)

	_, err = f.svc.AddLine(f.ctx, AddLineRequest{
		ClientID:  "c1",
		BundleRef: "merch-pack",
		Quantity:  1,
		Selection: bundle.Selection{f.cat.ColorGroup().ID: f.cat.ColorGroup().Options[0].ID},
	})
	require.ErrorIs(t, err, pricing.ErrMissingOptionSelections)
	var missing *pricing.MissingOptionSelectionsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"Size"}, missing.Groups)

	// XL(4) + Gold(2) 最多 2 份
	_, err = f.svc.AddLine(f.ctx, AddLineRequest{ClientID: "c1", BundleRef: "merch-pack", Quantity: 3, Selection: f.xlGold()})
	assert.ErrorIs(t, err, ErrQuantityExceedsStock)
}

func TestCartService_OutOfStock(t *testing.T) {
	db := testutil.NewDB(t)
	cat := testutil.SeedCatalog(t, db)
	require.NoError(t, db.Model(&product.Product{}).Where("id = ?", cat.Coaster.ID).Update("stock_quantity", 2).Error)
	svc := NewCartService(mysql.NewBundleRepository(db), mysql.NewProductRepository(db), nil, &config.CartConfig{})

	_, err := svc.AddLine(context.Background(), AddLineRequest{BundleRef: "coffee-set", Quantity: 1})
	assert.ErrorIs(t, err, ErrOutOfStock)
}

func TestCartService_MaxAvailableStock(t *testing.T) {
	db := testutil.NewDB(t)
	cat := testutil.SeedCatalog(t, db)
	svc := NewCartService(mysql.NewBundleRepository(db), mysql.NewProductRepository(db), nil, &config.CartConfig{})
	ctx := context.Background()

	fixed, err := mysql.NewBundleRepository(db).GetByID(ctx, cat.Fixed.ID)
	require.NoError(t, err)

	// Mug 10 / 1, Coaster 30 / 3
	n, err := svc.MaxAvailableStock(ctx, fixed, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)

	require.NoError(t, db.Model(&product.Product{}).Where("id = ?", cat.Coaster.ID).Update("stock_quantity", 14).Error)
	n, err = svc.MaxAvailableStock(ctx, fixed, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	require.NoError(t, db.Model(&product.Product{}).Where("id = ?", cat.Mug.ID).Update("stock_quantity", -3).Error)
	n, err = svc.MaxAvailableStock(ctx, fixed, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	conf, err := mysql.NewBundleRepository(db).GetByID(ctx, cat.Configurable.ID)
	require.NoError(t, err)
	n, err = svc.MaxAvailableStock(ctx, conf, bundle.Selection{
		cat.SizeGroup().ID:  cat.SizeGroup().Options[0].ID,
		cat.ColorGroup().ID: cat.ColorGroup().Options[0].ID,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestCartService_SetLineQuantity(t *testing.T) {
	f := newCartFixture(t)
	res, err := f.svc.AddLine(f.ctx, AddLineRequest{ClientID: "c1", BundleRef: "merch-pack", Quantity: 1, Selection: f.xlGold()})
	require.NoError(t, err)
	key := res.Line.Key()

	c, err := f.svc.SetLineQuantity(f.ctx, res.Cart, key, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), c.Lines[0].Quantity)

	_, err = f.svc.SetLineQuantity(f.ctx, c, key, 3)
	assert.ErrorIs(t, err, ErrQuantityExceedsStock)

	_, err = f.svc.SetLineQuantity(f.ctx, c, "nope", 1)
	assert.ErrorIs(t, err, ErrLineNotFound)

	c, err = f.svc.SetLineQuantity(f.ctx, c, key, 0)
	require.NoError(t, err)
	assert.True(t, c.Empty())
}
