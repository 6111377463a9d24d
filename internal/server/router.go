package server

import (
	"github.com/kataras/iris/v12"

	"github.com/example/bundleshop/internal/config"
	"github.com/example/bundleshop/internal/datamodels/bundle"
	"github.com/example/bundleshop/internal/datamodels/cart"
	"github.com/example/bundleshop/internal/datamodels/order"
	"github.com/example/bundleshop/internal/middleware"
	"github.com/example/bundleshop/internal/service"
)

// Storefront 前台接口依赖的服务
type Storefront struct {
	Catalog *service.CatalogService
	Carts   *service.CartService
	Orders  *service.OrderService
	Status  *service.StatusService
}

// RegisterRoutes 注册前台 HTTP 路由。购物车由客户端持有，每次请求带上当前购物车
func RegisterRoutes(app *iris.Application, cfg *config.Config, svc *Storefront) {
	limiter := middleware.NewKeyedLimiter(cfg.Order.CheckoutBurst, float64(cfg.Order.CheckoutRate))
	rateLimit := middleware.RateLimitMiddleware(limiter)

	api := app.Party("/api")

	// 健康检查
	api.Get("/health", func(ctx iris.Context) {
		ctx.JSON(iris.Map{
			"code": 0,
			"msg":  "ok",
		})
	})

	// ---------- 目录 ----------

	api.Get("/bundles", func(ctx iris.Context) {
		list, err := svc.Catalog.ListBundles(ctx.Request().Context())
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, list)
	})

	// 支持数字 ID 或 slug
	api.Get("/bundles/{ref:string}", func(ctx iris.Context) {
		b, err := svc.Catalog.GetBundle(ctx.Request().Context(), ctx.Params().Get("ref"))
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, b)
	})

	// 选项变化时的实时报价和可购买数量
	api.Post("/bundles/{ref:string}/quote", func(ctx iris.Context) {
		var req struct {
			Selection bundle.Selection `json:"selection"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			badJSON(ctx, err)
			return
		}
		q, err := svc.Carts.Quote(ctx.Request().Context(), ctx.Params().Get("ref"), req.Selection)
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, q)
	})

	// ---------- 购物车 ----------

	api.Post("/cart/lines", rateLimit, func(ctx iris.Context) {
		var req struct {
			Cart      cart.Cart        `json:"cart"`
			Bundle    string           `json:"bundle"`
			Quantity  int64            `json:"quantity"`
			Selection bundle.Selection `json:"selection"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			badJSON(ctx, err)
			return
		}
		res, err := svc.Carts.AddLine(ctx.Request().Context(), service.AddLineRequest{
			ClientID:       ctx.GetHeader(middleware.ClientIDHeader),
			FallbackKey:    middleware.ClientKey(ctx),
			IdempotencyKey: ctx.GetHeader("Idempotency-Key"),
			Cart:           req.Cart,
			BundleRef:      req.Bundle,
			Quantity:       req.Quantity,
			Selection:      req.Selection,
		})
		if err != nil {
			fail(ctx, err)
			return
		}
		ctx.Header(middleware.ClientIDHeader, res.ClientID)
		ok(ctx, iris.Map{
			"client_id":    res.ClientID,
			"cart":         res.Cart,
			"line":         res.Line,
			"total":        res.Cart.Total(),
			"max_quantity": res.MaxQuantity,
		})
	})

	// quantity 为 0 时删除该行
	api.Put("/cart/lines", func(ctx iris.Context) {
		var req struct {
			Cart     cart.Cart `json:"cart"`
			Key      string    `json:"key"`
			Quantity int64     `json:"quantity"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			badJSON(ctx, err)
			return
		}
		c, err := svc.Carts.SetLineQuantity(ctx.Request().Context(), req.Cart, req.Key, req.Quantity)
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, iris.Map{"cart": c, "total": c.Total()})
	})

	// ---------- 下单 ----------

	api.Post("/checkout", rateLimit, func(ctx iris.Context) {
		var req struct {
			Cart          cart.Cart           `json:"cart"`
			Customer      order.Customer      `json:"customer"`
			PaymentMethod order.PaymentMethod `json:"payment_method"`
			SlipURL       string              `json:"slip_url"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			badJSON(ctx, err)
			return
		}
		o, err := svc.Orders.CreateOrder(ctx.Request().Context(), service.CreateOrderInput{
			Cart:          req.Cart,
			Customer:      req.Customer,
			PaymentMethod: req.PaymentMethod,
			SlipURL:       req.SlipURL,
		})
		if err != nil {
			fail(ctx, err)
			return
		}
		// 下单成功后客户端用返回的空购物车替换本地购物车
		ok(ctx, iris.Map{"order": o, "cart": cart.Cart{Lines: []cart.Line{}}})
	})

	// 按 order_no 或 friendly_id 查询
	api.Get("/orders/{ref:string}", func(ctx iris.Context) {
		o, err := svc.Orders.GetOrder(ctx.Request().Context(), ctx.Params().Get("ref"))
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, o)
	})

	// 继续付款：按保存的订单金额重新生成 PromptPay 载荷
	api.Get("/orders/{ref:string}/promptpay", func(ctx iris.Context) {
		p, err := svc.Orders.PromptPay(ctx.Request().Context(), ctx.Params().Get("ref"))
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, p)
	})

	// 上传付款凭证（文件存储在外部，这里只收 URL）
	api.Post("/orders/{ref:string}/slip", func(ctx iris.Context) {
		var req struct {
			SlipURL string `json:"slip_url"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			badJSON(ctx, err)
			return
		}
		o, err := svc.Status.AttachSlip(ctx.Request().Context(), ctx.Params().Get("ref"), req.SlipURL, "customer")
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, o)
	})
}
