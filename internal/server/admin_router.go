package server

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kataras/iris/v12"
	"github.com/shopspring/decimal"

	"github.com/example/bundleshop/internal/auth"
	"github.com/example/bundleshop/internal/config"
	"github.com/example/bundleshop/internal/datamodels/bundle"
	"github.com/example/bundleshop/internal/datamodels/product"
	"github.com/example/bundleshop/internal/middleware"
	"github.com/example/bundleshop/internal/service"
)

// Admin 后台接口依赖的服务
type Admin struct {
	Catalog   *service.CatalogService
	Orders    *service.OrderService
	Status    *service.StatusService
	Inventory *service.InventoryService
	Tokens    *auth.TokenCache
}

// RegisterAdminRoutes 注册后台管理端的 HTTP 路由
// 端口通常是 8081，与前台 Web 服务分离。
func RegisterAdminRoutes(app *iris.Application, cfg *config.Config, svc *Admin) {
	app.Get("/health", func(ctx iris.Context) {
		ctx.JSON(iris.Map{"code": 0, "msg": "ok"})
	})

	api := app.Party("/api", middleware.RequireAdmin(&cfg.JWT, svc.Tokens))

	// ---------- 商品管理 ----------

	api.Get("/products", func(ctx iris.Context) {
		list, err := svc.Catalog.ListProducts(ctx.Request().Context())
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, list)
	})

	api.Post("/products", func(ctx iris.Context) {
		var req productRequest
		if err := ctx.ReadJSON(&req); err != nil {
			badJSON(ctx, err)
			return
		}
		p := &product.Product{}
		if err := req.applyTo(p); err != nil {
			badJSON(ctx, err)
			return
		}
		if err := svc.Catalog.CreateProduct(ctx.Request().Context(), p); err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, p)
	})

	api.Put("/products/{id:int64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		p, err := svc.Catalog.GetProduct(ctx.Request().Context(), id)
		if err != nil {
			fail(ctx, err)
			return
		}
		var req productRequest
		if err := ctx.ReadJSON(&req); err != nil {
			badJSON(ctx, err)
			return
		}
		if err := req.applyTo(p); err != nil {
			badJSON(ctx, err)
			return
		}
		if err := svc.Catalog.UpdateProduct(ctx.Request().Context(), p); err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, p)
	})

	// ---------- Bundle 管理 ----------

	api.Get("/bundles", func(ctx iris.Context) {
		list, err := svc.Catalog.ListBundles(ctx.Request().Context())
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, list)
	})

	// 请求体就是 bundle 本身：fixed 带 items，configurable 带 option_groups
	api.Post("/bundles", func(ctx iris.Context) {
		var b bundle.Bundle
		if err := ctx.ReadJSON(&b); err != nil {
			badJSON(ctx, err)
			return
		}
		b.ID = 0
		if err := svc.Catalog.CreateBundle(ctx.Request().Context(), &b); err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, b)
	})

	api.Put("/bundles/{ref:string}", func(ctx iris.Context) {
		b, err := svc.Catalog.GetBundle(ctx.Request().Context(), ctx.Params().Get("ref"))
		if err != nil {
			fail(ctx, err)
			return
		}
		var req struct {
			Name      string          `json:"name"`
			BasePrice decimal.Decimal `json:"base_price"`
			Category  string          `json:"category"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			badJSON(ctx, err)
			return
		}
		b.Name, b.BasePrice, b.Category = req.Name, req.BasePrice, req.Category
		if err := svc.Catalog.UpdateBundle(ctx.Request().Context(), b); err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, b)
	})

	// ---------- 订单管理 ----------

	// 最近订单列表
	api.Get("/orders", func(ctx iris.Context) {
		limit, err := strconv.Atoi(ctx.URLParamDefault("limit", "20"))
		if err != nil || limit <= 0 {
			limit = 20
		}
		list, err := svc.Orders.ListRecent(ctx.Request().Context(), limit)
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, list)
	})

	api.Get("/orders/{ref:string}", func(ctx iris.Context) {
		o, err := svc.Orders.GetOrder(ctx.Request().Context(), ctx.Params().Get("ref"))
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, o)
	})

	api.Get("/orders/{ref:string}/history", func(ctx iris.Context) {
		list, err := svc.Orders.History(ctx.Request().Context(), ctx.Params().Get("ref"))
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, list)
	})

	// 履约状态，第一次进入 confirmed 时扣减库存
	api.Put("/orders/{id:int64}/fulfillment", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		var req statusRequest
		if err := ctx.ReadJSON(&req); err != nil {
			badJSON(ctx, err)
			return
		}
		o, err := svc.Status.SetFulfillmentStatus(ctx.Request().Context(), id, req.Status, actorOf(ctx))
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, o)
	})

	api.Put("/orders/{id:int64}/payment", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		var req statusRequest
		if err := ctx.ReadJSON(&req); err != nil {
			badJSON(ctx, err)
			return
		}
		o, err := svc.Status.SetPaymentStatus(ctx.Request().Context(), id, req.Status, actorOf(ctx))
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, o)
	})

	// ---------- 库存告警 ----------

	api.Get("/alerts", func(ctx iris.Context) {
		limit, _ := strconv.Atoi(ctx.URLParamDefault("limit", "50"))
		list, err := svc.Inventory.ListOpenAlerts(ctx.Request().Context(), limit)
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, list)
	})

	api.Post("/alerts/{id:int64}/resolve", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		if err := svc.Inventory.ResolveAlert(ctx.Request().Context(), id); err != nil {
			fail(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "resolved"})
	})

	api.Get("/inventory/oversold", func(ctx iris.Context) {
		list, err := svc.Inventory.ListOversold(ctx.Request().Context())
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, list)
	})

	// 手动触发一次负库存巡检
	api.Post("/inventory/audit", func(ctx iris.Context) {
		n, err := svc.Inventory.Audit(ctx.Request().Context())
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, iris.Map{"created": n})
	})

	// ---------- 监控 ----------

	api.Get("/monitor", func(ctx iris.Context) {
		ok(ctx, service.GetMonitor().GetStats())
	})
}

type statusRequest struct {
	Status string `json:"status"`
}

func actorOf(ctx iris.Context) string {
	if a := ctx.Values().GetString(middleware.ActorKey); a != "" {
		return a
	}
	return "admin"
}

type productRequest struct {
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int64           `json:"stock_quantity"`
	Dimensions    string          `json:"dimensions"`
}

func (r *productRequest) applyTo(p *product.Product) error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("name is required")
	}
	p.Name = r.Name
	p.Price = r.Price
	p.StockQuantity = r.StockQuantity
	p.Dimensions = r.Dimensions
	return nil
}
