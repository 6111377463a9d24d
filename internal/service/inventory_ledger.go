package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/bundleshop/internal/datamodels/bundle"
	"github.com/example/bundleshop/internal/datamodels/inventory"
	"github.com/example/bundleshop/internal/datamodels/order"
	"github.com/example/bundleshop/internal/datamodels/product"
	"github.com/example/bundleshop/internal/repository/mysql"
)

// deduction 一次扣减的结果，事务提交后再记日志和计数
type deduction struct {
	claimed bool
	alerts  []*inventory.StockAlert
}

// deductStock 必须在确认订单的同一个事务里调用。
// 先用 stock_deducted_at IS NULL 抢占扣减权，抢不到说明已经扣过，直接返回。
func deductStock(ctx context.Context, tx *gorm.DB, o *order.Order, now time.Time) (*deduction, error) {
	orders := mysql.NewOrderRepository(tx)
	claimed, err := orders.ClaimStockDeduction(ctx, o.ID, now)
	if err != nil {
		return nil, fmt.Errorf("claim stock deduction: %w", err)
	}
	if !claimed {
		return &deduction{}, nil
	}

	demand, err := stockDemand(ctx, mysql.NewBundleRepository(tx), o)
	if err != nil {
		return nil, err
	}

	// 按商品 ID 顺序扣减，并发事务的加锁顺序一致
	ids := make([]int64, 0, len(demand))
	for id := range demand {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	products := mysql.NewProductRepository(tx)
	alerts := mysql.NewAlertRepository(tx)
	d := &deduction{claimed: true}
	for _, id := range ids {
		left, err := products.DecrementStock(ctx, id, demand[id])
		if errors.Is(err, product.ErrNotFound) {
			zap.L().Warn("product gone, skip stock deduction",
				zap.Int64("order_id", o.ID), zap.Int64("product_id", id), zap.Int64("amount", demand[id]))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("decrement product %d: %w", id, err)
		}
		if left >= 0 {
			continue
		}
		a := &inventory.StockAlert{
			ProductID:  id,
			OrderID:    o.ID,
			Requested:  demand[id],
			StockAfter: left,
			Source:     inventory.SourceConfirmation,
		}
		if err := alerts.Create(ctx, a); err != nil {
			return nil, fmt.Errorf("record oversold alert: %w", err)
		}
		d.alerts = append(d.alerts, a)
	}
	return d, nil
}

// stockDemand 汇总订单对每个商品的扣减量：
// fixed 按下单时快照的组成 component.quantity × order_item.quantity；
// configurable 只认下单时快照的选项商品，每份扣 order_item.quantity。
func stockDemand(ctx context.Context, bundles bundle.Repository, o *order.Order) (map[int64]int64, error) {
	demand := make(map[int64]int64)
	for _, it := range o.Items {
		switch it.BundleType {
		case bundle.TypeFixed:
			components := it.Components
			if len(components) == 0 {
				// 没有组成快照的旧订单退回读当前 bundle
				live, err := liveComponents(ctx, bundles, o, it)
				if err != nil {
					return nil, err
				}
				components = live
			}
			for _, c := range components {
				if err := addDemand(demand, c.ProductID, c.Quantity, it.Quantity); err != nil {
					return nil, fmt.Errorf("order item %d: %w", it.ID, err)
				}
			}
		case bundle.TypeConfigurable:
			for _, opt := range it.ChosenOptions {
				if err := addDemand(demand, opt.ProductID, 1, it.Quantity); err != nil {
					return nil, fmt.Errorf("order item %d: %w", it.ID, err)
				}
			}
		}
	}
	return demand, nil
}

func liveComponents(ctx context.Context, bundles bundle.Repository, o *order.Order, it order.Item) ([]order.Component, error) {
	b, err := bundles.GetByID(ctx, it.BundleID)
	if errors.Is(err, bundle.ErrNotFound) {
		zap.L().Warn("bundle gone, skip stock deduction",
			zap.Int64("order_id", o.ID), zap.Int64("bundle_id", it.BundleID))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load bundle %d: %w", it.BundleID, err)
	}
	out := make([]order.Component, 0, len(b.Items))
	for _, bi := range b.Items {
		out = append(out, order.Component{ProductID: bi.ProductID, Quantity: bi.Quantity})
	}
	return out, nil
}

// addDemand 累加 per × qty，非正数或溢出返回 ErrInvalidQuantity
func addDemand(demand map[int64]int64, productID, per, qty int64) error {
	if per <= 0 || qty <= 0 || per > math.MaxInt64/qty {
		return ErrInvalidQuantity
	}
	cur := demand[productID]
	if cur > math.MaxInt64-per*qty {
		return ErrInvalidQuantity
	}
	demand[productID] = cur + per*qty
	return nil
}

// InventoryService 超卖告警查询与巡检
type InventoryService struct {
	products product.Repository
	alerts   inventory.AlertRepository
	now      func() time.Time
}

func NewInventoryService(products product.Repository, alerts inventory.AlertRepository) *InventoryService {
	return &InventoryService{products: products, alerts: alerts, now: time.Now}
}

func (s *InventoryService) ListOpenAlerts(ctx context.Context, limit int) ([]*inventory.StockAlert, error) {
	return s.alerts.ListOpen(ctx, limit)
}

func (s *InventoryService) ResolveAlert(ctx context.Context, id int64) error {
	return s.alerts.Resolve(ctx, id, s.now())
}

func (s *InventoryService) ListOversold(ctx context.Context) ([]*product.Product, error) {
	return s.products.ListOversold(ctx)
}

// Audit 扫描负库存商品，没有未处理告警的补一条，返回新增告警数
func (s *InventoryService) Audit(ctx context.Context) (int, error) {
	list, err := s.products.ListOversold(ctx)
	if err != nil {
		return 0, err
	}
	created := 0
	for _, p := range list {
		open, err := s.alerts.HasOpen(ctx, p.ID)
		if err != nil {
			return created, err
		}
		if open {
			continue
		}
		if err := s.alerts.Create(ctx, &inventory.StockAlert{
			ProductID:  p.ID,
			StockAfter: p.StockQuantity,
			Source:     inventory.SourceAudit,
		}); err != nil {
			return created, err
		}
		created++
		GetMonitor().RecordOversold()
		zap.L().Warn("oversold product found by audit",
			zap.Int64("product_id", p.ID),
			zap.String("name", p.Name),
			zap.Int64("stock", p.StockQuantity))
	}
	return created, nil
}
