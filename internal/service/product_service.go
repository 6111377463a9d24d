package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/example/bundleshop/internal/datamodels/bundle"
	"github.com/example/bundleshop/internal/datamodels/product"
)

var ErrInvalidProduct = errors.New("invalid product")

// CatalogService 商品与 bundle 目录维护
type CatalogService struct {
	products product.Repository
	bundles  bundle.Repository
}

func NewCatalogService(products product.Repository, bundles bundle.Repository) *CatalogService {
	return &CatalogService{products: products, bundles: bundles}
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]*product.Product, error) {
	return s.products.ListAll(ctx)
}

func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*product.Product, error) {
	return s.products.GetByID(ctx, id)
}

func (s *CatalogService) CreateProduct(ctx context.Context, p *product.Product) error {
	if err := checkProduct(p); err != nil {
		return err
	}
	if err := s.products.Create(ctx, p); err != nil {
		return err
	}
	zap.L().Info("product created", zap.Int64("product_id", p.ID), zap.String("name", p.Name))
	return nil
}

// UpdateProduct 后台直接覆盖库存，不能写成负数
func (s *CatalogService) UpdateProduct(ctx context.Context, p *product.Product) error {
	if err := checkProduct(p); err != nil {
		return err
	}
	return s.products.Update(ctx, p)
}

func checkProduct(p *product.Product) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return fmt.Errorf("%w: name required", ErrInvalidProduct)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	}
	if p.StockQuantity < 0 {
		return fmt.Errorf("%w: stock must not be negative", ErrInvalidProduct)
	}
	return nil
}

func (s *CatalogService) ListBundles(ctx context.Context) ([]*bundle.Bundle, error) {
	return s.bundles.ListAll(ctx)
}

func (s *CatalogService) GetBundle(ctx context.Context, ref string) (*bundle.Bundle, error) {
	return s.bundles.GetByRef(ctx, strings.TrimSpace(ref))
}

// CreateBundle 组成商品和选项指向的商品都必须存在
func (s *CatalogService) CreateBundle(ctx context.Context, b *bundle.Bundle) error {
	b.Slug = strings.TrimSpace(b.Slug)
	b.Name = strings.TrimSpace(b.Name)
	if b.Slug == "" || b.Name == "" || b.BasePrice.IsNegative() {
		return fmt.Errorf("%w: slug, name and non-negative base_price required", bundle.ErrInvalidShape)
	}
	if err := b.Validate(); err != nil {
		return err
	}

	var ids []int64
	for _, it := range b.Items {
		ids = append(ids, it.ProductID)
	}
	for _, g := range b.OptionGroups {
		for _, o := range g.Options {
			ids = append(ids, o.ProductID)
		}
	}
	found, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return fmt.Errorf("%w: id %d", product.ErrNotFound, id)
		}
	}

	if err := s.bundles.Create(ctx, b); err != nil {
		return err
	}
	zap.L().Info("bundle created",
		zap.Int64("bundle_id", b.ID),
		zap.String("slug", b.Slug),
		zap.String("type", string(b.Type)))
	return nil
}

// UpdateBundle 只改名称、价格、分类；已下的订单保留自己的快照
func (s *CatalogService) UpdateBundle(ctx context.Context, b *bundle.Bundle) error {
	b.Name = strings.TrimSpace(b.Name)
	if b.Name == "" || b.BasePrice.IsNegative() {
		return fmt.Errorf("%w: name and non-negative base_price required", bundle.ErrInvalidShape)
	}
	return s.bundles.Update(ctx, b)
}
