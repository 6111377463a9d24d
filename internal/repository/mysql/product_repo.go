package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/example/bundleshop/internal/datamodels/product"
)

type productRepo struct {
	db *gorm.DB
}

// NewProductRepository 创建商品仓储，db 可以是事务句柄
func NewProductRepository(db *gorm.DB) product.Repository {
	return &productRepo{db: db}
}

func (r *productRepo) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	var p product.Product
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, product.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *productRepo) GetByIDs(ctx context.Context, ids []int64) (map[int64]*product.Product, error) {
	out := make(map[int64]*product.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var list []*product.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&list).Error; err != nil {
		return nil, err
	}
	for _, p := range list {
		out[p.ID] = p
	}
	return out, nil
}

func (r *productRepo) ListAll(ctx context.Context) ([]*product.Product, error) {
	var list []*product.Product
	if err := r.db.WithContext(ctx).
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *productRepo) ListOversold(ctx context.Context) ([]*product.Product, error) {
	var list []*product.Product
	if err := r.db.WithContext(ctx).
		Where("stock_quantity < ?", 0).
		Order("stock_quantity ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *productRepo) GetStock(ctx context.Context, id int64) (int64, error) {
	var stock int64
	res := r.db.WithContext(ctx).
		Model(&product.Product{}).
		Where("id = ?", id).
		Select("stock_quantity").
		Limit(1).
		Scan(&stock)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, product.ErrNotFound
	}
	return stock, nil
}

// DecrementStock 用 stock_quantity = stock_quantity - ? 原子扣减，不做下限检查
func (r *productRepo) DecrementStock(ctx context.Context, id, amount int64) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&product.Product{}).
		Where("id = ?", id).
		Update("stock_quantity", gorm.Expr("stock_quantity - ?", amount))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, product.ErrNotFound
	}
	return r.GetStock(ctx, id)
}

func (r *productRepo) Create(ctx context.Context, p *product.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *productRepo) Update(ctx context.Context, p *product.Product) error {
	return r.db.WithContext(ctx).Save(p).Error
}
