package mysql

import (
	"context"
	"errors"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/bundleshop/internal/datamodels/bundle"
)

type bundleRepo struct {
	db *gorm.DB
}

// NewBundleRepository 创建 bundle 仓储
func NewBundleRepository(db *gorm.DB) bundle.Repository {
	return &bundleRepo{db: db}
}

// withTree 预加载组成商品与选项组，组和选项都按 sort_order 排序
func (r *bundleRepo) withTree(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Items").
		Preload("OptionGroups", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, id ASC")
		}).
		Preload("OptionGroups.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, id ASC")
		})
}

func (r *bundleRepo) GetByID(ctx context.Context, id int64) (*bundle.Bundle, error) {
	var b bundle.Bundle
	if err := r.withTree(ctx).First(&b, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, bundle.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *bundleRepo) GetByRef(ctx context.Context, ref string) (*bundle.Bundle, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return r.GetByID(ctx, id)
	}
	var b bundle.Bundle
	if err := r.withTree(ctx).Where("slug = ?", ref).First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, bundle.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *bundleRepo) ListAll(ctx context.Context) ([]*bundle.Bundle, error) {
	var list []*bundle.Bundle
	if err := r.withTree(ctx).Order("id DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// Create 连同 Items / OptionGroups / Options 一起写入
func (r *bundleRepo) Create(ctx context.Context, b *bundle.Bundle) error {
	if err := b.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *bundleRepo) Update(ctx context.Context, b *bundle.Bundle) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(b).Error
}
