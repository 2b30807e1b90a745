package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"temu_erp_v1_202609/internal/model"
)

// ==================== ProductRepository 商品仓库 ====================

// ProductFilter 商品过滤条件
type ProductFilter struct {
	ShopID   int64
	State    string
	Keyword  string
	Page     int
	PageSize int
}

// ProductRepository 商品仓库接口
type ProductRepository interface {
	// GetByGoodsID 按自然键 (shop_id, goods_id) 查找，不存在返回 (nil, nil)
	GetByGoodsID(ctx context.Context, shopID int64, goodsID string) (*model.Product, error)
	Create(ctx context.Context, product *model.Product) error
	Update(ctx context.Context, product *model.Product) error
	List(ctx context.Context, filter ProductFilter) ([]model.Product, int64, error)
}

// ==================== 实现 ====================

type productRepository struct {
	db *gorm.DB
}

// NewProductRepository 创建商品仓库
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) GetByGoodsID(ctx context.Context, shopID int64, goodsID string) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND goods_id = ?", shopID, goodsID).
		First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) Create(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *productRepository) Update(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Save(product).Error
}

func (r *productRepository) List(ctx context.Context, filter ProductFilter) ([]model.Product, int64, error) {
	var products []model.Product
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Product{})
	if filter.ShopID > 0 {
		db = db.Where("shop_id = ?", filter.ShopID)
	}
	if filter.State != "" {
		db = db.Where("state = ?", filter.State)
	}
	if filter.Keyword != "" {
		keyword := "%" + filter.Keyword + "%"
		db = db.Where("goods_name LIKE ? OR goods_id LIKE ?", keyword, keyword)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	offset := (filter.Page - 1) * filter.PageSize

	err := db.Order("id DESC").Limit(filter.PageSize).Offset(offset).Find(&products).Error
	return products, total, err
}
