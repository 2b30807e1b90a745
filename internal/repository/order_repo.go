package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"temu_erp_v1_202609/internal/model"
)

// ==================== 过滤条件 ====================

// OrderFilter 订单过滤条件
type OrderFilter struct {
	ShopID        int64
	Status        string
	ParentOrderSn string
	StartDate     *time.Time
	EndDate       *time.Time
	Page          int
	PageSize      int
}

// ==================== OrderRepository 订单仓库 ====================

// OrderRepository 订单仓库接口
type OrderRepository interface {
	// GetByNaturalKey 按自然键 (order_sn, sku_id, spu_id) 查找，不存在返回 (nil, nil)
	GetByNaturalKey(ctx context.Context, orderSn, skuID, spuID string) (*model.Order, error)
	Create(ctx context.Context, order *model.Order) error
	Update(ctx context.Context, order *model.Order) error
	List(ctx context.Context, filter OrderFilter) ([]model.Order, int64, error)
	ListByParent(ctx context.Context, shopID int64, parentOrderSn string) ([]model.Order, error)

	// UpdatePackageSn 回填父单下所有行的包裹号（详情补全成功后调用）
	UpdatePackageSn(ctx context.Context, shopID int64, parentOrderSn, packageSn string) error
}

// ==================== 实现 ====================

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓库
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) GetByNaturalKey(ctx context.Context, orderSn, skuID, spuID string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Where("order_sn = ? AND sku_id = ? AND spu_id = ?", orderSn, skuID, spuID).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *orderRepository) Update(ctx context.Context, order *model.Order) error {
	return r.db.WithContext(ctx).Save(order).Error
}

func (r *orderRepository) List(ctx context.Context, filter OrderFilter) ([]model.Order, int64, error) {
	var orders []model.Order
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Order{})
	if filter.ShopID > 0 {
		db = db.Where("shop_id = ?", filter.ShopID)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.ParentOrderSn != "" {
		db = db.Where("parent_order_sn = ?", filter.ParentOrderSn)
	}
	if filter.StartDate != nil {
		db = db.Where("temu_created_at >= ?", filter.StartDate)
	}
	if filter.EndDate != nil {
		db = db.Where("temu_created_at <= ?", filter.EndDate)
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

	err := db.Order("temu_created_at DESC").Limit(filter.PageSize).Offset(offset).Find(&orders).Error
	return orders, total, err
}

func (r *orderRepository) ListByParent(ctx context.Context, shopID int64, parentOrderSn string) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND parent_order_sn = ?", shopID, parentOrderSn).
		Find(&orders).Error
	return orders, err
}

func (r *orderRepository) UpdatePackageSn(ctx context.Context, shopID int64, parentOrderSn, packageSn string) error {
	return r.db.WithContext(ctx).Model(&model.Order{}).
		Where("shop_id = ? AND parent_order_sn = ?", shopID, parentOrderSn).
		Update("package_sn", packageSn).Error
}
