package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"temu_erp_v1_202609/internal/model"
)

// ==================== 过滤条件 ====================

// ShopFilter 店铺过滤条件
type ShopFilter struct {
	Status   int
	Region   string
	Page     int
	PageSize int
}

// SyncEntity 同步实体类型（订单/商品各一份游标）
type SyncEntity string

const (
	SyncEntityOrder   SyncEntity = "order"
	SyncEntityProduct SyncEntity = "product"
)

// ==================== ShopRepository 店铺仓库 ====================

// ShopRepository 店铺仓库接口
type ShopRepository interface {
	// GetByID 按主键查找，不存在返回 (nil, nil)
	GetByID(ctx context.Context, id int64) (*model.Shop, error)
	List(ctx context.Context, filter ShopFilter) ([]model.Shop, int64, error)
	Update(ctx context.Context, shop *model.Shop) error

	// 同步游标
	// TryBeginSync 原子地把游标从非 syncing 置为 syncing，抢不到返回 false
	TryBeginSync(ctx context.Context, shopID int64, entity SyncEntity) (bool, error)
	// FinishSync 成功收尾：推进游标时间戳、状态回 idle、清错误
	FinishSync(ctx context.Context, shopID int64, entity SyncEntity, full bool, at time.Time) error
	// FailSync 失败收尾：状态置 error，游标不推进
	FailSync(ctx context.Context, shopID int64, entity SyncEntity, errMsg string) error

	// 凭证失效（业务错误分类为重新授权时调用）
	MarkTokenInvalid(ctx context.Context, shopID int64) error
}

// ==================== 实现 ====================

type shopRepository struct {
	db *gorm.DB
}

// NewShopRepository 创建店铺仓库
func NewShopRepository(db *gorm.DB) ShopRepository {
	return &shopRepository{db: db}
}

func (r *shopRepository) GetByID(ctx context.Context, id int64) (*model.Shop, error) {
	var shop model.Shop
	err := r.db.WithContext(ctx).First(&shop, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &shop, nil
}

func (r *shopRepository) List(ctx context.Context, filter ShopFilter) ([]model.Shop, int64, error) {
	var shops []model.Shop
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Shop{})
	if filter.Status > 0 {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.Region != "" {
		db = db.Where("region = ?", filter.Region)
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

	err := db.Order("id ASC").Limit(filter.PageSize).Offset(offset).Find(&shops).Error
	return shops, total, err
}

func (r *shopRepository) Update(ctx context.Context, shop *model.Shop) error {
	return r.db.WithContext(ctx).Save(shop).Error
}

// statusColumn 各实体的游标列名
func statusColumn(entity SyncEntity) string {
	if entity == SyncEntityProduct {
		return "product_sync_status"
	}
	return "order_sync_status"
}

func errorColumn(entity SyncEntity) string {
	if entity == SyncEntityProduct {
		return "last_product_sync_error"
	}
	return "last_order_sync_error"
}

func (r *shopRepository) TryBeginSync(ctx context.Context, shopID int64, entity SyncEntity) (bool, error) {
	col := statusColumn(entity)
	// 条件更新即互斥：同一 (店铺, 实体) 任一时刻只允许一轮同步
	result := r.db.WithContext(ctx).Model(&model.Shop{}).
		Where("id = ?", shopID).
		Where(col+" <> ?", model.SyncStatusSyncing).
		Update(col, model.SyncStatusSyncing)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *shopRepository) FinishSync(ctx context.Context, shopID int64, entity SyncEntity, full bool, at time.Time) error {
	fields := map[string]interface{}{
		statusColumn(entity): model.SyncStatusIdle,
		errorColumn(entity):  "",
	}

	// 游标推进到"当下"而不是最后一条数据的时间戳，容忍平台侧时钟偏差
	switch entity {
	case SyncEntityProduct:
		fields["last_product_sync_at"] = at
		if full {
			fields["last_product_full_sync_at"] = at
		}
	default:
		fields["last_incremental_sync_at"] = at
		if full {
			fields["last_full_sync_at"] = at
		}
	}

	return r.db.WithContext(ctx).Model(&model.Shop{}).Where("id = ?", shopID).Updates(fields).Error
}

func (r *shopRepository) FailSync(ctx context.Context, shopID int64, entity SyncEntity, errMsg string) error {
	return r.db.WithContext(ctx).Model(&model.Shop{}).Where("id = ?", shopID).Updates(map[string]interface{}{
		statusColumn(entity): model.SyncStatusError,
		errorColumn(entity):  errMsg,
	}).Error
}

func (r *shopRepository) MarkTokenInvalid(ctx context.Context, shopID int64) error {
	return r.db.WithContext(ctx).Model(&model.Shop{}).Where("id = ?", shopID).
		Update("token_status", model.TokenStatusInvalid).Error
}
