package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"temu_erp_v1_202609/internal/model"
)

// ==================== RawRepository 原始数据仓库 ====================

// RawRepository 原始数据仓库接口
// 只增改不删：同一外部 ID 重新抓取时整体替换 payload 和 fetched_at
type RawRepository interface {
	// UpsertOrderRaw 写入父单原始数据，返回行 ID 供规范化行回链
	UpsertOrderRaw(ctx context.Context, shopID int64, parentOrderSn string, payload []byte, fetchedAt time.Time) (int64, error)
	// UpsertProductRaw 写入商品原始数据，返回行 ID
	UpsertProductRaw(ctx context.Context, shopID int64, goodsID string, payload []byte, fetchedAt time.Time) (int64, error)

	GetOrderRaw(ctx context.Context, shopID int64, parentOrderSn string) (*model.TemuOrderRaw, error)
	GetProductRaw(ctx context.Context, shopID int64, goodsID string) (*model.TemuProductRaw, error)
}

// ==================== 实现 ====================

type rawRepository struct {
	db *gorm.DB
}

// NewRawRepository 创建原始数据仓库
func NewRawRepository(db *gorm.DB) RawRepository {
	return &rawRepository{db: db}
}

func (r *rawRepository) UpsertOrderRaw(ctx context.Context, shopID int64, parentOrderSn string, payload []byte, fetchedAt time.Time) (int64, error) {
	var existing model.TemuOrderRaw
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND parent_order_sn = ?", shopID, parentOrderSn).
		First(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		raw := model.TemuOrderRaw{
			ShopID:        shopID,
			ParentOrderSn: parentOrderSn,
			Payload:       datatypes.JSON(payload),
			FetchedAt:     fetchedAt,
		}
		if err := r.db.WithContext(ctx).Create(&raw).Error; err != nil {
			return 0, err
		}
		return raw.ID, nil
	}
	if err != nil {
		return 0, err
	}

	// 整体替换，行 ID 保持不变
	err = r.db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
		"payload":    datatypes.JSON(payload),
		"fetched_at": fetchedAt,
	}).Error
	return existing.ID, err
}

func (r *rawRepository) UpsertProductRaw(ctx context.Context, shopID int64, goodsID string, payload []byte, fetchedAt time.Time) (int64, error) {
	var existing model.TemuProductRaw
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND goods_id = ?", shopID, goodsID).
		First(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		raw := model.TemuProductRaw{
			ShopID:    shopID,
			GoodsID:   goodsID,
			Payload:   datatypes.JSON(payload),
			FetchedAt: fetchedAt,
		}
		if err := r.db.WithContext(ctx).Create(&raw).Error; err != nil {
			return 0, err
		}
		return raw.ID, nil
	}
	if err != nil {
		return 0, err
	}

	err = r.db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
		"payload":    datatypes.JSON(payload),
		"fetched_at": fetchedAt,
	}).Error
	return existing.ID, err
}

func (r *rawRepository) GetOrderRaw(ctx context.Context, shopID int64, parentOrderSn string) (*model.TemuOrderRaw, error) {
	var raw model.TemuOrderRaw
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND parent_order_sn = ?", shopID, parentOrderSn).
		First(&raw).Error
	if err != nil {
		return nil, err
	}
	return &raw, nil
}

func (r *rawRepository) GetProductRaw(ctx context.Context, shopID int64, goodsID string) (*model.TemuProductRaw, error) {
	var raw model.TemuProductRaw
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND goods_id = ?", shopID, goodsID).
		First(&raw).Error
	if err != nil {
		return nil, err
	}
	return &raw, nil
}
