package model

import (
	"time"

	"gorm.io/datatypes"
)

// ==================== 原始数据表 ====================

// 原始 API 响应原样落库，与规范化解释完全解耦：
// 提取规则改了可以随时从 raw 重放，同步路径永远不删 raw 行。

// TemuOrderRaw 订单原始数据（父单维度）
type TemuOrderRaw struct {
	ID            int64          `gorm:"primaryKey;autoIncrement"`
	ShopID        int64          `gorm:"not null;uniqueIndex:idx_raw_shop_parent"`
	ParentOrderSn string         `gorm:"size:64;not null;uniqueIndex:idx_raw_shop_parent"`
	Payload       datatypes.JSON `gorm:"type:jsonb"`
	FetchedAt     time.Time
}

func (TemuOrderRaw) TableName() string {
	return "temu_orders_raw"
}

// TemuProductRaw 商品原始数据
type TemuProductRaw struct {
	ID        int64          `gorm:"primaryKey;autoIncrement"`
	ShopID    int64          `gorm:"not null;uniqueIndex:idx_raw_shop_goods"`
	GoodsID   string         `gorm:"size:64;not null;uniqueIndex:idx_raw_shop_goods"`
	Payload   datatypes.JSON `gorm:"type:jsonb"`
	FetchedAt time.Time
}

func (TemuProductRaw) TableName() string {
	return "temu_products_raw"
}
