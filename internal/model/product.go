package model

import (
	"time"
)

// 商品上架状态
const (
	ProductStateActive   = "active"   // 在售
	ProductStateInactive = "inactive" // 下架
	ProductStateDraft    = "draft"    // 草稿/审核中
)

// Product 规范化商品
// 自然键 goods_id（平台商品 ID），每轮同步按自然键覆盖字段
type Product struct {
	ID     int64 `gorm:"primaryKey;autoIncrement"`
	ShopID int64 `gorm:"index;not null;uniqueIndex:idx_shop_goods"`

	// 自然键
	GoodsID string `gorm:"size:64;not null;uniqueIndex:idx_shop_goods"`

	// 商品信息
	GoodsName string `gorm:"size:500"`
	SpuID     string `gorm:"size:64;index"`
	SkcID     string `gorm:"size:64"`
	State     string `gorm:"size:16;index;default:'active'"`
	ImageURL  string `gorm:"size:500"`

	// 价格（统一人民币，分为单位）
	PriceFen    int64
	CostFen     int64  // 采购成本，运营手工维护，同步不覆盖
	RawCurrency string `gorm:"size:10"`

	// 库存与销量
	Quantity  int `gorm:"default:0"`
	SoldCount int `gorm:"default:0"`

	// 原始数据回链
	RawID *int64 `gorm:"index"`

	// 平台时间
	TemuUpdatedAt *time.Time
	SyncedAt      *time.Time

	// 审计
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Product) TableName() string {
	return "products"
}

// GetPrice 售价（元）
func (p *Product) GetPrice() float64 {
	return float64(p.PriceFen) / 100
}
