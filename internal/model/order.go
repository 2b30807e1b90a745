package model

import (
	"time"
)

// ==================== 订单状态常量 ====================

// OrderStatus 本地订单状态（由平台父单状态码归一）
const (
	OrderStatusPending   = "pending"   // 待发货
	OrderStatusShipped   = "shipped"   // 已发货
	OrderStatusReceipted = "receipted" // 已签收
	OrderStatusCanceled  = "canceled"  // 已取消
)

// 平台父单状态码（接口返回的 parentOrderStatus）
const (
	TemuParentStatusPending   = 0 // 待处理
	TemuParentStatusUnShipped = 1 // 待发货
	TemuParentStatusCanceled  = 2 // 已取消
	TemuParentStatusShipped   = 3 // 已发货
	TemuParentStatusReceipted = 4 // 已签收
)

// ParentStatusToLocal 平台父单状态码归一为本地状态
func ParentStatusToLocal(code int) string {
	switch code {
	case TemuParentStatusCanceled:
		return OrderStatusCanceled
	case TemuParentStatusShipped:
		return OrderStatusShipped
	case TemuParentStatusReceipted:
		return OrderStatusReceipted
	default:
		return OrderStatusPending
	}
}

// ==================== Order 订单（规范化行）====================

// Order 规范化订单行
// 一个父单携带多个 SKU 时拆成多行，自然键 (order_sn, sku_id, spu_id)，
// 同一父单的行共享 parent_order_sn。重复同步按自然键覆盖，主键 id 不变，
// 外部引用（报表、发货单）不失效
type Order struct {
	ID     int64 `gorm:"primaryKey;autoIncrement"`
	ShopID int64 `gorm:"index;not null"`

	// 自然键
	OrderSn string `gorm:"size:64;not null;uniqueIndex:idx_order_sku_spu"`
	SkuID   string `gorm:"size:64;not null;uniqueIndex:idx_order_sku_spu"`
	SpuID   string `gorm:"size:64;not null;uniqueIndex:idx_order_sku_spu"`

	// 父单关联
	ParentOrderSn string `gorm:"size:64;index;not null"`

	// 状态
	Status           string `gorm:"size:32;index;default:pending"`
	TemuParentStatus int    // 平台父单状态码原值

	// 商品信息
	GoodsName string `gorm:"size:500"`
	Quantity  int    `gorm:"default:1"`

	// 收件信息（规范化提取，提不出就留空）
	ReceiptName string `gorm:"size:255"`
	City        string `gorm:"size:128"`
	Address     string `gorm:"size:500"`

	// 包裹号（列表接口偶尔带；缺失时由详情补全任务回填）
	PackageSn string `gorm:"size:64;index"`

	// 金额（统一人民币，分为单位）
	GmvFen      int64  // 成交额
	CostFen     int64  // 成本（有商品成本时回填）
	ProfitFen   int64  // 利润 = GMV - 成本，仅在成本已知时计算
	RawCurrency string `gorm:"size:10"` // 平台原始币种

	// 原始数据回链（父单维度）
	RawID *int64 `gorm:"index"`

	// 平台时间
	TemuCreatedAt *time.Time
	TemuUpdatedAt *time.Time
	SyncedAt      *time.Time

	// 审计
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Order) TableName() string {
	return "orders"
}

// GetGmv 成交额（元）
func (o *Order) GetGmv() float64 {
	return float64(o.GmvFen) / 100
}

// GetProfit 利润（元）
func (o *Order) GetProfit() float64 {
	return float64(o.ProfitFen) / 100
}

// IsShippedWithoutPackage 已发货但没有包裹号，需要详情补全
func (o *Order) IsShippedWithoutPackage() bool {
	return o.Status == OrderStatusShipped && o.PackageSn == ""
}
