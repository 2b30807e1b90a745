package model

import (
	"time"
)

// Shop 店铺状态常量
const (
	ShopStatusPending  = 0 // 待授权
	ShopStatusActive   = 1 // 正常
	ShopStatusInactive = 2 // 已停用
)

// Token 状态常量
const (
	TokenStatusValid   = "valid"        // 有效
	TokenStatusInvalid = "auth_invalid" // 需重新授权
)

// 同步状态常量（订单/商品各自独立一份游标）
const (
	SyncStatusIdle    = "idle"    // 空闲
	SyncStatusSyncing = "syncing" // 同步中
	SyncStatusError   = "error"   // 上次同步失败（可重试）
)

// Shop 店铺
type Shop struct {
	BaseModel

	// 1. 核心身份
	TemuShopID int64  `gorm:"uniqueIndex"` // 平台侧 mallId
	ShopName   string `gorm:"size:100"`
	Region     string `gorm:"size:20;not null;default:'US'"` // 区分网关区域

	// 2. API 凭证
	// app 凭证可按店铺独立配置，留空时用全局配置兜底
	AppKey      string `gorm:"size:128"`
	AppSecret   string `gorm:"size:128"`
	AccessToken string `gorm:"size:255"`
	TokenStatus string `gorm:"index;size:20;default:'valid'"`

	// 3. 记账币种（平台侧结算币种，入库前统一折算人民币）
	CurrencyCode string `gorm:"size:10;default:'USD'"`

	// 4. 同步游标（订单）
	// 游标只在整轮成功后推进到"当下"，不用最后一条的时间戳，容忍时钟偏差
	OrderSyncStatus       string     `gorm:"size:16;default:'idle'"`
	LastFullSyncAt        *time.Time // 最近一次全量同步完成时间
	LastIncrementalSyncAt *time.Time // 增量窗口起点
	LastOrderSyncError    string     `gorm:"type:text"`

	// 5. 同步游标（商品）
	ProductSyncStatus     string     `gorm:"size:16;default:'idle'"`
	LastProductFullSyncAt *time.Time
	LastProductSyncAt     *time.Time
	LastProductSyncError  string     `gorm:"type:text"`

	// 6. 店铺状态
	Status int `gorm:"default:1;comment:状态 0-待授权 1-正常 2-已停用"`
}

func (Shop) TableName() string {
	return "shops"
}

// CanSync 店铺是否具备同步条件
func (s *Shop) CanSync() bool {
	return s.Status == ShopStatusActive && s.TokenStatus == TokenStatusValid && s.AccessToken != ""
}
