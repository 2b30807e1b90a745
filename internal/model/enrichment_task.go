package model

import (
	"time"

	"gorm.io/datatypes"
)

// ==================== 详情补全任务 ====================

// 任务状态常量
const (
	DetailTaskStatusPending    = "pending"    // 待处理
	DetailTaskStatusProcessing = "processing" // 处理中
	DetailTaskStatusCompleted  = "completed"  // 成功（package_sn 可能确实为空）
	DetailTaskStatusFailed     = "failed"     // 重试耗尽，终态
)

// OrderDetailTask 订单详情补全任务
// 列表同步发现已发货父单缺包裹号时落一条任务，由后台 worker
// 异步调详情接口回填。任务表就是队列：详情接口又慢又限流，
// 排队状态必须扛得住进程重启
type OrderDetailTask struct {
	ID            int64          `gorm:"primaryKey;autoIncrement"`
	ShopID        int64          `gorm:"index;not null"`
	ParentOrderSn string         `gorm:"size:64;index;not null"`
	OrderSns      datatypes.JSON `gorm:"type:jsonb"` // 父单下的子单号列表

	Status       string `gorm:"size:16;index;default:'pending'"`
	PackageSn    string `gorm:"size:64"`
	ErrorMessage string `gorm:"type:text"`

	RetryCount int `gorm:"default:0"`
	MaxRetries int `gorm:"default:5"`

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

func (OrderDetailTask) TableName() string {
	return "order_detail_tasks"
}

// IsTerminal 是否已到终态
func (t *OrderDetailTask) IsTerminal() bool {
	return t.Status == DetailTaskStatusCompleted || t.Status == DetailTaskStatusFailed
}
