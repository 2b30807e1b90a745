package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"temu_erp_v1_202609/internal/model"
)

// ==================== DetailTaskRepository 详情补全任务仓库 ====================

// DetailTaskFilter 任务过滤条件
type DetailTaskFilter struct {
	ShopID   int64
	Status   string
	Page     int
	PageSize int
}

// DetailTaskRepository 详情补全任务仓库接口
// 状态迁移一次一提交：崩溃最多留下一批 processing，由巡检任务复位
type DetailTaskRepository interface {
	Create(ctx context.Context, task *model.OrderDetailTask) error
	GetByID(ctx context.Context, id int64) (*model.OrderDetailTask, error)
	List(ctx context.Context, filter DetailTaskFilter) ([]model.OrderDetailTask, int64, error)

	// ExistsNonTerminal 该父单是否已有未到终态的任务（入队去重用）
	ExistsNonTerminal(ctx context.Context, shopID int64, parentOrderSn string) (bool, error)

	// FetchPending 取最早的一批待处理任务
	FetchPending(ctx context.Context, limit int) ([]model.OrderDetailTask, error)

	// MarkProcessing 占用任务；任务已被别人占走返回 false
	MarkProcessing(ctx context.Context, id int64) (bool, error)
	// MarkCompleted 成功终态，packageSn 允许为空（详情里确实没有）
	MarkCompleted(ctx context.Context, id int64, packageSn string) error
	// MarkFailure 失败一次：重试次数 +1，未到上限回 pending，到上限进 failed 终态
	MarkFailure(ctx context.Context, id int64, errMsg string) error

	// ResetStale 把卡死的 processing 复位回 pending（进程崩溃后的巡检）
	ResetStale(ctx context.Context, olderThan time.Time) (int64, error)
}

// ==================== 实现 ====================

type detailTaskRepository struct {
	db *gorm.DB
}

// NewDetailTaskRepository 创建详情补全任务仓库
func NewDetailTaskRepository(db *gorm.DB) DetailTaskRepository {
	return &detailTaskRepository{db: db}
}

func (r *detailTaskRepository) Create(ctx context.Context, task *model.OrderDetailTask) error {
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *detailTaskRepository) GetByID(ctx context.Context, id int64) (*model.OrderDetailTask, error) {
	var task model.OrderDetailTask
	err := r.db.WithContext(ctx).First(&task, id).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *detailTaskRepository) List(ctx context.Context, filter DetailTaskFilter) ([]model.OrderDetailTask, int64, error) {
	var tasks []model.OrderDetailTask
	var total int64

	db := r.db.WithContext(ctx).Model(&model.OrderDetailTask{})
	if filter.ShopID > 0 {
		db = db.Where("shop_id = ?", filter.ShopID)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
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

	err := db.Order("created_at DESC").Limit(filter.PageSize).Offset(offset).Find(&tasks).Error
	return tasks, total, err
}

func (r *detailTaskRepository) ExistsNonTerminal(ctx context.Context, shopID int64, parentOrderSn string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.OrderDetailTask{}).
		Where("shop_id = ? AND parent_order_sn = ?", shopID, parentOrderSn).
		Where("status IN ?", []string{model.DetailTaskStatusPending, model.DetailTaskStatusProcessing}).
		Count(&count).Error
	return count > 0, err
}

func (r *detailTaskRepository) FetchPending(ctx context.Context, limit int) ([]model.OrderDetailTask, error) {
	var tasks []model.OrderDetailTask
	err := r.db.WithContext(ctx).
		Where("status = ?", model.DetailTaskStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&tasks).Error
	return tasks, err
}

func (r *detailTaskRepository) MarkProcessing(ctx context.Context, id int64) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.OrderDetailTask{}).
		Where("id = ? AND status = ?", id, model.DetailTaskStatusPending).
		Update("status", model.DetailTaskStatusProcessing)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *detailTaskRepository) MarkCompleted(ctx context.Context, id int64, packageSn string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.OrderDetailTask{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       model.DetailTaskStatusCompleted,
			"package_sn":   packageSn,
			"completed_at": &now,
		}).Error
}

func (r *detailTaskRepository) MarkFailure(ctx context.Context, id int64, errMsg string) error {
	var task model.OrderDetailTask
	if err := r.db.WithContext(ctx).First(&task, id).Error; err != nil {
		return err
	}

	task.RetryCount++
	fields := map[string]interface{}{
		"retry_count":   task.RetryCount,
		"error_message": errMsg,
	}
	if task.RetryCount >= task.MaxRetries {
		now := time.Now()
		fields["status"] = model.DetailTaskStatusFailed
		fields["completed_at"] = &now
	} else {
		fields["status"] = model.DetailTaskStatusPending
	}

	return r.db.WithContext(ctx).Model(&model.OrderDetailTask{}).
		Where("id = ?", id).Updates(fields).Error
}

func (r *detailTaskRepository) ResetStale(ctx context.Context, olderThan time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.OrderDetailTask{}).
		Where("status = ? AND updated_at < ?", model.DetailTaskStatusProcessing, olderThan).
		Update("status", model.DetailTaskStatusPending)
	return result.RowsAffected, result.Error
}
