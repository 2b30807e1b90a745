package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"temu_erp_v1_202609/internal/api/dto"
	"temu_erp_v1_202609/internal/model"
	"temu_erp_v1_202609/internal/repository"
	"temu_erp_v1_202609/pkg/normalize"
	"temu_erp_v1_202609/pkg/temu"
)

// ==================== OrderDetailService ====================

// OrderDetailService 订单详情补全服务
// 补全任务执行体：调详情接口抠包裹号，回填同父单的所有订单行。
// 任务状态迁移由 worker 负责，这里只管单次执行的成败
type OrderDetailService struct {
	shopRepo  repository.ShopRepository
	orderRepo repository.OrderRepository
	rawRepo   repository.RawRepository
	taskRepo  repository.DetailTaskRepository
	caller    temu.Caller
	now       func() time.Time // 测试注入
}

// NewOrderDetailService 创建详情补全服务
func NewOrderDetailService(
	shopRepo repository.ShopRepository,
	orderRepo repository.OrderRepository,
	rawRepo repository.RawRepository,
	taskRepo repository.DetailTaskRepository,
	caller temu.Caller,
) *OrderDetailService {
	return &OrderDetailService{
		shopRepo:  shopRepo,
		orderRepo: orderRepo,
		rawRepo:   rawRepo,
		taskRepo:  taskRepo,
		caller:    caller,
		now:       time.Now,
	}
}

// FetchPackageSn 执行一个补全任务：调详情接口提取包裹号并回填订单行
// 返回提取到的包裹号；详情确实没有包裹号时返回空串且不算失败
// （平台侧可能确实还没生成包裹）
func (s *OrderDetailService) FetchPackageSn(ctx context.Context, task *model.OrderDetailTask) (string, error) {
	shop, err := s.shopRepo.GetByID(ctx, task.ShopID)
	if err != nil {
		return "", fmt.Errorf("查询店铺失败: %w", err)
	}
	if shop == nil {
		return "", fmt.Errorf("店铺不存在: %d", task.ShopID)
	}
	if shop.TokenStatus != model.TokenStatusValid {
		return "", fmt.Errorf("店铺 %d token 失效，任务无法执行", task.ShopID)
	}

	bizParams := map[string]interface{}{
		"parentOrderSn": task.ParentOrderSn,
	}
	raw, err := s.caller.Call(ctx, task.ShopID, temu.APIOrderDetail, bizParams, shopCreds(shop))
	if err != nil {
		if temu.IsAuthError(err) {
			if markErr := s.shopRepo.MarkTokenInvalid(ctx, task.ShopID); markErr != nil {
				log.Printf("[OrderDetail] 店铺 %d 标记 token 失效失败: %v", task.ShopID, markErr)
			}
		}
		return "", fmt.Errorf("拉取父单 %s 详情失败: %w", task.ParentOrderSn, err)
	}

	var doc normalize.Payload
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", fmt.Errorf("解析父单 %s 详情失败: %w", task.ParentOrderSn, err)
	}

	packageSn := normalize.ExtractFirst(doc, normalize.PackageSnRules)
	if packageSn == "" {
		// 详情里就是没有，正常完结，等下轮列表同步再发现再补
		log.Printf("[OrderDetail] 店铺 %d 父单 %s 详情暂无包裹号", task.ShopID, task.ParentOrderSn)
		return "", nil
	}

	if err := s.orderRepo.UpdatePackageSn(ctx, task.ShopID, task.ParentOrderSn, packageSn); err != nil {
		return "", fmt.Errorf("父单 %s 包裹号回填失败: %w", task.ParentOrderSn, err)
	}

	log.Printf("[OrderDetail] 店铺 %d 父单 %s 包裹号回填: %s", task.ShopID, task.ParentOrderSn, packageSn)
	return packageSn, nil
}

// ==================== 查询 ====================

// ListTasks 补全任务列表查询
func (s *OrderDetailService) ListTasks(ctx context.Context, shopID int64, status string, page, pageSize int) (*dto.PageResponse, error) {
	tasks, total, err := s.taskRepo.List(ctx, repository.DetailTaskFilter{
		ShopID:   shopID,
		Status:   status,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return nil, err
	}

	items := make([]dto.DetailTaskResponse, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, dto.DetailTaskResponse{
			ID:            t.ID,
			ShopID:        t.ShopID,
			ParentOrderSn: t.ParentOrderSn,
			Status:        t.Status,
			PackageSn:     t.PackageSn,
			RetryCount:    t.RetryCount,
			MaxRetries:    t.MaxRetries,
			ErrorMessage:  t.ErrorMessage,
			CompletedAt:   t.CompletedAt,
			CreatedAt:     t.CreatedAt,
		})
	}
	return &dto.PageResponse{
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Items:    items,
	}, nil
}
