package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"temu_erp_v1_202609/internal/service"
	"temu_erp_v1_202609/internal/task"
)

// SyncController 同步控制器
// 手动触发走同步等待模式：接口返回即知本轮结果，冷却由中间件把门
type SyncController struct {
	orderSvc    *service.OrderSyncService
	productSvc  *service.ProductSyncService
	shopSvc     *service.ShopService
	taskManager *task.TaskManager
}

// NewSyncController 创建同步控制器
func NewSyncController(
	orderSvc *service.OrderSyncService,
	productSvc *service.ProductSyncService,
	shopSvc *service.ShopService,
	taskManager *task.TaskManager,
) *SyncController {
	return &SyncController{
		orderSvc:    orderSvc,
		productSvc:  productSvc,
		shopSvc:     shopSvc,
		taskManager: taskManager,
	}
}

// ==================== 手动触发 ====================

// TriggerOrderSync 手动同步单店订单
// POST /api/v1/shops/:id/sync/orders?full=true
func (c *SyncController) TriggerOrderSync(ctx *gin.Context) {
	shopID := parseID(ctx, "id")
	if shopID == 0 {
		return
	}
	full := ctx.Query("full") == "true"

	result, err := c.orderSvc.SyncOrders(ctx.Request.Context(), shopID, full)
	if err != nil {
		c.renderSyncError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"code":    200,
		"message": "订单同步完成",
		"data":    result,
	})
}

// TriggerProductSync 手动同步单店商品
// POST /api/v1/shops/:id/sync/products
func (c *SyncController) TriggerProductSync(ctx *gin.Context) {
	shopID := parseID(ctx, "id")
	if shopID == 0 {
		return
	}
	full := ctx.Query("full") == "true"

	result, err := c.productSvc.SyncProducts(ctx.Request.Context(), shopID, full)
	if err != nil {
		c.renderSyncError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"code":    200,
		"message": "商品同步完成",
		"data":    result,
	})
}

// TriggerAllOrderSync 触发全店订单同步（异步）
// POST /api/v1/sync/orders
func (c *SyncController) TriggerAllOrderSync(ctx *gin.Context) {
	c.taskManager.OrderTask().SyncAllNow()
	ctx.JSON(http.StatusOK, gin.H{
		"code":    200,
		"message": "全店订单同步已启动",
	})
}

// ==================== 状态查询 ====================

// GetSyncStatus 查询店铺同步状态
// GET /api/v1/shops/:id/sync/status
func (c *SyncController) GetSyncStatus(ctx *gin.Context) {
	shopID := parseID(ctx, "id")
	if shopID == 0 {
		return
	}

	status, err := c.shopSvc.GetSyncStatus(ctx.Request.Context(), shopID)
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"code": 404, "message": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"code": 200, "data": status})
}

// ==================== 工具函数 ====================

func (c *SyncController) renderSyncError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSyncInProgress):
		ctx.JSON(http.StatusConflict, gin.H{"code": 409, "message": err.Error()})
	case errors.Is(err, service.ErrShopNotSyncable):
		ctx.JSON(http.StatusForbidden, gin.H{"code": 403, "message": err.Error()})
	default:
		ctx.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": err.Error()})
	}
}

func parseID(ctx *gin.Context, key string) int64 {
	id, err := strconv.ParseInt(ctx.Param(key), 10, 64)
	if err != nil || id <= 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "无效的 ID"})
		return 0
	}
	return id
}
