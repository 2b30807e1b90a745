package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"temu_erp_v1_202609/internal/api/dto"
	"temu_erp_v1_202609/internal/service"
)

// OrderController 订单控制器
type OrderController struct {
	orderSvc  *service.OrderSyncService
	detailSvc *service.OrderDetailService
}

// NewOrderController 创建订单控制器
func NewOrderController(orderSvc *service.OrderSyncService, detailSvc *service.OrderDetailService) *OrderController {
	return &OrderController{orderSvc: orderSvc, detailSvc: detailSvc}
}

// List 订单列表
// GET /api/v1/orders
func (c *OrderController) List(ctx *gin.Context) {
	var req dto.OrderListRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": err.Error()})
		return
	}

	page, err := c.orderSvc.ListOrders(ctx.Request.Context(), &req)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"code": 200, "data": page})
}

// ListDetailTasks 详情补全任务列表
// GET /api/v1/detail-tasks
func (c *OrderController) ListDetailTasks(ctx *gin.Context) {
	var req dto.OrderListRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": err.Error()})
		return
	}

	page, err := c.detailSvc.ListTasks(ctx.Request.Context(), req.ShopID, req.Status, req.Page, req.PageSize)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"code": 200, "data": page})
}
