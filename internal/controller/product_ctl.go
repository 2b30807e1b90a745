package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"temu_erp_v1_202609/internal/api/dto"
	"temu_erp_v1_202609/internal/service"
)

// ProductController 商品控制器
type ProductController struct {
	productSvc *service.ProductSyncService
}

// NewProductController 创建商品控制器
func NewProductController(productSvc *service.ProductSyncService) *ProductController {
	return &ProductController{productSvc: productSvc}
}

// List 商品列表
// GET /api/v1/products
func (c *ProductController) List(ctx *gin.Context) {
	var req dto.ProductListRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": err.Error()})
		return
	}

	page, err := c.productSvc.ListProducts(ctx.Request.Context(), &req)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"code": 200, "data": page})
}
