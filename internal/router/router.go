package router

import (
	"github.com/gin-gonic/gin"

	"temu_erp_v1_202609/internal/controller"
	"temu_erp_v1_202609/internal/middleware"
)

// InitRoutes 注册所有路由
func InitRoutes(r *gin.Engine,
	syncCtl *controller.SyncController,
	orderCtl *controller.OrderController,
	productCtl *controller.ProductController) {

	// 健康检查
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		// shop 维度的同步操作
		shops := v1.Group("/shops")
		{
			// POST /api/v1/shops/:id/sync/orders?full=true
			shops.POST("/:id/sync/orders",
				middleware.SyncCooldown(middleware.TriggerOrderSync, 0),
				syncCtl.TriggerOrderSync)

			// POST /api/v1/shops/:id/sync/products?full=true
			shops.POST("/:id/sync/products",
				middleware.SyncCooldown(middleware.TriggerProductSync, 0),
				syncCtl.TriggerProductSync)

			// GET /api/v1/shops/:id/sync/status
			shops.GET("/:id/sync/status", syncCtl.GetSyncStatus)
		}

		// 全局同步触发
		sync := v1.Group("/sync")
		{
			// POST /api/v1/sync/orders
			sync.POST("/orders",
				middleware.SyncCooldown(middleware.TriggerOrderSync, 0),
				syncCtl.TriggerAllOrderSync)
		}

		// 订单查询
		orders := v1.Group("/orders")
		{
			orders.GET("", orderCtl.List)
		}

		// 补全任务查询
		v1.GET("/detail-tasks", orderCtl.ListDetailTasks)

		// 商品查询
		products := v1.Group("/products")
		{
			products.GET("", productCtl.List)
		}
	}
}
