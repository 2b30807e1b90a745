package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// ==================== 手动同步冷却中间件 ====================

// SyncCooldown 手动同步冷却中间件
// 按店铺 + 触发类型维度限流
//
// 使用示例:
//
//	router.POST("/api/v1/shops/:id/sync/orders",
//	    middleware.SyncCooldown(middleware.TriggerOrderSync, 0),
//	    syncCtl.TriggerOrderSync,
//	)
//
// interval 传 0 用该类型的默认冷却
func SyncCooldown(triggerType TriggerType, interval time.Duration) gin.HandlerFunc {
	if interval == 0 {
		interval = CooldownFor(triggerType)
	}

	return func(c *gin.Context) {
		shopIDStr := c.Param("id")
		if shopIDStr == "" {
			shopIDStr = c.Query("shop_id")
		}

		var key string
		if shopIDStr != "" {
			shopID, err := strconv.ParseInt(shopIDStr, 10, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{
					"code":    400,
					"message": "无效的店铺 ID",
				})
				c.Abort()
				return
			}
			key = ShopTriggerKey(shopID, triggerType)
		} else {
			key = GlobalTriggerKey(triggerType)
		}

		result := GetCooldown().Check(key, interval)
		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":    429,
				"message": retryMessage(result.RetryAfter),
				"data": gin.H{
					"retry_after":  int(result.RetryAfter.Seconds()),
					"trigger_type": triggerType,
				},
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// retryMessage 格式化冷却提示
func retryMessage(d time.Duration) string {
	seconds := int(d.Seconds())
	if seconds < 60 {
		return fmt.Sprintf("同步冷却中，请 %d 秒后重试", seconds)
	}
	minutes := seconds / 60
	if seconds%60 == 0 {
		return fmt.Sprintf("同步冷却中，请 %d 分钟后重试", minutes)
	}
	return fmt.Sprintf("同步冷却中，请 %d 分 %d 秒后重试", minutes, seconds%60)
}
