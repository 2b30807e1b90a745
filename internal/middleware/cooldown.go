package middleware

import (
	"fmt"
	"sync"
	"time"
)

// ==================== CooldownLimiter 手动触发冷却 ====================

// CooldownLimiter 手动同步冷却限流器
// 管的是运营在后台狂点"立即同步"，和出站令牌桶是两回事
type CooldownLimiter struct {
	locks sync.Map // key -> *cooldownEntry
}

type cooldownEntry struct {
	lastTime time.Time
	mu       sync.Mutex
}

var globalCooldown = &CooldownLimiter{}

// GetCooldown 获取全局冷却限流器
func GetCooldown() *CooldownLimiter {
	return globalCooldown
}

// CheckResult 检查结果
type CheckResult struct {
	Allowed    bool          // 是否允许
	RetryAfter time.Duration // 剩余冷却时间
}

// Check 检查并占用冷却窗口
func (r *CooldownLimiter) Check(key string, interval time.Duration) CheckResult {
	actual, _ := r.locks.LoadOrStore(key, &cooldownEntry{})
	entry := actual.(*cooldownEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(entry.lastTime)
	if elapsed < interval {
		return CheckResult{Allowed: false, RetryAfter: interval - elapsed}
	}

	entry.lastTime = now
	return CheckResult{Allowed: true}
}

// Reset 清掉某个 key 的冷却（排障用）
func (r *CooldownLimiter) Reset(key string) {
	r.locks.Delete(key)
}

// ==================== Key 与默认间隔 ====================

// TriggerType 手动触发类型
type TriggerType string

const (
	TriggerOrderSync   TriggerType = "order_sync"
	TriggerProductSync TriggerType = "product_sync"
)

// ShopTriggerKey 店铺级冷却 key
func ShopTriggerKey(shopID int64, t TriggerType) string {
	return fmt.Sprintf("shop:%d:%s", shopID, t)
}

// GlobalTriggerKey 全局冷却 key
func GlobalTriggerKey(t TriggerType) string {
	return fmt.Sprintf("global:%s", t)
}

// 默认冷却间隔
var defaultCooldowns = map[TriggerType]time.Duration{
	TriggerOrderSync:   2 * time.Minute,
	TriggerProductSync: 5 * time.Minute,
}

// CooldownFor 取触发类型的默认冷却间隔
func CooldownFor(t TriggerType) time.Duration {
	if d, ok := defaultCooldowns[t]; ok {
		return d
	}
	return 2 * time.Minute
}
