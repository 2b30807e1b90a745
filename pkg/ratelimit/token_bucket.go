package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ==================== Limiter 接口 ====================

// Limiter 出站调用准入限流器
// Acquire 阻塞到拿到令牌为止（等待受 ctx 约束），不存在永久拒绝
type Limiter interface {
	Acquire(ctx context.Context, key string, tokens int) error
}

// ==================== 令牌桶实现 ====================

// BucketConfig 单桶参数
type BucketConfig struct {
	Capacity   float64 // 桶容量
	RefillRate float64 // 每秒补充令牌数
}

// TokenBucketLimiter 进程内令牌桶限流器
// 按 key（shop:<id> 或 global）分桶，桶内状态由各自的互斥锁保护。
// 状态不持久化，进程重启即清零；限流阈值相对平台配额留了余量，
// 此近似可接受（见多进程部署时的 RedisLimiter）
type TokenBucketLimiter struct {
	buckets sync.Map // key -> *bucket
	cfg     BucketConfig
	now     func() time.Time // 测试注入
	sleep   func(ctx context.Context, d time.Duration) error
}

type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// NewTokenBucketLimiter 创建进程内令牌桶限流器
func NewTokenBucketLimiter(cfg BucketConfig) *TokenBucketLimiter {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 10
	}
	if cfg.RefillRate <= 0 {
		cfg.RefillRate = 2
	}
	return &TokenBucketLimiter{
		cfg:   cfg,
		now:   time.Now,
		sleep: sleepCtx,
	}
}

var _ Limiter = (*TokenBucketLimiter)(nil)

// Acquire 获取令牌，不足时按缺口精确计算等待时间
func (l *TokenBucketLimiter) Acquire(ctx context.Context, key string, tokens int) error {
	if tokens <= 0 {
		tokens = 1
	}
	need := float64(tokens)
	if need > l.cfg.Capacity {
		return fmt.Errorf("请求令牌数 %d 超过桶容量 %.0f", tokens, l.cfg.Capacity)
	}

	b := l.getBucket(key)

	for {
		b.mu.Lock()
		l.refillLocked(b)

		if b.tokens >= need {
			b.tokens -= need
			b.mu.Unlock()
			return nil
		}

		// 缺口 / 速率 = 精确等待时间
		deficit := need - b.tokens
		wait := time.Duration(deficit / l.cfg.RefillRate * float64(time.Second))
		b.mu.Unlock()

		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
		// 醒来后重新补桶再扣，可能有并发抢占，循环直到拿到
	}
}

// Available 当前可用令牌数（不超过容量），供测试与指标用
func (l *TokenBucketLimiter) Available(key string) float64 {
	b := l.getBucket(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	l.refillLocked(b)
	return b.tokens
}

func (l *TokenBucketLimiter) getBucket(key string) *bucket {
	if v, ok := l.buckets.Load(key); ok {
		return v.(*bucket)
	}
	actual, _ := l.buckets.LoadOrStore(key, &bucket{
		tokens:     l.cfg.Capacity, // 新桶满额起步
		lastRefill: l.now(),
	})
	return actual.(*bucket)
}

// refillLocked 按流逝时间补充令牌，上限为容量。调用方必须持有 b.mu
func (l *TokenBucketLimiter) refillLocked(b *bucket) {
	now := l.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * l.cfg.RefillRate
	if b.tokens > l.cfg.Capacity {
		b.tokens = l.cfg.Capacity
	}
	b.lastRefill = now
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
