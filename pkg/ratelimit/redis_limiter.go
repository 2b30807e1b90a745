package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ==================== Redis 令牌桶 ====================

// RedisLimiter 基于 Redis 的令牌桶，多进程共享配额时使用
// 语义与 TokenBucketLimiter 一致：阻塞等待、按缺口计算睡眠时间。
// 桶状态放在 hash 里，补桶+扣减用 Lua 脚本保证原子
type RedisLimiter struct {
	rdb    *redis.Client
	cfg    BucketConfig
	prefix string
}

// acquireScript 原子补桶并尝试扣减
// KEYS[1] 桶 key; ARGV: capacity, rate, need, now(毫秒)
// 返回 >=0 表示扣减成功后的余量，<0 表示缺口（绝对值）
var acquireScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local need = tonumber(ARGV[3])
local now = tonumber(ARGV[4])

local data = redis.call('HMGET', key, 'tokens', 'last_refill')
local tokens = tonumber(data[1])
local last = tonumber(data[2])
if tokens == nil then
  tokens = capacity
  last = now
end

local elapsed = (now - last) / 1000.0
if elapsed > 0 then
  tokens = math.min(capacity, tokens + elapsed * rate)
  last = now
end

local result
if tokens >= need then
  tokens = tokens - need
  result = tokens
else
  result = tokens - need
end

redis.call('HMSET', key, 'tokens', tokens, 'last_refill', last)
redis.call('PEXPIRE', key, 3600000)
return tostring(result)
`)

// NewRedisLimiter 创建 Redis 令牌桶限流器
func NewRedisLimiter(rdb *redis.Client, cfg BucketConfig) *RedisLimiter {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 10
	}
	if cfg.RefillRate <= 0 {
		cfg.RefillRate = 2
	}
	return &RedisLimiter{
		rdb:    rdb,
		cfg:    cfg,
		prefix: "ratelimit:",
	}
}

var _ Limiter = (*RedisLimiter)(nil)

// Acquire 获取令牌
func (l *RedisLimiter) Acquire(ctx context.Context, key string, tokens int) error {
	if tokens <= 0 {
		tokens = 1
	}
	need := float64(tokens)
	if need > l.cfg.Capacity {
		return fmt.Errorf("请求令牌数 %d 超过桶容量 %.0f", tokens, l.cfg.Capacity)
	}

	redisKey := l.prefix + key

	for {
		now := time.Now().UnixMilli()
		raw, err := acquireScript.Run(ctx, l.rdb, []string{redisKey},
			l.cfg.Capacity, l.cfg.RefillRate, need, now).Text()
		if err != nil {
			// Redis 不可用时退化为放行：限流是保护手段，不应变成故障放大器
			return nil
		}

		var result float64
		if _, err := fmt.Sscanf(raw, "%f", &result); err != nil {
			return nil
		}

		if result >= 0 {
			return nil
		}

		// result 为负数时绝对值即缺口
		wait := time.Duration(-result / l.cfg.RefillRate * float64(time.Second))
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
}
