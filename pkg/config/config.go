package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ==================== 全局配置 ====================

// Config 全局配置
// 进程入口加载一次后按值传给各组件，不做包级单例
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Temu      TemuConfig      `mapstructure:"temu"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Exchange  ExchangeConfig  `mapstructure:"exchange"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig Redis 配置（仅分布式限流模式需要）
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// TemuConfig 平台接入配置
type TemuConfig struct {
	Region    string        `mapstructure:"region"`     // US / EU / CN
	BaseURL   string        `mapstructure:"base_url"`   // 留空按 region 路由
	Timeout   time.Duration `mapstructure:"timeout"`    // 单次 HTTP 超时
	Retries   int           `mapstructure:"retries"`    // 传输错误重试次数
	UseProxy  bool          `mapstructure:"use_proxy"`  // 非白名单出口走代理转发
	ProxyURL  string        `mapstructure:"proxy_url"`  // 代理服务地址
	AppKey    string        `mapstructure:"app_key"`    // 兜底 app 凭证（店铺未配置时用）
	AppSecret string        `mapstructure:"app_secret"`
}

// RateLimitConfig 出站限流配置
type RateLimitConfig struct {
	Capacity   float64 `mapstructure:"capacity"`    // 桶容量
	RefillRate float64 `mapstructure:"refill_rate"` // 每秒补充令牌数
	UseRedis   bool    `mapstructure:"use_redis"`   // 多进程部署共享配额
}

// SyncConfig 同步参数
type SyncConfig struct {
	PageSize         int           `mapstructure:"page_size"`
	FullLookbackDays int           `mapstructure:"full_lookback_days"`
	CronOrders       string        `mapstructure:"cron_orders"`
	CronProducts     string        `mapstructure:"cron_products"`
	ShopConcurrency  int           `mapstructure:"shop_concurrency"`
	ShopLaunchDelay  time.Duration `mapstructure:"shop_launch_delay"`
}

// WorkerConfig 详情补全 worker 参数
type WorkerConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	MaxInterval   time.Duration `mapstructure:"max_interval"`
	EmptyEscalate int           `mapstructure:"empty_escalate"` // 连续空轮询 N 次后加一档间隔
	MaxRetries    int           `mapstructure:"max_retries"`
	StaleAfter    time.Duration `mapstructure:"stale_after"` // processing 卡死判定阈值
}

// ExchangeConfig 汇率源配置
type ExchangeConfig struct {
	RateURL  string        `mapstructure:"rate_url"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// ==================== 加载 ====================

// Load 加载配置：yaml 文件 + TEMU_ERP_ 前缀环境变量覆盖
// configPath 为空时只用默认值和环境变量
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("TEMU_ERP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")

	v.SetDefault("temu.region", "US")
	v.SetDefault("temu.timeout", "20s")
	v.SetDefault("temu.retries", 3)

	v.SetDefault("rate_limit.capacity", 10)
	v.SetDefault("rate_limit.refill_rate", 2)

	v.SetDefault("sync.page_size", 100)
	v.SetDefault("sync.full_lookback_days", 365)
	v.SetDefault("sync.cron_orders", "0 */10 * * * *")
	v.SetDefault("sync.cron_products", "0 0 */6 * * *")
	v.SetDefault("sync.shop_concurrency", 5)
	v.SetDefault("sync.shop_launch_delay", "200ms")

	v.SetDefault("worker.batch_size", 20)
	v.SetDefault("worker.max_concurrent", 5)
	v.SetDefault("worker.poll_interval", "5s")
	v.SetDefault("worker.max_interval", "1m")
	v.SetDefault("worker.empty_escalate", 3)
	v.SetDefault("worker.max_retries", 5)
	v.SetDefault("worker.stale_after", "10m")

	v.SetDefault("exchange.cache_ttl", "1h")
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn 必填")
	}
	if c.Temu.UseProxy && c.Temu.ProxyURL == "" {
		return fmt.Errorf("temu.use_proxy 开启时 temu.proxy_url 必填")
	}
	if c.RateLimit.UseRedis && c.Redis.Addr == "" {
		return fmt.Errorf("rate_limit.use_redis 开启时 redis.addr 必填")
	}
	if c.Sync.PageSize <= 0 || c.Sync.PageSize > 500 {
		return fmt.Errorf("sync.page_size 取值范围 1-500")
	}
	return nil
}
