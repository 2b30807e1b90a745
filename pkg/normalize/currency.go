package normalize

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// ==================== 汇率转换 ====================

// 本地统一以人民币记账。外部汇率源不可用时按
// 缓存汇率 -> 最后一次成功汇率 -> 硬编码兜底 逐级回落，
// 转换链路永远不报错（报表少个汇率比同步中断好得多）。

// defaultRates 硬编码兜底汇率
var defaultRates = map[string]string{
	"USD": "7.20",
	"EUR": "7.80",
	"GBP": "9.10",
	"JPY": "0.048",
	"CAD": "5.20",
}

// CurrencyConverterConfig 汇率转换器配置
type CurrencyConverterConfig struct {
	RateURL  string        // 汇率源，如 https://api.exchangerate-api.com/v4/latest
	CacheTTL time.Duration // 汇率缓存时长
	Timeout  time.Duration
}

// CurrencyConverter 人民币汇率转换器
type CurrencyConverter struct {
	cfg  CurrencyConverterConfig
	http *resty.Client
	now  func() time.Time

	mu        sync.Mutex
	cached    map[string]cachedRate // 币种 -> 缓存汇率
	lastKnown map[string]decimal.Decimal
}

type cachedRate struct {
	rate      decimal.Decimal
	fetchedAt time.Time
}

// NewCurrencyConverter 创建汇率转换器
func NewCurrencyConverter(cfg CurrencyConverterConfig) *CurrencyConverter {
	if cfg.RateURL == "" {
		cfg.RateURL = "https://api.exchangerate-api.com/v4/latest"
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 1 * time.Hour
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &CurrencyConverter{
		cfg:       cfg,
		http:      resty.New().SetTimeout(cfg.Timeout),
		now:       time.Now,
		cached:    make(map[string]cachedRate),
		lastKnown: make(map[string]decimal.Decimal),
	}
}

// ConvertToCNY 把金额折算成人民币，保留两位小数
// from 为 CNY 时原样返回（只做精度规整），与当时汇率无关
func (c *CurrencyConverter) ConvertToCNY(ctx context.Context, amount decimal.Decimal, from string) decimal.Decimal {
	if from == "" || from == "CNY" {
		return amount.Round(2)
	}
	rate := c.RateToCNY(ctx, from)
	return amount.Mul(rate).Round(2)
}

// ConvertToFen 折算成人民币后按分取整（分是入库单位）
func (c *CurrencyConverter) ConvertToFen(ctx context.Context, amount decimal.Decimal, from string) int64 {
	return c.ConvertToCNY(ctx, amount, from).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// RateToCNY 取 from -> CNY 汇率，走缓存/最后成功值/硬编码兜底
func (c *CurrencyConverter) RateToCNY(ctx context.Context, from string) decimal.Decimal {
	c.mu.Lock()
	if entry, ok := c.cached[from]; ok && c.now().Sub(entry.fetchedAt) < c.cfg.CacheTTL {
		c.mu.Unlock()
		return entry.rate
	}
	c.mu.Unlock()

	// 缓存过期，尝试刷新
	if rate, err := c.fetchRate(ctx, from); err == nil {
		c.mu.Lock()
		c.cached[from] = cachedRate{rate: rate, fetchedAt: c.now()}
		c.lastKnown[from] = rate
		c.mu.Unlock()
		return rate
	} else {
		log.Printf("[CurrencyConverter] 汇率源请求失败 (%s): %v", from, err)
	}

	// 回落：最后一次成功值
	c.mu.Lock()
	defer c.mu.Unlock()
	if rate, ok := c.lastKnown[from]; ok {
		return rate
	}

	// 最终兜底：硬编码
	if s, ok := defaultRates[from]; ok {
		rate, _ := decimal.NewFromString(s)
		return rate
	}
	return decimal.NewFromInt(1)
}

// SetCachedRate 直接写入缓存汇率（测试与手工校准用）
func (c *CurrencyConverter) SetCachedRate(from string, rate decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached[from] = cachedRate{rate: rate, fetchedAt: c.now()}
	c.lastKnown[from] = rate
}

// fetchRate 请求外部汇率源
func (c *CurrencyConverter) fetchRate(ctx context.Context, from string) (decimal.Decimal, error) {
	var body struct {
		Rates map[string]float64 `json:"rates"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&body).
		Get(c.cfg.RateURL + "/" + from)
	if err != nil {
		return decimal.Zero, err
	}
	if resp.IsError() {
		return decimal.Zero, &rateSourceError{status: resp.StatusCode()}
	}
	cny, ok := body.Rates["CNY"]
	if !ok || cny <= 0 {
		return decimal.Zero, &rateSourceError{status: resp.StatusCode()}
	}
	return decimal.NewFromFloat(cny), nil
}

type rateSourceError struct {
	status int
}

func (e *rateSourceError) Error() string {
	return "汇率源返回异常"
}
