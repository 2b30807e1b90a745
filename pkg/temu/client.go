package temu

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"temu_erp_v1_202609/pkg/ratelimit"
)

// ==================== 依赖接口 ====================

// Caller 平台调用入口
// 业务层（同步服务、详情 worker）只依赖这个接口，便于测试时替换
type Caller interface {
	// Call 发起一次签名调用
	// shopID 用于限流分桶，0 表示走全局桶
	Call(ctx context.Context, shopID int64, apiType string, bizParams map[string]interface{}, creds Credentials) (json.RawMessage, error)
}

// Credentials 单次调用使用的店铺凭证
// AppKey/AppSecret 留空时回退到客户端的全局配置
type Credentials struct {
	AppKey      string
	AppSecret   string
	AccessToken string
}

// ==================== 配置 ====================

type ClientConfig struct {
	AppKey    string
	AppSecret string
	Region    string        // US / EU / CN
	BaseURL   string        // 留空则按 Region 路由
	Timeout   time.Duration // 单次 HTTP 超时（与限流等待无关）
	Retries   int           // 传输错误最大重试次数
	RetryWait time.Duration // 退避基数，每次翻倍
}

// ==================== Client ====================

// Client 签名客户端
// 负责信封组装、签名、限流准入、传输重试；业务错误原样上抛不重试
type Client struct {
	cfg     ClientConfig
	http    *resty.Client
	limiter ratelimit.Limiter
	now     func() time.Time // 测试注入
}

var _ Caller = (*Client)(nil)

// NewClient 创建签名客户端
func NewClient(cfg ClientConfig, limiter ratelimit.Limiter) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = BaseURLForRegion(cfg.Region)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.Retries == 0 {
		cfg.Retries = 3
	}
	if cfg.RetryWait == 0 {
		cfg.RetryWait = 500 * time.Millisecond
	}

	httpClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "Temu-ERP/1.0")

	return &Client{
		cfg:     cfg,
		http:    httpClient,
		limiter: limiter,
		now:     time.Now,
	}
}

// Call 发起一次签名调用
func (c *Client) Call(ctx context.Context, shopID int64, apiType string, bizParams map[string]interface{}, creds Credentials) (json.RawMessage, error) {
	appKey, appSecret := c.resolveApp(creds)
	payload := NewSignedPayload(apiType, bizParams, creds.AccessToken, appKey, appSecret, c.now())

	// 出站前先过令牌桶（阻塞等待，受 ctx 约束）
	if err := c.limiter.Acquire(ctx, LimitKey(shopID), 1); err != nil {
		return nil, fmt.Errorf("限流等待被取消: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 {
			// 指数退避: base, 2*base, 4*base...
			wait := c.cfg.RetryWait << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, &TransportError{Err: ctx.Err()}
			case <-time.After(wait):
			}
		}

		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(payload).
			Post(c.cfg.BaseURL)

		if err != nil {
			// 超时/连接失败，进入下一轮重试
			lastErr = err
			continue
		}

		if resp.StatusCode() >= 500 {
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode(), resp.String())
			continue
		}
		if resp.StatusCode() >= 400 {
			// 4xx 重试无意义，直接上抛
			return nil, &TransportError{Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode(), resp.String())}
		}

		var envelope Response
		if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
			return nil, &TransportError{Err: fmt.Errorf("解析响应失败: %w", err)}
		}

		if !envelope.Success {
			// 业务错误不重试，由调用方按错误码分类
			return nil, &BusinessError{Code: envelope.ErrorCode, Message: envelope.ErrorMsg}
		}

		return envelope.Result, nil
	}

	return nil, &TransportError{Err: fmt.Errorf("重试 %d 次后失败: %w", c.cfg.Retries, lastErr)}
}

// resolveApp 店铺凭证优先，留空回退全局配置
func (c *Client) resolveApp(creds Credentials) (string, string) {
	appKey, appSecret := c.cfg.AppKey, c.cfg.AppSecret
	if creds.AppKey != "" {
		appKey = creds.AppKey
	}
	if creds.AppSecret != "" {
		appSecret = creds.AppSecret
	}
	return appKey, appSecret
}

// ==================== 信封组装 ====================

// NewSignedPayload 组装带签名的完整请求体
func NewSignedPayload(apiType string, bizParams map[string]interface{}, accessToken, appKey, appSecret string, ts time.Time) map[string]interface{} {
	payload := map[string]interface{}{
		"app_key":   appKey,
		"data_type": "JSON",
		"timestamp": strconv.FormatInt(ts.Unix(), 10),
		"type":      apiType,
		"version":   "V1",
	}
	if accessToken != "" {
		payload["access_token"] = accessToken
	}

	// 老接口业务参数平铺顶层，新接口嵌在 request 下
	if legacyFlatTypes[apiType] {
		for k, v := range bizParams {
			payload[k] = v
		}
	} else if len(bizParams) > 0 {
		payload["request"] = bizParams
	}

	payload["sign"] = Sign(payload, appSecret)
	return payload
}

// LimitKey 限流分桶 key
func LimitKey(shopID int64) string {
	if shopID <= 0 {
		return "global"
	}
	return fmt.Sprintf("shop:%d", shopID)
}
