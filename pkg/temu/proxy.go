package temu

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"temu_erp_v1_202609/pkg/ratelimit"
)

// ==================== 代理转发客户端 ====================

// 平台接口有出口 IP 白名单，非白名单机器（本地开发、备用节点）
// 必须经过固定出口 IP 的代理服务转发。代理只做转发，已签名的
// 请求体原样透传，不做二次签名。

// ProxyClientConfig 代理客户端配置
type ProxyClientConfig struct {
	ProxyURL  string // 代理服务地址，如 http://10.0.0.8:9000
	AppKey    string
	AppSecret string // 可留空，由代理侧环境变量兜底
	Timeout   time.Duration
	Retries   int
	RetryWait time.Duration
}

// proxyRequest 代理服务请求体
type proxyRequest struct {
	APIType     string                 `json:"api_type"`
	RequestData map[string]interface{} `json:"request_data"`
	AccessToken string                 `json:"access_token,omitempty"`
	AppKey      string                 `json:"app_key,omitempty"`
	AppSecret   string                 `json:"app_secret,omitempty"`
}

// proxyResponse 代理服务响应体
type proxyResponse struct {
	Success   bool            `json:"success"`
	Result    json.RawMessage `json:"result,omitempty"`
	ErrorCode int             `json:"error_code,omitempty"`
	ErrorMsg  string          `json:"error_msg,omitempty"`
}

// ProxyClient 经固定出口代理转发的客户端，错误分类与直连 Client 一致
type ProxyClient struct {
	cfg     ProxyClientConfig
	http    *resty.Client
	limiter ratelimit.Limiter
	now     func() time.Time
}

var _ Caller = (*ProxyClient)(nil)

// NewProxyClient 创建代理转发客户端
func NewProxyClient(cfg ProxyClientConfig, limiter ratelimit.Limiter) *ProxyClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retries == 0 {
		cfg.Retries = 3
	}
	if cfg.RetryWait == 0 {
		cfg.RetryWait = 500 * time.Millisecond
	}

	return &ProxyClient{
		cfg: cfg,
		http: resty.New().
			SetTimeout(cfg.Timeout).
			SetHeader("Content-Type", "application/json"),
		limiter: limiter,
		now:     time.Now,
	}
}

// Call 经代理发起一次签名调用
func (c *ProxyClient) Call(ctx context.Context, shopID int64, apiType string, bizParams map[string]interface{}, creds Credentials) (json.RawMessage, error) {
	appKey, appSecret := c.cfg.AppKey, c.cfg.AppSecret
	if creds.AppKey != "" {
		appKey = creds.AppKey
	}
	if creds.AppSecret != "" {
		appSecret = creds.AppSecret
	}

	// 本地完成签名，代理只透传
	signed := NewSignedPayload(apiType, bizParams, creds.AccessToken, appKey, appSecret, c.now())

	body := proxyRequest{
		APIType:     apiType,
		RequestData: signed,
		AccessToken: creds.AccessToken,
		AppKey:      appKey,
		AppSecret:   appSecret,
	}

	if err := c.limiter.Acquire(ctx, LimitKey(shopID), 1); err != nil {
		return nil, fmt.Errorf("限流等待被取消: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 {
			wait := c.cfg.RetryWait << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, &TransportError{Err: ctx.Err()}
			case <-time.After(wait):
			}
		}

		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(body).
			Post(c.cfg.ProxyURL + "/api/proxy")

		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode() >= 500 {
			lastErr = fmt.Errorf("代理 HTTP %d: %s", resp.StatusCode(), resp.String())
			continue
		}
		if resp.StatusCode() >= 400 {
			return nil, &TransportError{Err: fmt.Errorf("代理 HTTP %d: %s", resp.StatusCode(), resp.String())}
		}

		var envelope proxyResponse
		if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
			return nil, &TransportError{Err: fmt.Errorf("解析代理响应失败: %w", err)}
		}

		if !envelope.Success {
			return nil, &BusinessError{Code: envelope.ErrorCode, Message: envelope.ErrorMsg}
		}

		return envelope.Result, nil
	}

	return nil, &TransportError{Err: fmt.Errorf("代理重试 %d 次后失败: %w", c.cfg.Retries, lastErr)}
}
