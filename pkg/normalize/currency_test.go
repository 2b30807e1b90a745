package normalize

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// ==================== 汇率折算 ====================

func TestConvertToCNY(t *testing.T) {
	c := NewCurrencyConverter(CurrencyConverterConfig{
		RateURL: "http://127.0.0.1:1", // 不可达，强制走缓存
	})
	c.SetCachedRate("USD", decimal.NewFromFloat(7.1))

	got := c.ConvertToCNY(context.Background(), decimal.NewFromInt(100), "USD")
	if !got.Equal(decimal.NewFromInt(710)) {
		t.Errorf("100 USD -> %s CNY, want 710", got)
	}
}

func TestConvertToCNY_CNYPassthrough(t *testing.T) {
	c := NewCurrencyConverter(CurrencyConverterConfig{RateURL: "http://127.0.0.1:1"})

	got := c.ConvertToCNY(context.Background(), decimal.NewFromFloat(88.888), "CNY")
	if !got.Equal(decimal.NewFromFloat(88.89)) {
		t.Errorf("CNY 原样返回只做精度规整: %s", got)
	}

	// 空币种同 CNY 处理
	got = c.ConvertToCNY(context.Background(), decimal.NewFromInt(5), "")
	if !got.Equal(decimal.NewFromInt(5)) {
		t.Errorf("空币种 = %s", got)
	}
}

func TestConvertToFen(t *testing.T) {
	c := NewCurrencyConverter(CurrencyConverterConfig{RateURL: "http://127.0.0.1:1"})
	c.SetCachedRate("USD", decimal.NewFromFloat(7.1))

	if got := c.ConvertToFen(context.Background(), decimal.NewFromFloat(19.99), "USD"); got != 14193 {
		// 19.99 * 7.1 = 141.929 -> 141.93 元 -> 14193 分
		t.Errorf("ConvertToFen = %d, want 14193", got)
	}
}

// 汇率源可用时拉取并缓存
func TestRateToCNY_FetchAndCache(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/USD" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"rates":{"CNY":7.35}}`))
	}))
	defer srv.Close()

	c := NewCurrencyConverter(CurrencyConverterConfig{RateURL: srv.URL, CacheTTL: time.Hour})

	rate := c.RateToCNY(context.Background(), "USD")
	if !rate.Equal(decimal.NewFromFloat(7.35)) {
		t.Errorf("rate = %s", rate)
	}

	// 第二次走缓存，不再请求
	c.RateToCNY(context.Background(), "USD")
	if calls != 1 {
		t.Errorf("缓存期内请求了 %d 次", calls)
	}
}

// 汇率源挂掉时回落最后成功值，再没有就走硬编码，永不报错
func TestRateToCNY_FallbackChain(t *testing.T) {
	c := NewCurrencyConverter(CurrencyConverterConfig{
		RateURL:  "http://127.0.0.1:1",
		CacheTTL: time.Nanosecond, // 立即过期，强制每次走刷新路径
	})

	// 没有任何历史值：硬编码兜底
	rate := c.RateToCNY(context.Background(), "USD")
	if !rate.Equal(decimal.RequireFromString("7.20")) {
		t.Errorf("无历史值应走硬编码 7.20, got %s", rate)
	}

	// 写入一次成功值后，兜底优先用它
	c.SetCachedRate("USD", decimal.NewFromFloat(7.5))
	time.Sleep(time.Millisecond) // 缓存过期
	rate = c.RateToCNY(context.Background(), "USD")
	if !rate.Equal(decimal.NewFromFloat(7.5)) {
		t.Errorf("应回落最后成功值 7.5, got %s", rate)
	}
}

// 未知币种最终兜底 1:1，残缺数据也比丢数据强
func TestRateToCNY_UnknownCurrency(t *testing.T) {
	c := NewCurrencyConverter(CurrencyConverterConfig{RateURL: "http://127.0.0.1:1"})
	rate := c.RateToCNY(context.Background(), "XXX")
	if !rate.Equal(decimal.NewFromInt(1)) {
		t.Errorf("未知币种 = %s, want 1", rate)
	}
}
