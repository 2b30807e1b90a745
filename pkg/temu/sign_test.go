package temu

import (
	"testing"
	"time"
)

// ==================== 签名算法 ====================

func TestSign(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]interface{}
		secret string
		want   string
	}{
		{
			name: "混合类型参数",
			params: map[string]interface{}{
				"b": "2",
				"a": 1,
				"c": true,
			},
			secret: "s",
			want:   "3902AF4DC94BF3188742D707023B9905",
		},
		{
			name: "嵌套 request 参数",
			params: map[string]interface{}{
				"app_key":      "ak123",
				"data_type":    "JSON",
				"timestamp":    "1700000000",
				"type":         "bg.order.list.get",
				"version":      "V1",
				"access_token": "tok-1",
				"request": map[string]interface{}{
					"pageNo":   1,
					"pageSize": 100,
				},
			},
			secret: "test_secret",
			want:   "C074FEEFB436DEB5D5A5BC762F8C3152",
		},
		{
			name: "平铺业务参数",
			params: map[string]interface{}{
				"app_key":       "ak123",
				"data_type":     "JSON",
				"timestamp":     "1700000000",
				"type":          "bg.logistics.shipped.package.confirm",
				"version":       "V1",
				"access_token":  "tok-1",
				"parentOrderSn": "PO-211-123",
				"sendType":      1,
			},
			secret: "test_secret",
			want:   "A1E88F3849AA30D70CFAD75B12D3D85A",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sign(tt.params, tt.secret)
			if got != tt.want {
				t.Errorf("Sign() = %s, want %s", got, tt.want)
			}
		})
	}
}

// 相同参数必须产生相同签名，与 map 遍历顺序无关
func TestSign_Deterministic(t *testing.T) {
	params := map[string]interface{}{
		"app_key":   "k",
		"type":      "bg.order.list.get",
		"timestamp": "1700000000",
		"data_type": "JSON",
		"version":   "V1",
	}

	first := Sign(params, "secret")
	for i := 0; i < 20; i++ {
		if got := Sign(params, "secret"); got != first {
			t.Fatalf("第 %d 次签名结果不一致: %s != %s", i, got, first)
		}
	}
}

// ==================== 信封组装 ====================

func TestNewSignedPayload(t *testing.T) {
	ts := time.Unix(1700000000, 0)

	t.Run("新接口业务参数嵌套在 request 下", func(t *testing.T) {
		payload := NewSignedPayload(APIOrderList, map[string]interface{}{
			"pageNumber": 1,
		}, "tok", "ak", "sec", ts)

		if payload["type"] != APIOrderList {
			t.Errorf("type = %v", payload["type"])
		}
		if payload["timestamp"] != "1700000000" {
			t.Errorf("timestamp = %v", payload["timestamp"])
		}
		if payload["data_type"] != "JSON" || payload["version"] != "V1" {
			t.Errorf("信封固定字段不对: %v", payload)
		}
		if _, ok := payload["request"]; !ok {
			t.Fatal("业务参数应嵌套在 request 下")
		}
		if _, ok := payload["pageNumber"]; ok {
			t.Error("新接口业务参数不应平铺在顶层")
		}
		if payload["sign"] == "" {
			t.Error("缺少签名")
		}
	})

	t.Run("老接口业务参数平铺顶层", func(t *testing.T) {
		payload := NewSignedPayload(APILogisticsGet, map[string]interface{}{
			"parentOrderSn": "PO-1",
		}, "tok", "ak", "sec", ts)

		if _, ok := payload["request"]; ok {
			t.Error("老接口不应有 request 嵌套")
		}
		if payload["parentOrderSn"] != "PO-1" {
			t.Error("老接口业务参数应平铺在顶层")
		}
	})

	t.Run("access_token 为空时不出现在信封里", func(t *testing.T) {
		payload := NewSignedPayload(APIOrderList, nil, "", "ak", "sec", ts)
		if _, ok := payload["access_token"]; ok {
			t.Error("空 token 不应出现在信封里")
		}
	})
}
