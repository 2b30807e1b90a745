package temu

import "encoding/json"

// ==================== API 类型常量 ====================

// 常用接口类型（type 字段）
const (
	APIOrderList     = "bg.order.list.get"             // 订单列表（父子单分组）
	APIOrderDetail   = "bg.order.detail.get"           // 订单详情（含包裹号）
	APIGoodsList     = "bg.goods.list.get"             // 商品列表
	APIGoodsDetail   = "bg.goods.detail.get"           // 商品详情
	APILogisticsGet  = "bg.logistics.shipped.package.get" // 包裹信息
	APIAccessToken   = "bg.open.accesstoken.info.get"  // Token 信息
)

// legacyFlatTypes 老网关接口：业务参数直接平铺在顶层，而不是嵌在 request 里
// 这是平台历史包袱，文档没写全，新接口一律走 request 嵌套
var legacyFlatTypes = map[string]bool{
	APILogisticsGet: true,
	APIAccessToken:  true,
}

// ==================== 区域路由 ====================

// 区域常量
const (
	RegionUS = "US"
	RegionEU = "EU"
	RegionCN = "CN"
)

// regionBaseURLs 各区域网关地址
var regionBaseURLs = map[string]string{
	RegionUS: "https://openapi-b-us.temu.com/openapi/router",
	RegionEU: "https://openapi-b-eu.temu.com/openapi/router",
	RegionCN: "https://openapi.kuajingmaihuo.com/openapi/router",
}

// BaseURLForRegion 返回区域网关地址，未知区域回落到 US
func BaseURLForRegion(region string) string {
	if u, ok := regionBaseURLs[region]; ok {
		return u
	}
	return regionBaseURLs[RegionUS]
}

// ==================== 响应信封 ====================

// Response 平台统一响应信封
type Response struct {
	Success   bool            `json:"success"`
	Result    json.RawMessage `json:"result,omitempty"`
	ErrorCode int             `json:"errorCode,omitempty"`
	ErrorMsg  string          `json:"errorMsg,omitempty"`
}
