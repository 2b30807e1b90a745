package normalize

import (
	"fmt"
	"regexp"
	"strings"
)

// ==================== 字段提取规则 ====================

// 平台各接口返回的字段名极不统一（同一个城市字段十几种叫法，
// 有时只能从地址文本里抠），这里把提取逻辑做成按优先级排列的
// 规则表：每条规则是纯函数 payload -> (值, 是否命中)，首个命中生效。
// 扩展新字段名只加表项，不改控制流。

// Payload 松散结构的原始文档
type Payload = map[string]interface{}

// FieldRule 命名提取规则
type FieldRule struct {
	Name    string
	Extract func(p Payload) (string, bool)
}

// ExtractFirst 按优先级执行规则表，首个命中生效，全部失配返回空串
// 提取失败从不报错：残缺数据也比丢数据强
func ExtractFirst(p Payload, rules []FieldRule) string {
	if p == nil {
		return ""
	}
	for _, rule := range rules {
		if v, ok := rule.Extract(p); ok && v != "" {
			return v
		}
	}
	return ""
}

// ==================== 规则构造器 ====================

// KeyRule 按 key 直取字符串值
func KeyRule(key string) FieldRule {
	return FieldRule{
		Name: "key:" + key,
		Extract: func(p Payload) (string, bool) {
			return stringAt(p, key)
		},
	}
}

// PathRule 按点分路径取嵌套值，如 "parentOrderMap.parentOrderSn"
// 路径中遇到数组自动取第一个元素
func PathRule(path string) FieldRule {
	parts := strings.Split(path, ".")
	return FieldRule{
		Name: "path:" + path,
		Extract: func(p Payload) (string, bool) {
			var cur interface{} = p
			for _, part := range parts {
				cur = descend(cur, part)
				if cur == nil {
					return "", false
				}
			}
			s := toString(cur)
			return s, s != ""
		},
	}
}

// RegexRule 对某个 key 的文本值跑正则，取第一个捕获组
func RegexRule(key, pattern string) FieldRule {
	re := regexp.MustCompile(pattern)
	return FieldRule{
		Name: fmt.Sprintf("regex:%s:%s", key, pattern),
		Extract: func(p Payload) (string, bool) {
			text, ok := stringAt(p, key)
			if !ok {
				return "", false
			}
			m := re.FindStringSubmatch(text)
			if len(m) < 2 {
				return "", false
			}
			return strings.TrimSpace(m[1]), true
		},
	}
}

// ==================== 订单字段规则表 ====================

// CityRules 城市提取：先试已知 key，再从地址文本里正则抠
// 顺序即优先级，不要随手重排
var CityRules = []FieldRule{
	KeyRule("regionName2"),
	KeyRule("city"),
	KeyRule("cityName"),
	KeyRule("receiptCity"),
	KeyRule("recipientCity"),
	KeyRule("addressCity"),
	KeyRule("town"),
	KeyRule("市"),
	KeyRule("城市"),
	KeyRule("收件城市"),
	KeyRule("收货城市"),
	KeyRule("所在城市"),
	// "XX省YY市..." 形式，捕获 "YY市"
	RegexRule("address", `省([^省市]{1,12}市)`),
	RegexRule("addressAll", `省([^省市]{1,12}市)`),
	// "123 Main St, Springfield, IL" 形式，捕获倒数第二段
	RegexRule("address", `,\s*([A-Za-z][A-Za-z .'-]*?),\s*[A-Z]{2}\b`),
	RegexRule("addressAll", `,\s*([A-Za-z][A-Za-z .'-]*?),\s*[A-Z]{2}\b`),
}

// AddressRules 详细地址提取
var AddressRules = []FieldRule{
	KeyRule("addressAll"),
	KeyRule("address"),
	KeyRule("addressDetail"),
	KeyRule("detailAddress"),
	KeyRule("receiptAddress"),
	KeyRule("地址"),
	KeyRule("详细地址"),
	KeyRule("收货地址"),
}

// PackageSnRules 包裹号提取：列表接口偶尔带，详情接口藏在发货单里
var PackageSnRules = []FieldRule{
	KeyRule("packageSn"),
	KeyRule("packageNo"),
	KeyRule("packageNumber"),
	PathRule("packageList.packageSn"),
	PathRule("deliveryOrderList.packageSn"),
	PathRule("deliveryOrderList.packageList.packageSn"),
	PathRule("orderShippingInfo.packageSn"),
}

// SkuRules SKU 货号提取
var SkuRules = []FieldRule{
	KeyRule("skuId"),
	KeyRule("productSkuId"),
	KeyRule("sku_id"),
	PathRule("skuInfo.skuId"),
}

// SpuRules SPU 货号提取
var SpuRules = []FieldRule{
	KeyRule("spuId"),
	KeyRule("goodsId"),
	KeyRule("productId"),
	PathRule("skuInfo.spuId"),
}

// OrderSnRules 子单号提取
var OrderSnRules = []FieldRule{
	KeyRule("orderSn"),
	KeyRule("order_sn"),
	KeyRule("orderNo"),
}

// GoodsNameRules 商品名提取
var GoodsNameRules = []FieldRule{
	KeyRule("goodsName"),
	KeyRule("productName"),
	KeyRule("itemName"),
	PathRule("spec.goodsName"),
}

// ReceiptNameRules 收件人提取
var ReceiptNameRules = []FieldRule{
	KeyRule("receiptName"),
	KeyRule("recipientName"),
	KeyRule("receiverName"),
	KeyRule("收件人"),
}

// AmountRules 成交金额提取（原始币种，元）
var AmountRules = []FieldRule{
	KeyRule("orderAmount"),
	KeyRule("orderTotalAmount"),
	KeyRule("totalAmount"),
	KeyRule("goodsAmount"),
	KeyRule("totalPrice"),
	PathRule("orderPaymentInfo.paymentAmount"),
}

// QuantityRules 件数提取
var QuantityRules = []FieldRule{
	KeyRule("quantity"),
	KeyRule("goodsNumber"),
	KeyRule("num"),
}

// CurrencyRules 原始币种提取
var CurrencyRules = []FieldRule{
	KeyRule("currency"),
	KeyRule("currencyCode"),
	PathRule("orderPaymentInfo.currency"),
}

// ==================== 商品字段规则表 ====================

// ProductPriceRules 商品售价提取（原始币种，元）
var ProductPriceRules = []FieldRule{
	KeyRule("price"),
	KeyRule("salePrice"),
	PathRule("priceInfo.price"),
	PathRule("skcList.price"),
}

// ProductCostRules 商品成本提取（供货价口径）
var ProductCostRules = []FieldRule{
	KeyRule("costPrice"),
	KeyRule("supplyPrice"),
	KeyRule("supplierPrice"),
	PathRule("priceInfo.supplierPrice"),
	PathRule("skcList.supplierPrice"),
}

// ProductStateRules 商品上下架状态提取
var ProductStateRules = []FieldRule{
	KeyRule("goodsStatus"),
	KeyRule("state"),
	KeyRule("status"),
	PathRule("skcList.skcStatus"),
}

// ==================== 内部工具 ====================

func stringAt(p Payload, key string) (string, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", false
	}
	s := toString(v)
	return s, s != ""
}

// descend 进入下一层；遇到数组取第一个元素再进
func descend(cur interface{}, key string) interface{} {
	if arr, ok := cur.([]interface{}); ok {
		if len(arr) == 0 {
			return nil
		}
		cur = arr[0]
	}
	m, ok := cur.(map[string]interface{})
	if !ok {
		return nil
	}
	return m[key]
}

func toString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		// JSON 数字默认解析成 float64，整数值去掉小数尾巴
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%v", val)
	case int, int64, bool:
		return fmt.Sprintf("%v", val)
	default:
		return ""
	}
}
