package dto

import "encoding/json"

// ==== Temu 接口响应结构 ====
// 只声明分页和状态机需要的字段，pageItems 保留原始 JSON，
// 落库和字段提取走 normalize 包的规则链。

// TemuOrderListResult bg.order.list.get 返回结构
type TemuOrderListResult struct {
	TotalItemNum int               `json:"totalItemNum"`
	PageItems    []json.RawMessage `json:"pageItems"`
}

// TemuParentOrder 父单结构（从 pageItems 单项解出）
type TemuParentOrder struct {
	ParentOrderMap TemuParentOrderMap `json:"parentOrderMap"`
	OrderList      []json.RawMessage  `json:"orderList"`
}

// TemuParentOrderMap 父单概要
type TemuParentOrderMap struct {
	ParentOrderSn     string `json:"parentOrderSn"`
	ParentOrderStatus int    `json:"parentOrderStatus"`
	ParentOrderTime   int64  `json:"parentOrderTime"`
}

// TemuGoodsListResult bg.goods.list.get 返回结构
type TemuGoodsListResult struct {
	Total     int               `json:"total"`
	GoodsList []json.RawMessage `json:"goodsList"`
}
