package dto

import "time"

// SyncRequest 手动触发同步的请求参数
type SyncRequest struct {
	Full bool `json:"full"` // true 表示全量同步（近一年），否则增量
}

// SyncResult 一次同步的统计结果
type SyncResult struct {
	Total   int      `json:"total"`   // 远端声明的总数
	Fetched int      `json:"fetched"` // 实际拉取条数
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// ShopSyncStatusResponse 店铺同步状态查询
type ShopSyncStatusResponse struct {
	ShopID                int64      `json:"shop_id"`
	ShopName              string     `json:"shop_name"`
	TokenStatus           string     `json:"token_status"`
	OrderSyncStatus       string     `json:"order_sync_status"`
	LastFullSyncAt        *time.Time `json:"last_full_sync_at"`
	LastIncrementalSyncAt *time.Time `json:"last_incremental_sync_at"`
	LastOrderSyncError    string     `json:"last_order_sync_error,omitempty"`
	ProductSyncStatus     string     `json:"product_sync_status"`
	LastProductSyncAt     *time.Time `json:"last_product_sync_at"`
	LastProductSyncError  string     `json:"last_product_sync_error,omitempty"`
}

// DetailTaskResponse 详情补全任务查询
type DetailTaskResponse struct {
	ID            int64      `json:"id"`
	ShopID        int64      `json:"shop_id"`
	ParentOrderSn string     `json:"parent_order_sn"`
	Status        string     `json:"status"`
	PackageSn     string     `json:"package_sn,omitempty"`
	RetryCount    int        `json:"retry_count"`
	MaxRetries    int        `json:"max_retries"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// OrderResponse 订单列表行（金额折算为元展示）
type OrderResponse struct {
	ID            int64      `json:"id"`
	ShopID        int64      `json:"shop_id"`
	OrderSn       string     `json:"order_sn"`
	SkuID         string     `json:"sku_id"`
	SpuID         string     `json:"spu_id"`
	ParentOrderSn string     `json:"parent_order_sn"`
	Status        string     `json:"status"`
	GoodsName     string     `json:"goods_name"`
	Quantity      int        `json:"quantity"`
	ReceiptName   string     `json:"receipt_name,omitempty"`
	City          string     `json:"city,omitempty"`
	PackageSn     string     `json:"package_sn,omitempty"`
	NeedsPackage  bool       `json:"needs_package"` // 已发货但缺包裹号，待补全
	Gmv           float64    `json:"gmv"`
	Cost          float64    `json:"cost"`
	Profit        float64    `json:"profit"`
	RawCurrency   string     `json:"raw_currency,omitempty"`
	TemuCreatedAt *time.Time `json:"temu_created_at,omitempty"`
	SyncedAt      *time.Time `json:"synced_at,omitempty"`
}

// ProductResponse 商品列表行
type ProductResponse struct {
	ID          int64      `json:"id"`
	ShopID      int64      `json:"shop_id"`
	GoodsID     string     `json:"goods_id"`
	GoodsName   string     `json:"goods_name"`
	SpuID       string     `json:"spu_id,omitempty"`
	SkcID       string     `json:"skc_id,omitempty"`
	State       string     `json:"state"`
	Price       float64    `json:"price"`
	Cost        float64    `json:"cost"`
	RawCurrency string     `json:"raw_currency,omitempty"`
	Quantity    int        `json:"quantity"`
	SoldCount   int        `json:"sold_count"`
	SyncedAt    *time.Time `json:"synced_at,omitempty"`
}

// OrderListRequest 订单列表查询参数
type OrderListRequest struct {
	ShopID   int64  `form:"shop_id"`
	Status   string `form:"status"`
	Page     int    `form:"page,default=1"`
	PageSize int    `form:"page_size,default=20"`
}

// ProductListRequest 商品列表查询参数
type ProductListRequest struct {
	ShopID   int64  `form:"shop_id"`
	State    string `form:"state"`
	Page     int    `form:"page,default=1"`
	PageSize int    `form:"page_size,default=20"`
}

// PageResponse 通用分页响应
type PageResponse struct {
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Items    interface{} `json:"items"`
}
