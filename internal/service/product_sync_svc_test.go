package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"temu_erp_v1_202609/internal/api/dto"
	"temu_erp_v1_202609/internal/model"
	"temu_erp_v1_202609/internal/repository"
)

// goodsListPage 组装一页商品列表响应
func goodsListPage(total int, goods ...map[string]interface{}) json.RawMessage {
	list := make([]interface{}, 0, len(goods))
	for _, g := range goods {
		list = append(list, g)
	}
	raw, _ := json.Marshal(map[string]interface{}{
		"total":     total,
		"goodsList": list,
	})
	return raw
}

func newProductSyncService(env *syncTestEnv) *ProductSyncService {
	raws := repository.NewRawRepository(env.db)
	return NewProductSyncService(env.shops, env.prods, raws, env.caller, env.svc.converter, SyncOptions{PageSize: 100})
}

// ==================== 覆盖写入 ====================

// 首轮新建，二轮覆盖；主键稳定
func TestProductSync_Upsert(t *testing.T) {
	env := setupSyncTest(t)
	svc := newProductSyncService(env)
	ctx := context.Background()

	goodsName := "小夜灯"
	env.caller.handler = func(apiType string, bizParams map[string]interface{}) (json.RawMessage, error) {
		return goodsListPage(1, map[string]interface{}{
			"goodsId":   "8001",
			"goodsName": goodsName,
			"price":     "5.99",
			"currency":  "USD",
			"status":    "1",
		}), nil
	}

	result, err := svc.SyncProducts(ctx, env.shopID, false)
	if err != nil {
		t.Fatalf("同步失败: %v", err)
	}
	if result.Created != 1 {
		t.Fatalf("created = %d, want 1", result.Created)
	}

	first, _ := env.prods.GetByGoodsID(ctx, env.shopID, "8001")
	if first == nil {
		t.Fatal("商品未入库")
	}
	// 5.99 USD * 7.1 = 42.53 元 = 4253 分
	if first.PriceFen != 4253 {
		t.Errorf("PriceFen = %d, want 4253", first.PriceFen)
	}
	if first.State != model.ProductStateActive {
		t.Errorf("State = %s", first.State)
	}

	// 二轮改名覆盖
	goodsName = "小夜灯（升级款）"
	result, err = svc.SyncProducts(ctx, env.shopID, false)
	if err != nil {
		t.Fatal(err)
	}
	if result.Updated != 1 {
		t.Errorf("updated = %d, want 1", result.Updated)
	}
	second, _ := env.prods.GetByGoodsID(ctx, env.shopID, "8001")
	if second.ID != first.ID {
		t.Errorf("覆盖写入主键变了: %d -> %d", first.ID, second.ID)
	}
	if second.GoodsName != "小夜灯（升级款）" {
		t.Errorf("GoodsName = %s", second.GoodsName)
	}

	// 列表查询输出元为单位的售价
	page, err := svc.ListProducts(ctx, &dto.ProductListRequest{ShopID: env.shopID, Page: 1, PageSize: 20})
	if err != nil {
		t.Fatal(err)
	}
	items, ok := page.Items.([]dto.ProductResponse)
	if !ok || len(items) != 1 {
		t.Fatalf("列表项类型/条数不对: %T", page.Items)
	}
	if items[0].Price != 42.53 {
		t.Errorf("Price = %v, want 42.53 元", items[0].Price)
	}
}

// 运营手工录的成本不被同步覆盖
func TestProductSync_CostPreserved(t *testing.T) {
	env := setupSyncTest(t)
	svc := newProductSyncService(env)
	ctx := context.Background()

	env.caller.handler = func(apiType string, bizParams map[string]interface{}) (json.RawMessage, error) {
		return goodsListPage(1, map[string]interface{}{
			"goodsId": "8001",
			"price":   "5.99",
		}), nil
	}

	if _, err := svc.SyncProducts(ctx, env.shopID, false); err != nil {
		t.Fatal(err)
	}

	// 运营录入成本
	row, _ := env.prods.GetByGoodsID(ctx, env.shopID, "8001")
	row.CostFen = 1500
	env.prods.Update(ctx, row)

	if _, err := svc.SyncProducts(ctx, env.shopID, false); err != nil {
		t.Fatal(err)
	}

	after, _ := env.prods.GetByGoodsID(ctx, env.shopID, "8001")
	if after.CostFen != 1500 {
		t.Errorf("成本被同步冲掉: %d", after.CostFen)
	}
}

// ==================== 状态归一 ====================

func TestNormalizeState(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"1", model.ProductStateActive},
		{"onSale", model.ProductStateActive},
		{"ONSALE", model.ProductStateActive},
		{"2", model.ProductStateInactive},
		{"offSale", model.ProductStateInactive},
		{"SOLDOUT", model.ProductStateInactive},
		{"", model.ProductStateActive},
		{"weird", model.ProductStateDraft},
	}
	for _, tt := range tests {
		if got := normalizeState(tt.raw); got != tt.want {
			t.Errorf("normalizeState(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}
}

// ==================== 时间窗口 ====================

// 商品同步和订单同步一样带游标窗口
func TestProductSync_Window(t *testing.T) {
	env := setupSyncTest(t)
	svc := newProductSyncService(env)
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	env.caller.handler = func(apiType string, bizParams map[string]interface{}) (json.RawMessage, error) {
		return goodsListPage(0), nil
	}

	t.Run("增量从上次商品同步时间开始", func(t *testing.T) {
		cursor := now.Add(-2 * time.Hour)
		env.db.Model(&model.Shop{}).Where("id = ?", env.shopID).
			Update("last_product_sync_at", cursor)

		env.caller.calls = nil
		if _, err := svc.SyncProducts(context.Background(), env.shopID, false); err != nil {
			t.Fatal(err)
		}

		params := env.caller.calls[0].bizParams
		if params["createAfter"].(int64) != cursor.Unix() {
			t.Errorf("createAfter = %v, want %d", params["createAfter"], cursor.Unix())
		}
		if params["createBefore"].(int64) != now.Unix() {
			t.Errorf("createBefore = %v, want %d", params["createBefore"], now.Unix())
		}
	})

	t.Run("全量按回溯天数", func(t *testing.T) {
		env.caller.calls = nil
		if _, err := svc.SyncProducts(context.Background(), env.shopID, true); err != nil {
			t.Fatal(err)
		}

		params := env.caller.calls[0].bizParams
		wantAfter := now.AddDate(0, 0, -365).Unix()
		if params["createAfter"].(int64) != wantAfter {
			t.Errorf("createAfter = %v, want %d", params["createAfter"], wantAfter)
		}
	})
}

// ==================== 互斥独立性 ====================

// 订单同步占用游标时商品同步照常跑
func TestProductSync_IndependentCursor(t *testing.T) {
	env := setupSyncTest(t)
	svc := newProductSyncService(env)
	ctx := context.Background()

	env.db.Model(&model.Shop{}).Where("id = ?", env.shopID).
		Update("order_sync_status", model.SyncStatusSyncing)

	env.caller.handler = func(apiType string, bizParams map[string]interface{}) (json.RawMessage, error) {
		return goodsListPage(0), nil
	}

	if _, err := svc.SyncProducts(ctx, env.shopID, false); err != nil {
		t.Fatalf("商品与订单游标应互不影响: %v", err)
	}

	shop, _ := env.shops.GetByID(ctx, env.shopID)
	if shop.ProductSyncStatus != model.SyncStatusIdle {
		t.Errorf("product_sync_status = %s", shop.ProductSyncStatus)
	}
	if shop.OrderSyncStatus != model.SyncStatusSyncing {
		t.Errorf("order_sync_status 被误改: %s", shop.OrderSyncStatus)
	}
}
