package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"temu_erp_v1_202609/internal/api/dto"
	"temu_erp_v1_202609/internal/model"
	"temu_erp_v1_202609/internal/repository"
	"temu_erp_v1_202609/pkg/normalize"
	"temu_erp_v1_202609/pkg/temu"
)

// ==================== 测试辅助 ====================

// fakeCaller 平台调用桩
type fakeCaller struct {
	calls   []fakeCall
	handler func(apiType string, bizParams map[string]interface{}) (json.RawMessage, error)
}

type fakeCall struct {
	apiType   string
	bizParams map[string]interface{}
	creds     temu.Credentials
}

func (f *fakeCaller) Call(ctx context.Context, shopID int64, apiType string, bizParams map[string]interface{}, creds temu.Credentials) (json.RawMessage, error) {
	f.calls = append(f.calls, fakeCall{apiType: apiType, bizParams: bizParams, creds: creds})
	return f.handler(apiType, bizParams)
}

type syncTestEnv struct {
	db     *gorm.DB
	shops  repository.ShopRepository
	orders repository.OrderRepository
	prods  repository.ProductRepository
	tasks  repository.DetailTaskRepository
	caller *fakeCaller
	svc    *OrderSyncService
	shopID int64
}

func setupSyncTest(t *testing.T) *syncTestEnv {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}
	db.AutoMigrate(&model.Shop{}, &model.Order{}, &model.Product{},
		&model.TemuOrderRaw{}, &model.TemuProductRaw{}, &model.OrderDetailTask{})

	shop := &model.Shop{
		TemuShopID:        634418212,
		ShopName:          "测试店铺",
		AccessToken:       "tok-1",
		TokenStatus:       model.TokenStatusValid,
		CurrencyCode:      "USD",
		OrderSyncStatus:   model.SyncStatusIdle,
		ProductSyncStatus: model.SyncStatusIdle,
		Status:            model.ShopStatusActive,
	}
	if err := db.Create(shop).Error; err != nil {
		t.Fatal(err)
	}

	shops := repository.NewShopRepository(db)
	orders := repository.NewOrderRepository(db)
	prods := repository.NewProductRepository(db)
	raws := repository.NewRawRepository(db)
	tasks := repository.NewDetailTaskRepository(db)

	caller := &fakeCaller{}
	converter := normalize.NewCurrencyConverter(normalize.CurrencyConverterConfig{
		RateURL: "http://127.0.0.1:1",
	})
	converter.SetCachedRate("USD", decimal.NewFromFloat(7.1))

	svc := NewOrderSyncService(shops, orders, prods, raws, tasks, caller, converter, SyncOptions{
		PageSize:         100,
		FullLookbackDays: 365,
	})

	return &syncTestEnv{
		db: db, shops: shops, orders: orders, prods: prods,
		tasks: tasks, caller: caller, svc: svc, shopID: shop.ID,
	}
}

// orderListPage 组装一页订单列表响应
func orderListPage(total int, parents ...map[string]interface{}) json.RawMessage {
	items := make([]interface{}, 0, len(parents))
	for _, p := range parents {
		items = append(items, p)
	}
	raw, _ := json.Marshal(map[string]interface{}{
		"totalItemNum": total,
		"pageItems":    items,
	})
	return raw
}

// parentOrder 组装一个父单
func parentOrder(sn string, status int, children ...map[string]interface{}) map[string]interface{} {
	list := make([]interface{}, 0, len(children))
	for _, c := range children {
		list = append(list, c)
	}
	return map[string]interface{}{
		"parentOrderMap": map[string]interface{}{
			"parentOrderSn":     sn,
			"parentOrderStatus": status,
			"parentOrderTime":   1756000000,
		},
		"orderList": list,
	}
}

func childOrder(sn, sku, spu string, amount string) map[string]interface{} {
	return map[string]interface{}{
		"orderSn":     sn,
		"skuId":       sku,
		"goodsId":     spu,
		"goodsName":   "测试商品",
		"quantity":    2,
		"orderAmount": amount,
		"currency":    "USD",
	}
}

// ==================== 分页 ====================

// 250 条 / 页宽 100：恰好请求 3 页
func TestOrderSync_Pagination(t *testing.T) {
	env := setupSyncTest(t)

	env.caller.handler = func(apiType string, bizParams map[string]interface{}) (json.RawMessage, error) {
		pageNumber := bizParams["pageNumber"].(int)
		pageLen := 100
		if pageNumber == 3 {
			pageLen = 50
		}
		parents := make([]map[string]interface{}, 0, pageLen)
		for i := 0; i < pageLen; i++ {
			sn := fmt.Sprintf("PO-%d-%03d", pageNumber, i)
			parents = append(parents, parentOrder(sn, model.TemuParentStatusUnShipped,
				childOrder(sn+"-1", "SKU-1", "SPU-1", "10.00")))
		}
		return orderListPage(250, parents...), nil
	}

	result, err := env.svc.SyncOrders(context.Background(), env.shopID, false)
	if err != nil {
		t.Fatalf("同步失败: %v", err)
	}

	if len(env.caller.calls) != 3 {
		t.Errorf("期望请求 3 页，实际 %d 页", len(env.caller.calls))
	}
	if env.caller.calls[0].creds.AccessToken != "tok-1" {
		t.Errorf("调用未携带店铺凭证: %+v", env.caller.calls[0].creds)
	}
	if result.Fetched != 250 {
		t.Errorf("fetched = %d, want 250", result.Fetched)
	}
	if result.Created != 250 {
		t.Errorf("created = %d, want 250", result.Created)
	}

	// 游标推进，状态回 idle
	shop, _ := env.shops.GetByID(context.Background(), env.shopID)
	if shop.OrderSyncStatus != model.SyncStatusIdle {
		t.Errorf("status = %s", shop.OrderSyncStatus)
	}
	if shop.LastIncrementalSyncAt == nil {
		t.Error("增量游标未推进")
	}
}

// ==================== 父单拆行 ====================

// 一个父单 3 个 SKU 拆 3 行，共享 parent_order_sn；
// 已发货缺包裹号 -> 恰好 1 条补全任务
func TestOrderSync_MultiSKUAndTask(t *testing.T) {
	env := setupSyncTest(t)
	ctx := context.Background()

	env.caller.handler = func(apiType string, bizParams map[string]interface{}) (json.RawMessage, error) {
		return orderListPage(1, parentOrder("PO-1", model.TemuParentStatusShipped,
			childOrder("PO-1-1", "SKU-A", "SPU-1", "10.00"),
			childOrder("PO-1-2", "SKU-B", "SPU-1", "20.00"),
			childOrder("PO-1-3", "SKU-C", "SPU-2", "30.00"),
		)), nil
	}

	result, err := env.svc.SyncOrders(ctx, env.shopID, false)
	if err != nil {
		t.Fatal(err)
	}
	if result.Created != 3 {
		t.Fatalf("created = %d, want 3", result.Created)
	}

	rows, _ := env.orders.ListByParent(ctx, env.shopID, "PO-1")
	if len(rows) != 3 {
		t.Fatalf("订单行 = %d, want 3", len(rows))
	}
	for _, row := range rows {
		if row.ParentOrderSn != "PO-1" {
			t.Errorf("parent_order_sn = %s", row.ParentOrderSn)
		}
		if row.Status != model.OrderStatusShipped {
			t.Errorf("status = %s", row.Status)
		}
		if row.RawID == nil {
			t.Error("原始数据回链缺失")
		}
	}

	// 金额折算：10.00 USD * 7.1 = 71.00 元 = 7100 分
	first, _ := env.orders.GetByNaturalKey(ctx, "PO-1-1", "SKU-A", "SPU-1")
	if first.GmvFen != 7100 {
		t.Errorf("GmvFen = %d, want 7100", first.GmvFen)
	}
	if first.RawCurrency != "USD" {
		t.Errorf("RawCurrency = %s", first.RawCurrency)
	}

	// 恰好一条补全任务
	tasks, total, _ := env.tasks.List(ctx, repository.DetailTaskFilter{ShopID: env.shopID})
	if total != 1 {
		t.Fatalf("补全任务 = %d, want 1", total)
	}
	if tasks[0].ParentOrderSn != "PO-1" || tasks[0].Status != model.DetailTaskStatusPending {
		t.Errorf("任务内容不对: %+v", tasks[0])
	}

	// 列表查询输出元为单位的金额和补全标记
	page, err := env.svc.ListOrders(ctx, &dto.OrderListRequest{ShopID: env.shopID, Page: 1, PageSize: 20})
	if err != nil {
		t.Fatal(err)
	}
	items, ok := page.Items.([]dto.OrderResponse)
	if !ok || len(items) != 3 {
		t.Fatalf("列表项类型/条数不对: %T", page.Items)
	}
	for _, item := range items {
		if item.OrderSn == "PO-1-1" {
			if item.Gmv != 71.0 {
				t.Errorf("Gmv = %v, want 71.0 元", item.Gmv)
			}
			if !item.NeedsPackage {
				t.Error("已发货缺包裹号应标记待补全")
			}
		}
	}
}

// 店铺独立 app 凭证透传给客户端
func TestOrderSync_ShopCredentials(t *testing.T) {
	env := setupSyncTest(t)

	env.db.Model(&model.Shop{}).Where("id = ?", env.shopID).Updates(map[string]interface{}{
		"app_key":    "shop-app-key",
		"app_secret": "shop-app-secret",
	})

	env.caller.handler = func(apiType string, bizParams map[string]interface{}) (json.RawMessage, error) {
		return orderListPage(0), nil
	}

	if _, err := env.svc.SyncOrders(context.Background(), env.shopID, false); err != nil {
		t.Fatal(err)
	}

	creds := env.caller.calls[0].creds
	if creds.AppKey != "shop-app-key" || creds.AppSecret != "shop-app-secret" {
		t.Errorf("店铺 app 凭证未透传: %+v", creds)
	}
	if creds.AccessToken != "tok-1" {
		t.Errorf("access token 未透传: %q", creds.AccessToken)
	}
}

// ==================== 幂等 ====================

// 重复同步按自然键覆盖，主键不变，任务不重复入队
func TestOrderSync_Idempotent(t *testing.T) {
	env := setupSyncTest(t)
	ctx := context.Background()

	env.caller.handler = func(apiType string, bizParams map[string]interface{}) (json.RawMessage, error) {
		return orderListPage(1, parentOrder("PO-1", model.TemuParentStatusShipped,
			childOrder("PO-1-1", "SKU-A", "SPU-1", "10.00"))), nil
	}

	if _, err := env.svc.SyncOrders(ctx, env.shopID, false); err != nil {
		t.Fatal(err)
	}
	first, _ := env.orders.GetByNaturalKey(ctx, "PO-1-1", "SKU-A", "SPU-1")

	result, err := env.svc.SyncOrders(ctx, env.shopID, false)
	if err != nil {
		t.Fatal(err)
	}
	if result.Created != 0 || result.Updated != 1 {
		t.Errorf("二次同步 created=%d updated=%d, want 0/1", result.Created, result.Updated)
	}

	second, _ := env.orders.GetByNaturalKey(ctx, "PO-1-1", "SKU-A", "SPU-1")
	if second.ID != first.ID {
		t.Errorf("重复同步主键变了: %d -> %d", first.ID, second.ID)
	}

	// 未完结任务去重
	_, total, _ := env.tasks.List(ctx, repository.DetailTaskFilter{ShopID: env.shopID})
	if total != 1 {
		t.Errorf("任务重复入队: %d", total)
	}
}

// 已回填的包裹号不被列表页的空值冲掉
func TestOrderSync_PackageSnPreserved(t *testing.T) {
	env := setupSyncTest(t)
	ctx := context.Background()

	env.caller.handler = func(apiType string, bizParams map[string]interface{}) (json.RawMessage, error) {
		return orderListPage(1, parentOrder("PO-1", model.TemuParentStatusShipped,
			childOrder("PO-1-1", "SKU-A", "SPU-1", "10.00"))), nil
	}

	env.svc.SyncOrders(ctx, env.shopID, false)

	// 模拟补全任务已回填包裹号
	env.orders.UpdatePackageSn(ctx, env.shopID, "PO-1", "PKG-123")

	env.svc.SyncOrders(ctx, env.shopID, false)

	row, _ := env.orders.GetByNaturalKey(ctx, "PO-1-1", "SKU-A", "SPU-1")
	if row.PackageSn != "PKG-123" {
		t.Errorf("包裹号被冲掉: %q", row.PackageSn)
	}
}

// ==================== 成本与利润 ====================

// 商品档案有成本时计算利润；成本缺失保留旧值不清零
func TestOrderSync_ProfitFromCost(t *testing.T) {
	env := setupSyncTest(t)
	ctx := context.Background()

	// SPU-1 有成本：20 元/件
	env.prods.Create(ctx, &model.Product{
		ShopID:  env.shopID,
		GoodsID: "SPU-1",
		CostFen: 2000,
	})

	env.caller.handler = func(apiType string, bizParams map[string]interface{}) (json.RawMessage, error) {
		return orderListPage(1, parentOrder("PO-1", model.TemuParentStatusUnShipped,
			childOrder("PO-1-1", "SKU-A", "SPU-1", "10.00"), // 数量 2
			childOrder("PO-1-2", "SKU-B", "SPU-9", "10.00"), // 无商品档案
		)), nil
	}

	if _, err := env.svc.SyncOrders(ctx, env.shopID, false); err != nil {
		t.Fatal(err)
	}

	withCost, _ := env.orders.GetByNaturalKey(ctx, "PO-1-1", "SKU-A", "SPU-1")
	if withCost.CostFen != 4000 {
		t.Errorf("CostFen = %d, want 4000 (2000 * 2 件)", withCost.CostFen)
	}
	if withCost.ProfitFen != withCost.GmvFen-4000 {
		t.Errorf("ProfitFen = %d", withCost.ProfitFen)
	}

	noCost, _ := env.orders.GetByNaturalKey(ctx, "PO-1-2", "SKU-B", "SPU-9")
	if noCost.CostFen != 0 || noCost.ProfitFen != 0 {
		t.Errorf("无成本档案不应算利润: cost=%d profit=%d", noCost.CostFen, noCost.ProfitFen)
	}
}

// ==================== 互斥与错误路径 ====================

// 同步进行中再次触发被拒
func TestOrderSync_GuardInProgress(t *testing.T) {
	env := setupSyncTest(t)
	ctx := context.Background()

	env.db.Model(&model.Shop{}).Where("id = ?", env.shopID).
		Update("order_sync_status", model.SyncStatusSyncing)

	_, err := env.svc.SyncOrders(ctx, env.shopID, false)
	if err != ErrSyncInProgress {
		t.Errorf("err = %v, want ErrSyncInProgress", err)
	}
	if len(env.caller.calls) != 0 {
		t.Error("被拒的同步不应发起任何请求")
	}
}

// 授权失效：标记店铺 token 失效并中止本轮
func TestOrderSync_AuthErrorMarksToken(t *testing.T) {
	env := setupSyncTest(t)
	ctx := context.Background()

	env.caller.handler = func(apiType string, bizParams map[string]interface{}) (json.RawMessage, error) {
		return nil, &temu.BusinessError{Code: 2000000, Message: "access token expired"}
	}

	_, err := env.svc.SyncOrders(ctx, env.shopID, false)
	if err == nil {
		t.Fatal("应返回错误")
	}

	shop, _ := env.shops.GetByID(ctx, env.shopID)
	if shop.TokenStatus != model.TokenStatusInvalid {
		t.Errorf("token_status = %s", shop.TokenStatus)
	}
	if shop.OrderSyncStatus != model.SyncStatusError {
		t.Errorf("sync_status = %s", shop.OrderSyncStatus)
	}
	if shop.LastIncrementalSyncAt != nil {
		t.Error("失败的同步不应推进游标")
	}
}

// 中途页失败：已入库的页保留，游标不推进
func TestOrderSync_MidPageFailureKeepsCommitted(t *testing.T) {
	env := setupSyncTest(t)
	ctx := context.Background()

	env.caller.handler = func(apiType string, bizParams map[string]interface{}) (json.RawMessage, error) {
		pageNumber := bizParams["pageNumber"].(int)
		if pageNumber >= 2 {
			return nil, &temu.TransportError{Err: fmt.Errorf("网关超时")}
		}
		parents := make([]map[string]interface{}, 0, 100)
		for i := 0; i < 100; i++ {
			sn := fmt.Sprintf("PO-%03d", i)
			parents = append(parents, parentOrder(sn, model.TemuParentStatusUnShipped,
				childOrder(sn+"-1", "SKU-1", "SPU-1", "10.00")))
		}
		return orderListPage(250, parents...), nil
	}

	_, err := env.svc.SyncOrders(ctx, env.shopID, false)
	if err == nil {
		t.Fatal("第二页失败应中止并报错")
	}

	var count int64
	env.db.Model(&model.Order{}).Count(&count)
	if count != 100 {
		t.Errorf("第一页成果应保留: %d 行", count)
	}

	shop, _ := env.shops.GetByID(ctx, env.shopID)
	if shop.OrderSyncStatus != model.SyncStatusError {
		t.Errorf("status = %s", shop.OrderSyncStatus)
	}
	if shop.LastIncrementalSyncAt != nil {
		t.Error("失败轮次不应推进游标")
	}
}

// 单个父单脏数据跳过，整轮继续
func TestOrderSync_DirtyParentSkipped(t *testing.T) {
	env := setupSyncTest(t)
	ctx := context.Background()

	dirty := map[string]interface{}{
		"parentOrderMap": map[string]interface{}{}, // 缺 parentOrderSn
	}
	env.caller.handler = func(apiType string, bizParams map[string]interface{}) (json.RawMessage, error) {
		return orderListPage(2,
			dirty,
			parentOrder("PO-ok", model.TemuParentStatusUnShipped,
				childOrder("PO-ok-1", "SKU-1", "SPU-1", "10.00")),
		), nil
	}

	result, err := env.svc.SyncOrders(ctx, env.shopID, false)
	if err != nil {
		t.Fatalf("脏数据不应拖垮整轮: %v", err)
	}
	if result.Failed != 1 {
		t.Errorf("failed = %d, want 1", result.Failed)
	}
	if result.Created != 1 {
		t.Errorf("created = %d, want 1", result.Created)
	}

	shop, _ := env.shops.GetByID(ctx, env.shopID)
	if shop.OrderSyncStatus != model.SyncStatusIdle {
		t.Errorf("脏数据跳过后整轮仍算成功: %s", shop.OrderSyncStatus)
	}
}

// ==================== 时间窗口 ====================

func TestOrderSync_Window(t *testing.T) {
	env := setupSyncTest(t)
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	env.svc.now = func() time.Time { return now }

	env.caller.handler = func(apiType string, bizParams map[string]interface{}) (json.RawMessage, error) {
		return orderListPage(0), nil
	}

	t.Run("全量回溯一年", func(t *testing.T) {
		env.caller.calls = nil
		if _, err := env.svc.SyncOrders(context.Background(), env.shopID, true); err != nil {
			t.Fatal(err)
		}
		params := env.caller.calls[0].bizParams
		wantAfter := now.AddDate(0, 0, -365).Unix()
		if params["createAfter"].(int64) != wantAfter {
			t.Errorf("createAfter = %v, want %d", params["createAfter"], wantAfter)
		}
		if params["createBefore"].(int64) != now.Unix() {
			t.Errorf("createBefore = %v", params["createBefore"])
		}
	})

	t.Run("增量从上次成功时间开始", func(t *testing.T) {
		env.caller.calls = nil
		if _, err := env.svc.SyncOrders(context.Background(), env.shopID, false); err != nil {
			t.Fatal(err)
		}
		params := env.caller.calls[0].bizParams
		// 全量那轮已把增量游标推进到 now
		if params["createAfter"].(int64) != now.Unix() {
			t.Errorf("createAfter = %v, want %d", params["createAfter"], now.Unix())
		}
	})
}
