package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"temu_erp_v1_202609/internal/api/dto"
	"temu_erp_v1_202609/internal/model"
	"temu_erp_v1_202609/internal/repository"
	"temu_erp_v1_202609/pkg/normalize"
	"temu_erp_v1_202609/pkg/temu"
)

// ErrSyncInProgress 同一店铺同一实体已有同步在跑
var ErrSyncInProgress = errors.New("同步进行中，跳过本次触发")

// ErrShopNotSyncable 店铺停用或 token 失效
var ErrShopNotSyncable = errors.New("店铺不可同步")

// shopCreds 店铺维度的调用凭证，app 凭证留空时由客户端回退全局配置
func shopCreds(shop *model.Shop) temu.Credentials {
	return temu.Credentials{
		AppKey:      shop.AppKey,
		AppSecret:   shop.AppSecret,
		AccessToken: shop.AccessToken,
	}
}

// SyncOptions 同步参数
type SyncOptions struct {
	PageSize         int // 单页条数，平台上限 100
	FullLookbackDays int // 全量回溯天数
	TaskMaxRetries   int // 补全任务重试上限
}

// ==================== OrderSyncService ====================

// OrderSyncService 订单同步服务
// 整轮流程：抢占游标 -> 按窗口分页拉列表 -> 原始报文落库 ->
// 规范化拆行入库 -> 缺包裹号的已发货父单落补全任务 -> 推进游标。
// 单个父单解析失败只计数跳过，整页请求失败中止本轮（已入库的页保留）
type OrderSyncService struct {
	shopRepo    repository.ShopRepository
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	rawRepo     repository.RawRepository
	taskRepo    repository.DetailTaskRepository
	caller      temu.Caller
	converter   *normalize.CurrencyConverter
	opts        SyncOptions
	now         func() time.Time // 测试注入
}

// NewOrderSyncService 创建订单同步服务
func NewOrderSyncService(
	shopRepo repository.ShopRepository,
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	rawRepo repository.RawRepository,
	taskRepo repository.DetailTaskRepository,
	caller temu.Caller,
	converter *normalize.CurrencyConverter,
	opts SyncOptions,
) *OrderSyncService {
	if opts.PageSize <= 0 || opts.PageSize > 100 {
		opts.PageSize = 100
	}
	if opts.FullLookbackDays <= 0 {
		opts.FullLookbackDays = 365
	}
	if opts.TaskMaxRetries <= 0 {
		opts.TaskMaxRetries = 5
	}
	return &OrderSyncService{
		shopRepo:    shopRepo,
		orderRepo:   orderRepo,
		productRepo: productRepo,
		rawRepo:     rawRepo,
		taskRepo:    taskRepo,
		caller:      caller,
		converter:   converter,
		opts:        opts,
		now:         time.Now,
	}
}

// ==================== 同步入口 ====================

// SyncOrders 同步一家店铺的订单
// full=true 全量（回溯一年），否则从上次成功时间增量
func (s *OrderSyncService) SyncOrders(ctx context.Context, shopID int64, full bool) (*dto.SyncResult, error) {
	shop, err := s.shopRepo.GetByID(ctx, shopID)
	if err != nil {
		return nil, fmt.Errorf("查询店铺失败: %w", err)
	}
	if shop == nil {
		return nil, fmt.Errorf("店铺不存在: %d", shopID)
	}
	if !shop.CanSync() {
		return nil, ErrShopNotSyncable
	}

	// 抢占游标：条件更新保证同店同实体只有一轮在跑
	ok, err := s.shopRepo.TryBeginSync(ctx, shopID, repository.SyncEntityOrder)
	if err != nil {
		return nil, fmt.Errorf("抢占同步游标失败: %w", err)
	}
	if !ok {
		return nil, ErrSyncInProgress
	}

	start := s.now()
	log.Printf("[OrderSync] 店铺 %d 开始同步订单 full=%v", shopID, full)

	result, syncErr := s.syncPages(ctx, shop, full)
	if syncErr != nil {
		// 授权失效：标记店铺待重授权并中止，其余错误只记到游标上
		if temu.IsAuthError(syncErr) {
			if markErr := s.shopRepo.MarkTokenInvalid(ctx, shopID); markErr != nil {
				log.Printf("[OrderSync] 店铺 %d 标记 token 失效失败: %v", shopID, markErr)
			}
		}
		if failErr := s.shopRepo.FailSync(ctx, shopID, repository.SyncEntityOrder, syncErr.Error()); failErr != nil {
			log.Printf("[OrderSync] 店铺 %d 记录同步失败状态出错: %v", shopID, failErr)
		}
		log.Printf("[OrderSync] 店铺 %d 订单同步失败: %v", shopID, syncErr)
		return result, syncErr
	}

	// 游标推进到本轮开始时刻而非最后一条的时间戳，容忍平台时钟偏差
	if err := s.shopRepo.FinishSync(ctx, shopID, repository.SyncEntityOrder, full, start); err != nil {
		return result, fmt.Errorf("推进同步游标失败: %w", err)
	}

	log.Printf("[OrderSync] 店铺 %d 订单同步完成 total=%d fetched=%d created=%d updated=%d failed=%d 耗时=%v",
		shopID, result.Total, result.Fetched, result.Created, result.Updated, result.Failed, time.Since(start))
	return result, nil
}

// syncPages 窗口内逐页拉取
func (s *OrderSyncService) syncPages(ctx context.Context, shop *model.Shop, full bool) (*dto.SyncResult, error) {
	result := &dto.SyncResult{}
	createAfter, createBefore := s.window(shop, full)

	for pageNumber := 1; ; pageNumber++ {
		bizParams := map[string]interface{}{
			"pageNumber":   pageNumber,
			"pageSize":     s.opts.PageSize,
			"createAfter":  createAfter.Unix(),
			"createBefore": createBefore.Unix(),
			"timeZone":     "UTC",
		}

		raw, err := s.caller.Call(ctx, shop.ID, temu.APIOrderList, bizParams, shopCreds(shop))
		if err != nil {
			return result, fmt.Errorf("拉取订单第 %d 页失败: %w", pageNumber, err)
		}

		var page dto.TemuOrderListResult
		if err := json.Unmarshal(raw, &page); err != nil {
			return result, fmt.Errorf("解析订单第 %d 页失败: %w", pageNumber, err)
		}
		result.Total = page.TotalItemNum

		for _, item := range page.PageItems {
			if err := s.processParent(ctx, shop, item, result); err != nil {
				// 单个父单脏数据跳过，不拖垮整轮
				result.Failed++
				result.Errors = append(result.Errors, err.Error())
				log.Printf("[OrderSync] 店铺 %d 父单处理失败: %v", shop.ID, err)
			}
		}
		result.Fetched += len(page.PageItems)

		// 终止条件：空页、短页、或已达声明总数
		if len(page.PageItems) == 0 || len(page.PageItems) < s.opts.PageSize {
			break
		}
		if page.TotalItemNum > 0 && result.Fetched >= page.TotalItemNum {
			break
		}
	}

	return result, nil
}

// window 计算本轮同步时间窗口
// 增量起点优先用上次增量完成时间，没有就退到上次全量，再没有按全量回溯
func (s *OrderSyncService) window(shop *model.Shop, full bool) (time.Time, time.Time) {
	end := s.now()
	if full {
		return end.AddDate(0, 0, -s.opts.FullLookbackDays), end
	}
	if shop.LastIncrementalSyncAt != nil {
		return *shop.LastIncrementalSyncAt, end
	}
	if shop.LastFullSyncAt != nil {
		return *shop.LastFullSyncAt, end
	}
	return end.AddDate(0, 0, -s.opts.FullLookbackDays), end
}

// ==================== 父单处理 ====================

// processParent 处理一个父单：原始落库 -> 子单拆行 -> 补全任务
func (s *OrderSyncService) processParent(ctx context.Context, shop *model.Shop, item json.RawMessage, result *dto.SyncResult) error {
	var parent dto.TemuParentOrder
	if err := json.Unmarshal(item, &parent); err != nil {
		return fmt.Errorf("父单结构解析失败: %w", err)
	}
	parentSn := parent.ParentOrderMap.ParentOrderSn
	if parentSn == "" {
		return fmt.Errorf("父单缺少 parentOrderSn")
	}

	// 原始报文先落库：规范化失败也能事后重放
	fetchedAt := s.now()
	rawID, err := s.rawRepo.UpsertOrderRaw(ctx, shop.ID, parentSn, item, fetchedAt)
	if err != nil {
		return fmt.Errorf("父单 %s 原始报文落库失败: %w", parentSn, err)
	}

	// 父单维度的松散文档，子单提取不到的字段从这里兜底
	var parentDoc normalize.Payload
	_ = json.Unmarshal(item, &parentDoc)
	parentMapDoc, _ := parentDoc["parentOrderMap"].(map[string]interface{})

	status := model.ParentStatusToLocal(parent.ParentOrderMap.ParentOrderStatus)
	var orderTime *time.Time
	if parent.ParentOrderMap.ParentOrderTime > 0 {
		t := time.Unix(parent.ParentOrderMap.ParentOrderTime, 0)
		orderTime = &t
	}

	var orderSns []string
	parentHasPackage := false

	for _, childRaw := range parent.OrderList {
		var child normalize.Payload
		if err := json.Unmarshal(childRaw, &child); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("父单 %s 子单解析失败: %v", parentSn, err))
			continue
		}

		row, err := s.normalizeChild(ctx, shop, parentSn, child, parentMapDoc, status, parent.ParentOrderMap.ParentOrderStatus)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		row.RawID = &rawID
		row.TemuCreatedAt = orderTime

		created, err := s.upsertOrder(ctx, row)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("子单 %s 入库失败: %v", row.OrderSn, err))
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}

		orderSns = append(orderSns, row.OrderSn)
		if row.PackageSn != "" {
			parentHasPackage = true
		}
	}

	// 已发货但全程没见到包裹号：落详情补全任务，同父单未完结任务去重
	if status == model.OrderStatusShipped && !parentHasPackage {
		if err := s.enqueueDetailTask(ctx, shop.ID, parentSn, orderSns); err != nil {
			log.Printf("[OrderSync] 店铺 %d 父单 %s 落补全任务失败: %v", shop.ID, parentSn, err)
		}
	}

	return nil
}

// normalizeChild 子单规范化为订单行
func (s *OrderSyncService) normalizeChild(ctx context.Context, shop *model.Shop, parentSn string, child normalize.Payload, parentDoc normalize.Payload, status string, parentStatus int) (*model.Order, error) {
	orderSn := normalize.ExtractFirst(child, normalize.OrderSnRules)
	if orderSn == "" {
		return nil, fmt.Errorf("父单 %s 子单缺少 orderSn", parentSn)
	}

	// 子单优先，父单兜底
	pick := func(rules []normalize.FieldRule) string {
		if v := normalize.ExtractFirst(child, rules); v != "" {
			return v
		}
		return normalize.ExtractFirst(parentDoc, rules)
	}

	skuID := normalize.ExtractFirst(child, normalize.SkuRules)
	spuID := normalize.ExtractFirst(child, normalize.SpuRules)

	quantity := 1
	if q := normalize.ExtractFirst(child, normalize.QuantityRules); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			quantity = n
		}
	}

	// 金额折算：原始币种 -> 人民币分。币种提不出用店铺记账币种兜底
	currency := pick(normalize.CurrencyRules)
	if currency == "" {
		currency = shop.CurrencyCode
	}
	var gmvFen int64
	if amountStr := pick(normalize.AmountRules); amountStr != "" {
		if amount, err := decimal.NewFromString(amountStr); err == nil {
			gmvFen = s.converter.ConvertToFen(ctx, amount, currency)
		}
	}

	syncedAt := s.now()
	return &model.Order{
		ShopID:           shop.ID,
		OrderSn:          orderSn,
		SkuID:            skuID,
		SpuID:            spuID,
		ParentOrderSn:    parentSn,
		Status:           status,
		TemuParentStatus: parentStatus,
		GoodsName:        pick(normalize.GoodsNameRules),
		Quantity:         quantity,
		ReceiptName:      pick(normalize.ReceiptNameRules),
		City:             pick(normalize.CityRules),
		Address:          pick(normalize.AddressRules),
		PackageSn:        pick(normalize.PackageSnRules),
		GmvFen:           gmvFen,
		RawCurrency:      currency,
		SyncedAt:         &syncedAt,
	}, nil
}

// upsertOrder 按自然键覆盖写入，保持主键稳定
// 返回是否新建
func (s *OrderSyncService) upsertOrder(ctx context.Context, row *model.Order) (bool, error) {
	existing, err := s.orderRepo.GetByNaturalKey(ctx, row.OrderSn, row.SkuID, row.SpuID)
	if err != nil {
		return false, err
	}

	// 成本来自商品档案（运营手工维护），利润只在成本已知时重算；
	// 成本缺失时保留旧利润值，不清零
	s.fillCost(ctx, row)

	if existing == nil {
		return true, s.orderRepo.Create(ctx, row)
	}

	row.ID = existing.ID
	row.CreatedAt = existing.CreatedAt
	if row.PackageSn == "" {
		// 已回填的包裹号不被后续列表页的空值冲掉
		row.PackageSn = existing.PackageSn
	}
	if row.CostFen == 0 {
		row.CostFen = existing.CostFen
		row.ProfitFen = existing.ProfitFen
	}
	if row.TemuCreatedAt == nil {
		row.TemuCreatedAt = existing.TemuCreatedAt
	}
	return false, s.orderRepo.Update(ctx, row)
}

// fillCost 从商品档案查成本并重算利润
func (s *OrderSyncService) fillCost(ctx context.Context, row *model.Order) {
	if row.SpuID == "" {
		return
	}
	product, err := s.productRepo.GetByGoodsID(ctx, row.ShopID, row.SpuID)
	if err != nil || product == nil || product.CostFen <= 0 {
		return
	}
	row.CostFen = product.CostFen * int64(row.Quantity)
	row.ProfitFen = row.GmvFen - row.CostFen
}

// enqueueDetailTask 落详情补全任务，同父单已有未完结任务时跳过
func (s *OrderSyncService) enqueueDetailTask(ctx context.Context, shopID int64, parentSn string, orderSns []string) error {
	exists, err := s.taskRepo.ExistsNonTerminal(ctx, shopID, parentSn)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	snsJSON, _ := json.Marshal(orderSns)
	return s.taskRepo.Create(ctx, &model.OrderDetailTask{
		ShopID:        shopID,
		ParentOrderSn: parentSn,
		OrderSns:      snsJSON,
		Status:        model.DetailTaskStatusPending,
		MaxRetries:    s.opts.TaskMaxRetries,
	})
}

// ==================== 查询 ====================

// ListOrders 订单列表查询
func (s *OrderSyncService) ListOrders(ctx context.Context, req *dto.OrderListRequest) (*dto.PageResponse, error) {
	orders, total, err := s.orderRepo.List(ctx, repository.OrderFilter{
		ShopID:   req.ShopID,
		Status:   req.Status,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		return nil, err
	}

	items := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		o := &orders[i]
		items = append(items, dto.OrderResponse{
			ID:            o.ID,
			ShopID:        o.ShopID,
			OrderSn:       o.OrderSn,
			SkuID:         o.SkuID,
			SpuID:         o.SpuID,
			ParentOrderSn: o.ParentOrderSn,
			Status:        o.Status,
			GoodsName:     o.GoodsName,
			Quantity:      o.Quantity,
			ReceiptName:   o.ReceiptName,
			City:          o.City,
			PackageSn:     o.PackageSn,
			NeedsPackage:  o.IsShippedWithoutPackage(),
			Gmv:           o.GetGmv(),
			Cost:          float64(o.CostFen) / 100,
			Profit:        o.GetProfit(),
			RawCurrency:   o.RawCurrency,
			TemuCreatedAt: o.TemuCreatedAt,
			SyncedAt:      o.SyncedAt,
		})
	}
	return &dto.PageResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    items,
	}, nil
}
