package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"temu_erp_v1_202609/internal/api/dto"
	"temu_erp_v1_202609/internal/model"
	"temu_erp_v1_202609/internal/repository"
	"temu_erp_v1_202609/pkg/normalize"
	"temu_erp_v1_202609/pkg/temu"
)

// ==================== ProductSyncService ====================

// ProductSyncService 商品同步服务
// 流程与订单同步同构：抢占游标 -> 分页拉商品 -> 原始落库 ->
// 规范化覆盖写入。成本字段运营手工维护，同步永不覆盖
type ProductSyncService struct {
	shopRepo    repository.ShopRepository
	productRepo repository.ProductRepository
	rawRepo     repository.RawRepository
	caller      temu.Caller
	converter   *normalize.CurrencyConverter
	opts        SyncOptions
	now         func() time.Time // 测试注入
}

// NewProductSyncService 创建商品同步服务
func NewProductSyncService(
	shopRepo repository.ShopRepository,
	productRepo repository.ProductRepository,
	rawRepo repository.RawRepository,
	caller temu.Caller,
	converter *normalize.CurrencyConverter,
	opts SyncOptions,
) *ProductSyncService {
	if opts.PageSize <= 0 || opts.PageSize > 100 {
		opts.PageSize = 100
	}
	if opts.FullLookbackDays <= 0 {
		opts.FullLookbackDays = 365
	}
	return &ProductSyncService{
		shopRepo:    shopRepo,
		productRepo: productRepo,
		rawRepo:     rawRepo,
		caller:      caller,
		converter:   converter,
		opts:        opts,
		now:         time.Now,
	}
}

// SyncProducts 同步一家店铺的商品
func (s *ProductSyncService) SyncProducts(ctx context.Context, shopID int64, full bool) (*dto.SyncResult, error) {
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

	ok, err := s.shopRepo.TryBeginSync(ctx, shopID, repository.SyncEntityProduct)
	if err != nil {
		return nil, fmt.Errorf("抢占同步游标失败: %w", err)
	}
	if !ok {
		return nil, ErrSyncInProgress
	}

	start := s.now()
	log.Printf("[ProductSync] 店铺 %d 开始同步商品 full=%v", shopID, full)

	result, syncErr := s.syncPages(ctx, shop, full)
	if syncErr != nil {
		if temu.IsAuthError(syncErr) {
			if markErr := s.shopRepo.MarkTokenInvalid(ctx, shopID); markErr != nil {
				log.Printf("[ProductSync] 店铺 %d 标记 token 失效失败: %v", shopID, markErr)
			}
		}
		if failErr := s.shopRepo.FailSync(ctx, shopID, repository.SyncEntityProduct, syncErr.Error()); failErr != nil {
			log.Printf("[ProductSync] 店铺 %d 记录同步失败状态出错: %v", shopID, failErr)
		}
		log.Printf("[ProductSync] 店铺 %d 商品同步失败: %v", shopID, syncErr)
		return result, syncErr
	}

	if err := s.shopRepo.FinishSync(ctx, shopID, repository.SyncEntityProduct, full, start); err != nil {
		return result, fmt.Errorf("推进同步游标失败: %w", err)
	}

	log.Printf("[ProductSync] 店铺 %d 商品同步完成 total=%d fetched=%d created=%d updated=%d failed=%d 耗时=%v",
		shopID, result.Total, result.Fetched, result.Created, result.Updated, result.Failed, time.Since(start))
	return result, nil
}

// syncPages 窗口内逐页拉商品列表
// 窗口过滤的是平台侧商品更新时间：增量只扫上次成功之后动过的商品
func (s *ProductSyncService) syncPages(ctx context.Context, shop *model.Shop, full bool) (*dto.SyncResult, error) {
	result := &dto.SyncResult{}
	createAfter, createBefore := s.window(shop, full)

	for pageNumber := 1; ; pageNumber++ {
		bizParams := map[string]interface{}{
			"page":         pageNumber,
			"pageSize":     s.opts.PageSize,
			"createAfter":  createAfter.Unix(),
			"createBefore": createBefore.Unix(),
		}

		raw, err := s.caller.Call(ctx, shop.ID, temu.APIGoodsList, bizParams, shopCreds(shop))
		if err != nil {
			return result, fmt.Errorf("拉取商品第 %d 页失败: %w", pageNumber, err)
		}

		var page dto.TemuGoodsListResult
		if err := json.Unmarshal(raw, &page); err != nil {
			return result, fmt.Errorf("解析商品第 %d 页失败: %w", pageNumber, err)
		}
		result.Total = page.Total

		for _, item := range page.GoodsList {
			created, err := s.processGoods(ctx, shop, item)
			if err != nil {
				result.Failed++
				result.Errors = append(result.Errors, err.Error())
				log.Printf("[ProductSync] 店铺 %d 商品处理失败: %v", shop.ID, err)
				continue
			}
			if created {
				result.Created++
			} else {
				result.Updated++
			}
		}
		result.Fetched += len(page.GoodsList)

		if len(page.GoodsList) == 0 || len(page.GoodsList) < s.opts.PageSize {
			break
		}
		if page.Total > 0 && result.Fetched >= page.Total {
			break
		}
	}

	return result, nil
}

// window 计算本轮商品同步时间窗口
// 增量起点优先用上次商品同步完成时间，没有就退到上次全量，再没有按全量回溯
func (s *ProductSyncService) window(shop *model.Shop, full bool) (time.Time, time.Time) {
	end := s.now()
	if full {
		return end.AddDate(0, 0, -s.opts.FullLookbackDays), end
	}
	if shop.LastProductSyncAt != nil {
		return *shop.LastProductSyncAt, end
	}
	if shop.LastProductFullSyncAt != nil {
		return *shop.LastProductFullSyncAt, end
	}
	return end.AddDate(0, 0, -s.opts.FullLookbackDays), end
}

// processGoods 处理一个商品：原始落库 -> 规范化覆盖写入
func (s *ProductSyncService) processGoods(ctx context.Context, shop *model.Shop, item json.RawMessage) (bool, error) {
	var doc normalize.Payload
	if err := json.Unmarshal(item, &doc); err != nil {
		return false, fmt.Errorf("商品结构解析失败: %w", err)
	}

	goodsID := normalize.ExtractFirst(doc, normalize.SpuRules)
	if goodsID == "" {
		return false, fmt.Errorf("商品缺少 goodsId")
	}

	fetchedAt := s.now()
	rawID, err := s.rawRepo.UpsertProductRaw(ctx, shop.ID, goodsID, item, fetchedAt)
	if err != nil {
		return false, fmt.Errorf("商品 %s 原始报文落库失败: %w", goodsID, err)
	}

	currency := normalize.ExtractFirst(doc, normalize.CurrencyRules)
	if currency == "" {
		currency = shop.CurrencyCode
	}
	var priceFen int64
	if priceStr := normalize.ExtractFirst(doc, normalize.ProductPriceRules); priceStr != "" {
		if price, err := decimal.NewFromString(priceStr); err == nil {
			priceFen = s.converter.ConvertToFen(ctx, price, currency)
		}
	}

	row := &model.Product{
		ShopID:      shop.ID,
		GoodsID:     goodsID,
		GoodsName:   normalize.ExtractFirst(doc, normalize.GoodsNameRules),
		SkcID:       normalize.ExtractFirst(doc, []normalize.FieldRule{normalize.KeyRule("skcId"), normalize.PathRule("skcList.skcId")}),
		SpuID:       goodsID,
		State:       normalizeState(normalize.ExtractFirst(doc, normalize.ProductStateRules)),
		PriceFen:    priceFen,
		RawCurrency: currency,
		RawID:       &rawID,
	}
	syncedAt := s.now()
	row.SyncedAt = &syncedAt

	existing, err := s.productRepo.GetByGoodsID(ctx, shop.ID, goodsID)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return true, s.productRepo.Create(ctx, row)
	}

	row.ID = existing.ID
	row.CreatedAt = existing.CreatedAt
	// 成本是运营手工录的，同步覆盖写入必须放过这一列
	row.CostFen = existing.CostFen
	return false, s.productRepo.Update(ctx, row)
}

// normalizeState 平台状态值归一
func normalizeState(raw string) string {
	switch raw {
	case "1", "onSale", "active", "ONSALE":
		return model.ProductStateActive
	case "2", "offSale", "inactive", "SOLDOUT":
		return model.ProductStateInactive
	case "":
		return model.ProductStateActive
	default:
		return model.ProductStateDraft
	}
}

// ==================== 查询 ====================

// ListProducts 商品列表查询
func (s *ProductSyncService) ListProducts(ctx context.Context, req *dto.ProductListRequest) (*dto.PageResponse, error) {
	products, total, err := s.productRepo.List(ctx, repository.ProductFilter{
		ShopID:   req.ShopID,
		State:    req.State,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		return nil, err
	}

	items := make([]dto.ProductResponse, 0, len(products))
	for i := range products {
		p := &products[i]
		items = append(items, dto.ProductResponse{
			ID:          p.ID,
			ShopID:      p.ShopID,
			GoodsID:     p.GoodsID,
			GoodsName:   p.GoodsName,
			SpuID:       p.SpuID,
			SkcID:       p.SkcID,
			State:       p.State,
			Price:       p.GetPrice(),
			Cost:        float64(p.CostFen) / 100,
			RawCurrency: p.RawCurrency,
			Quantity:    p.Quantity,
			SoldCount:   p.SoldCount,
			SyncedAt:    p.SyncedAt,
		})
	}
	return &dto.PageResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    items,
	}, nil
}
