package service

import (
	"context"
	"fmt"

	"temu_erp_v1_202609/internal/api/dto"
	"temu_erp_v1_202609/internal/repository"
)

// ShopService 店铺查询服务
type ShopService struct {
	shopRepo repository.ShopRepository
}

// NewShopService 创建店铺服务
func NewShopService(shopRepo repository.ShopRepository) *ShopService {
	return &ShopService{shopRepo: shopRepo}
}

// GetSyncStatus 查询店铺同步状态
func (s *ShopService) GetSyncStatus(ctx context.Context, shopID int64) (*dto.ShopSyncStatusResponse, error) {
	shop, err := s.shopRepo.GetByID(ctx, shopID)
	if err != nil {
		return nil, err
	}
	if shop == nil {
		return nil, fmt.Errorf("店铺不存在: %d", shopID)
	}
	return &dto.ShopSyncStatusResponse{
		ShopID:                shop.ID,
		ShopName:              shop.ShopName,
		TokenStatus:           shop.TokenStatus,
		OrderSyncStatus:       shop.OrderSyncStatus,
		LastFullSyncAt:        shop.LastFullSyncAt,
		LastIncrementalSyncAt: shop.LastIncrementalSyncAt,
		LastOrderSyncError:    shop.LastOrderSyncError,
		ProductSyncStatus:     shop.ProductSyncStatus,
		LastProductSyncAt:     shop.LastProductSyncAt,
		LastProductSyncError:  shop.LastProductSyncError,
	}, nil
}
