package task

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"temu_erp_v1_202609/internal/model"
	"temu_erp_v1_202609/internal/repository"
	"temu_erp_v1_202609/internal/service"
)

// ==================== ProductSyncTask 商品同步任务 ====================

// ProductSyncTask 商品定时同步
// 商品变化频率低，默认跑得比订单稀疏
type ProductSyncTask struct {
	shopRepo   repository.ShopRepository
	productSvc *service.ProductSyncService
	cron       *cron.Cron

	cronSpec         string
	concurrencyLimit int
	launchDelay      time.Duration
}

// NewProductSyncTask 创建商品同步任务
func NewProductSyncTask(
	shopRepo repository.ShopRepository,
	productSvc *service.ProductSyncService,
	cronSpec string,
) *ProductSyncTask {
	if cronSpec == "" {
		cronSpec = "0 0 */2 * * *"
	}
	return &ProductSyncTask{
		shopRepo:         shopRepo,
		productSvc:       productSvc,
		cron:             cron.New(cron.WithSeconds()),
		cronSpec:         cronSpec,
		concurrencyLimit: 3,
		launchDelay:      200 * time.Millisecond,
	}
}

// Start 启动定时任务
func (t *ProductSyncTask) Start() {
	_, err := t.cron.AddFunc(t.cronSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		t.syncAllShops(ctx)
	})
	if err != nil {
		log.Printf("[ProductSyncTask] 定时任务启动失败: %v", err)
		return
	}

	t.cron.Start()
	log.Printf("[ProductSyncTask] 已启动 (%s)", t.cronSpec)
}

// Stop 停止任务
func (t *ProductSyncTask) Stop() {
	ctx := t.cron.Stop()
	<-ctx.Done()
	log.Println("[ProductSyncTask] 已停止")
}

// syncAllShops 遍历活跃店铺同步商品
func (t *ProductSyncTask) syncAllShops(ctx context.Context) {
	shops, _, err := t.shopRepo.List(ctx, repository.ShopFilter{
		Status:   model.ShopStatusActive,
		PageSize: 1000,
	})
	if err != nil {
		log.Printf("[ProductSyncTask] 获取店铺列表失败: %v", err)
		return
	}
	if len(shops) == 0 {
		return
	}

	sem := make(chan struct{}, t.concurrencyLimit)
	var wg sync.WaitGroup
	var totalErrors int
	var mu sync.Mutex

	log.Printf("[ProductSyncTask] 开始处理 %d 个店铺", len(shops))

	for i := range shops {
		shop := shops[i]
		select {
		case <-ctx.Done():
			log.Println("[ProductSyncTask] 任务超时停止")
			wg.Wait()
			return
		default:
		}

		sem <- struct{}{}
		wg.Add(1)
		time.Sleep(t.launchDelay)

		go func(shopID int64, shopName string) {
			defer wg.Done()
			defer func() { <-sem }()

			_, err := t.productSvc.SyncProducts(ctx, shopID, false)
			if err != nil && !errors.Is(err, service.ErrSyncInProgress) {
				log.Printf("[ProductSyncTask] 店铺 %s(%d) 同步失败: %v", shopName, shopID, err)
				mu.Lock()
				totalErrors++
				mu.Unlock()
			}
		}(shop.ID, shop.ShopName)
	}

	wg.Wait()
	log.Printf("[ProductSyncTask] 同步完成: 店铺 %d, 错误 %d", len(shops), totalErrors)
}
