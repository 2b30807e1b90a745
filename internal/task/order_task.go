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

// ==================== OrderSyncTask 订单同步任务 ====================

// OrderSyncTask 订单定时增量同步
// 每轮遍历活跃店铺，店铺之间有限并发并加启动间隔，避免瞬时打满配额
type OrderSyncTask struct {
	shopRepo repository.ShopRepository
	orderSvc *service.OrderSyncService
	cron     *cron.Cron

	cronSpec         string
	concurrencyLimit int
	launchDelay      time.Duration
}

// NewOrderSyncTask 创建订单同步任务
func NewOrderSyncTask(
	shopRepo repository.ShopRepository,
	orderSvc *service.OrderSyncService,
	cronSpec string,
) *OrderSyncTask {
	if cronSpec == "" {
		cronSpec = "0 */10 * * * *"
	}
	return &OrderSyncTask{
		shopRepo:         shopRepo,
		orderSvc:         orderSvc,
		cron:             cron.New(cron.WithSeconds()),
		cronSpec:         cronSpec,
		concurrencyLimit: 5,
		launchDelay:      200 * time.Millisecond,
	}
}

// SetConcurrency 设置并发参数
func (t *OrderSyncTask) SetConcurrency(limit int, delay time.Duration) {
	if limit > 0 {
		t.concurrencyLimit = limit
	}
	t.launchDelay = delay
}

// Start 启动定时任务
func (t *OrderSyncTask) Start() {
	_, err := t.cron.AddFunc(t.cronSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		t.syncAllShops(ctx)
	})
	if err != nil {
		log.Printf("[OrderSyncTask] 定时任务启动失败: %v", err)
		return
	}

	t.cron.Start()
	log.Printf("[OrderSyncTask] 已启动 (%s)", t.cronSpec)
}

// Stop 停止任务，等在途轮次跑完
func (t *OrderSyncTask) Stop() {
	ctx := t.cron.Stop()
	<-ctx.Done()
	log.Println("[OrderSyncTask] 已停止")
}

// syncAllShops 遍历活跃店铺做增量同步
func (t *OrderSyncTask) syncAllShops(ctx context.Context) {
	shops, _, err := t.shopRepo.List(ctx, repository.ShopFilter{
		Status:   model.ShopStatusActive,
		PageSize: 1000,
	})
	if err != nil {
		log.Printf("[OrderSyncTask] 获取店铺列表失败: %v", err)
		return
	}
	if len(shops) == 0 {
		return
	}

	sem := make(chan struct{}, t.concurrencyLimit)
	var wg sync.WaitGroup

	var (
		totalCreated int
		totalUpdated int
		totalErrors  int
		mu           sync.Mutex
	)

	log.Printf("[OrderSyncTask] 开始处理 %d 个店铺", len(shops))

	for i := range shops {
		shop := shops[i]
		select {
		case <-ctx.Done():
			log.Println("[OrderSyncTask] 任务超时停止")
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

			result, err := t.orderSvc.SyncOrders(ctx, shopID, false)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				// 同步已在跑不算错误，下一轮自然会赶上
				if errors.Is(err, service.ErrSyncInProgress) {
					return
				}
				log.Printf("[OrderSyncTask] 店铺 %s(%d) 同步失败: %v", shopName, shopID, err)
				totalErrors++
				return
			}

			totalCreated += result.Created
			totalUpdated += result.Updated
		}(shop.ID, shop.ShopName)
	}

	wg.Wait()
	log.Printf("[OrderSyncTask] 同步完成: 店铺 %d, 新增 %d, 更新 %d, 错误 %d",
		len(shops), totalCreated, totalUpdated, totalErrors)
}

// SyncAllNow 立即触发一轮全店同步
func (t *OrderSyncTask) SyncAllNow() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		t.syncAllShops(ctx)
	}()
}
