package task

import (
	"log"
	"time"

	"temu_erp_v1_202609/internal/repository"
	"temu_erp_v1_202609/internal/service"
)

// ==================== TaskManager 后台任务管理器 ====================

// TaskManager 统一管理后台任务
// 管理范围：订单/商品定时同步、详情补全 worker、卡死任务巡检
type TaskManager struct {
	orderTask   *OrderSyncTask
	productTask *ProductSyncTask
	worker      *DetailWorker
	sweep       *StaleSweepTask
}

// TaskManagerDeps 任务管理器依赖
type TaskManagerDeps struct {
	ShopRepo       repository.ShopRepository
	DetailTaskRepo repository.DetailTaskRepository

	OrderService   *service.OrderSyncService
	ProductService *service.ProductSyncService
	DetailService  *service.OrderDetailService
}

// TaskManagerConfig 任务管理器配置
type TaskManagerConfig struct {
	// 定时同步
	CronOrders      string
	CronProducts    string
	ShopConcurrency int
	ShopLaunchDelay time.Duration

	// 详情补全 worker
	Worker DetailWorkerConfig

	// 卡死巡检
	StaleAfter time.Duration
}

// NewTaskManager 创建任务管理器
func NewTaskManager(deps *TaskManagerDeps, cfg *TaskManagerConfig) *TaskManager {
	orderTask := NewOrderSyncTask(deps.ShopRepo, deps.OrderService, cfg.CronOrders)
	orderTask.SetConcurrency(cfg.ShopConcurrency, cfg.ShopLaunchDelay)

	productTask := NewProductSyncTask(deps.ShopRepo, deps.ProductService, cfg.CronProducts)

	return &TaskManager{
		orderTask:   orderTask,
		productTask: productTask,
		worker:      NewDetailWorker(deps.DetailTaskRepo, deps.DetailService, cfg.Worker),
		sweep:       NewStaleSweepTask(deps.DetailTaskRepo, cfg.StaleAfter),
	}
}

// Start 启动全部后台任务
func (m *TaskManager) Start() {
	m.orderTask.Start()
	m.productTask.Start()
	m.worker.Start()
	m.sweep.Start()
	log.Println("[TaskManager] 后台任务全部启动")
}

// Stop 停止全部后台任务，先停定时器再等 worker 清空在途
func (m *TaskManager) Stop() {
	m.orderTask.Stop()
	m.productTask.Stop()
	m.sweep.Stop()
	m.worker.Stop()
	log.Println("[TaskManager] 后台任务全部停止")
}

// OrderTask 暴露给控制器做手动触发
func (m *TaskManager) OrderTask() *OrderSyncTask {
	return m.orderTask
}
