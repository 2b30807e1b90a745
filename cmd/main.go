package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"temu_erp_v1_202609/internal/controller"
	"temu_erp_v1_202609/internal/model"
	"temu_erp_v1_202609/internal/repository"
	"temu_erp_v1_202609/internal/router"
	"temu_erp_v1_202609/internal/service"
	"temu_erp_v1_202609/internal/task"
	"temu_erp_v1_202609/pkg/config"
	"temu_erp_v1_202609/pkg/database"
	"temu_erp_v1_202609/pkg/normalize"
	"temu_erp_v1_202609/pkg/ratelimit"
	"temu_erp_v1_202609/pkg/temu"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（yaml），留空走默认值+环境变量")
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 2. 初始化数据库
	db := initDatabase(cfg)

	// 3. 初始化依赖
	deps := initDependencies(cfg, db)

	// 4. 启动后台任务
	deps.TaskManager.Start()

	// 5. 初始化路由
	gin.SetMode(cfg.Server.Mode)
	r := gin.Default()
	router.InitRoutes(r, deps.SyncCtl, deps.OrderCtl, deps.ProductCtl)

	// 6. 启动服务
	startServer(cfg, r, deps)
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	DB          *gorm.DB
	Repos       *Repositories
	Services    *Services
	TaskManager *task.TaskManager

	SyncCtl    *controller.SyncController
	OrderCtl   *controller.OrderController
	ProductCtl *controller.ProductController
}

// Repositories 仓库集合
type Repositories struct {
	Shop       repository.ShopRepository
	Order      repository.OrderRepository
	Product    repository.ProductRepository
	Raw        repository.RawRepository
	DetailTask repository.DetailTaskRepository
}

// Services 服务集合
type Services struct {
	Shop    *service.ShopService
	Order   *service.OrderSyncService
	Product *service.ProductSyncService
	Detail  *service.OrderDetailService
}

// ==================== 初始化函数 ====================

// initDatabase 初始化数据库并建表
func initDatabase(cfg *config.Config) *gorm.DB {
	db, err := database.InitDB(cfg.Database.DSN,
		&model.Shop{},
		&model.Order{},
		&model.Product{},
		&model.TemuOrderRaw{},
		&model.TemuProductRaw{},
		&model.OrderDetailTask{},
	)
	if err != nil {
		log.Fatalf("数据库初始化失败: %v", err)
	}
	return db
}

// initDependencies 初始化所有依赖
func initDependencies(cfg *config.Config, db *gorm.DB) *Dependencies {
	// -------- Repo 层 --------
	repos := &Repositories{
		Shop:       repository.NewShopRepository(db),
		Order:      repository.NewOrderRepository(db),
		Product:    repository.NewProductRepository(db),
		Raw:        repository.NewRawRepository(db),
		DetailTask: repository.NewDetailTaskRepository(db),
	}

	// -------- 出站通道：限流器 + 平台客户端 --------
	limiter := initLimiter(cfg)
	caller := initCaller(cfg, limiter)

	converter := normalize.NewCurrencyConverter(normalize.CurrencyConverterConfig{
		RateURL:  cfg.Exchange.RateURL,
		CacheTTL: cfg.Exchange.CacheTTL,
	})

	syncOpts := service.SyncOptions{
		PageSize:         cfg.Sync.PageSize,
		FullLookbackDays: cfg.Sync.FullLookbackDays,
		TaskMaxRetries:   cfg.Worker.MaxRetries,
	}

	// -------- 业务服务 --------
	services := &Services{
		Shop:    service.NewShopService(repos.Shop),
		Order:   service.NewOrderSyncService(repos.Shop, repos.Order, repos.Product, repos.Raw, repos.DetailTask, caller, converter, syncOpts),
		Product: service.NewProductSyncService(repos.Shop, repos.Product, repos.Raw, caller, converter, syncOpts),
		Detail:  service.NewOrderDetailService(repos.Shop, repos.Order, repos.Raw, repos.DetailTask, caller),
	}

	// -------- 后台任务 --------
	taskManager := task.NewTaskManager(&task.TaskManagerDeps{
		ShopRepo:       repos.Shop,
		DetailTaskRepo: repos.DetailTask,
		OrderService:   services.Order,
		ProductService: services.Product,
		DetailService:  services.Detail,
	}, &task.TaskManagerConfig{
		CronOrders:      cfg.Sync.CronOrders,
		CronProducts:    cfg.Sync.CronProducts,
		ShopConcurrency: cfg.Sync.ShopConcurrency,
		ShopLaunchDelay: cfg.Sync.ShopLaunchDelay,
		Worker: task.DetailWorkerConfig{
			BatchSize:     cfg.Worker.BatchSize,
			MaxConcurrent: cfg.Worker.MaxConcurrent,
			PollInterval:  cfg.Worker.PollInterval,
			MaxInterval:   cfg.Worker.MaxInterval,
			EmptyEscalate: cfg.Worker.EmptyEscalate,
		},
		StaleAfter: cfg.Worker.StaleAfter,
	})

	// -------- Controller 层 --------
	syncCtl := controller.NewSyncController(services.Order, services.Product, services.Shop, taskManager)

	return &Dependencies{
		DB:          db,
		Repos:       repos,
		Services:    services,
		TaskManager: taskManager,
		SyncCtl:     syncCtl,
		OrderCtl:    controller.NewOrderController(services.Order, services.Detail),
		ProductCtl:  controller.NewProductController(services.Product),
	}
}

// initLimiter 单进程用进程内令牌桶，多进程部署切 Redis 共享配额
func initLimiter(cfg *config.Config) ratelimit.Limiter {
	bucket := ratelimit.BucketConfig{
		Capacity:   cfg.RateLimit.Capacity,
		RefillRate: cfg.RateLimit.RefillRate,
	}

	if cfg.RateLimit.UseRedis {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		log.Printf("[Main] 限流器: Redis 共享令牌桶 (%s)", cfg.Redis.Addr)
		return ratelimit.NewRedisLimiter(rdb, bucket)
	}

	log.Println("[Main] 限流器: 进程内令牌桶")
	return ratelimit.NewTokenBucketLimiter(bucket)
}

// initCaller 出口 IP 不在平台白名单时走代理转发
func initCaller(cfg *config.Config, limiter ratelimit.Limiter) temu.Caller {
	if cfg.Temu.UseProxy {
		log.Printf("[Main] 平台调用走代理转发: %s", cfg.Temu.ProxyURL)
		return temu.NewProxyClient(temu.ProxyClientConfig{
			ProxyURL:  cfg.Temu.ProxyURL,
			AppKey:    cfg.Temu.AppKey,
			AppSecret: cfg.Temu.AppSecret,
			Timeout:   cfg.Temu.Timeout,
			Retries:   cfg.Temu.Retries,
		}, limiter)
	}

	return temu.NewClient(temu.ClientConfig{
		AppKey:    cfg.Temu.AppKey,
		AppSecret: cfg.Temu.AppSecret,
		Region:    cfg.Temu.Region,
		BaseURL:   cfg.Temu.BaseURL,
		Timeout:   cfg.Temu.Timeout,
		Retries:   cfg.Temu.Retries,
	}, limiter)
}

// ==================== 服务启动 ====================

// startServer 启动 HTTP 服务并处理优雅退出
func startServer(cfg *config.Config, r *gin.Engine, deps *Dependencies) {
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		log.Printf("[Main] HTTP 服务启动 :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP 服务异常退出: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("[Main] 收到退出信号，开始优雅关闭...")

	// 先停后台任务（等在途同步与补全跑完），再关 HTTP
	deps.TaskManager.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[Main] HTTP 关闭超时: %v", err)
	}

	log.Println("[Main] 已退出")
}
