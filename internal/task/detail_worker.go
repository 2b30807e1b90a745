package task

import (
	"context"
	"log"
	"sync"
	"time"

	"temu_erp_v1_202609/internal/model"
	"temu_erp_v1_202609/internal/repository"
	"temu_erp_v1_202609/internal/service"
)

// ==================== DetailWorker 详情补全 worker ====================

// DetailWorkerConfig worker 参数
type DetailWorkerConfig struct {
	BatchSize     int           // 单轮取任务条数
	MaxConcurrent int           // 同时在跑的任务上限
	PollInterval  time.Duration // 基础轮询间隔
	MaxInterval   time.Duration // 空轮询加档后的间隔上限
	EmptyEscalate int           // 连续空轮询 N 次后加一档
}

// DetailWorker 详情补全后台 worker
// 任务表当队列用：每轮捞一批 pending，信号量限并发逐个执行。
// 队列持续为空时轮询间隔按基础间隔一档一档加长，有活立即回落。
// Stop 只在轮询边界生效，在途任务跑完才返回
type DetailWorker struct {
	taskRepo  repository.DetailTaskRepository
	detailSvc *service.OrderDetailService
	cfg       DetailWorkerConfig

	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

// NewDetailWorker 创建详情补全 worker
func NewDetailWorker(
	taskRepo repository.DetailTaskRepository,
	detailSvc *service.OrderDetailService,
	cfg DetailWorkerConfig,
) *DetailWorker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 5
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.MaxInterval < cfg.PollInterval {
		cfg.MaxInterval = time.Minute
	}
	if cfg.EmptyEscalate <= 0 {
		cfg.EmptyEscalate = 3
	}
	return &DetailWorker{
		taskRepo:  taskRepo,
		detailSvc: detailSvc,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start 启动 worker 循环
func (w *DetailWorker) Start() {
	go w.run()
	log.Printf("[DetailWorker] 已启动 batch=%d concurrent=%d poll=%v",
		w.cfg.BatchSize, w.cfg.MaxConcurrent, w.cfg.PollInterval)
}

// Stop 通知停止并等当前批次跑完
func (w *DetailWorker) Stop() {
	w.once.Do(func() { close(w.stopCh) })
	<-w.doneCh
	log.Println("[DetailWorker] 已停止")
}

// pollBackoff 空轮询加档策略
// 队列连续空转 escalate 次后间隔加一档（加法，到顶封顶），有活立即回落
type pollBackoff struct {
	base        time.Duration
	max         time.Duration
	cur         time.Duration
	escalate    int
	emptyRounds int
}

func newPollBackoff(base, max time.Duration, escalate int) *pollBackoff {
	return &pollBackoff{base: base, max: max, cur: base, escalate: escalate}
}

// observe 根据本轮处理条数给出下一次轮询间隔
func (b *pollBackoff) observe(processed int) time.Duration {
	if processed > 0 {
		b.cur = b.base
		b.emptyRounds = 0
		return b.cur
	}

	b.emptyRounds++
	if b.emptyRounds >= b.escalate && b.cur < b.max {
		b.cur += b.base
		if b.cur > b.max {
			b.cur = b.max
		}
		b.emptyRounds = 0
	}
	return b.cur
}

// run 主循环
func (w *DetailWorker) run() {
	defer close(w.doneCh)

	backoff := newPollBackoff(w.cfg.PollInterval, w.cfg.MaxInterval, w.cfg.EmptyEscalate)

	for {
		select {
		case <-w.stopCh:
			return
		default:
		}

		processed := w.pollOnce()

		prev := backoff.cur
		interval := backoff.observe(processed)
		if interval > prev {
			log.Printf("[DetailWorker] 队列空闲，轮询间隔放宽至 %v", interval)
		}

		select {
		case <-w.stopCh:
			return
		case <-time.After(interval):
		}
	}
}

// pollOnce 捞一批任务并发执行，返回实际处理条数
func (w *DetailWorker) pollOnce() int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	tasks, err := w.taskRepo.FetchPending(ctx, w.cfg.BatchSize)
	if err != nil {
		log.Printf("[DetailWorker] 捞取任务失败: %v", err)
		return 0
	}
	if len(tasks) == 0 {
		return 0
	}

	sem := make(chan struct{}, w.cfg.MaxConcurrent)
	var wg sync.WaitGroup

	for i := range tasks {
		task := tasks[i]

		sem <- struct{}{}
		wg.Add(1)
		go func(task model.OrderDetailTask) {
			defer wg.Done()
			defer func() { <-sem }()

			w.execute(ctx, &task)
		}(task)
	}

	wg.Wait()
	return len(tasks)
}

// execute 执行单个任务，状态迁移一步一提交
func (w *DetailWorker) execute(ctx context.Context, task *model.OrderDetailTask) {
	// 抢占式置为 processing，抢不到说明别的实例已拿走
	ok, err := w.taskRepo.MarkProcessing(ctx, task.ID)
	if err != nil {
		log.Printf("[DetailWorker] 任务 %d 置 processing 失败: %v", task.ID, err)
		return
	}
	if !ok {
		return
	}

	packageSn, err := w.detailSvc.FetchPackageSn(ctx, task)
	if err != nil {
		// 失败计次，重试耗尽进终态，由仓库层判定
		if markErr := w.taskRepo.MarkFailure(ctx, task.ID, err.Error()); markErr != nil {
			log.Printf("[DetailWorker] 任务 %d 记录失败出错: %v", task.ID, markErr)
		}
		return
	}

	// 详情确实没有包裹号也算完结，空值不算失败
	if err := w.taskRepo.MarkCompleted(ctx, task.ID, packageSn); err != nil {
		log.Printf("[DetailWorker] 任务 %d 置完成失败: %v", task.ID, err)
	}
}
