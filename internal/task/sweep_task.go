package task

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"temu_erp_v1_202609/internal/repository"
)

// ==================== StaleSweepTask 卡死任务巡检 ====================

// StaleSweepTask 定时复位卡死的 processing 任务
// worker 崩溃会留下一批 processing 孤儿，超过阈值的一律打回 pending 重新排队
type StaleSweepTask struct {
	taskRepo   repository.DetailTaskRepository
	cron       *cron.Cron
	staleAfter time.Duration
}

// NewStaleSweepTask 创建巡检任务
func NewStaleSweepTask(taskRepo repository.DetailTaskRepository, staleAfter time.Duration) *StaleSweepTask {
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	return &StaleSweepTask{
		taskRepo:   taskRepo,
		cron:       cron.New(cron.WithSeconds()),
		staleAfter: staleAfter,
	}
}

// Start 启动巡检，每 5 分钟一轮
func (t *StaleSweepTask) Start() {
	_, err := t.cron.AddFunc("0 */5 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		t.sweep(ctx)
	})
	if err != nil {
		log.Printf("[StaleSweep] 定时任务启动失败: %v", err)
		return
	}

	t.cron.Start()
	log.Println("[StaleSweep] 已启动 (每5分钟)")
}

// Stop 停止巡检
func (t *StaleSweepTask) Stop() {
	ctx := t.cron.Stop()
	<-ctx.Done()
	log.Println("[StaleSweep] 已停止")
}

func (t *StaleSweepTask) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-t.staleAfter)
	n, err := t.taskRepo.ResetStale(ctx, cutoff)
	if err != nil {
		log.Printf("[StaleSweep] 复位卡死任务失败: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[StaleSweep] 复位 %d 条卡死任务", n)
	}
}
