// Package scheduler hosts the long-running reconciliation and email loops.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	lifecycleService "AccessOps/internal/modules/lifecycle/application/service"
	notifyService "AccessOps/internal/modules/notify/application/service"
	"AccessOps/pkg/zlog"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Config 调度参数，构造时传入且不可变；
// 两个主循环各自独立计时，互相不共享可变内存状态
type Config struct {
	ReconcileInterval time.Duration
	// 每 SourceCheckEvery 个调和周期才真正查询外部平台一次
	SourceCheckEvery   int
	EmailInterval      time.Duration
	EmailBatchSize     int
	MaxEmailRetries    int
	RetrySweepCron     string
	RetrySweepHoursOld int
	DigestCron         string
}

func (c Config) withDefaults() Config {
	if c.ReconcileInterval <= 0 {
		c.ReconcileInterval = time.Minute
	}
	if c.SourceCheckEvery <= 0 {
		c.SourceCheckEvery = 2
	}
	if c.EmailInterval <= 0 {
		c.EmailInterval = time.Minute
	}
	if c.EmailBatchSize <= 0 {
		c.EmailBatchSize = 50
	}
	if c.MaxEmailRetries <= 0 {
		c.MaxEmailRetries = 3
	}
	if c.RetrySweepCron == "" {
		c.RetrySweepCron = "15 * * * *"
	}
	if c.RetrySweepHoursOld <= 0 {
		c.RetrySweepHoursOld = 2
	}
	if c.DigestCron == "" {
		c.DigestCron = "0 * * * *"
	}
	return c
}

type Manager struct {
	cfg        Config
	reconcile  lifecycleService.ReconcileService
	dispatch   notifyService.EmailDispatchService
	instanceId string

	cron *cron.Cron
	wg   sync.WaitGroup
}

func NewManager(cfg Config, reconcile lifecycleService.ReconcileService, dispatch notifyService.EmailDispatchService, instanceId string) *Manager {
	return &Manager{
		cfg:        cfg.withDefaults(),
		reconcile:  reconcile,
		dispatch:   dispatch,
		instanceId: instanceId,
		cron:       cron.New(),
	}
}

// Start 启动两个主循环和 Cron 清扫任务；ctx 取消后全部停止
func (m *Manager) Start(ctx context.Context) error {
	if m.reconcile == nil || m.dispatch == nil {
		return fmt.Errorf("scheduler: reconcile and dispatch services are required")
	}

	m.wg.Add(2)
	go m.runReconcileLoop(ctx)
	go m.runEmailLoop(ctx)

	if _, err := m.cron.AddFunc(m.cfg.DigestCron, func() {
		m.guard("digest sweep", func() error {
			n, err := m.dispatch.ProcessScheduledDigests(ctx)
			if n > 0 {
				zlog.Info("scheduler: digests enqueued", zap.Int("count", n))
			}
			return err
		})
	}); err != nil {
		return fmt.Errorf("scheduler: invalid digest cron %q: %w", m.cfg.DigestCron, err)
	}
	if _, err := m.cron.AddFunc(m.cfg.RetrySweepCron, func() {
		m.guard("retry sweep", func() error {
			_, err := m.dispatch.RetryFailedEmails(ctx, m.cfg.MaxEmailRetries, m.cfg.RetrySweepHoursOld)
			return err
		})
	}); err != nil {
		return fmt.Errorf("scheduler: invalid retry sweep cron %q: %w", m.cfg.RetrySweepCron, err)
	}
	m.cron.Start()

	zlog.Info("scheduler: started",
		zap.String("instanceId", m.instanceId),
		zap.Duration("reconcileInterval", m.cfg.ReconcileInterval),
		zap.Duration("emailInterval", m.cfg.EmailInterval))
	return nil
}

// Wait 阻塞直到两个主循环都退出，并停掉 Cron
func (m *Manager) Wait() {
	m.wg.Wait()
	stopped := m.cron.Stop()
	<-stopped.Done()
	zlog.Info("scheduler: stopped")
}

func (m *Manager) runReconcileLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.ReconcileInterval)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick++
			// 外部查询比轮询周期更昂贵，按 SourceCheckEvery 降频
			checkExternal := tick%m.cfg.SourceCheckEvery == 0
			m.guard("reconcile", func() error {
				n, err := m.reconcile.ReconcileBatch(ctx, checkExternal)
				if n > 0 {
					zlog.Info("scheduler: requests reconciled", zap.Int("count", n))
				}
				return err
			})
		}
	}
}

func (m *Manager) runEmailLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.EmailInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.guard("email dispatch", func() error {
				n, err := m.dispatch.ProcessQueue(ctx, m.cfg.EmailBatchSize)
				if n > 0 {
					zlog.Info("scheduler: emails sent", zap.Int("count", n))
				}
				return err
			})
		}
	}
}

// guard 迭代级兜底：单次迭代的错误和 panic 都不允许杀死循环，
// 固定的轮询间隔本身就是重试退避
func (m *Manager) guard(name string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error("scheduler: iteration panic",
				zap.String("loop", name), zap.Any("panic", r))
		}
	}()
	if err := fn(); err != nil {
		zlog.Error("scheduler: iteration failed",
			zap.String("loop", name), zap.Error(err))
	}
}
