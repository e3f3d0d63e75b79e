package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type countingReconcile struct {
	mu            sync.Mutex
	ticks         int
	externalTicks int
	failWith      error
	panicOnce     bool
}

func (c *countingReconcile) ReconcileBatch(ctx context.Context, checkExternal bool) (int, error) {
	c.mu.Lock()
	c.ticks++
	if checkExternal {
		c.externalTicks++
	}
	panicNow := c.panicOnce
	c.panicOnce = false
	err := c.failWith
	c.mu.Unlock()

	if panicNow {
		panic("injected panic")
	}
	return 0, err
}

func (c *countingReconcile) snapshot() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks, c.externalTicks
}

type countingDispatch struct {
	mu         sync.Mutex
	queueTicks int
	batchSizes []int
}

func (c *countingDispatch) ProcessQueue(ctx context.Context, batchSize int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queueTicks++
	c.batchSizes = append(c.batchSizes, batchSize)
	return 0, nil
}

func (c *countingDispatch) RetryFailedEmails(ctx context.Context, maxRetries int, hoursOld int) (int64, error) {
	return 0, nil
}

func (c *countingDispatch) ProcessScheduledDigests(ctx context.Context) (int, error) {
	return 0, nil
}

func (c *countingDispatch) ticks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queueTicks
}

func startManager(t *testing.T, cfg Config, rec *countingReconcile, disp *countingDispatch) (*Manager, context.CancelFunc) {
	t.Helper()
	mgr := NewManager(cfg, rec, disp, "testhost_1")
	ctx, cancel := context.WithCancel(context.Background())
	if err := mgr.Start(ctx); err != nil {
		cancel()
		t.Fatalf("start failed: %v", err)
	}
	return mgr, cancel
}

func TestStartRequiresServices(t *testing.T) {
	mgr := NewManager(Config{}, nil, nil, "testhost_1")
	if err := mgr.Start(context.Background()); err == nil {
		t.Fatalf("start without services must fail")
	}
}

func TestLoopsRunIndependentlyAndStopOnCancel(t *testing.T) {
	rec := &countingReconcile{}
	disp := &countingDispatch{}
	mgr, cancel := startManager(t, Config{
		ReconcileInterval: 20 * time.Millisecond,
		EmailInterval:     20 * time.Millisecond,
		EmailBatchSize:    7,
	}, rec, disp)

	time.Sleep(150 * time.Millisecond)
	cancel()
	mgr.Wait()

	recTicks, _ := rec.snapshot()
	if recTicks == 0 {
		t.Fatalf("reconcile loop never ticked")
	}
	if disp.ticks() == 0 {
		t.Fatalf("email loop never ticked")
	}
	disp.mu.Lock()
	for _, size := range disp.batchSizes {
		if size != 7 {
			t.Fatalf("email loop must pass the configured batch size, got %d", size)
		}
	}
	disp.mu.Unlock()

	// 取消后不得再有新迭代
	after, _ := rec.snapshot()
	time.Sleep(60 * time.Millisecond)
	final, _ := rec.snapshot()
	if final != after {
		t.Fatalf("loop kept ticking after cancel: %d -> %d", after, final)
	}
}

func TestExternalCheckThrottling(t *testing.T) {
	rec := &countingReconcile{}
	disp := &countingDispatch{}
	mgr, cancel := startManager(t, Config{
		ReconcileInterval: 15 * time.Millisecond,
		SourceCheckEvery:  2,
		EmailInterval:     time.Hour,
	}, rec, disp)

	time.Sleep(200 * time.Millisecond)
	cancel()
	mgr.Wait()

	ticks, external := rec.snapshot()
	if ticks < 4 {
		t.Fatalf("expected several reconcile ticks, got %d", ticks)
	}
	// 每两个周期查询一次外部平台，允许边界上差一个
	want := ticks / 2
	if external < want-1 || external > want+1 {
		t.Fatalf("expected roughly %d external checks out of %d ticks, got %d", want, ticks, external)
	}
}

func TestLoopSurvivesErrorsAndPanics(t *testing.T) {
	rec := &countingReconcile{failWith: errors.New("transient"), panicOnce: true}
	disp := &countingDispatch{}
	mgr, cancel := startManager(t, Config{
		ReconcileInterval: 15 * time.Millisecond,
		EmailInterval:     time.Hour,
	}, rec, disp)

	time.Sleep(150 * time.Millisecond)
	cancel()
	mgr.Wait()

	ticks, _ := rec.snapshot()
	if ticks < 3 {
		t.Fatalf("loop must keep running through errors and panics, got %d ticks", ticks)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.ReconcileInterval != time.Minute || cfg.EmailInterval != time.Minute {
		t.Fatalf("default intervals must be one minute")
	}
	if cfg.SourceCheckEvery != 2 {
		t.Fatalf("default source check cadence must be every second cycle, got %d", cfg.SourceCheckEvery)
	}
	if cfg.EmailBatchSize != 50 || cfg.MaxEmailRetries != 3 {
		t.Fatalf("unexpected defaults: batch=%d retries=%d", cfg.EmailBatchSize, cfg.MaxEmailRetries)
	}
	if cfg.RetrySweepCron == "" || cfg.DigestCron == "" {
		t.Fatalf("cron specs must default to non-empty")
	}
}
