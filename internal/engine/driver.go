package engine

import (
	"context"
	"database/sql"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ignite/outreach-engine/internal/pkg/distlock"
	"github.com/ignite/outreach-engine/internal/workflow"
	"github.com/redis/go-redis/v9"
)

// Tick task names; also the distributed lock keys.
const (
	taskDueSteps       = "due-steps"
	taskCheckScheduled = "check-scheduled"
	taskRetryFailed    = "retry-failed"
	taskDailyAdmission = "daily-admission"
)

// DriverConfig tunes the tick cadence. Zero values take the defaults.
type DriverConfig struct {
	StepInterval   time.Duration // due-step pass, default 1m
	HourlyInterval time.Duration // scheduled-campaign and retry pass, default 1h
}

// TickDriver owns the recurring engine tasks. Each task run is guarded both
// by an in-process busy flag, so a slow pass is skipped rather than stacked,
// and by a distributed lock, so only one worker per deployment runs it.
type TickDriver struct {
	engine *Engine
	redis  *redis.Client
	db     *sql.DB

	stepInterval   time.Duration
	hourlyInterval time.Duration

	running int32
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	busy sync.Map // task name -> *int32

	runs    int64
	skipped int64
}

// NewTickDriver creates the tick driver. redis may be nil; locking then
// falls back to Postgres advisory locks on db.
func NewTickDriver(engine *Engine, redisClient *redis.Client, db *sql.DB, cfg DriverConfig) *TickDriver {
	if cfg.StepInterval <= 0 {
		cfg.StepInterval = time.Minute
	}
	if cfg.HourlyInterval <= 0 {
		cfg.HourlyInterval = time.Hour
	}
	return &TickDriver{
		engine:         engine,
		redis:          redisClient,
		db:             db,
		stepInterval:   cfg.StepInterval,
		hourlyInterval: cfg.HourlyInterval,
	}
}

// Start launches the tick loops. Safe to call once; subsequent calls are
// no-ops until Stop.
func (d *TickDriver) Start() {
	if !atomic.CompareAndSwapInt32(&d.running, 0, 1) {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	d.wg.Add(3)
	go d.stepLoop(ctx)
	go d.hourlyLoop(ctx)
	go d.dailyLoop(ctx)

	log.Printf("[TickDriver] started (steps every %s, hourly tasks every %s)",
		d.stepInterval, d.hourlyInterval)
}

// Stop cancels the loops and waits for in-flight task runs to finish.
func (d *TickDriver) Stop() {
	if !atomic.CompareAndSwapInt32(&d.running, 1, 0) {
		return
	}
	d.cancel()
	d.wg.Wait()
	log.Printf("[TickDriver] stopped (%d runs, %d skipped)",
		atomic.LoadInt64(&d.runs), atomic.LoadInt64(&d.skipped))
}

func (d *TickDriver) stepLoop(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(d.stepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.runTask(ctx, taskDueSteps, d.stepInterval, d.engine.RunDueSteps)
		}
	}
}

func (d *TickDriver) hourlyLoop(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(d.hourlyInterval)
	defer ticker.Stop()

	// Run once at startup so a freshly deployed worker does not wait an
	// hour to pick up overdue campaigns.
	d.runTask(ctx, taskCheckScheduled, d.hourlyInterval, d.engine.CheckScheduledCampaigns)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.runTask(ctx, taskCheckScheduled, d.hourlyInterval, d.engine.CheckScheduledCampaigns)
			d.runTask(ctx, taskRetryFailed, d.hourlyInterval, d.engine.RetryFailedSteps)
		}
	}
}

func (d *TickDriver) dailyLoop(ctx context.Context) {
	defer d.wg.Done()

	for {
		wait := time.Until(workflow.NextDayReset(d.engine.now()))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			d.runTask(ctx, taskDailyAdmission, time.Hour, d.engine.StartDailyLeads)
		}
	}
}

// runTask executes one guarded task run.
func (d *TickDriver) runTask(ctx context.Context, name string, ttl time.Duration, fn func(context.Context) (int, error)) {
	flagVal, _ := d.busy.LoadOrStore(name, new(int32))
	flag := flagVal.(*int32)
	if !atomic.CompareAndSwapInt32(flag, 0, 1) {
		atomic.AddInt64(&d.skipped, 1)
		log.Printf("[TickDriver] %s still running, skipping tick", name)
		return
	}
	defer atomic.StoreInt32(flag, 0)

	lock := distlock.NewLock(d.redis, d.db, "tick:"+name, ttl)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		log.Printf("[TickDriver] %s: acquire lock: %v", name, err)
		return
	}
	if !acquired {
		atomic.AddInt64(&d.skipped, 1)
		return
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			log.Printf("[TickDriver] %s: release lock: %v", name, err)
		}
	}()

	n, err := fn(ctx)
	atomic.AddInt64(&d.runs, 1)
	if err != nil {
		log.Printf("[TickDriver] %s: %v", name, err)
		return
	}
	if n > 0 {
		log.Printf("[TickDriver] %s processed %d item(s)", name, n)
	}
}
