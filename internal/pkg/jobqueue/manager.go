package jobqueue

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/causekit/causekit/app/models"
	"github.com/causekit/causekit/internal/pkg/cache"
	"github.com/causekit/causekit/internal/pkg/env"
	metrics "github.com/causekit/causekit/internal/pkg/metrics/counter"
)

// Manager manages the global job queue and background tasks
type Manager struct {
	queue              *Queue
	retrySweepTicker   *time.Ticker
	counterFlushTicker *time.Ticker
	scheduleTicker     *time.Ticker
	stopCh             chan struct{}
	wg                 sync.WaitGroup
	mu                 sync.Mutex
	running            bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		workerCount := envInt("JOB_QUEUE_WORKERS", 5)

		globalManager = &Manager{
			queue:  NewQueue(workerCount),
			stopCh: make(chan struct{}),
		}
	})
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	// Start the job queue
	m.queue.Start()

	// Start webhook retry sweep enqueuer - configurable interval
	sweepInterval := time.Duration(envInt("WEBHOOK_RETRY_SWEEP_INTERVAL", 60)) * time.Second
	m.retrySweepTicker = time.NewTicker(sweepInterval)
	m.wg.Add(1)
	go m.retrySweepWorker(sweepInterval)

	// Start counter flush worker (Redis -> DB) every 5 seconds
	m.counterFlushTicker = time.NewTicker(5 * time.Second)
	m.wg.Add(1)
	go m.counterFlushWorker()

	// Scheduled reconciliation check, hourly
	m.scheduleTicker = time.NewTicker(time.Hour)
	m.wg.Add(1)
	go m.scheduledReconciliationWorker()

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.retrySweepTicker != nil {
		m.retrySweepTicker.Stop()
	}
	if m.counterFlushTicker != nil {
		m.counterFlushTicker.Stop()
	}
	if m.scheduleTicker != nil {
		m.scheduleTicker.Stop()
	}

	// Signal workers to stop
	close(m.stopCh)
	m.stopCh = nil
	m.running = false

	// Wait for background workers to finish
	m.wg.Wait()

	// Stop the job queue
	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// retrySweepWorker periodically enqueues a webhook retry sweep job
func (m *Manager) retrySweepWorker(interval time.Duration) {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started retry sweep worker (interval: %s)", interval)

	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Retry sweep worker stopping")
			return
		case <-m.retrySweepTicker.C:
			payload := WebhookRetrySweepJobPayload{Limit: envInt("WEBHOOK_RETRY_SWEEP_LIMIT", defaultRetrySweepLimit)}
			if _, err := m.queue.EnqueueJob(JobTypeWebhookRetrySweep, payload.ToMap()); err != nil {
				log.Errorf("[JobQueue Manager] Error enqueuing retry sweep: %v", err)
			}
		}
	}
}

// counterFlushWorker periodically flushes delivery counters from Redis to DB
func (m *Manager) counterFlushWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Counter flush worker stopping")
			return
		case <-m.counterFlushTicker.C:
			if err := metrics.FlushDeliveryCounters(); err != nil {
				log.Errorf("[JobQueue Manager] Counter flush error: %v", err)
			}
		}
	}
}

// scheduledReconciliationWorker enqueues one reconciliation run per day for
// the previous day's window, once the configured hour has passed. A Redis
// SetNX per date keeps multiple instances from double-running.
func (m *Manager) scheduledReconciliationWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Scheduled reconciliation worker stopping")
			return
		case <-m.scheduleTicker.C:
			if env.GetEnv("RECON_SCHEDULE_ENABLED", "false") != "true" {
				continue
			}
			m.maybeEnqueueScheduledRun(time.Now().UTC())
		}
	}
}

func (m *Manager) maybeEnqueueScheduledRun(now time.Time) {
	if now.Hour() < envInt("RECON_SCHEDULE_HOUR", 2) {
		return
	}

	lockKey := "reconcile:scheduled:" + now.Format("2006-01-02")
	ok, err := cache.GetClient().SetNX(context.Background(), lockKey, "1", 48*time.Hour).Result()
	if err != nil {
		log.Errorf("[JobQueue Manager] Scheduled reconciliation lock error: %v", err)
		return
	}
	if !ok {
		return
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	dayEnd := dayStart.Add(24*time.Hour - time.Second)

	payload := ReconciliationRunJobPayload{
		Type:      models.ReconciliationTypeScheduled,
		StartDate: dayStart.Format(time.RFC3339),
		EndDate:   dayEnd.Format(time.RFC3339),
		Notes:     "scheduled daily reconciliation",
	}
	if _, err := m.queue.EnqueueJob(JobTypeReconciliationRun, payload.ToMap()); err != nil {
		log.Errorf("[JobQueue Manager] Error enqueuing scheduled reconciliation: %v", err)
	}
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(env.GetEnv(key, "")); err == nil && v > 0 {
		return v
	}
	return def
}
