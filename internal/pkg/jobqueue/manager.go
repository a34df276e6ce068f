package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/EventFox/internal/pkg/cache"
	"github.com/ManuelReschke/EventFox/internal/pkg/env"
)

// Manager manages the global job queue and background tasks
type Manager struct {
	queue             *Queue
	reconcileTicker   *time.Ticker
	reconcileInterval time.Duration
	lookbackDays      int
	stopCh            chan struct{}
	wg                sync.WaitGroup
	mu                sync.Mutex
	running           bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		globalManager = newManager(
			NewQueue(cache.GetClient(), env.GetEnvInt("JOBQUEUE_WORKERS", 5)),
			time.Duration(env.GetEnvInt("PAYMENT_RECONCILE_INTERVAL_MINUTES", 0))*time.Minute,
			env.GetEnvInt("PAYMENT_RECONCILE_LOOKBACK_DAYS", 2),
		)
	})
	return globalManager
}

func newManager(q *Queue, reconcileInterval time.Duration, lookbackDays int) *Manager {
	return &Manager{
		queue:             q,
		reconcileInterval: reconcileInterval,
		lookbackDays:      lookbackDays,
		stopCh:            make(chan struct{}),
	}
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

	m.queue.Start()

	if m.reconcileInterval > 0 {
		m.reconcileTicker = time.NewTicker(m.reconcileInterval)
		m.wg.Add(1)
		go m.reconcileWorker(m.stopCh)
	} else {
		log.Info("[JobQueue Manager] Scheduled reconciliation disabled")
	}

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

	if m.reconcileTicker != nil {
		m.reconcileTicker.Stop()
	}

	close(m.stopCh)
	m.running = false

	m.wg.Wait()
	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// reconcileWorker enqueues a reconciliation of the lookback window on every tick
func (m *Manager) reconcileWorker(stopCh chan struct{}) {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started reconcile scheduler (interval: %s, lookback: %d days)", m.reconcileInterval, m.lookbackDays)

	for {
		select {
		case <-stopCh:
			log.Info("[JobQueue Manager] Reconcile scheduler stopping")
			return
		case <-m.reconcileTicker.C:
			if _, err := m.EnqueueReconcile(context.Background(), time.Now()); err != nil {
				log.Errorf("[JobQueue Manager] Error scheduling reconciliation: %v", err)
			}
		}
	}
}

// EnqueueReconcile queues a reconciliation of the lookback window ending at now.
func (m *Manager) EnqueueReconcile(ctx context.Context, now time.Time) (*Job, error) {
	return m.queue.EnqueueJob(ctx, JobTypePaymentReconcile, reconcileWindow(now, m.lookbackDays).ToMap())
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
