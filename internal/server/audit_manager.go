package server

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const auditWriteTimeout = 5 * time.Second

// AuditManager batches audit entries by size or age and hands the batches to
// a pool of workers writing them to the sink.
type AuditManager struct {
	workerCount int
	batchSize   int
	timeout     time.Duration
	sink        AuditSink
	logger      *zap.Logger

	inputChan  chan AuditLogEntry
	batchChan  chan []AuditLogEntry
	shutdownCh chan struct{}
	once       sync.Once

	wg           sync.WaitGroup
	pendingMu    sync.Mutex
	pendingCount int
}

func NewAuditManager(workerCount, batchSize int, timeout time.Duration, sink AuditSink, logger *zap.Logger) *AuditManager {
	return &AuditManager{
		workerCount: workerCount,
		batchSize:   batchSize,
		timeout:     timeout,
		sink:        sink,
		logger:      logger,
		inputChan:   make(chan AuditLogEntry, workerCount*batchSize*2),
		batchChan:   make(chan []AuditLogEntry, workerCount*2),
		shutdownCh:  make(chan struct{}),
	}
}

func (m *AuditManager) Shutdown(ctx context.Context) {
	m.once.Do(func() {
		m.logger.Info("initiating audit manager shutdown")
		close(m.shutdownCh)

		done := make(chan struct{})
		go func() {
			m.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			m.logger.Info("audit manager shutdown completed", zap.Int("pending", m.Pending()))
		case <-ctx.Done():
			m.logger.Warn("audit manager shutdown interrupted", zap.Int("pending", m.Pending()))
		}
	})
}

func (m *AuditManager) monitorShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
		m.Shutdown(context.Background())
	case <-m.shutdownCh:
	}
}

func (m *AuditManager) Start(ctx context.Context) {
	m.logger.Info("starting audit manager", zap.Int("workers", m.workerCount))
	m.wg.Add(1)
	go m.runAggregator(ctx)

	for i := 0; i < m.workerCount; i++ {
		m.wg.Add(1)
		go m.runWorker(ctx, i)
	}

	go m.monitorShutdown(ctx)
}

// LogEntry queues entry. When the request is gone before the queue has room
// the entry is written to the log instead.
func (m *AuditManager) LogEntry(ctx context.Context, entry AuditLogEntry) {
	m.updatePendingCount(1)

	select {
	case m.inputChan <- entry:
	case <-ctx.Done():
		m.emergencyLog(entry)
	}
}

// Pending is the number of entries accepted but not yet written.
func (m *AuditManager) Pending() int {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	return m.pendingCount
}

func (m *AuditManager) runAggregator(ctx context.Context) {
	defer m.wg.Done()

	var (
		batch    []AuditLogEntry
		timer    *time.Timer
		timeoutC <-chan time.Time
	)

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	drain:
		for {
			select {
			case entry := <-m.inputChan:
				batch = append(batch, entry)
			default:
				break drain
			}
		}
		if len(batch) > 0 {
			m.dispatchBatch(batch)
		}
		close(m.batchChan)
	}()

	for {
		select {
		case entry := <-m.inputChan:
			batch = append(batch, entry)
			if len(batch) >= m.batchSize {
				m.dispatchBatch(batch)
				batch = nil
				timeoutC = nil
			} else if len(batch) == 1 {
				timer = time.NewTimer(m.timeout)
				timeoutC = timer.C
			}

		case <-timeoutC:
			m.dispatchBatch(batch)
			batch = nil
			timeoutC = nil

		case <-ctx.Done():
			return

		case <-m.shutdownCh:
			return
		}
	}
}

func (m *AuditManager) dispatchBatch(batch []AuditLogEntry) {
	batchCopy := make([]AuditLogEntry, len(batch))
	copy(batchCopy, batch)

	select {
	case m.batchChan <- batchCopy:
	default:
		m.writeBatch(-1, batchCopy)
	}
}

func (m *AuditManager) runWorker(ctx context.Context, id int) {
	defer m.wg.Done()

	for batch := range m.batchChan {
		m.writeBatch(id, batch)
	}
	m.logger.Debug("audit worker exiting", zap.Int("worker", id))
}

// writeBatch uses its own deadline so batches drained during shutdown are
// still written after the serving context is cancelled.
func (m *AuditManager) writeBatch(workerID int, batch []AuditLogEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
	defer cancel()

	if err := m.sink.WriteAudit(ctx, batch); err != nil {
		m.logger.Error("failed to write audit batch",
			zap.Int("worker", workerID), zap.Int("entries", len(batch)), zap.Error(err))
		for _, entry := range batch {
			m.emergencyLog(entry)
		}
		return
	}
	m.updatePendingCount(-len(batch))
}

func (m *AuditManager) emergencyLog(entry AuditLogEntry) {
	m.logger.Warn("audit entry",
		zap.Time("timestamp", entry.Timestamp),
		zap.String("handler", entry.Handler),
		zap.String("method", entry.Method),
		zap.String("path", entry.Path),
		zap.Int("status_code", entry.StatusCode),
		zap.String("staff", entry.Staff),
		zap.String("entity_id", entry.EntityID),
		zap.String("old_status", entry.OldStatus),
		zap.String("new_status", entry.NewStatus),
	)
	m.updatePendingCount(-1)
}

func (m *AuditManager) updatePendingCount(delta int) {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	m.pendingCount += delta
}
