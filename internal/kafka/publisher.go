package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/hub"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/repository"
)

var errShuttingDown = errors.New("publisher shutdown during batch processing")

type PublisherConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
}

// Publisher relays outbox tasks to the producer. A task is claimed in one
// transaction and sent after commit, so delivery is at least once.
type Publisher struct {
	db             db.DB
	repo           hub.OutboxTaskRepository
	producer       Producer
	config         PublisherConfig
	logger         *zap.Logger
	wg             sync.WaitGroup
	shutdownSignal chan struct{}
	stopOnce       sync.Once
}

func NewPublisher(database db.DB, repo hub.OutboxTaskRepository, producer Producer, config PublisherConfig, logger *zap.Logger) *Publisher {
	return &Publisher{
		db:             database,
		repo:           repo,
		producer:       producer,
		config:         config,
		logger:         logger,
		shutdownSignal: make(chan struct{}),
	}
}

func (p *Publisher) Run(ctx context.Context) {
	p.logger.Info("starting outbox publisher",
		zap.Duration("poll_interval", p.config.PollInterval), zap.Int("batch_size", p.config.BatchSize))
	p.wg.Add(1)
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error("outbox publisher failed to process batch", zap.Error(err))
			}
		case <-p.shutdownSignal:
			p.logger.Info("outbox publisher received shutdown signal")
			return
		case <-ctx.Done():
			p.logger.Info("outbox publisher context cancelled")
			return
		}
	}
}

func (p *Publisher) Shutdown() {
	p.stopOnce.Do(func() {
		p.logger.Info("initiating outbox publisher shutdown")
		close(p.shutdownSignal)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			p.logger.Info("outbox publisher shutdown complete")
		case <-shutdownCtx.Done():
			p.logger.Warn("outbox publisher shutdown timed out")
		}

		if err := p.producer.Close(); err != nil {
			p.logger.Error("failed to close producer", zap.Error(err))
		}
	})
}

// ProcessBatch claims up to BatchSize tasks and sends them. It returns the
// number of tasks sent successfully.
func (p *Publisher) ProcessBatch(ctx context.Context) (int, error) {
	var tasks []*repository.OutboxTask
	err := db.RunInTx(ctx, p.db, func(tx db.Tx) error {
		var err error
		tasks, err = p.repo.GetProcessableTasksTx(ctx, tx, p.config.BatchSize, p.config.MaxAttempts)
		if err != nil {
			return err
		}
		for _, task := range tasks {
			err := p.repo.UpdateTaskStatusTx(ctx, tx, task.ID, repository.TaskStatusProcessing, task.Attempts, nil, nil)
			if err != nil {
				return fmt.Errorf("failed to mark task %s as PROCESSING: %w", task.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(tasks) == 0 {
		return 0, nil
	}

	p.logger.Debug("outbox publisher fetched tasks", zap.Int("count", len(tasks)))

	sent := 0
	for i, task := range tasks {
		select {
		case <-p.shutdownSignal:
			p.logger.Warn("shutdown during batch processing", zap.Stringer("task_id", task.ID))
			p.release(tasks[i:])
			return sent, errShuttingDown
		case <-ctx.Done():
			p.release(tasks[i:])
			return sent, ctx.Err()
		default:
		}

		if err := p.processSingleTask(ctx, task); err != nil {
			p.logger.Error("failed to process task", zap.Stringer("task_id", task.ID), zap.Error(err))
			continue
		}
		sent++
	}

	return sent, nil
}

// release hands claimed but unsent tasks back as FAILED so the next poll
// picks them up again. Attempts are left as they were: nothing was sent.
func (p *Publisher) release(tasks []*repository.OutboxTask) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reason := errShuttingDown.Error()
	for _, task := range tasks {
		err := p.repo.UpdateTaskStatus(ctx, p.db, task.ID, repository.TaskStatusFailed, task.Attempts, &reason, nil)
		if err != nil {
			p.logger.Error("failed to release claimed task", zap.Stringer("task_id", task.ID), zap.Error(err))
		}
	}
	p.logger.Info("released unsent outbox tasks", zap.Int("count", len(tasks)))
}

func (p *Publisher) processSingleTask(ctx context.Context, task *repository.OutboxTask) error {
	err := p.producer.SendMessage(ctx, task.Topic, []byte(task.ID.String()), task.Payload)
	if err != nil {
		metrics.OutboxPublishedTotal.WithLabelValues(task.Topic, "failed").Inc()
		attempts := task.Attempts + 1
		errMsg := err.Error()

		if attempts >= p.config.MaxAttempts {
			p.logger.Error("task reached max attempts, giving up",
				zap.Stringer("task_id", task.ID), zap.Int("attempts", attempts), zap.Error(err))
		}

		updateErr := p.repo.UpdateTaskStatus(ctx, p.db, task.ID, repository.TaskStatusFailed, attempts, &errMsg, nil)
		if updateErr != nil {
			return fmt.Errorf("failed to update task status after send failure: %w (send error: %v)", updateErr, err)
		}
		return err
	}

	metrics.OutboxPublishedTotal.WithLabelValues(task.Topic, "done").Inc()
	now := time.Now().UTC()
	if err := p.repo.UpdateTaskStatus(ctx, p.db, task.ID, repository.TaskStatusDone, task.Attempts, nil, &now); err != nil {
		return fmt.Errorf("failed to update task status after successful send: %w", err)
	}

	return nil
}
