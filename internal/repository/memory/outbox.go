package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/repository"
)

type OutboxTaskRepo struct {
	s *Store
}

func (r *OutboxTaskRepo) CreateTx(ctx context.Context, tx db.Tx, task *repository.OutboxTask) error {
	t, err := r.s.txFrom(tx)
	if err != nil {
		return err
	}
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	now := r.s.now()
	row := cloneTask(task)
	row.Status = repository.TaskStatusCreated
	row.CreatedAt, row.UpdatedAt = now, now

	r.s.write(t, func() func() {
		r.s.outbox = append(r.s.outbox, row)
		n := len(r.s.outbox) - 1
		return func() { r.s.outbox = r.s.outbox[:n] }
	})
	return nil
}

func (r *OutboxTaskRepo) GetProcessableTasksTx(ctx context.Context, tx db.Tx, limit, maxAttempts int) ([]*repository.OutboxTask, error) {
	if _, err := r.s.txFrom(tx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*repository.OutboxTask
	for _, task := range r.s.outbox {
		if task.Status == repository.TaskStatusCreated ||
			(task.Status == repository.TaskStatusFailed && task.Attempts < maxAttempts) {
			out = append(out, cloneTask(task))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *OutboxTaskRepo) UpdateTaskStatusTx(ctx context.Context, tx db.Tx, id uuid.UUID, status repository.TaskStatus, attempts int, lastError *string, completedAt *time.Time) error {
	t, err := r.s.txFrom(tx)
	if err != nil {
		return err
	}
	return r.update(t, id, status, attempts, lastError, completedAt)
}

// UpdateTaskStatus runs outside any transaction and is applied immediately.
func (r *OutboxTaskRepo) UpdateTaskStatus(ctx context.Context, database db.DB, id uuid.UUID, status repository.TaskStatus, attempts int, lastError *string, completedAt *time.Time) error {
	if database != db.DB(r.s) {
		return fmt.Errorf("update task %s: %w", id, ErrForeignTx)
	}
	return r.update(nil, id, status, attempts, lastError, completedAt)
}

func (r *OutboxTaskRepo) update(t *Tx, id uuid.UUID, status repository.TaskStatus, attempts int, lastError *string, completedAt *time.Time) error {
	now := r.s.now()
	var found bool
	r.s.write(t, func() func() {
		for i, task := range r.s.outbox {
			if task.ID != id {
				continue
			}
			found = true
			row := cloneTask(task)
			row.Status = status
			row.Attempts = attempts
			row.LastError = ptr(lastError)
			row.CompletedAt = ptr(completedAt)
			row.UpdatedAt = now
			r.s.outbox[i] = row
			return func() { r.s.outbox[i] = task }
		}
		return nil
	})
	if !found {
		return repository.ErrObjectNotFound
	}
	return nil
}

// Tasks returns a snapshot of every task, oldest first.
func (s *Store) Tasks() []*repository.OutboxTask {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*repository.OutboxTask, 0, len(s.outbox))
	for _, task := range s.outbox {
		out = append(out, cloneTask(task))
	}
	return out
}
