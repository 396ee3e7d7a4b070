package memory

import (
	"context"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/repository"
)

type HistoryRepo struct {
	s *Store
}

func (r *HistoryRepo) CreateTx(ctx context.Context, tx db.Tx, entry *repository.HistoryEntry) error {
	t, err := r.s.txFrom(tx)
	if err != nil {
		return err
	}
	r.s.write(t, func() func() {
		r.s.historySeq++
		row := *entry
		row.ID = r.s.historySeq
		r.s.history = append(r.s.history, &row)
		n := len(r.s.history) - 1
		return func() {
			r.s.history = r.s.history[:n]
			r.s.historySeq--
		}
	})
	return nil
}

// GetByEntity returns entries in insertion order, which is also changed_at order.
func (r *HistoryRepo) GetByEntity(ctx context.Context, entityType, entityID string) ([]*repository.HistoryEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*repository.HistoryEntry
	for _, e := range r.s.history {
		if e.EntityType == entityType && e.EntityID == entityID {
			row := *e
			out = append(out, &row)
		}
	}
	return out, nil
}
