package postgresql

import (
	"context"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/hub"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/repository"
)

type HistoryRepo struct {
	db db.DB
}

func NewHistoryRepo(db db.DB) hub.HistoryRepository {
	return &HistoryRepo{db: db}
}

func (r *HistoryRepo) CreateTx(ctx context.Context, tx db.Tx, entry *repository.HistoryEntry) error {
	_, err := tx.Exec(ctx, `
        INSERT INTO status_history (
            entity_type, entity_id, status, note, changed_at
        ) VALUES ($1, $2, $3, $4, $5)
    `, entry.EntityType, entry.EntityID, entry.Status, entry.Note, entry.ChangedAt)
	return err
}

func (r *HistoryRepo) GetByEntity(ctx context.Context, entityType, entityID string) ([]*repository.HistoryEntry, error) {
	var entries []*repository.HistoryEntry
	err := r.db.Select(ctx, &entries, `
        SELECT id, entity_type, entity_id, status, note, changed_at FROM status_history
        WHERE entity_type = $1 AND entity_id = $2
        ORDER BY changed_at ASC, id ASC
    `, entityType, entityID)
	return entries, err
}
