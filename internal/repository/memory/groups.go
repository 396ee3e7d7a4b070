package memory

import (
	"context"
	"fmt"
	"sort"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/hub"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/repository"
)

type GroupRepo struct {
	s *Store
}

func (r *GroupRepo) CreateTx(ctx context.Context, tx db.Tx, g *repository.ShipmentGroup) error {
	t, err := r.s.txFrom(tx)
	if err != nil {
		return err
	}
	r.s.mu.RLock()
	_, exists := r.s.groups[g.ID]
	r.s.mu.RUnlock()
	if exists {
		return fmt.Errorf("%w: group %s already exists", hub.ErrConflict, g.ID)
	}

	row := cloneGroup(g)
	r.s.write(t, func() func() {
		r.s.groups[row.ID] = row
		return func() { delete(r.s.groups, row.ID) }
	})
	return nil
}

func (r *GroupRepo) UpdateTx(ctx context.Context, tx db.Tx, g *repository.ShipmentGroup) error {
	t, err := r.s.txFrom(tx)
	if err != nil {
		return err
	}
	var found bool
	row := cloneGroup(g)
	r.s.write(t, func() func() {
		prev, ok := r.s.groups[row.ID]
		if !ok {
			return nil
		}
		found = true
		row.ParcelIDs = append([]string(nil), prev.ParcelIDs...)
		row.ShipmentNumber, row.OwnerID, row.ServiceType, row.CreatedAt = prev.ShipmentNumber, prev.OwnerID, prev.ServiceType, prev.CreatedAt
		r.s.groups[row.ID] = row
		return func() { r.s.groups[prev.ID] = prev }
	})
	if !found {
		return repository.ErrObjectNotFound
	}
	return nil
}

func (r *GroupRepo) GetByID(ctx context.Context, id string) (*repository.ShipmentGroup, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	g, ok := r.s.groups[id]
	if !ok {
		return nil, repository.ErrObjectNotFound
	}
	return cloneGroup(g), nil
}

func (r *GroupRepo) GetByIDTx(ctx context.Context, tx db.Tx, id string) (*repository.ShipmentGroup, error) {
	if _, err := r.s.txFrom(tx); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *GroupRepo) GetByOwnerID(ctx context.Context, ownerID string, limit int) ([]*repository.ShipmentGroup, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*repository.ShipmentGroup
	for _, g := range r.s.groups {
		if g.OwnerID == ownerID {
			out = append(out, cloneGroup(g))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
