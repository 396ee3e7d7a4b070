package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/hub"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/lifecycle"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/repository"
)

type ParcelRepo struct {
	s *Store
}

func (r *ParcelRepo) CreateTx(ctx context.Context, tx db.Tx, p *repository.Parcel) error {
	t, err := r.s.txFrom(tx)
	if err != nil {
		return err
	}
	r.s.mu.RLock()
	_, exists := r.s.parcels[p.ID]
	if !exists && p.CarrierTracking != nil {
		exists = r.findByTracking(*p.CarrierTracking) != nil
	}
	r.s.mu.RUnlock()
	if exists {
		return fmt.Errorf("%w: parcel %s already exists", hub.ErrConflict, p.ID)
	}

	row := cloneParcel(p)
	r.s.write(t, func() func() {
		r.s.parcels[row.ID] = row
		return func() { delete(r.s.parcels, row.ID) }
	})
	return nil
}

func (r *ParcelRepo) UpdateTx(ctx context.Context, tx db.Tx, p *repository.Parcel) error {
	t, err := r.s.txFrom(tx)
	if err != nil {
		return err
	}
	var found bool
	row := cloneParcel(p)
	r.s.write(t, func() func() {
		prev, ok := r.s.parcels[row.ID]
		if !ok {
			return nil
		}
		found = true
		// hub_code, owner_id and created_at are immutable, as in the SQL update.
		row.HubCode, row.OwnerID, row.CreatedAt = prev.HubCode, prev.OwnerID, prev.CreatedAt
		r.s.parcels[row.ID] = row
		return func() { r.s.parcels[prev.ID] = prev }
	})
	if !found {
		return repository.ErrObjectNotFound
	}
	return nil
}

func (r *ParcelRepo) GetByID(ctx context.Context, id string) (*repository.Parcel, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.parcels[id]
	if !ok {
		return nil, repository.ErrObjectNotFound
	}
	return cloneParcel(p), nil
}

func (r *ParcelRepo) GetByIDTx(ctx context.Context, tx db.Tx, id string) (*repository.Parcel, error) {
	if _, err := r.s.txFrom(tx); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *ParcelRepo) GetByIDsTx(ctx context.Context, tx db.Tx, ids []string) ([]*repository.Parcel, error) {
	if _, err := r.s.txFrom(tx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*repository.Parcel, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.s.parcels[id]; ok {
			out = append(out, cloneParcel(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *ParcelRepo) GetByCarrierTrackingTx(ctx context.Context, tx db.Tx, tracking string) (*repository.Parcel, error) {
	if _, err := r.s.txFrom(tx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p := r.findByTracking(tracking)
	if p == nil {
		return nil, repository.ErrObjectNotFound
	}
	return cloneParcel(p), nil
}

func (r *ParcelRepo) findByTracking(tracking string) *repository.Parcel {
	for _, p := range r.s.parcels {
		if p.CarrierTracking != nil && *p.CarrierTracking == tracking {
			return p
		}
	}
	return nil
}

func (r *ParcelRepo) GetByOwnerID(ctx context.Context, ownerID string, limit int, activeOnly bool) ([]*repository.Parcel, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*repository.Parcel
	for _, p := range r.s.parcels {
		if p.OwnerID != ownerID {
			continue
		}
		if activeOnly && lifecycle.ParcelStatus(p.Status).IsTerminal() {
			continue
		}
		out = append(out, cloneParcel(p))
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

func (r *ParcelRepo) GetAllActive(ctx context.Context) ([]*repository.Parcel, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*repository.Parcel
	for _, p := range r.s.parcels {
		if !lifecycle.ParcelStatus(p.Status).IsTerminal() {
			out = append(out, cloneParcel(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *ParcelRepo) AssignGroupTx(ctx context.Context, tx db.Tx, id, groupID, expectedStatus, newStatus string, updatedAt time.Time) error {
	t, err := r.s.txFrom(tx)
	if err != nil {
		return err
	}
	var claimed bool
	r.s.write(t, func() func() {
		prev, ok := r.s.parcels[id]
		if !ok || prev.GroupID != nil || prev.Status != expectedStatus {
			return nil
		}
		claimed = true
		row := cloneParcel(prev)
		row.GroupID = &groupID
		row.Status = newStatus
		row.UpdatedAt = updatedAt
		r.s.parcels[id] = row
		return func() { r.s.parcels[id] = prev }
	})
	if !claimed {
		return repository.ErrStaleObject
	}
	return nil
}
