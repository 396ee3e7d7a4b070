package hub

import (
	"context"
	"fmt"
	"time"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/billing"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/model"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/money"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/repository"
)

const DefaultListLimit = 100

// ComputeStorageDebt projects the storage debt of p at now without touching
// any stored state.
func ComputeStorageDebt(p *model.Parcel, now time.Time) money.Money {
	return p.LiveStorageDebt(now)
}

// GetParcel returns the parcel with its storage debt projected at read time.
func (s *Service) GetParcel(ctx context.Context, id string) (*model.ParcelView, error) {
	if s.cache != nil {
		if p, ok := s.cache.Get(id); ok {
			view := model.NewParcelView(p, s.now())
			return &view, nil
		}
	}

	row, err := s.parcels.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("parcel", id, err)
	}
	p := parcelFromRow(row)
	s.cacheParcels(p)

	view := model.NewParcelView(p, s.now())
	return &view, nil
}

func (s *Service) ListOwnerParcels(ctx context.Context, ownerID string, limit int, activeOnly bool) ([]model.ParcelView, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.parcels.GetByOwnerID(ctx, ownerID, limit, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list parcels of %s: %w", ownerID, err)
	}

	now := s.now()
	views := make([]model.ParcelView, 0, len(rows))
	for _, row := range rows {
		views = append(views, model.NewParcelView(parcelFromRow(row), now))
	}
	return views, nil
}

func (s *Service) GetGroup(ctx context.Context, id string) (*model.ShipmentGroup, error) {
	row, err := s.groups.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("group", id, err)
	}
	return groupFromRow(row), nil
}

func (s *Service) ListOwnerGroups(ctx context.Context, ownerID string, limit int) ([]*model.ShipmentGroup, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.groups.GetByOwnerID(ctx, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups of %s: %w", ownerID, err)
	}
	groups := make([]*model.ShipmentGroup, 0, len(rows))
	for _, row := range rows {
		groups = append(groups, groupFromRow(row))
	}
	return groups, nil
}

// History returns the status trail of a parcel or group, oldest first.
func (s *Service) History(ctx context.Context, entityType, entityID string) ([]model.HistoryEntry, error) {
	if entityType != repository.EntityParcel && entityType != repository.EntityGroup {
		return nil, fmt.Errorf("%w: unknown entity type %q", ErrInvalidInput, entityType)
	}
	rows, err := s.history.GetByEntity(ctx, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to get history of %s %s: %w", entityType, entityID, err)
	}
	entries := make([]model.HistoryEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, historyFromRow(row))
	}
	return entries, nil
}

// ActiveParcels feeds the parcel cache on startup.
func (s *Service) ActiveParcels(ctx context.Context) ([]*model.Parcel, error) {
	rows, err := s.parcels.GetAllActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get active parcels: %w", err)
	}
	parcels := make([]*model.Parcel, 0, len(rows))
	for _, row := range rows {
		parcels = append(parcels, parcelFromRow(row))
	}
	return parcels, nil
}

// BlockedParcels lists the owner's parcels held at the hub whose storage debt
// blocks release.
func (s *Service) BlockedParcels(ctx context.Context, ownerID string) ([]model.ParcelView, error) {
	views, err := s.ListOwnerParcels(ctx, ownerID, DefaultListLimit, true)
	if err != nil {
		return nil, err
	}
	blocked := views[:0]
	for _, v := range views {
		if billing.IsBlocked(v.LiveStorageDebt) {
			blocked = append(blocked, v)
		}
	}
	return blocked, nil
}
