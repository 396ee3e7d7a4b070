package hub

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/billing"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/consolidation"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/lifecycle"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/model"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/repository"
)

// DispatchRequest moves a shipment or a single parcel forward after payment.
// Exactly one of GroupID and ParcelID is set. Target accepts the canonical
// status names and their common synonyms.
type DispatchRequest struct {
	GroupID  string
	ParcelID string
	Target   string

	CarrierTracking string
	DeliveredBy     string
	PhotoRef        string
	SignatureRef    string
}

type DispatchResult struct {
	Group   *model.ShipmentGroup `json:"group,omitempty"`
	Parcels []*model.Parcel      `json:"parcels"`
}

func (s *Service) Dispatch(ctx context.Context, req DispatchRequest) (*DispatchResult, error) {
	switch {
	case req.GroupID != "" && req.ParcelID != "":
		return nil, fmt.Errorf("%w: dispatch either a group or a parcel", ErrInvalidInput)
	case req.GroupID != "":
		to, err := lifecycle.ParseGroupStatus(req.Target)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return s.dispatchGroup(ctx, req, to)
	case req.ParcelID != "":
		to, err := lifecycle.ParseParcelStatus(req.Target)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return s.dispatchParcel(ctx, req, to)
	default:
		return nil, fmt.Errorf("%w: group or parcel id is required", ErrInvalidInput)
	}
}

func (s *Service) dispatchGroup(ctx context.Context, req DispatchRequest, to lifecycle.GroupStatus) (*DispatchResult, error) {
	tracking := strings.TrimSpace(req.CarrierTracking)
	switch to {
	case lifecycle.GroupShipped:
		if tracking == "" {
			return nil, fmt.Errorf("%w: carrier tracking is required to ship", ErrInvalidInput)
		}
	case lifecycle.GroupDelivered:
		if strings.TrimSpace(req.DeliveredBy) == "" {
			return nil, fmt.Errorf("%w: delivering staff member is required", ErrInvalidInput)
		}
	default:
		return nil, fmt.Errorf("%w: group can only be dispatched to %s or %s", ErrManualTransition, lifecycle.GroupShipped, lifecycle.GroupDelivered)
	}

	result := &DispatchResult{}
	now := s.now()
	err := s.inTx(ctx, "dispatch_group", func(tx db.Tx) error {
		g, err := s.lockGroupTx(ctx, tx, req.GroupID)
		if err != nil {
			return err
		}
		if g.Status.IsTerminal() {
			return &lifecycle.TerminalStateError{Entity: "shipment group " + g.ID, State: string(g.Status)}
		}
		if !g.ServiceType.OwnsMembers() {
			return fmt.Errorf("%w: storage invoice %s cannot be dispatched", ErrInvalidInput, g.ID)
		}

		var (
			member lifecycle.ParcelStatus
			event  EventType
			note   string
		)
		switch to {
		case lifecycle.GroupShipped:
			if g.Status != lifecycle.GroupPaid && g.Status != lifecycle.GroupReadyToDispatch {
				return fmt.Errorf("group %s: %w", g.ID, &lifecycle.InvalidTransitionError{Entity: "shipment group", From: string(g.Status), To: string(to)})
			}
			g.CarrierTracking = tracking
			member, event, note = lifecycle.ParcelInTransit, EventGroupShipped, "shipped with "+tracking
		case lifecycle.GroupDelivered:
			if g.Status != lifecycle.GroupShipped {
				return fmt.Errorf("group %s: %w", g.ID, &lifecycle.InvalidTransitionError{Entity: "shipment group", From: string(g.Status), To: string(to)})
			}
			g.DeliveredBy = req.DeliveredBy
			member, event, note = lifecycle.ParcelDelivered, EventGroupDelivered, "delivered by "+req.DeliveredBy
		}

		if err := s.walkGroup(ctx, tx, g, to, note, now); err != nil {
			return err
		}
		if err := s.saveGroupTx(ctx, tx, g); err != nil {
			return err
		}

		parcels, err := s.lockParcelsTx(ctx, tx, sortedCopy(g.ParcelIDs))
		if err != nil {
			return err
		}
		for _, p := range parcels {
			if p.Status.IsTerminal() {
				continue
			}
			if member == lifecycle.ParcelDelivered {
				p.DeliveredBy = req.DeliveredBy
			}
			if err := s.walkParcel(ctx, tx, p, member, note, now); err != nil {
				return err
			}
			if err := s.saveParcelTx(ctx, tx, p); err != nil {
				return err
			}
		}
		result.Group, result.Parcels = g, parcels

		return s.emitTx(ctx, tx, Event{
			Type:       event,
			OccurredAt: now,
			OwnerID:    g.OwnerID,
			GroupID:    g.ID,
			Status:     string(g.Status),
			Data: map[string]string{
				"shipment_number":  g.ShipmentNumber,
				"carrier_tracking": g.CarrierTracking,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("group dispatched",
		zap.String("group_id", result.Group.ID), zap.String("status", string(result.Group.Status)))
	s.cacheParcels(result.Parcels...)
	return result, nil
}

func (s *Service) dispatchParcel(ctx context.Context, req DispatchRequest, to lifecycle.ParcelStatus) (*DispatchResult, error) {
	if to != lifecycle.ParcelOutForDelivery && to != lifecycle.ParcelDelivered {
		return nil, fmt.Errorf("%w: parcel can only be dispatched to %s or %s", ErrManualTransition, lifecycle.ParcelOutForDelivery, lifecycle.ParcelDelivered)
	}

	// The owning group is locked before the parcel, as every group operation does.
	current, err := s.parcels.GetByID(ctx, req.ParcelID)
	if err != nil {
		return nil, notFound("parcel", req.ParcelID, err)
	}

	result := &DispatchResult{}
	now := s.now()
	err = s.inTx(ctx, "dispatch_parcel", func(tx db.Tx) error {
		var g *model.ShipmentGroup
		if current.GroupID != nil {
			locked, err := s.lockGroupTx(ctx, tx, *current.GroupID)
			if err != nil {
				return err
			}
			g = locked
		}
		p, err := s.lockParcelTx(ctx, tx, req.ParcelID)
		if err != nil {
			return err
		}
		if !sameGroup(p.GroupID, current.GroupID) {
			return fmt.Errorf("%w: parcel %s changed group concurrently", ErrConflict, p.ID)
		}
		if p.Status.IsTerminal() {
			return &lifecycle.TerminalStateError{Entity: "parcel " + p.ID, State: string(p.Status)}
		}

		note := string(to)
		switch {
		case to == lifecycle.ParcelOutForDelivery:
			if p.Status != lifecycle.ParcelInTransit {
				return fmt.Errorf("parcel %s: %w", p.ID, &lifecycle.InvalidTransitionError{Entity: "parcel", From: string(p.Status), To: string(to)})
			}
			note = "out for delivery"
		case p.Status == lifecycle.ParcelPendingPickup:
			if billing.IsBlocked(p.LiveStorageDebt(now)) {
				return fmt.Errorf("%w: parcel %s owes %s", consolidation.ErrStorageBlocked, p.ID, p.LiveStorageDebt(now))
			}
			note = "picked up"
		case p.Status == lifecycle.ParcelInTransit || p.Status == lifecycle.ParcelOutForDelivery:
			note = "delivered"
		default:
			return fmt.Errorf("parcel %s: %w", p.ID, &lifecycle.InvalidTransitionError{Entity: "parcel", From: string(p.Status), To: string(to)})
		}

		if to == lifecycle.ParcelDelivered {
			p.DeliveryPhotoRef = req.PhotoRef
			p.SignatureRef = req.SignatureRef
			p.DeliveredBy = req.DeliveredBy
		}
		if err := s.walkParcel(ctx, tx, p, to, note, now); err != nil {
			return err
		}
		if err := s.saveParcelTx(ctx, tx, p); err != nil {
			return err
		}
		result.Parcels = []*model.Parcel{p}

		err = s.emitTx(ctx, tx, Event{
			Type:       EventParcelStatusChanged,
			OccurredAt: now,
			OwnerID:    p.OwnerID,
			ParcelID:   p.ID,
			Status:     string(p.Status),
		})
		if err != nil {
			return err
		}

		if g != nil && to == lifecycle.ParcelDelivered {
			delivered, err := s.completeGroupTx(ctx, tx, g, p, req.DeliveredBy, now)
			if err != nil {
				return err
			}
			if delivered {
				result.Group = g
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cacheParcels(result.Parcels...)
	return result, nil
}

// completeGroupTx delivers a shipped group once none of its members is still
// on the way.
func (s *Service) completeGroupTx(ctx context.Context, tx db.Tx, g *model.ShipmentGroup, delivered *model.Parcel, by string, now time.Time) (bool, error) {
	if g.Status != lifecycle.GroupShipped {
		return false, nil
	}
	var others []string
	for _, id := range g.ParcelIDs {
		if id != delivered.ID {
			others = append(others, id)
		}
	}
	parcels, err := s.lockParcelsTx(ctx, tx, sortedCopy(others))
	if err != nil {
		return false, err
	}
	for _, p := range parcels {
		if !p.Status.IsTerminal() {
			return false, nil
		}
	}

	g.DeliveredBy = by
	if err := s.walkGroup(ctx, tx, g, lifecycle.GroupDelivered, "all parcels delivered", now); err != nil {
		return false, err
	}
	if err := s.saveGroupTx(ctx, tx, g); err != nil {
		return false, err
	}
	err = s.emitTx(ctx, tx, Event{
		Type:       EventGroupDelivered,
		OccurredAt: now,
		OwnerID:    g.OwnerID,
		GroupID:    g.ID,
		Status:     string(g.Status),
		Data:       map[string]string{"shipment_number": g.ShipmentNumber},
	})
	return err == nil, err
}

// TransitionParcel applies a manual staff move. Only holding states and
// cancellation are reachable this way; everything else has its own operation.
func (s *Service) TransitionParcel(ctx context.Context, id string, to lifecycle.ParcelStatus, note string) (*model.Parcel, error) {
	switch to {
	case lifecycle.ParcelAwaitingPickup, lifecycle.ParcelPendingPickup, lifecycle.ParcelCancelled:
	default:
		return nil, fmt.Errorf("%w: %s", ErrManualTransition, to)
	}
	if note == "" {
		note = "staff update"
	}

	var result *model.Parcel
	now := s.now()
	err := s.inTx(ctx, "transition_parcel", func(tx db.Tx) error {
		p, err := s.lockParcelTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if to == lifecycle.ParcelCancelled && p.GroupID != nil {
			return fmt.Errorf("%w: parcel %s belongs to group %s, cancel the group instead", ErrConflict, p.ID, *p.GroupID)
		}
		if err := p.Transition(to, now); err != nil {
			return fmt.Errorf("parcel %s: %w", p.ID, err)
		}
		if err := s.recordTx(ctx, tx, repository.EntityParcel, p.ID, string(p.Status), note, now); err != nil {
			return err
		}
		if err := s.saveParcelTx(ctx, tx, p); err != nil {
			return err
		}
		result = p

		return s.emitTx(ctx, tx, Event{
			Type:       EventParcelStatusChanged,
			OccurredAt: now,
			OwnerID:    p.OwnerID,
			ParcelID:   p.ID,
			Status:     string(p.Status),
			Data:       map[string]string{"note": note},
		})
	})
	if err != nil {
		return nil, err
	}

	s.cacheParcels(result)
	return result, nil
}

func sameGroup(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
