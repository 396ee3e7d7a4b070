package hub

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/billing"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/consolidation"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/lifecycle"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/model"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/money"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/repository"
)

type QuoteRequest struct {
	Weight           float64
	Dimensions       billing.Dimensions
	ShippingSubtotal money.Money
}

// ValidateConsolidation checks a proposed selection without reserving
// anything. CreateGroup repeats every check under lock.
func (s *Service) ValidateConsolidation(ctx context.Context, parcelIDs []string, ownerID string) (*consolidation.GroupAuthorization, error) {
	parcels := make([]*model.Parcel, 0, len(parcelIDs))
	for _, id := range parcelIDs {
		row, err := s.parcels.GetByID(ctx, id)
		if err != nil {
			return nil, notFound("parcel", id, err)
		}
		parcels = append(parcels, parcelFromRow(row))
	}
	return s.validator.Validate(ownerID, parcels, s.now())
}

// CreateGroup turns an authorization into a shipment group. Eligibility is
// re-checked on locked rows, and every parcel is claimed with a conditional
// update, so of two overlapping requests exactly one wins.
func (s *Service) CreateGroup(ctx context.Context, auth *consolidation.GroupAuthorization, weight float64, dims billing.Dimensions) (*model.ShipmentGroup, error) {
	if auth == nil || len(auth.ParcelIDs) == 0 {
		return nil, &consolidation.RuleViolation{Rule: consolidation.RuleEmpty, Detail: "no parcels selected"}
	}
	if weight < 0 {
		return nil, fmt.Errorf("%w: weight must not be negative", ErrInvalidInput)
	}
	log := s.logger.With(zap.String("op", "create_group"), zap.String("owner_id", auth.OwnerID))

	ids := sortedCopy(auth.ParcelIDs)
	var (
		group   *model.ShipmentGroup
		members []*model.Parcel
	)
	now := s.now()
	err := s.inTx(ctx, "create_group", func(tx db.Tx) error {
		parcels, err := s.lockParcelsTx(ctx, tx, ids)
		if err != nil {
			return err
		}
		validated, err := s.validator.Validate(auth.OwnerID, parcels, now)
		if err != nil {
			return err
		}

		group = &model.ShipmentGroup{
			ID:             uuid.NewString(),
			ShipmentNumber: newShipmentNumber(now),
			OwnerID:        auth.OwnerID,
			ServiceType:    validated.ServiceType,
			Status:         lifecycle.GroupPendingProcessing,
			ParcelIDs:      validated.ParcelIDs,
			Weight:         weight,
			Dimensions:     dims,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		for _, p := range parcels {
			group.DeclaredValue += p.DeclaredValue
		}
		if err := s.groups.CreateTx(ctx, tx, groupToRow(group)); err != nil {
			return fmt.Errorf("failed to add group: %w", err)
		}
		if err := s.recordTx(ctx, tx, repository.EntityGroup, group.ID, string(group.Status), "created", now); err != nil {
			return err
		}

		for _, p := range parcels {
			from := p.Status
			if err := p.Transition(lifecycle.ParcelInProcessing, now); err != nil {
				return fmt.Errorf("parcel %s: %w", p.ID, err)
			}
			err := s.parcels.AssignGroupTx(ctx, tx, p.ID, group.ID, string(from), string(p.Status), now)
			if errors.Is(err, repository.ErrStaleObject) {
				return fmt.Errorf("%w: %s was claimed concurrently", consolidation.ErrAlreadyConsumed, p.ID)
			}
			if err != nil {
				return fmt.Errorf("failed to assign parcel %s: %w", p.ID, err)
			}
			groupID := group.ID
			p.GroupID = &groupID
			if err := s.recordTx(ctx, tx, repository.EntityParcel, p.ID, string(p.Status), "grouped into "+group.ShipmentNumber, now); err != nil {
				return err
			}
		}
		members = parcels

		return s.emitTx(ctx, tx, Event{
			Type:       EventGroupCreated,
			OccurredAt: now,
			OwnerID:    group.OwnerID,
			GroupID:    group.ID,
			Status:     string(group.Status),
			Data: map[string]string{
				"shipment_number": group.ShipmentNumber,
				"service_type":    string(group.ServiceType),
			},
		})
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			metrics.GroupConflictsTotal.Inc()
		}
		return nil, err
	}

	metrics.GroupsCreatedTotal.WithLabelValues(string(group.ServiceType)).Inc()
	log.Info("group created", zap.String("group_id", group.ID), zap.Int("parcels", len(group.ParcelIDs)))
	s.cacheParcels(members...)
	return group, nil
}

// QuoteGroup records the staff-measured aggregate and the shipping price,
// turning the group into an invoice. Storage accrued by members since
// grouping is billed on the same invoice.
func (s *Service) QuoteGroup(ctx context.Context, groupID string, req QuoteRequest) (*model.ShipmentGroup, error) {
	if req.ShippingSubtotal < 0 || req.Weight < 0 {
		return nil, fmt.Errorf("%w: subtotal and weight must not be negative", ErrInvalidInput)
	}

	var (
		group   *model.ShipmentGroup
		members []*model.Parcel
	)
	now := s.now()
	err := s.inTx(ctx, "quote_group", func(tx db.Tx) error {
		g, err := s.lockGroupTx(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if !g.ServiceType.OwnsMembers() {
			return fmt.Errorf("%w: storage invoices are priced on creation", ErrInvalidInput)
		}
		if err := lifecycle.CheckGroup(g.Status, lifecycle.GroupPendingPayment); err != nil {
			return fmt.Errorf("group %s: %w", g.ID, err)
		}

		parcels, err := s.lockParcelsTx(ctx, tx, sortedCopy(g.ParcelIDs))
		if err != nil {
			return err
		}
		storage := money.Zero
		for _, p := range parcels {
			p.StorageDebt = p.LiveStorageDebt(now)
			p.UpdatedAt = now
			if p.StorageInvoiceID == nil {
				storage += p.StorageDebt
			}
			if err := s.saveParcelTx(ctx, tx, p); err != nil {
				return err
			}
		}

		if req.Weight > 0 {
			g.Weight = req.Weight
		}
		if req.Dimensions != (billing.Dimensions{}) {
			g.Dimensions = req.Dimensions
		}
		g.Subtotal = req.ShippingSubtotal + storage
		g.Total = billing.WithFee(g.Subtotal)
		g.ProcessingFee = g.Total - g.Subtotal

		if err := s.walkGroup(ctx, tx, g, lifecycle.GroupPendingPayment, "quoted", now); err != nil {
			return err
		}
		if err := s.saveGroupTx(ctx, tx, g); err != nil {
			return err
		}
		group, members = g, parcels

		return s.emitTx(ctx, tx, Event{
			Type:       EventGroupQuoted,
			OccurredAt: now,
			OwnerID:    g.OwnerID,
			GroupID:    g.ID,
			Status:     string(g.Status),
			Amount:     amountOf(g.Total),
			Data:       map[string]string{"subtotal": g.Subtotal.String(), "storage": storage.String()},
		})
	})
	if err != nil {
		return nil, err
	}

	s.cacheParcels(members...)
	return group, nil
}

// CreateStorageInvoice bills the accrued storage of parcels held at the hub,
// optionally with the handling fee for retrieval. The invoice does not take
// ownership of the parcels.
func (s *Service) CreateStorageInvoice(ctx context.Context, ownerID string, parcelIDs []string, withHandling bool) (*model.ShipmentGroup, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}
	if len(parcelIDs) == 0 {
		return nil, &consolidation.RuleViolation{Rule: consolidation.RuleEmpty, Detail: "no parcels selected"}
	}
	if len(parcelIDs) > consolidation.MaxParcels {
		return nil, &consolidation.RuleViolation{
			Rule:   consolidation.RuleCardinality,
			Detail: fmt.Sprintf("%d parcels selected, at most %d allowed", len(parcelIDs), consolidation.MaxParcels),
		}
	}
	ids := sortedCopy(parcelIDs)
	for i := 1; i < len(ids); i++ {
		if ids[i] == ids[i-1] {
			return nil, &consolidation.RuleViolation{Rule: consolidation.RuleDuplicate, Detail: fmt.Sprintf("parcel %s selected twice", ids[i])}
		}
	}

	var (
		group   *model.ShipmentGroup
		members []*model.Parcel
	)
	now := s.now()
	err := s.inTx(ctx, "create_storage_invoice", func(tx db.Tx) error {
		parcels, err := s.lockParcelsTx(ctx, tx, ids)
		if err != nil {
			return err
		}

		group = &model.ShipmentGroup{
			ID:             uuid.NewString(),
			ShipmentNumber: newShipmentNumber(now),
			OwnerID:        ownerID,
			ServiceType:    model.ServiceStorageFee,
			Status:         lifecycle.GroupPendingProcessing,
			ParcelIDs:      ids,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		for _, p := range parcels {
			if p.OwnerID != ownerID {
				return fmt.Errorf("%w: %s", consolidation.ErrNotOwner, p.ID)
			}
			if p.Status.IsTerminal() {
				return &lifecycle.TerminalStateError{Entity: "parcel " + p.ID, State: string(p.Status)}
			}
			if !p.Status.IsAtHub() {
				return &consolidation.RuleViolation{Rule: consolidation.RuleNotCombinable, Detail: fmt.Sprintf("parcel %s is %s, not held at the hub", p.ID, p.Status)}
			}
			if p.StorageInvoiceID != nil {
				return fmt.Errorf("%w: parcel %s is already on storage invoice %s", ErrConflict, p.ID, *p.StorageInvoiceID)
			}

			p.StorageDebt = p.LiveStorageDebt(now)
			group.Subtotal += p.StorageDebt
			if withHandling {
				group.Subtotal += billing.HandlingFee(p.Weight)
			}
			group.Weight += p.Weight
			group.DeclaredValue += p.DeclaredValue

			invoiceID := group.ID
			p.StorageInvoiceID = &invoiceID
			p.UpdatedAt = now
		}
		if group.Subtotal.IsZero() {
			return fmt.Errorf("%w: nothing to bill", ErrInvalidInput)
		}
		group.Total = billing.WithFee(group.Subtotal)
		group.ProcessingFee = group.Total - group.Subtotal

		if err := s.groups.CreateTx(ctx, tx, groupToRow(group)); err != nil {
			return fmt.Errorf("failed to add group: %w", err)
		}
		if err := s.recordTx(ctx, tx, repository.EntityGroup, group.ID, string(group.Status), "storage invoice", now); err != nil {
			return err
		}
		if err := s.walkGroup(ctx, tx, group, lifecycle.GroupPendingPayment, "storage invoice issued", now); err != nil {
			return err
		}
		if err := s.saveGroupTx(ctx, tx, group); err != nil {
			return err
		}
		for _, p := range parcels {
			if err := s.saveParcelTx(ctx, tx, p); err != nil {
				return err
			}
		}
		members = parcels

		return s.emitTx(ctx, tx, Event{
			Type:       EventGroupCreated,
			OccurredAt: now,
			OwnerID:    group.OwnerID,
			GroupID:    group.ID,
			Status:     string(group.Status),
			Amount:     amountOf(group.Total),
			Data: map[string]string{
				"shipment_number": group.ShipmentNumber,
				"service_type":    string(group.ServiceType),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.GroupsCreatedTotal.WithLabelValues(string(group.ServiceType)).Inc()
	s.cacheParcels(members...)
	return group, nil
}

// CancelGroup cancels a group. Unpaid groups release their parcels back to
// the hub; a shipped group cancels its parcels with it. Paid groups that have
// not shipped need a refund first.
func (s *Service) CancelGroup(ctx context.Context, groupID, reason string) (*model.ShipmentGroup, error) {
	var (
		group   *model.ShipmentGroup
		members []*model.Parcel
	)
	now := s.now()
	note := "cancelled"
	if reason != "" {
		note = "cancelled: " + reason
	}

	err := s.inTx(ctx, "cancel_group", func(tx db.Tx) error {
		g, err := s.lockGroupTx(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if g.Status == lifecycle.GroupPaid || g.Status == lifecycle.GroupReadyToDispatch {
			return fmt.Errorf("group %s is %s: %w", g.ID, g.Status, ErrRefundRequired)
		}
		wasShipped := g.Status == lifecycle.GroupShipped
		if err := g.Transition(lifecycle.GroupCancelled, now); err != nil {
			return fmt.Errorf("group %s: %w", g.ID, err)
		}
		if err := s.recordTx(ctx, tx, repository.EntityGroup, g.ID, string(g.Status), note, now); err != nil {
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
			switch {
			case !g.ServiceType.OwnsMembers():
				if p.StorageInvoiceID == nil || *p.StorageInvoiceID != g.ID {
					continue
				}
				p.StorageInvoiceID = nil
				p.UpdatedAt = now
			case wasShipped:
				if p.Status.IsTerminal() {
					continue
				}
				if err := s.walkParcel(ctx, tx, p, lifecycle.ParcelCancelled, note, now); err != nil {
					return err
				}
			default:
				if p.GroupID == nil || *p.GroupID != g.ID {
					continue
				}
				p.GroupID = nil
				if p.Status == lifecycle.ParcelInProcessing {
					if err := s.walkParcel(ctx, tx, p, lifecycle.ParcelReceivedAtHub, "released from "+g.ShipmentNumber, now); err != nil {
						return err
					}
				}
				p.UpdatedAt = now
			}
			if err := s.saveParcelTx(ctx, tx, p); err != nil {
				return err
			}
		}
		group, members = g, parcels

		return s.emitTx(ctx, tx, Event{
			Type:       EventGroupCancelled,
			OccurredAt: now,
			OwnerID:    g.OwnerID,
			GroupID:    g.ID,
			Status:     string(g.Status),
			Data:       map[string]string{"reason": reason},
		})
	})
	if err != nil {
		return nil, err
	}

	s.cacheParcels(members...)
	return group, nil
}

func sortedCopy(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}
