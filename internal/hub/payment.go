package hub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/billing"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/consolidation"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/lifecycle"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/model"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/money"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/referral"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/repository"
)

const ChargeSucceeded = "succeeded"

// GatewayCharge is the payment gateway's confirmation of a charge. Amount is
// the fee-bearing total the customer paid.
type GatewayCharge struct {
	ID     string
	Status string
	Amount money.Money
}

// InvoiceAllocation is the caller-declared subtotal share of a charge for
// one invoice.
type InvoiceAllocation struct {
	GroupID  string
	Subtotal money.Money
}

type Settlement struct {
	ChargeID  string                 `json:"charge_id"`
	Groups    []*model.ShipmentGroup `json:"groups"`
	Parcels   []*model.Parcel        `json:"parcels"`
	Referrals []*referral.Decision   `json:"referrals,omitempty"`
	// Replayed is set when the charge had already been settled.
	Replayed bool `json:"replayed"`
}

// SettlePayment applies a succeeded gateway charge to the listed invoices in
// one transaction: invoices become PAID, member parcels are billed their
// equal share, storage is settled and the referral reward is evaluated.
// Replaying a settled charge returns the stored state unchanged.
func (s *Service) SettlePayment(ctx context.Context, charge GatewayCharge, allocations []InvoiceAllocation) (*Settlement, error) {
	if !strings.EqualFold(charge.Status, ChargeSucceeded) {
		return nil, fmt.Errorf("charge %s is %q: %w", charge.ID, charge.Status, ErrChargeNotSucceeded)
	}
	if charge.ID == "" {
		return nil, fmt.Errorf("%w: charge id is required", ErrInvalidInput)
	}
	if len(allocations) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, billing.ErrNoInvoices)
	}
	log := s.logger.With(zap.String("op", "settle_payment"), zap.String("charge_id", charge.ID))

	result := &Settlement{ChargeID: charge.ID}
	err := s.inTx(ctx, "settle_payment", func(tx db.Tx) error {
		now := s.now()
		groups, err := s.lockInvoicesTx(ctx, tx, allocations)
		if err != nil {
			return err
		}

		if replayed(groups, charge.ID) {
			result.Groups = groups
			result.Replayed = true
			for _, g := range groups {
				parcels, err := s.lockParcelsTx(ctx, tx, sortedCopy(g.ParcelIDs))
				if err != nil {
					return err
				}
				result.Parcels = append(result.Parcels, parcels...)
			}
			return nil
		}

		shares := make([]billing.InvoiceShare, len(groups))
		for i, g := range groups {
			if g.Status != lifecycle.GroupPendingPayment {
				if err := lifecycle.CheckGroup(g.Status, lifecycle.GroupPaid); err != nil {
					return fmt.Errorf("group %s: %w", g.ID, err)
				}
			}
			if alloc := allocations[i]; alloc.Subtotal != g.Subtotal {
				log.Warn("declared subtotal differs from quote",
					zap.String("group_id", g.ID),
					zap.Stringer("declared", alloc.Subtotal),
					zap.Stringer("quoted", g.Subtotal))
			}
			shares[i] = billing.InvoiceShare{InvoiceID: g.ID, Subtotal: allocations[i].Subtotal, ParcelIDs: g.ParcelIDs}
		}

		alloc, err := billing.Allocate(charge.Amount, shares)
		if err != nil {
			return err
		}

		for i, inv := range alloc.Invoices {
			g := groups[i]
			parcels, err := s.settleInvoiceTx(ctx, tx, g, inv, charge.ID, now)
			if err != nil {
				return err
			}
			result.Groups = append(result.Groups, g)
			result.Parcels = append(result.Parcels, parcels...)
		}

		for _, g := range groups {
			decision, err := s.evaluateReferralTx(ctx, tx, g.OwnerID, g)
			if err != nil {
				return err
			}
			if decision != nil {
				result.Referrals = append(result.Referrals, decision)
			}
		}
		return nil
	})
	if err != nil {
		var mismatch *billing.AllocationMismatchError
		if errors.As(err, &mismatch) {
			s.reportMismatch(ctx, charge, mismatch)
		}
		return nil, err
	}

	if result.Replayed {
		log.Info("charge already settled")
		return result, nil
	}

	metrics.PaymentsSettledTotal.Inc()
	for _, g := range result.Groups {
		metrics.SettledAmountCents.Add(float64(g.Total.Cents()))
	}
	for _, d := range result.Referrals {
		if d.Credited() {
			metrics.ReferralRewardsTotal.Inc()
		}
	}
	log.Info("payment settled", zap.Int("invoices", len(result.Groups)), zap.Stringer("amount", charge.Amount))
	s.cacheParcels(result.Parcels...)
	return result, nil
}

// lockInvoicesTx locks the groups in id order to keep lock acquisition
// consistent, and returns them in allocation order.
func (s *Service) lockInvoicesTx(ctx context.Context, tx db.Tx, allocations []InvoiceAllocation) ([]*model.ShipmentGroup, error) {
	ids := make([]string, len(allocations))
	for i, a := range allocations {
		ids[i] = a.GroupID
	}
	sorted := sortedCopy(ids)

	byID := make(map[string]*model.ShipmentGroup, len(ids))
	for i, id := range sorted {
		if i > 0 && sorted[i-1] == id {
			return nil, fmt.Errorf("%w: %w: %s", ErrInvalidInput, billing.ErrDuplicateShare, id)
		}
		g, err := s.lockGroupTx(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		byID[id] = g
	}

	groups := make([]*model.ShipmentGroup, len(ids))
	for i, id := range ids {
		groups[i] = byID[id]
	}
	return groups, nil
}

func replayed(groups []*model.ShipmentGroup, chargeID string) bool {
	for _, g := range groups {
		if !g.Status.IsSettled() || g.PaymentRef != chargeID {
			return false
		}
	}
	return true
}

func (s *Service) settleInvoiceTx(ctx context.Context, tx db.Tx, g *model.ShipmentGroup, inv billing.InvoiceCharge, chargeID string, now time.Time) ([]*model.Parcel, error) {
	g.Subtotal = inv.Subtotal
	g.ProcessingFee = inv.Fee
	g.Total = inv.Total
	g.PaymentRef = chargeID
	paidAt := now
	g.PaidAt = &paidAt
	if err := s.walkGroup(ctx, tx, g, lifecycle.GroupPaid, "payment "+chargeID, now); err != nil {
		return nil, err
	}
	if err := s.saveGroupTx(ctx, tx, g); err != nil {
		return nil, err
	}

	ids := make([]string, len(inv.Parcels))
	for i, pc := range inv.Parcels {
		ids[i] = pc.ParcelID
	}
	parcels, err := s.lockParcelsTx(ctx, tx, ids)
	if err != nil {
		return nil, err
	}

	for i, p := range parcels {
		pc := inv.Parcels[i]
		p.SettleStorage(now)
		if g.ServiceType.OwnsMembers() {
			p.ShippingSubtotal = pc.Subtotal
			p.ShippingFee = pc.Fee
			p.ShippingTotalPaid = pc.Total
			if err := s.walkParcel(ctx, tx, p, lifecycle.ParcelPaidReadyToShip, "paid by "+g.ShipmentNumber, now); err != nil {
				return nil, err
			}
		}
		if err := s.saveParcelTx(ctx, tx, p); err != nil {
			return nil, err
		}
	}

	err = s.emitTx(ctx, tx, Event{
		Type:       EventGroupPaid,
		OccurredAt: now,
		OwnerID:    g.OwnerID,
		GroupID:    g.ID,
		Status:     string(g.Status),
		Amount:     amountOf(g.Total),
		Data:       map[string]string{"payment_ref": chargeID, "service_type": string(g.ServiceType)},
	})
	if err != nil {
		return nil, err
	}
	return parcels, nil
}

// reportMismatch raises a charge that succeeded at the gateway but cannot be
// attributed to its invoices. The alert is written in its own transaction
// because the settlement itself was rolled back.
func (s *Service) reportMismatch(ctx context.Context, charge GatewayCharge, mismatch *billing.AllocationMismatchError) {
	metrics.AllocationMismatchTotal.Inc()
	s.logger.Error("succeeded charge does not reconcile with its invoices",
		zap.String("charge_id", charge.ID),
		zap.Stringer("charged", mismatch.Charged),
		zap.Stringer("allocated", mismatch.Allocated),
		zap.Stringer("tolerance", mismatch.Tolerance))

	now := s.now()
	err := db.RunInTx(ctx, s.db, func(tx db.Tx) error {
		return s.emitTx(ctx, tx, Event{
			Type:       EventAllocationMismatch,
			OccurredAt: now,
			Amount:     amountOf(mismatch.Charged),
			Data: map[string]string{
				"charge_id": charge.ID,
				"allocated": mismatch.Allocated.String(),
				"tolerance": mismatch.Tolerance.String(),
			},
		})
	})
	if err != nil {
		s.logger.Error("failed to enqueue reconciliation alert", zap.String("charge_id", charge.ID), zap.Error(err))
	}
}

// EvaluateReferralReward evaluates and applies the referral reward for a paid
// group of userID. The user row is locked, so at most one credit is ever
// made however often it is called.
func (s *Service) EvaluateReferralReward(ctx context.Context, userID, groupID string) (*referral.Decision, error) {
	var decision *referral.Decision
	err := s.inTx(ctx, "evaluate_referral", func(tx db.Tx) error {
		g, err := s.lockGroupTx(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if g.OwnerID != userID {
			return fmt.Errorf("%w: group %s", consolidation.ErrNotOwner, g.ID)
		}
		decision, err = s.evaluateReferralTx(ctx, tx, userID, g)
		if err != nil {
			return err
		}
		if decision == nil {
			return fmt.Errorf("user %s: %w", userID, ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if decision.Credited() {
		metrics.ReferralRewardsTotal.Inc()
	}
	return decision, nil
}

// evaluateReferralTx returns nil when the paying user has no wallet record.
func (s *Service) evaluateReferralTx(ctx context.Context, tx db.Tx, userID string, g *model.ShipmentGroup) (*referral.Decision, error) {
	row, err := s.users.GetByIDTx(ctx, tx, userID)
	if errors.Is(err, repository.ErrObjectNotFound) {
		s.logger.Debug("no wallet for paying user, referral skipped", zap.String("user_id", userID))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", userID, err)
	}
	user := userFromRow(row)

	var referrer *model.User
	if user.ReferredBy != nil && *user.ReferredBy != "" && !user.HasCompletedFirstPaidShipment {
		refRow, err := s.users.GetByReferralCodeTx(ctx, tx, *user.ReferredBy)
		switch {
		case err == nil:
			referrer = userFromRow(refRow)
		case !errors.Is(err, repository.ErrObjectNotFound):
			return nil, fmt.Errorf("failed to resolve referral code: %w", err)
		}
	}

	now := s.now()
	decision := s.referrals.Evaluate(user, g, referrer)
	s.referrals.Apply(decision, user, referrer, now)

	if decision.FirstPaidShipment {
		if err := s.users.UpdateTx(ctx, tx, userToRow(user)); err != nil {
			return nil, fmt.Errorf("failed to update user %s: %w", user.ID, err)
		}
	}
	if decision.Credited() {
		if err := s.users.UpdateTx(ctx, tx, userToRow(referrer)); err != nil {
			return nil, fmt.Errorf("failed to credit referrer %s: %w", referrer.ID, err)
		}
		err := s.emitTx(ctx, tx, Event{
			Type:       EventReferralCredited,
			OccurredAt: now,
			OwnerID:    referrer.ID,
			GroupID:    g.ID,
			Amount:     amountOf(decision.Amount),
			Data:       map[string]string{"referred_user_id": user.ID},
		})
		if err != nil {
			return nil, err
		}
	}
	return decision, nil
}
