// Package consolidation decides which parcels may be shipped together.
package consolidation

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/billing"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/lifecycle"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/model"
)

const MaxParcels = 7

var (
	ErrConflict        = errors.New("conflict")
	ErrAlreadyConsumed = fmt.Errorf("%w: parcel already consumed", ErrConflict)

	ErrNotOwner       = errors.New("parcel belongs to another owner")
	ErrStorageBlocked = errors.New("parcel is blocked by storage debt")
	ErrRuleViolation  = errors.New("consolidation rule violation")
)

type Rule string

const (
	RuleEmpty         Rule = "empty"
	RuleDuplicate     Rule = "duplicate"
	RuleHeavy         Rule = "heavy"
	RuleCardinality   Rule = "cardinality"
	RuleNotCombinable Rule = "not_combinable"
)

type RuleViolation struct {
	Rule   Rule
	Detail string
}

func (e *RuleViolation) Error() string {
	return fmt.Sprintf("%s (%s): %s", ErrRuleViolation, e.Rule, e.Detail)
}

func (e *RuleViolation) Is(target error) bool {
	return target == ErrRuleViolation
}

// GroupAuthorization permits creating exactly one shipment group for the
// listed parcels.
type GroupAuthorization struct {
	OwnerID     string            `json:"owner_id"`
	ParcelIDs   []string          `json:"parcel_ids"`
	ServiceType model.ServiceType `json:"service_type"`
	IssuedAt    time.Time         `json:"issued_at"`
}

type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// Validate runs the shape rules and then checks every parcel against owner
// and now. Parcels must be passed in their current state; callers creating a
// group re-run it on rows locked inside the creating transaction.
func (v *Validator) Validate(ownerID string, parcels []*model.Parcel, now time.Time) (*GroupAuthorization, error) {
	if err := v.CheckShape(parcels); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(parcels))
	for _, p := range parcels {
		if err := v.CheckParcel(ownerID, p, now); err != nil {
			return nil, err
		}
		ids = append(ids, p.ID)
	}
	sort.Strings(ids)

	return &GroupAuthorization{
		OwnerID:     ownerID,
		ParcelIDs:   ids,
		ServiceType: model.ServiceTypeFor(len(ids)),
		IssuedAt:    now,
	}, nil
}

// CheckShape validates the selection as a whole: non-empty, no duplicates,
// heavy parcels alone, at most MaxParcels.
func (v *Validator) CheckShape(parcels []*model.Parcel) error {
	if len(parcels) == 0 {
		return &RuleViolation{Rule: RuleEmpty, Detail: "no parcels selected"}
	}

	seen := make(map[string]struct{}, len(parcels))
	for _, p := range parcels {
		if _, dup := seen[p.ID]; dup {
			return &RuleViolation{Rule: RuleDuplicate, Detail: fmt.Sprintf("parcel %s selected twice", p.ID)}
		}
		seen[p.ID] = struct{}{}
	}

	if len(parcels) > 1 {
		for _, p := range parcels {
			if billing.IsHeavy(p.Weight) {
				return heavyViolation(p)
			}
		}
	}

	if len(parcels) > MaxParcels {
		return &RuleViolation{
			Rule:   RuleCardinality,
			Detail: fmt.Sprintf("%d parcels selected, at most %d allowed", len(parcels), MaxParcels),
		}
	}
	return nil
}

// CanAdd reports whether candidate may join an existing selection.
func (v *Validator) CanAdd(selection []*model.Parcel, candidate *model.Parcel) error {
	if len(selection) == 0 {
		return nil
	}
	for _, p := range selection {
		if billing.IsHeavy(p.Weight) {
			return heavyViolation(p)
		}
	}
	if billing.IsHeavy(candidate.Weight) {
		return heavyViolation(candidate)
	}
	if len(selection)+1 > MaxParcels {
		return &RuleViolation{Rule: RuleCardinality, Detail: fmt.Sprintf("selection already holds %d parcels", len(selection))}
	}
	return nil
}

// CheckParcel validates a single parcel's eligibility at now.
func (v *Validator) CheckParcel(ownerID string, p *model.Parcel, now time.Time) error {
	if p.OwnerID != ownerID {
		return fmt.Errorf("%w: %s", ErrNotOwner, p.ID)
	}
	if p.Status.IsTerminal() {
		return &lifecycle.TerminalStateError{Entity: "parcel " + p.ID, State: string(p.Status)}
	}
	if p.GroupID != nil {
		return fmt.Errorf("%w: %s is in group %s", ErrAlreadyConsumed, p.ID, *p.GroupID)
	}
	if !p.Status.IsCombinable() {
		if isInFlight(p.Status) {
			return fmt.Errorf("%w: %s is %s", ErrAlreadyConsumed, p.ID, p.Status)
		}
		return &RuleViolation{Rule: RuleNotCombinable, Detail: fmt.Sprintf("parcel %s is %s", p.ID, p.Status)}
	}
	if debt := p.LiveStorageDebt(now); billing.IsBlocked(debt) {
		return fmt.Errorf("%w: %s owes %s", ErrStorageBlocked, p.ID, debt)
	}
	return nil
}

func isInFlight(s lifecycle.ParcelStatus) bool {
	switch s {
	case lifecycle.ParcelInProcessing, lifecycle.ParcelPaidReadyToShip, lifecycle.ParcelInTransit,
		lifecycle.ParcelOutForDelivery, lifecycle.ParcelPendingPickup:
		return true
	}
	return false
}

func heavyViolation(p *model.Parcel) error {
	return &RuleViolation{
		Rule:   RuleHeavy,
		Detail: fmt.Sprintf("parcel %s weighs %.2f lb, parcels over %.0f lb ship alone", p.ID, p.Weight, billing.HeavyParcelWeight),
	}
}
