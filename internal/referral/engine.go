// Package referral decides the one-time wallet reward paid to a referrer
// when the referred user completes their first paid shipment.
package referral

import (
	"time"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/model"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/money"
)

var (
	RewardAmount = money.MustParse("25.00")
	MinSubtotal  = money.MustParse("100.00")
)

type Outcome string

const (
	OutcomeCredited         Outcome = "credited"
	OutcomeNotPaid          Outcome = "group_not_paid"
	OutcomeNotShipment      Outcome = "not_a_shipment"
	OutcomeNotFirstShipment Outcome = "not_first_shipment"
	OutcomeBelowMinimum     Outcome = "below_minimum"
	OutcomeNotReferred      Outcome = "not_referred"
	OutcomeReferrerUnknown  Outcome = "referrer_unknown"
	OutcomeSelfReferral     Outcome = "self_referral"
)

type Decision struct {
	UserID     string      `json:"user_id"`
	GroupID    string      `json:"group_id"`
	ReferrerID string      `json:"referrer_id,omitempty"`
	Amount     money.Money `json:"amount"`
	Outcome    Outcome     `json:"outcome"`

	// FirstPaidShipment is set when group is the user's first paid
	// shipment, whether or not it earns a reward.
	FirstPaidShipment bool `json:"first_paid_shipment"`
}

func (d *Decision) Credited() bool {
	return d.Outcome == OutcomeCredited
}

type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Evaluate decides the reward for group, paid by user. referrer is the user
// that user.ReferredBy resolves to, or nil.
func (e *Engine) Evaluate(user *model.User, group *model.ShipmentGroup, referrer *model.User) *Decision {
	d := &Decision{UserID: user.ID, GroupID: group.ID}

	switch {
	case !group.Status.IsSettled():
		d.Outcome = OutcomeNotPaid
		return d
	case group.ServiceType == model.ServiceStorageFee:
		d.Outcome = OutcomeNotShipment
		return d
	case user.HasCompletedFirstPaidShipment:
		d.Outcome = OutcomeNotFirstShipment
		return d
	}

	d.FirstPaidShipment = true
	switch {
	case group.Subtotal < MinSubtotal:
		d.Outcome = OutcomeBelowMinimum
	case user.ReferredBy == nil || *user.ReferredBy == "":
		d.Outcome = OutcomeNotReferred
	case referrer == nil:
		d.Outcome = OutcomeReferrerUnknown
	case referrer.ID == user.ID:
		d.Outcome = OutcomeSelfReferral
	default:
		d.Outcome = OutcomeCredited
		d.ReferrerID = referrer.ID
		d.Amount = RewardAmount
	}
	return d
}

// Apply records d on the loaded user rows. Both must be persisted in the
// transaction that holds their locks.
func (e *Engine) Apply(d *Decision, user, referrer *model.User, now time.Time) {
	if d.FirstPaidShipment {
		user.HasCompletedFirstPaidShipment = true
		user.UpdatedAt = now
	}
	if d.Credited() && referrer != nil {
		referrer.WalletBalance = referrer.WalletBalance.Add(d.Amount)
		referrer.UpdatedAt = now
	}
}
