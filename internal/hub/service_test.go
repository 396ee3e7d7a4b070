package hub_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/billing"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/cache"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/consolidation"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/hub"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/lifecycle"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/model"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/money"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/referral"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/repository/memory"
)

type fakeClock interface {
	clockz.Clock
	Advance(d time.Duration)
}

type env struct {
	ctx   context.Context
	clock fakeClock
	store *memory.Store
	svc   *hub.Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	clock := clockz.NewFakeClock()
	store := memory.NewStore(memory.WithClock(clock))
	svc := hub.New(store, store.Repositories(),
		hub.WithClock(clock),
		hub.WithLogger(zap.NewNop()),
		hub.WithCache(cache.NewParcelCache(zap.NewNop())),
	)
	return &env{ctx: context.Background(), clock: clock, store: store, svc: svc}
}

func (e *env) intake(t *testing.T, owner string, weight float64) *model.Parcel {
	t.Helper()
	p, err := e.svc.IntakeParcel(e.ctx, hub.IntakeRequest{
		OwnerID:       owner,
		Weight:        weight,
		Dimensions:    billing.Dimensions{Length: 12, Width: 12, Height: 10},
		DeclaredValue: money.MustParse("20.00"),
	})
	require.NoError(t, err)
	return p
}

func (e *env) group(t *testing.T, owner string, parcels ...*model.Parcel) *model.ShipmentGroup {
	t.Helper()
	ids := make([]string, len(parcels))
	for i, p := range parcels {
		ids[i] = p.ID
	}
	auth, err := e.svc.ValidateConsolidation(e.ctx, ids, owner)
	require.NoError(t, err)
	g, err := e.svc.CreateGroup(e.ctx, auth, 0, billing.Dimensions{})
	require.NoError(t, err)
	return g
}

func (e *env) quote(t *testing.T, g *model.ShipmentGroup, subtotal string) *model.ShipmentGroup {
	t.Helper()
	quoted, err := e.svc.QuoteGroup(e.ctx, g.ID, hub.QuoteRequest{Weight: 4, ShippingSubtotal: money.MustParse(subtotal)})
	require.NoError(t, err)
	return quoted
}

func (e *env) pay(t *testing.T, chargeID string, groups ...*model.ShipmentGroup) *hub.Settlement {
	t.Helper()
	var (
		charged money.Money
		allocs  []hub.InvoiceAllocation
	)
	for _, g := range groups {
		charged += g.Total
		allocs = append(allocs, hub.InvoiceAllocation{GroupID: g.ID, Subtotal: g.Subtotal})
	}
	settlement, err := e.svc.SettlePayment(e.ctx, hub.GatewayCharge{ID: chargeID, Status: "succeeded", Amount: charged}, allocs)
	require.NoError(t, err)
	return settlement
}

func (e *env) events(t *testing.T, typ hub.EventType) []hub.Event {
	t.Helper()
	var out []hub.Event
	for _, task := range e.store.Tasks() {
		var ev hub.Event
		require.NoError(t, json.Unmarshal(task.Payload, &ev))
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func TestIntake_PromotesPreAlert(t *testing.T) {
	e := newEnv(t)

	pre, err := e.svc.CreatePreAlert(e.ctx, hub.PreAlertRequest{OwnerID: "u-1", CarrierTracking: "1Z999", Description: "boots"})
	require.NoError(t, err)
	assert.Equal(t, lifecycle.ParcelPreAlert, pre.Status)

	_, err = e.svc.CreatePreAlert(e.ctx, hub.PreAlertRequest{OwnerID: "u-1", CarrierTracking: "1Z999"})
	assert.ErrorIs(t, err, hub.ErrConflict)

	_, err = e.svc.IntakeParcel(e.ctx, hub.IntakeRequest{TrackingCode: "1Z999", OwnerID: "u-2", Weight: 3})
	assert.ErrorIs(t, err, consolidation.ErrNotOwner)

	received, err := e.svc.IntakeParcel(e.ctx, hub.IntakeRequest{TrackingCode: " 1Z999 ", OwnerID: "u-1", Weight: 3})
	require.NoError(t, err)
	assert.Equal(t, pre.ID, received.ID)
	assert.Equal(t, pre.HubCode, received.HubCode)
	assert.Equal(t, lifecycle.ParcelReceivedAtHub, received.Status)
	assert.Equal(t, "boots", received.Description)
	assert.Equal(t, 3.0, received.Weight)
	require.NotNil(t, received.ArrivedAt)

	_, err = e.svc.IntakeParcel(e.ctx, hub.IntakeRequest{TrackingCode: "1Z999", OwnerID: "u-1"})
	assert.ErrorIs(t, err, hub.ErrConflict)

	history, err := e.svc.History(e.ctx, repository.EntityParcel, pre.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, string(lifecycle.ParcelPreAlert), history[0].Status)
	assert.Equal(t, string(lifecycle.ParcelReceivedAtHub), history[1].Status)
	assert.Len(t, e.events(t, hub.EventParcelReceived), 1)
}

func TestCompletePickup(t *testing.T) {
	e := newEnv(t)

	p, err := e.svc.CompletePickup(e.ctx, hub.PickupCompletion{RequestID: "r-1", Kind: hub.PickupLocalDelivery, GoodsArrived: true})
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = e.svc.CompletePickup(e.ctx, hub.PickupCompletion{RequestID: "r-2", Kind: hub.PickupHub})
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = e.svc.CompletePickup(e.ctx, hub.PickupCompletion{
		RequestID:    "r-3",
		Kind:         hub.PickupStorageOnly,
		GoodsArrived: true,
		Intake:       hub.IntakeRequest{OwnerID: "u-1", Weight: 2},
	})
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, lifecycle.ParcelReceivedAtHub, p.Status)

	_, err = e.svc.CompletePickup(e.ctx, hub.PickupCompletion{Kind: "TELEPORT"})
	assert.ErrorIs(t, err, hub.ErrInvalidInput)
}

func TestStorageDebt_BlocksAndSettles(t *testing.T) {
	e := newEnv(t)
	p := e.intake(t, "u-1", 2)

	e.clock.Advance(45 * 24 * time.Hour)

	view, err := e.svc.GetParcel(e.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, money.MustParse("0.94"), view.LiveStorageDebt)
	assert.True(t, view.Blocked)

	_, err = e.svc.ValidateConsolidation(e.ctx, []string{p.ID}, "u-1")
	assert.ErrorIs(t, err, consolidation.ErrStorageBlocked)

	blocked, err := e.svc.BlockedParcels(e.ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, blocked, 1)

	invoice, err := e.svc.CreateStorageInvoice(e.ctx, "u-1", []string{p.ID}, false)
	require.NoError(t, err)
	assert.Equal(t, model.ServiceStorageFee, invoice.ServiceType)
	assert.Equal(t, lifecycle.GroupPendingPayment, invoice.Status)
	assert.Equal(t, money.MustParse("0.94"), invoice.Subtotal)
	assert.Equal(t, billing.WithFee(invoice.Subtotal), invoice.Total)

	_, err = e.svc.CreateStorageInvoice(e.ctx, "u-1", []string{p.ID}, false)
	assert.ErrorIs(t, err, hub.ErrConflict)

	settlement := e.pay(t, "ch-storage", invoice)
	require.Len(t, settlement.Parcels, 1)
	assert.Equal(t, lifecycle.ParcelReceivedAtHub, settlement.Parcels[0].Status)
	assert.Nil(t, settlement.Parcels[0].GroupID)
	assert.Nil(t, settlement.Parcels[0].StorageInvoiceID)
	assert.Empty(t, settlement.Referrals)

	view, err = e.svc.GetParcel(e.ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, view.LiveStorageDebt.IsZero())
	assert.False(t, view.Blocked)

	_, err = e.svc.ValidateConsolidation(e.ctx, []string{p.ID}, "u-1")
	assert.NoError(t, err)
}

func TestCreateGroup_ConflictingSelection(t *testing.T) {
	e := newEnv(t)
	a, b, c := e.intake(t, "u-1", 1), e.intake(t, "u-1", 2), e.intake(t, "u-1", 3)

	g := e.group(t, "u-1", a, b)
	assert.Equal(t, model.ServiceConsolidation, g.ServiceType)
	assert.Equal(t, lifecycle.GroupPendingProcessing, g.Status)
	assert.Equal(t, money.MustParse("40.00"), g.DeclaredValue)

	_, err := e.svc.ValidateConsolidation(e.ctx, []string{b.ID, c.ID}, "u-1")
	assert.ErrorIs(t, err, consolidation.ErrAlreadyConsumed)
	assert.ErrorIs(t, err, hub.ErrConflict)

	single := e.group(t, "u-1", c)
	assert.Equal(t, model.ServiceShippingSingle, single.ServiceType)

	for _, id := range []string{a.ID, b.ID} {
		view, err := e.svc.GetParcel(e.ctx, id)
		require.NoError(t, err)
		assert.Equal(t, lifecycle.ParcelInProcessing, view.Status)
		require.NotNil(t, view.GroupID)
		assert.Equal(t, g.ID, *view.GroupID)
	}
}

func TestCreateGroup_StaleAuthorization(t *testing.T) {
	e := newEnv(t)
	a, b := e.intake(t, "u-1", 1), e.intake(t, "u-1", 2)

	first, err := e.svc.ValidateConsolidation(e.ctx, []string{a.ID, b.ID}, "u-1")
	require.NoError(t, err)
	second, err := e.svc.ValidateConsolidation(e.ctx, []string{b.ID}, "u-1")
	require.NoError(t, err)

	_, err = e.svc.CreateGroup(e.ctx, first, 0, billing.Dimensions{})
	require.NoError(t, err)

	_, err = e.svc.CreateGroup(e.ctx, second, 0, billing.Dimensions{})
	assert.ErrorIs(t, err, hub.ErrConflict)

	view, err := e.svc.GetParcel(e.ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.ParcelInProcessing, view.Status)
}

func TestCreateGroup_ConcurrentNoDoubleConsumption(t *testing.T) {
	e := newEnv(t)
	parcels := make([]*model.Parcel, 6)
	for i := range parcels {
		parcels[i] = e.intake(t, "u-1", float64(i+1))
	}

	selections := [][]int{{0, 1}, {1, 2}, {2, 3}, {3, 4}, {4, 5}, {5, 0}, {0, 2, 4}, {1, 3, 5}, {0}, {5}}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created []*model.ShipmentGroup
	)
	start := make(chan struct{})
	for _, sel := range selections {
		auth := &consolidation.GroupAuthorization{OwnerID: "u-1"}
		for _, i := range sel {
			auth.ParcelIDs = append(auth.ParcelIDs, parcels[i].ID)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			g, err := e.svc.CreateGroup(e.ctx, auth, 0, billing.Dimensions{})
			if err != nil {
				assert.ErrorIs(t, err, hub.ErrConflict)
				return
			}
			mu.Lock()
			created = append(created, g)
			mu.Unlock()
		}()
	}
	close(start)
	wg.Wait()

	require.NotEmpty(t, created)
	owner := make(map[string]string)
	for _, g := range created {
		for _, id := range g.ParcelIDs {
			prev, taken := owner[id]
			require.False(t, taken, "parcel %s in groups %s and %s", id, prev, g.ID)
			owner[id] = g.ID
		}
	}
	for _, p := range parcels {
		view, err := e.svc.GetParcel(e.ctx, p.ID)
		require.NoError(t, err)
		if groupID, ok := owner[p.ID]; ok {
			require.NotNil(t, view.GroupID)
			assert.Equal(t, groupID, *view.GroupID)
			assert.Equal(t, lifecycle.ParcelInProcessing, view.Status)
		} else {
			assert.Nil(t, view.GroupID)
			assert.Equal(t, lifecycle.ParcelReceivedAtHub, view.Status)
		}
	}
}

func TestSettlePayment_FullLifecycle(t *testing.T) {
	e := newEnv(t)

	referrer, err := e.svc.RegisterUser(e.ctx, hub.RegisterUserRequest{ID: "ref-1"})
	require.NoError(t, err)
	_, err = e.svc.RegisterUser(e.ctx, hub.RegisterUserRequest{ID: "u-1", ReferralCode: referrer.ReferralCode})
	require.NoError(t, err)

	a, b := e.intake(t, "u-1", 1), e.intake(t, "u-1", 2)
	g := e.quote(t, e.group(t, "u-1", a, b), "100.00")
	assert.Equal(t, lifecycle.GroupPendingPayment, g.Status)
	assert.Equal(t, money.MustParse("107.27"), g.Total)
	assert.Equal(t, money.MustParse("7.27"), g.ProcessingFee)

	settlement := e.pay(t, "ch-1", g)
	assert.False(t, settlement.Replayed)
	require.Len(t, settlement.Groups, 1)
	paid := settlement.Groups[0]
	assert.Equal(t, lifecycle.GroupPaid, paid.Status)
	assert.Equal(t, "ch-1", paid.PaymentRef)
	require.NotNil(t, paid.PaidAt)

	var sum money.Money
	for _, p := range settlement.Parcels {
		assert.Equal(t, lifecycle.ParcelPaidReadyToShip, p.Status)
		assert.Equal(t, p.ShippingSubtotal+p.ShippingFee, p.ShippingTotalPaid)
		require.NotNil(t, p.StoragePaidUntil)
		sum += p.ShippingTotalPaid
	}
	assert.Equal(t, paid.Total, sum)

	require.Len(t, settlement.Referrals, 1)
	assert.Equal(t, referral.OutcomeCredited, settlement.Referrals[0].Outcome)

	credited, err := e.svc.GetUser(e.ctx, "ref-1")
	require.NoError(t, err)
	assert.Equal(t, referral.RewardAmount, credited.WalletBalance)

	replay := e.pay(t, "ch-1", g)
	assert.True(t, replay.Replayed)
	assert.Empty(t, replay.Referrals)

	decision, err := e.svc.EvaluateReferralReward(e.ctx, "u-1", g.ID)
	require.NoError(t, err)
	assert.Equal(t, referral.OutcomeNotFirstShipment, decision.Outcome)

	credited, err = e.svc.GetUser(e.ctx, "ref-1")
	require.NoError(t, err)
	assert.Equal(t, referral.RewardAmount, credited.WalletBalance)
	assert.Len(t, e.events(t, hub.EventReferralCredited), 1)
	assert.Len(t, e.events(t, hub.EventGroupPaid), 1)
}

func TestSettlePayment_SplitAcrossSevenParcels(t *testing.T) {
	for _, subtotal := range []string{"0.05", "100.00"} {
		t.Run(subtotal, func(t *testing.T) {
			e := newEnv(t)
			parcels := make([]*model.Parcel, consolidation.MaxParcels)
			for i := range parcels {
				parcels[i] = e.intake(t, "u-1", 1)
			}
			g := e.quote(t, e.group(t, "u-1", parcels...), subtotal)

			settlement := e.pay(t, "ch-"+subtotal, g)
			require.Len(t, settlement.Parcels, consolidation.MaxParcels)

			var total, sub money.Money
			for _, p := range settlement.Parcels {
				assert.GreaterOrEqual(t, p.ShippingTotalPaid.Cents(), int64(0), "parcel %s", p.ID)
				assert.GreaterOrEqual(t, p.ShippingSubtotal.Cents(), int64(0), "parcel %s", p.ID)
				total += p.ShippingTotalPaid
				sub += p.ShippingSubtotal
			}
			assert.Equal(t, settlement.Groups[0].Total, total)
			assert.Equal(t, settlement.Groups[0].Subtotal, sub)
		})
	}
}

func TestSettlePayment_MultipleInvoicesCreditOnce(t *testing.T) {
	e := newEnv(t)
	referrer, err := e.svc.RegisterUser(e.ctx, hub.RegisterUserRequest{ID: "ref-1"})
	require.NoError(t, err)
	_, err = e.svc.RegisterUser(e.ctx, hub.RegisterUserRequest{ID: "u-1", ReferralCode: referrer.ReferralCode})
	require.NoError(t, err)

	first := e.quote(t, e.group(t, "u-1", e.intake(t, "u-1", 1)), "150.00")
	second := e.quote(t, e.group(t, "u-1", e.intake(t, "u-1", 2), e.intake(t, "u-1", 3)), "120.00")

	settlement := e.pay(t, "ch-2", first, second)
	require.Len(t, settlement.Referrals, 2)
	assert.Equal(t, referral.OutcomeCredited, settlement.Referrals[0].Outcome)
	assert.Equal(t, first.ID, settlement.Referrals[0].GroupID)
	assert.Equal(t, referral.OutcomeNotFirstShipment, settlement.Referrals[1].Outcome)

	credited, err := e.svc.GetUser(e.ctx, "ref-1")
	require.NoError(t, err)
	assert.Equal(t, referral.RewardAmount, credited.WalletBalance)
}

func TestSettlePayment_BelowMinimumStillConsumesFirstShipment(t *testing.T) {
	e := newEnv(t)
	referrer, err := e.svc.RegisterUser(e.ctx, hub.RegisterUserRequest{ID: "ref-1"})
	require.NoError(t, err)
	_, err = e.svc.RegisterUser(e.ctx, hub.RegisterUserRequest{ID: "u-1", ReferralCode: referrer.ReferralCode})
	require.NoError(t, err)

	small := e.quote(t, e.group(t, "u-1", e.intake(t, "u-1", 1)), "99.99")
	settlement := e.pay(t, "ch-small", small)
	require.Len(t, settlement.Referrals, 1)
	assert.Equal(t, referral.OutcomeBelowMinimum, settlement.Referrals[0].Outcome)

	big := e.quote(t, e.group(t, "u-1", e.intake(t, "u-1", 2)), "300.00")
	settlement = e.pay(t, "ch-big", big)
	assert.Equal(t, referral.OutcomeNotFirstShipment, settlement.Referrals[0].Outcome)

	credited, err := e.svc.GetUser(e.ctx, "ref-1")
	require.NoError(t, err)
	assert.True(t, credited.WalletBalance.IsZero())
}

func TestSettlePayment_Rejections(t *testing.T) {
	e := newEnv(t)
	g := e.quote(t, e.group(t, "u-1", e.intake(t, "u-1", 1), e.intake(t, "u-1", 2)), "100.00")
	allocs := []hub.InvoiceAllocation{{GroupID: g.ID, Subtotal: g.Subtotal}}

	_, err := e.svc.SettlePayment(e.ctx, hub.GatewayCharge{ID: "ch-1", Status: "pending", Amount: g.Total}, allocs)
	assert.ErrorIs(t, err, hub.ErrChargeNotSucceeded)

	_, err = e.svc.SettlePayment(e.ctx, hub.GatewayCharge{ID: "ch-1", Status: "succeeded", Amount: g.Total}, nil)
	assert.ErrorIs(t, err, hub.ErrInvalidInput)

	_, err = e.svc.SettlePayment(e.ctx, hub.GatewayCharge{ID: "ch-1", Status: "succeeded", Amount: g.Total},
		[]hub.InvoiceAllocation{{GroupID: "missing", Subtotal: g.Subtotal}})
	assert.ErrorIs(t, err, hub.ErrNotFound)

	_, err = e.svc.SettlePayment(e.ctx, hub.GatewayCharge{ID: "ch-2", Status: "succeeded", Amount: money.MustParse("107.30")}, allocs)
	var mismatch *billing.AllocationMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, money.MustParse("107.30"), mismatch.Charged)
	assert.Equal(t, money.MustParse("107.27"), mismatch.Allocated)

	alerts := e.events(t, hub.EventAllocationMismatch)
	require.Len(t, alerts, 1)
	assert.Equal(t, "ch-2", alerts[0].Data["charge_id"])

	unchanged, err := e.svc.GetGroup(e.ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.GroupPendingPayment, unchanged.Status)
	assert.Empty(t, unchanged.PaymentRef)

	within, err := e.svc.SettlePayment(e.ctx, hub.GatewayCharge{ID: "ch-3", Status: "Succeeded", Amount: money.MustParse("107.28")}, allocs)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.GroupPaid, within.Groups[0].Status)

	_, err = e.svc.SettlePayment(e.ctx, hub.GatewayCharge{ID: "ch-4", Status: "succeeded", Amount: g.Total}, allocs)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
}

func TestSettlePayment_UnquotedGroup(t *testing.T) {
	e := newEnv(t)
	g := e.group(t, "u-1", e.intake(t, "u-1", 1))

	_, err := e.svc.SettlePayment(e.ctx, hub.GatewayCharge{ID: "ch-1", Status: "succeeded", Amount: money.MustParse("10.73")},
		[]hub.InvoiceAllocation{{GroupID: g.ID, Subtotal: money.MustParse("10.00")}})
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
}

func TestDispatch_GroupLockStep(t *testing.T) {
	e := newEnv(t)
	a, b := e.intake(t, "u-1", 1), e.intake(t, "u-1", 2)
	g := e.quote(t, e.group(t, "u-1", a, b), "100.00")

	_, err := e.svc.Dispatch(e.ctx, hub.DispatchRequest{GroupID: g.ID, Target: "shipped", CarrierTracking: "DHL-1"})
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	e.pay(t, "ch-1", g)

	_, err = e.svc.Dispatch(e.ctx, hub.DispatchRequest{GroupID: g.ID, Target: "shipped"})
	assert.ErrorIs(t, err, hub.ErrInvalidInput)

	_, err = e.svc.Dispatch(e.ctx, hub.DispatchRequest{GroupID: g.ID, Target: "delivered", DeliveredBy: "ana"})
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	shipped, err := e.svc.Dispatch(e.ctx, hub.DispatchRequest{GroupID: g.ID, Target: "in transit", CarrierTracking: "DHL-1"})
	require.NoError(t, err)
	assert.Equal(t, lifecycle.GroupShipped, shipped.Group.Status)
	assert.Equal(t, "DHL-1", shipped.Group.CarrierTracking)
	for _, p := range shipped.Parcels {
		assert.Equal(t, lifecycle.ParcelInTransit, p.Status)
	}

	delivered, err := e.svc.Dispatch(e.ctx, hub.DispatchRequest{GroupID: g.ID, Target: "DELIVERED", DeliveredBy: "ana"})
	require.NoError(t, err)
	assert.Equal(t, lifecycle.GroupDelivered, delivered.Group.Status)
	for _, p := range delivered.Parcels {
		assert.Equal(t, lifecycle.ParcelDelivered, p.Status)
		assert.Equal(t, "ana", p.DeliveredBy)
	}

	history, err := e.svc.History(e.ctx, repository.EntityParcel, a.ID)
	require.NoError(t, err)
	var statuses []string
	for _, h := range history {
		statuses = append(statuses, h.Status)
	}
	assert.Equal(t, []string{
		string(lifecycle.ParcelReceivedAtHub),
		string(lifecycle.ParcelInProcessing),
		string(lifecycle.ParcelPaidReadyToShip),
		string(lifecycle.ParcelInTransit),
		string(lifecycle.ParcelOutForDelivery),
		string(lifecycle.ParcelDelivered),
	}, statuses)

	_, err = e.svc.CancelGroup(e.ctx, g.ID, "too late")
	assert.ErrorIs(t, err, lifecycle.ErrTerminalState)

	_, err = e.svc.Dispatch(e.ctx, hub.DispatchRequest{GroupID: g.ID, Target: "DELIVERED", DeliveredBy: "ana"})
	assert.ErrorIs(t, err, lifecycle.ErrTerminalState)
	assert.NotErrorIs(t, err, lifecycle.ErrInvalidTransition)

	_, err = e.svc.Dispatch(e.ctx, hub.DispatchRequest{GroupID: g.ID, Target: "SHIPPED", CarrierTracking: "DHL-2"})
	assert.ErrorIs(t, err, lifecycle.ErrTerminalState)

	_, err = e.svc.Dispatch(e.ctx, hub.DispatchRequest{ParcelID: a.ID, Target: "DELIVERED", DeliveredBy: "ana"})
	assert.ErrorIs(t, err, lifecycle.ErrTerminalState)

	_, err = e.svc.Dispatch(e.ctx, hub.DispatchRequest{ParcelID: b.ID, Target: "OUT_FOR_DELIVERY"})
	assert.ErrorIs(t, err, lifecycle.ErrTerminalState)

	after, err := e.svc.History(e.ctx, repository.EntityParcel, a.ID)
	require.NoError(t, err)
	assert.Len(t, after, len(history), "rejected dispatches leave no history")
}

func TestDispatch_CancelledParcelIsTerminal(t *testing.T) {
	e := newEnv(t)
	p := e.intake(t, "u-1", 1)
	_, err := e.svc.TransitionParcel(e.ctx, p.ID, lifecycle.ParcelCancelled, "owner request")
	require.NoError(t, err)

	_, err = e.svc.Dispatch(e.ctx, hub.DispatchRequest{ParcelID: p.ID, Target: "DELIVERED", DeliveredBy: "ana"})
	var terminal *lifecycle.TerminalStateError
	require.ErrorAs(t, err, &terminal)
	assert.Equal(t, string(lifecycle.ParcelCancelled), terminal.State)
}

func TestDispatch_ParcelDeliveriesCompleteGroup(t *testing.T) {
	e := newEnv(t)
	a, b := e.intake(t, "u-1", 1), e.intake(t, "u-1", 2)
	g := e.quote(t, e.group(t, "u-1", a, b), "100.00")
	e.pay(t, "ch-1", g)
	_, err := e.svc.Dispatch(e.ctx, hub.DispatchRequest{GroupID: g.ID, Target: "SHIPPED", CarrierTracking: "DHL-1"})
	require.NoError(t, err)

	out, err := e.svc.Dispatch(e.ctx, hub.DispatchRequest{ParcelID: a.ID, Target: "out_for_delivery"})
	require.NoError(t, err)
	assert.Equal(t, lifecycle.ParcelOutForDelivery, out.Parcels[0].Status)

	_, err = e.svc.Dispatch(e.ctx, hub.DispatchRequest{ParcelID: a.ID, Target: "OUT_FOR_DELIVERY"})
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	first, err := e.svc.Dispatch(e.ctx, hub.DispatchRequest{ParcelID: a.ID, Target: "DELIVERED", DeliveredBy: "ana", SignatureRef: "sig-1"})
	require.NoError(t, err)
	assert.Nil(t, first.Group)
	assert.Equal(t, "sig-1", first.Parcels[0].SignatureRef)

	last, err := e.svc.Dispatch(e.ctx, hub.DispatchRequest{ParcelID: b.ID, Target: "DELIVERED", DeliveredBy: "ana", PhotoRef: "photo-1"})
	require.NoError(t, err)
	require.NotNil(t, last.Group)
	assert.Equal(t, lifecycle.GroupDelivered, last.Group.Status)

	stored, err := e.svc.GetGroup(e.ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.GroupDelivered, stored.Status)
}

func TestDispatch_PendingPickup(t *testing.T) {
	e := newEnv(t)
	p := e.intake(t, "u-1", 1)

	_, err := e.svc.TransitionParcel(e.ctx, p.ID, lifecycle.ParcelPendingPickup, "customer collects")
	require.NoError(t, err)

	e.clock.Advance(45 * 24 * time.Hour)
	_, err = e.svc.Dispatch(e.ctx, hub.DispatchRequest{ParcelID: p.ID, Target: "DELIVERED", DeliveredBy: "ana"})
	assert.ErrorIs(t, err, consolidation.ErrStorageBlocked)

	invoice, err := e.svc.CreateStorageInvoice(e.ctx, "u-1", []string{p.ID}, true)
	require.NoError(t, err)
	assert.Equal(t, money.MustParse("0.94").Add(billing.HandlingFee(1)), invoice.Subtotal)
	e.pay(t, "ch-storage", invoice)

	res, err := e.svc.Dispatch(e.ctx, hub.DispatchRequest{ParcelID: p.ID, Target: "DELIVERED", DeliveredBy: "ana"})
	require.NoError(t, err)
	assert.Equal(t, lifecycle.ParcelDelivered, res.Parcels[0].Status)
}

func TestTransitionParcel_ManualTargets(t *testing.T) {
	e := newEnv(t)
	p := e.intake(t, "u-1", 1)

	_, err := e.svc.TransitionParcel(e.ctx, p.ID, lifecycle.ParcelInTransit, "")
	assert.ErrorIs(t, err, hub.ErrManualTransition)

	waiting, err := e.svc.TransitionParcel(e.ctx, p.ID, lifecycle.ParcelAwaitingPickup, "")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.ParcelAwaitingPickup, waiting.Status)

	g := e.group(t, "u-1", waiting)
	_, err = e.svc.TransitionParcel(e.ctx, p.ID, lifecycle.ParcelCancelled, "")
	assert.ErrorIs(t, err, hub.ErrConflict)

	_, err = e.svc.CancelGroup(e.ctx, g.ID, "changed mind")
	require.NoError(t, err)

	cancelled, err := e.svc.TransitionParcel(e.ctx, p.ID, lifecycle.ParcelCancelled, "returned to sender")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.ParcelCancelled, cancelled.Status)

	_, err = e.svc.TransitionParcel(e.ctx, p.ID, lifecycle.ParcelPendingPickup, "")
	assert.ErrorIs(t, err, lifecycle.ErrTerminalState)
}

func TestCancelGroup(t *testing.T) {
	e := newEnv(t)
	a, b := e.intake(t, "u-1", 1), e.intake(t, "u-1", 2)
	g := e.quote(t, e.group(t, "u-1", a, b), "100.00")

	cancelled, err := e.svc.CancelGroup(e.ctx, g.ID, "")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.GroupCancelled, cancelled.Status)

	for _, id := range []string{a.ID, b.ID} {
		view, err := e.svc.GetParcel(e.ctx, id)
		require.NoError(t, err)
		assert.Equal(t, lifecycle.ParcelReceivedAtHub, view.Status)
		assert.Nil(t, view.GroupID)
	}

	regrouped := e.quote(t, e.group(t, "u-1", a, b), "100.00")
	e.pay(t, "ch-1", regrouped)
	_, err = e.svc.CancelGroup(e.ctx, regrouped.ID, "")
	assert.ErrorIs(t, err, hub.ErrRefundRequired)

	_, err = e.svc.Dispatch(e.ctx, hub.DispatchRequest{GroupID: regrouped.ID, Target: "SHIPPED", CarrierTracking: "DHL-9"})
	require.NoError(t, err)
	_, err = e.svc.CancelGroup(e.ctx, regrouped.ID, "lost by carrier")
	require.NoError(t, err)

	for _, id := range []string{a.ID, b.ID} {
		view, err := e.svc.GetParcel(e.ctx, id)
		require.NoError(t, err)
		assert.Equal(t, lifecycle.ParcelCancelled, view.Status)
	}
}

func TestRegisterUser(t *testing.T) {
	e := newEnv(t)

	u, err := e.svc.RegisterUser(e.ctx, hub.RegisterUserRequest{})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.NotEmpty(t, u.ReferralCode)
	assert.Nil(t, u.ReferredBy)

	_, err = e.svc.RegisterUser(e.ctx, hub.RegisterUserRequest{ID: u.ID})
	assert.ErrorIs(t, err, hub.ErrConflict)

	_, err = e.svc.RegisterUser(e.ctx, hub.RegisterUserRequest{ReferralCode: "REFNOPE"})
	assert.ErrorIs(t, err, hub.ErrInvalidInput)

	referred, err := e.svc.RegisterUser(e.ctx, hub.RegisterUserRequest{ReferralCode: u.ReferralCode})
	require.NoError(t, err)
	require.NotNil(t, referred.ReferredBy)
	assert.Equal(t, u.ReferralCode, *referred.ReferredBy)
}

func TestListOwner(t *testing.T) {
	e := newEnv(t)
	for i := 0; i < 3; i++ {
		e.intake(t, "u-1", 1)
		e.clock.Advance(time.Minute)
	}
	other := e.intake(t, "u-2", 1)
	e.group(t, "u-2", other)

	views, err := e.svc.ListOwnerParcels(e.ctx, "u-1", 2, true)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.True(t, views[0].CreatedAt.After(views[1].CreatedAt))

	groups, err := e.svc.ListOwnerGroups(e.ctx, "u-2", 0)
	require.NoError(t, err)
	require.Len(t, groups, 1)

	_, err = e.svc.ListOwnerParcels(e.ctx, "", 0, false)
	assert.ErrorIs(t, err, hub.ErrInvalidInput)

	_, err = e.svc.History(e.ctx, "order", "x")
	assert.ErrorIs(t, err, hub.ErrInvalidInput)

	_, err = e.svc.GetGroup(e.ctx, "missing")
	assert.ErrorIs(t, err, hub.ErrNotFound)
}

func ExampleComputeStorageDebt() {
	arrived := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p := &model.Parcel{
		Status:     lifecycle.ParcelReceivedAtHub,
		ArrivedAt:  &arrived,
		Dimensions: billing.Dimensions{Length: 12, Width: 12, Height: 10},
	}
	fmt.Println(hub.ComputeStorageDebt(p, arrived.AddDate(0, 0, 45)))
	// Output: 0.94
}
