package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/money"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/repository"
)

type EventType string

const (
	EventPreAlertCreated     EventType = "parcel.pre_alert_created"
	EventParcelReceived      EventType = "parcel.received"
	EventParcelStatusChanged EventType = "parcel.status_changed"
	EventGroupCreated        EventType = "group.created"
	EventGroupQuoted         EventType = "group.quoted"
	EventGroupPaid           EventType = "group.paid"
	EventGroupShipped        EventType = "group.shipped"
	EventGroupDelivered      EventType = "group.delivered"
	EventGroupCancelled      EventType = "group.cancelled"
	EventReferralCredited    EventType = "referral.credited"
	EventAllocationMismatch  EventType = "payment.reconciliation_mismatch"
)

// Event is the notification payload written to the outbox. The consumer
// renders it into customer or staff messages.
type Event struct {
	ID         string            `json:"id"`
	Type       EventType         `json:"type"`
	OccurredAt time.Time         `json:"occurred_at"`
	OwnerID    string            `json:"owner_id,omitempty"`
	ParcelID   string            `json:"parcel_id,omitempty"`
	GroupID    string            `json:"group_id,omitempty"`
	Status     string            `json:"status,omitempty"`
	Amount     *money.Money      `json:"amount,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
}

func amountOf(m money.Money) *money.Money {
	return &m
}

func (s *Service) emitTx(ctx context.Context, tx db.Tx, ev Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", ev.Type, err)
	}

	task := &repository.OutboxTask{
		Topic:   s.topic,
		Payload: payload,
	}
	if err := s.outbox.CreateTx(ctx, tx, task); err != nil {
		return fmt.Errorf("failed to enqueue %s event: %w", ev.Type, err)
	}
	return nil
}
