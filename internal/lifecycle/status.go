// Package lifecycle defines the parcel and shipment group state machines.
package lifecycle

import (
	"fmt"
	"strings"
)

type ParcelStatus string

const (
	ParcelPreAlert        ParcelStatus = "PRE_ALERT"
	ParcelReceivedAtHub   ParcelStatus = "RECEIVED_AT_HUB"
	ParcelAwaitingPickup  ParcelStatus = "AWAITING_PICKUP"
	ParcelInProcessing    ParcelStatus = "IN_PROCESSING"
	ParcelPaidReadyToShip ParcelStatus = "PAID_READY_TO_SHIP"
	ParcelInTransit       ParcelStatus = "IN_TRANSIT"
	ParcelOutForDelivery  ParcelStatus = "OUT_FOR_DELIVERY"
	ParcelPendingPickup   ParcelStatus = "PENDING_PICKUP"
	ParcelDelivered       ParcelStatus = "DELIVERED"
	ParcelCancelled       ParcelStatus = "CANCELLED"
)

type GroupStatus string

const (
	GroupPendingProcessing GroupStatus = "PENDING_PROCESSING"
	GroupPendingPayment    GroupStatus = "PENDING_PAYMENT"
	GroupPaid              GroupStatus = "PAID"
	GroupReadyToDispatch   GroupStatus = "READY_TO_DISPATCH"
	GroupShipped           GroupStatus = "SHIPPED"
	GroupDelivered         GroupStatus = "DELIVERED"
	GroupCancelled         GroupStatus = "CANCELLED"
)

var parcels = &machine[ParcelStatus]{
	entity: "parcel",
	next: map[ParcelStatus][]ParcelStatus{
		ParcelPreAlert:        {ParcelReceivedAtHub, ParcelCancelled},
		ParcelReceivedAtHub:   {ParcelAwaitingPickup, ParcelInProcessing, ParcelPendingPickup, ParcelCancelled},
		ParcelAwaitingPickup:  {ParcelInProcessing, ParcelPaidReadyToShip, ParcelPendingPickup, ParcelCancelled},
		ParcelInProcessing:    {ParcelPaidReadyToShip, ParcelReceivedAtHub, ParcelCancelled},
		ParcelPaidReadyToShip: {ParcelInTransit, ParcelPendingPickup, ParcelCancelled},
		ParcelInTransit:       {ParcelOutForDelivery, ParcelCancelled},
		ParcelOutForDelivery:  {ParcelDelivered, ParcelCancelled},
		ParcelPendingPickup:   {ParcelDelivered, ParcelCancelled},
	},
	terminal: map[ParcelStatus]bool{
		ParcelDelivered: true,
		ParcelCancelled: true,
	},
}

var groups = &machine[GroupStatus]{
	entity: "shipment group",
	next: map[GroupStatus][]GroupStatus{
		GroupPendingProcessing: {GroupPendingPayment, GroupCancelled},
		GroupPendingPayment:    {GroupPaid, GroupCancelled},
		GroupPaid:              {GroupReadyToDispatch, GroupCancelled},
		GroupReadyToDispatch:   {GroupShipped, GroupCancelled},
		GroupShipped:           {GroupDelivered, GroupCancelled},
	},
	terminal: map[GroupStatus]bool{
		GroupDelivered: true,
		GroupCancelled: true,
	},
}

func (s ParcelStatus) IsTerminal() bool {
	return parcels.terminal[s]
}

// IsCombinable reports whether a parcel in this status may join a new group.
func (s ParcelStatus) IsCombinable() bool {
	return s == ParcelReceivedAtHub || s == ParcelAwaitingPickup
}

// IsAtHub reports whether the parcel is physically held at the hub and accrues storage.
func (s ParcelStatus) IsAtHub() bool {
	switch s {
	case ParcelReceivedAtHub, ParcelAwaitingPickup, ParcelInProcessing, ParcelPaidReadyToShip, ParcelPendingPickup:
		return true
	}
	return false
}

func (s GroupStatus) IsTerminal() bool {
	return groups.terminal[s]
}

// IsSettled reports whether the group has been paid for.
func (s GroupStatus) IsSettled() bool {
	switch s {
	case GroupPaid, GroupReadyToDispatch, GroupShipped, GroupDelivered:
		return true
	}
	return false
}

// CheckParcel validates a single parcel transition.
func CheckParcel(from, to ParcelStatus) error {
	return parcels.check(from, to)
}

// CheckGroup validates a single group transition.
func CheckGroup(from, to GroupStatus) error {
	return groups.check(from, to)
}

// ParcelPath returns the legal chain of parcel states from "from" to "to".
func ParcelPath(from, to ParcelStatus) ([]ParcelStatus, error) {
	return parcels.path(from, to)
}

// GroupPath returns the legal chain of group states from "from" to "to".
func GroupPath(from, to GroupStatus) ([]GroupStatus, error) {
	return groups.path(from, to)
}

// MemberStatusFor maps a group state to the state its members must be in
// lock-step with. Only shipped, delivered and cancelled groups drive members.
func MemberStatusFor(g GroupStatus) (ParcelStatus, bool) {
	switch g {
	case GroupShipped:
		return ParcelInTransit, true
	case GroupDelivered:
		return ParcelDelivered, true
	case GroupCancelled:
		return ParcelCancelled, true
	}
	return "", false
}

var parcelSynonyms = map[string]ParcelStatus{
	"PREALERT":         ParcelPreAlert,
	"PREALERTA":        ParcelPreAlert,
	"PRE_ALERTA":       ParcelPreAlert,
	"RECEIVED":         ParcelReceivedAtHub,
	"RECIBIDO":         ParcelReceivedAtHub,
	"EN_BODEGA":        ParcelReceivedAtHub,
	"EN_ALMACEN":       ParcelReceivedAtHub,
	"AWAITING":         ParcelAwaitingPickup,
	"PROCESSING":       ParcelInProcessing,
	"EN_PROCESO":       ParcelInProcessing,
	"PAID":             ParcelPaidReadyToShip,
	"PAGADO":           ParcelPaidReadyToShip,
	"READY_TO_SHIP":    ParcelPaidReadyToShip,
	"SHIPPED":          ParcelInTransit,
	"ENVIADO":          ParcelInTransit,
	"EN_TRANSITO":      ParcelInTransit,
	"EN_REPARTO":       ParcelOutForDelivery,
	"PENDIENTE_RETIRO": ParcelPendingPickup,
	"ENTREGADO":        ParcelDelivered,
	"CANCELED":         ParcelCancelled,
	"CANCELADO":        ParcelCancelled,
}

var groupSynonyms = map[string]GroupStatus{
	"PENDING":          GroupPendingProcessing,
	"PROCESSING":       GroupPendingProcessing,
	"EN_PROCESO":       GroupPendingProcessing,
	"PENDIENTE_PAGO":   GroupPendingPayment,
	"AWAITING_PAYMENT": GroupPendingPayment,
	"PAGADO":           GroupPaid,
	"READY":            GroupReadyToDispatch,
	"LISTO":            GroupReadyToDispatch,
	"ENVIADO":          GroupShipped,
	"IN_TRANSIT":       GroupShipped,
	"EN_TRANSITO":      GroupShipped,
	"ENTREGADO":        GroupDelivered,
	"CANCELED":         GroupCancelled,
	"CANCELADO":        GroupCancelled,
}

func canonical(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}

// ParseParcelStatus normalizes a raw status, including legacy synonyms, into
// its canonical value.
func ParseParcelStatus(raw string) (ParcelStatus, error) {
	s := ParcelStatus(canonical(raw))
	if parcels.known(s) {
		return s, nil
	}
	if alias, ok := parcelSynonyms[string(s)]; ok {
		return alias, nil
	}
	return "", fmt.Errorf("%w: parcel status %q", ErrUnknownStatus, raw)
}

// ParseGroupStatus normalizes a raw status, including legacy synonyms, into
// its canonical value.
func ParseGroupStatus(raw string) (GroupStatus, error) {
	s := GroupStatus(canonical(raw))
	if groups.known(s) {
		return s, nil
	}
	if alias, ok := groupSynonyms[string(s)]; ok {
		return alias, nil
	}
	return "", fmt.Errorf("%w: group status %q", ErrUnknownStatus, raw)
}
