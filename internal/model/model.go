// Package model holds the hub's domain entities.
package model

import (
	"time"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/billing"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/lifecycle"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/money"
)

type ServiceType string

const (
	ServiceConsolidation   ServiceType = "CONSOLIDATION"
	ServiceShippingSingle  ServiceType = "SHIPPING_SINGLE"
	ServiceStorageFee      ServiceType = "STORAGE_FEE"
	ServiceWarehousePickup ServiceType = "WAREHOUSE_PICKUP"
)

// ServiceTypeFor classifies a shipment by the number of parcels it carries.
func ServiceTypeFor(parcels int) ServiceType {
	if parcels > 1 {
		return ServiceConsolidation
	}
	return ServiceShippingSingle
}

// OwnsMembers reports whether groups of this type take exclusive ownership of
// their parcels. Storage invoices only bill parcels, they never ship them.
func (t ServiceType) OwnsMembers() bool {
	return t != ServiceStorageFee
}

type Parcel struct {
	ID              string             `json:"id"`
	HubCode         string             `json:"hub_code"`
	CarrierTracking string             `json:"carrier_tracking,omitempty"`
	OwnerID         string             `json:"owner_id"`
	Description     string             `json:"description,omitempty"`
	Weight          float64            `json:"weight"`
	Dimensions      billing.Dimensions `json:"dimensions"`
	DeclaredValue   money.Money        `json:"declared_value"`

	StorageDebt      money.Money `json:"storage_debt"`
	StoragePaidUntil *time.Time  `json:"storage_paid_until,omitempty"`
	StorageInvoiceID *string     `json:"storage_invoice_id,omitempty"`

	ShippingSubtotal  money.Money `json:"shipping_subtotal"`
	ShippingFee       money.Money `json:"shipping_fee"`
	ShippingTotalPaid money.Money `json:"shipping_total_paid"`

	Status    lifecycle.ParcelStatus `json:"status"`
	GroupID   *string                `json:"group_id,omitempty"`
	ArrivedAt *time.Time             `json:"arrived_at,omitempty"`

	DeliveryPhotoRef string `json:"delivery_photo_ref,omitempty"`
	SignatureRef     string `json:"signature_ref,omitempty"`
	DeliveredBy      string `json:"delivered_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Parcel) StorageInput() billing.StorageInput {
	return billing.StorageInput{
		ArrivedAt:  p.ArrivedAt,
		PaidUntil:  p.StoragePaidUntil,
		Dimensions: p.Dimensions,
	}
}

// LiveStorageDebt projects the storage debt at now. Only parcels held at the
// hub accrue storage.
func (p *Parcel) LiveStorageDebt(now time.Time) money.Money {
	if !p.Status.IsAtHub() {
		return money.Zero
	}
	return billing.StorageDebt(p.StorageInput(), now)
}

// Transition moves the parcel one legal step.
func (p *Parcel) Transition(to lifecycle.ParcelStatus, now time.Time) error {
	if err := lifecycle.CheckParcel(p.Status, to); err != nil {
		return err
	}
	p.Status = to
	p.UpdatedAt = now
	return nil
}

// SettleStorage marks storage as paid up to now.
func (p *Parcel) SettleStorage(now time.Time) {
	paid := now
	p.StoragePaidUntil = &paid
	p.StorageDebt = money.Zero
	p.StorageInvoiceID = nil
	p.UpdatedAt = now
}

// ParcelView is a parcel as returned to callers, with its debt projected at read time.
type ParcelView struct {
	*Parcel
	LiveStorageDebt money.Money `json:"live_storage_debt"`
	Blocked         bool        `json:"blocked"`
}

func NewParcelView(p *Parcel, now time.Time) ParcelView {
	debt := p.LiveStorageDebt(now)
	return ParcelView{Parcel: p, LiveStorageDebt: debt, Blocked: billing.IsBlocked(debt)}
}

type ShipmentGroup struct {
	ID             string                `json:"id"`
	ShipmentNumber string                `json:"shipment_number"`
	OwnerID        string                `json:"owner_id"`
	ServiceType    ServiceType           `json:"service_type"`
	Status         lifecycle.GroupStatus `json:"status"`
	ParcelIDs      []string              `json:"parcel_ids"`

	Weight     float64            `json:"weight"`
	Dimensions billing.Dimensions `json:"dimensions"`

	Subtotal      money.Money `json:"subtotal"`
	ProcessingFee money.Money `json:"processing_fee"`
	Total         money.Money `json:"total"`
	DeclaredValue money.Money `json:"declared_value"`

	PaymentRef      string     `json:"payment_ref,omitempty"`
	CarrierTracking string     `json:"carrier_tracking,omitempty"`
	DeliveredBy     string     `json:"delivered_by,omitempty"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transition moves the group one legal step.
func (g *ShipmentGroup) Transition(to lifecycle.GroupStatus, now time.Time) error {
	if err := lifecycle.CheckGroup(g.Status, to); err != nil {
		return err
	}
	g.Status = to
	g.UpdatedAt = now
	return nil
}

type User struct {
	ID                            string      `json:"id"`
	ReferralCode                  string      `json:"referral_code"`
	ReferredBy                    *string     `json:"referred_by,omitempty"`
	WalletBalance                 money.Money `json:"wallet_balance"`
	HasCompletedFirstPaidShipment bool        `json:"has_completed_first_paid_shipment"`
	CreatedAt                     time.Time   `json:"created_at"`
	UpdatedAt                     time.Time   `json:"updated_at"`
}

type HistoryEntry struct {
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Status     string    `json:"status"`
	Note       string    `json:"note,omitempty"`
	ChangedAt  time.Time `json:"changed_at"`
}
