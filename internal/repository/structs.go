package repository

import (
	"errors"
	"time"
)

var (
	ErrObjectNotFound = errors.New("not found")
	// ErrStaleObject is returned by conditional updates whose precondition no
	// longer holds.
	ErrStaleObject = errors.New("row changed concurrently")
)

type Parcel struct {
	ID                string     `db:"id"`
	HubCode           string     `db:"hub_code"`
	CarrierTracking   *string    `db:"carrier_tracking"`
	OwnerID           string     `db:"owner_id"`
	Description       string     `db:"description"`
	Weight            float64    `db:"weight"`
	Length            float64    `db:"length"`
	Width             float64    `db:"width"`
	Height            float64    `db:"height"`
	DeclaredValue     int64      `db:"declared_value"`
	StorageDebt       int64      `db:"storage_debt"`
	StoragePaidUntil  *time.Time `db:"storage_paid_until"`
	StorageInvoiceID  *string    `db:"storage_invoice_id"`
	ShippingSubtotal  int64      `db:"shipping_subtotal"`
	ShippingFee       int64      `db:"shipping_fee"`
	ShippingTotalPaid int64      `db:"shipping_total_paid"`
	Status            string     `db:"status"`
	GroupID           *string    `db:"group_id"`
	ArrivedAt         *time.Time `db:"arrived_at"`
	DeliveryPhotoRef  string     `db:"delivery_photo_ref"`
	SignatureRef      string     `db:"signature_ref"`
	DeliveredBy       string     `db:"delivered_by"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

type ShipmentGroup struct {
	ID              string     `db:"id"`
	ShipmentNumber  string     `db:"shipment_number"`
	OwnerID         string     `db:"owner_id"`
	ServiceType     string     `db:"service_type"`
	Status          string     `db:"status"`
	ParcelIDs       []string   `db:"parcel_ids"`
	Weight          float64    `db:"weight"`
	Length          float64    `db:"length"`
	Width           float64    `db:"width"`
	Height          float64    `db:"height"`
	Subtotal        int64      `db:"subtotal"`
	ProcessingFee   int64      `db:"processing_fee"`
	Total           int64      `db:"total"`
	DeclaredValue   int64      `db:"declared_value"`
	PaymentRef      *string    `db:"payment_ref"`
	CarrierTracking *string    `db:"carrier_tracking"`
	DeliveredBy     string     `db:"delivered_by"`
	PaidAt          *time.Time `db:"paid_at"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

type User struct {
	ID                            string    `db:"id"`
	ReferralCode                  string    `db:"referral_code"`
	ReferredBy                    *string   `db:"referred_by"`
	WalletBalance                 int64     `db:"wallet_balance"`
	HasCompletedFirstPaidShipment bool      `db:"has_completed_first_paid_shipment"`
	CreatedAt                     time.Time `db:"created_at"`
	UpdatedAt                     time.Time `db:"updated_at"`
}

type HistoryEntry struct {
	ID         int64     `db:"id"`
	EntityType string    `db:"entity_type"`
	EntityID   string    `db:"entity_id"`
	Status     string    `db:"status"`
	Note       string    `db:"note"`
	ChangedAt  time.Time `db:"changed_at"`
}

const (
	EntityParcel = "parcel"
	EntityGroup  = "group"
)
