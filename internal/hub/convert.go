package hub

import (
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/billing"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/lifecycle"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/model"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/money"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/repository"
)

func parcelFromRow(row *repository.Parcel) *model.Parcel {
	return &model.Parcel{
		ID:                row.ID,
		HubCode:           row.HubCode,
		CarrierTracking:   deref(row.CarrierTracking),
		OwnerID:           row.OwnerID,
		Description:       row.Description,
		Weight:            row.Weight,
		Dimensions:        billing.Dimensions{Length: row.Length, Width: row.Width, Height: row.Height},
		DeclaredValue:     money.FromCents(row.DeclaredValue),
		StorageDebt:       money.FromCents(row.StorageDebt),
		StoragePaidUntil:  row.StoragePaidUntil,
		StorageInvoiceID:  row.StorageInvoiceID,
		ShippingSubtotal:  money.FromCents(row.ShippingSubtotal),
		ShippingFee:       money.FromCents(row.ShippingFee),
		ShippingTotalPaid: money.FromCents(row.ShippingTotalPaid),
		Status:            lifecycle.ParcelStatus(row.Status),
		GroupID:           row.GroupID,
		ArrivedAt:         row.ArrivedAt,
		DeliveryPhotoRef:  row.DeliveryPhotoRef,
		SignatureRef:      row.SignatureRef,
		DeliveredBy:       row.DeliveredBy,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
}

func parcelToRow(p *model.Parcel) *repository.Parcel {
	return &repository.Parcel{
		ID:                p.ID,
		HubCode:           p.HubCode,
		CarrierTracking:   ref(p.CarrierTracking),
		OwnerID:           p.OwnerID,
		Description:       p.Description,
		Weight:            p.Weight,
		Length:            p.Dimensions.Length,
		Width:             p.Dimensions.Width,
		Height:            p.Dimensions.Height,
		DeclaredValue:     p.DeclaredValue.Cents(),
		StorageDebt:       p.StorageDebt.Cents(),
		StoragePaidUntil:  p.StoragePaidUntil,
		StorageInvoiceID:  p.StorageInvoiceID,
		ShippingSubtotal:  p.ShippingSubtotal.Cents(),
		ShippingFee:       p.ShippingFee.Cents(),
		ShippingTotalPaid: p.ShippingTotalPaid.Cents(),
		Status:            string(p.Status),
		GroupID:           p.GroupID,
		ArrivedAt:         p.ArrivedAt,
		DeliveryPhotoRef:  p.DeliveryPhotoRef,
		SignatureRef:      p.SignatureRef,
		DeliveredBy:       p.DeliveredBy,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func groupFromRow(row *repository.ShipmentGroup) *model.ShipmentGroup {
	return &model.ShipmentGroup{
		ID:              row.ID,
		ShipmentNumber:  row.ShipmentNumber,
		OwnerID:         row.OwnerID,
		ServiceType:     model.ServiceType(row.ServiceType),
		Status:          lifecycle.GroupStatus(row.Status),
		ParcelIDs:       append([]string(nil), row.ParcelIDs...),
		Weight:          row.Weight,
		Dimensions:      billing.Dimensions{Length: row.Length, Width: row.Width, Height: row.Height},
		Subtotal:        money.FromCents(row.Subtotal),
		ProcessingFee:   money.FromCents(row.ProcessingFee),
		Total:           money.FromCents(row.Total),
		DeclaredValue:   money.FromCents(row.DeclaredValue),
		PaymentRef:      deref(row.PaymentRef),
		CarrierTracking: deref(row.CarrierTracking),
		DeliveredBy:     row.DeliveredBy,
		PaidAt:          row.PaidAt,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}

func groupToRow(g *model.ShipmentGroup) *repository.ShipmentGroup {
	return &repository.ShipmentGroup{
		ID:              g.ID,
		ShipmentNumber:  g.ShipmentNumber,
		OwnerID:         g.OwnerID,
		ServiceType:     string(g.ServiceType),
		Status:          string(g.Status),
		ParcelIDs:       append([]string(nil), g.ParcelIDs...),
		Weight:          g.Weight,
		Length:          g.Dimensions.Length,
		Width:           g.Dimensions.Width,
		Height:          g.Dimensions.Height,
		Subtotal:        g.Subtotal.Cents(),
		ProcessingFee:   g.ProcessingFee.Cents(),
		Total:           g.Total.Cents(),
		DeclaredValue:   g.DeclaredValue.Cents(),
		PaymentRef:      ref(g.PaymentRef),
		CarrierTracking: ref(g.CarrierTracking),
		DeliveredBy:     g.DeliveredBy,
		PaidAt:          g.PaidAt,
		CreatedAt:       g.CreatedAt,
		UpdatedAt:       g.UpdatedAt,
	}
}

func userFromRow(row *repository.User) *model.User {
	return &model.User{
		ID:                            row.ID,
		ReferralCode:                  row.ReferralCode,
		ReferredBy:                    row.ReferredBy,
		WalletBalance:                 money.FromCents(row.WalletBalance),
		HasCompletedFirstPaidShipment: row.HasCompletedFirstPaidShipment,
		CreatedAt:                     row.CreatedAt,
		UpdatedAt:                     row.UpdatedAt,
	}
}

func userToRow(u *model.User) *repository.User {
	return &repository.User{
		ID:                            u.ID,
		ReferralCode:                  u.ReferralCode,
		ReferredBy:                    u.ReferredBy,
		WalletBalance:                 u.WalletBalance.Cents(),
		HasCompletedFirstPaidShipment: u.HasCompletedFirstPaidShipment,
		CreatedAt:                     u.CreatedAt,
		UpdatedAt:                     u.UpdatedAt,
	}
}

func historyFromRow(row *repository.HistoryEntry) model.HistoryEntry {
	return model.HistoryEntry{
		EntityType: row.EntityType,
		EntityID:   row.EntityID,
		Status:     row.Status,
		Note:       row.Note,
		ChangedAt:  row.ChangedAt,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ref(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
