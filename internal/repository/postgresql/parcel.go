package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/hub"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/repository"
)

const parcelColumns = `id, hub_code, carrier_tracking, owner_id, description, weight, length, width, height,
            declared_value, storage_debt, storage_paid_until, storage_invoice_id,
            shipping_subtotal, shipping_fee, shipping_total_paid, status, group_id, arrived_at,
            delivery_photo_ref, signature_ref, delivered_by, created_at, updated_at`

type ParcelRepo struct {
	db db.DB
}

func NewParcelRepo(db db.DB) hub.ParcelRepository {
	return &ParcelRepo{db: db}
}

func (r *ParcelRepo) CreateTx(ctx context.Context, tx db.Tx, p *repository.Parcel) error {
	_, err := tx.Exec(ctx, `
        INSERT INTO parcels (`+parcelColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
    `, p.ID, p.HubCode, p.CarrierTracking, p.OwnerID, p.Description, p.Weight, p.Length, p.Width, p.Height,
		p.DeclaredValue, p.StorageDebt, p.StoragePaidUntil, p.StorageInvoiceID,
		p.ShippingSubtotal, p.ShippingFee, p.ShippingTotalPaid, p.Status, p.GroupID, p.ArrivedAt,
		p.DeliveryPhotoRef, p.SignatureRef, p.DeliveredBy, p.CreatedAt, p.UpdatedAt)
	return conflictOnDuplicate(err, "parcel", parcelKey(p))
}

func parcelKey(p *repository.Parcel) string {
	if p.CarrierTracking != nil {
		return *p.CarrierTracking
	}
	return p.ID
}

func (r *ParcelRepo) UpdateTx(ctx context.Context, tx db.Tx, p *repository.Parcel) error {
	tag, err := tx.Exec(ctx, `
        UPDATE parcels
        SET
            carrier_tracking = $2,
            description = $3,
            weight = $4,
            length = $5,
            width = $6,
            height = $7,
            declared_value = $8,
            storage_debt = $9,
            storage_paid_until = $10,
            storage_invoice_id = $11,
            shipping_subtotal = $12,
            shipping_fee = $13,
            shipping_total_paid = $14,
            status = $15,
            group_id = $16,
            arrived_at = $17,
            delivery_photo_ref = $18,
            signature_ref = $19,
            delivered_by = $20,
            updated_at = $21
        WHERE id = $1
    `, p.ID, p.CarrierTracking, p.Description, p.Weight, p.Length, p.Width, p.Height,
		p.DeclaredValue, p.StorageDebt, p.StoragePaidUntil, p.StorageInvoiceID,
		p.ShippingSubtotal, p.ShippingFee, p.ShippingTotalPaid, p.Status, p.GroupID, p.ArrivedAt,
		p.DeliveryPhotoRef, p.SignatureRef, p.DeliveredBy, p.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrObjectNotFound
	}
	return nil
}

func (r *ParcelRepo) GetByID(ctx context.Context, id string) (*repository.Parcel, error) {
	var parcel repository.Parcel
	err := r.db.Get(ctx, &parcel, "SELECT "+parcelColumns+" FROM parcels WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, err
	}
	return &parcel, nil
}

func (r *ParcelRepo) GetByIDTx(ctx context.Context, tx db.Tx, id string) (*repository.Parcel, error) {
	var parcel repository.Parcel
	err := tx.Get(ctx, &parcel, "SELECT "+parcelColumns+" FROM parcels WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, err
	}
	return &parcel, nil
}

func (r *ParcelRepo) GetByIDsTx(ctx context.Context, tx db.Tx, ids []string) ([]*repository.Parcel, error) {
	var parcels []*repository.Parcel
	err := tx.Select(ctx, &parcels, `
        SELECT `+parcelColumns+` FROM parcels
        WHERE id = ANY($1)
        ORDER BY id
        FOR UPDATE
    `, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to lock parcels: %w", err)
	}
	return parcels, nil
}

func (r *ParcelRepo) GetByCarrierTrackingTx(ctx context.Context, tx db.Tx, tracking string) (*repository.Parcel, error) {
	var parcel repository.Parcel
	err := tx.Get(ctx, &parcel, "SELECT "+parcelColumns+" FROM parcels WHERE carrier_tracking = $1 FOR UPDATE", tracking)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, err
	}
	return &parcel, nil
}

func (r *ParcelRepo) GetByOwnerID(ctx context.Context, ownerID string, limit int, activeOnly bool) ([]*repository.Parcel, error) {
	query := "SELECT " + parcelColumns + " FROM parcels WHERE owner_id = $1"
	args := []interface{}{ownerID}

	if activeOnly {
		query += " AND status NOT IN ('DELIVERED', 'CANCELLED')"
	}

	query += " ORDER BY created_at DESC"

	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	var parcels []*repository.Parcel
	err := r.db.Select(ctx, &parcels, query, args...)
	return parcels, err
}

func (r *ParcelRepo) GetAllActive(ctx context.Context) ([]*repository.Parcel, error) {
	query := `
        SELECT ` + parcelColumns + ` FROM parcels
        WHERE status NOT IN ('DELIVERED', 'CANCELLED')
        ORDER BY created_at ASC
    `
	var parcels []*repository.Parcel
	err := r.db.Select(ctx, &parcels, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get all active parcels: %w", err)
	}
	return parcels, nil
}

func (r *ParcelRepo) AssignGroupTx(ctx context.Context, tx db.Tx, id, groupID, expectedStatus, newStatus string, updatedAt time.Time) error {
	tag, err := tx.Exec(ctx, `
        UPDATE parcels
        SET group_id = $2, status = $4, updated_at = $5
        WHERE id = $1 AND group_id IS NULL AND status = $3
    `, id, groupID, expectedStatus, newStatus, updatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrStaleObject
	}
	return nil
}
