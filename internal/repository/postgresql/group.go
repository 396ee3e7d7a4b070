package postgresql

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/hub"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/repository"
)

const groupColumns = `id, shipment_number, owner_id, service_type, status, parcel_ids, weight, length, width, height,
            subtotal, processing_fee, total, declared_value, payment_ref, carrier_tracking, delivered_by,
            paid_at, created_at, updated_at`

type GroupRepo struct {
	db db.DB
}

func NewGroupRepo(db db.DB) hub.GroupRepository {
	return &GroupRepo{db: db}
}

func (r *GroupRepo) CreateTx(ctx context.Context, tx db.Tx, g *repository.ShipmentGroup) error {
	_, err := tx.Exec(ctx, `
        INSERT INTO shipment_groups (`+groupColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
    `, g.ID, g.ShipmentNumber, g.OwnerID, g.ServiceType, g.Status, g.ParcelIDs, g.Weight, g.Length, g.Width, g.Height,
		g.Subtotal, g.ProcessingFee, g.Total, g.DeclaredValue, g.PaymentRef, g.CarrierTracking, g.DeliveredBy,
		g.PaidAt, g.CreatedAt, g.UpdatedAt)
	return conflictOnDuplicate(err, "shipment group", g.ID)
}

// UpdateTx never rewrites parcel_ids: membership is fixed at creation.
func (r *GroupRepo) UpdateTx(ctx context.Context, tx db.Tx, g *repository.ShipmentGroup) error {
	tag, err := tx.Exec(ctx, `
        UPDATE shipment_groups
        SET
            status = $2,
            weight = $3,
            length = $4,
            width = $5,
            height = $6,
            subtotal = $7,
            processing_fee = $8,
            total = $9,
            declared_value = $10,
            payment_ref = $11,
            carrier_tracking = $12,
            delivered_by = $13,
            paid_at = $14,
            updated_at = $15
        WHERE id = $1
    `, g.ID, g.Status, g.Weight, g.Length, g.Width, g.Height,
		g.Subtotal, g.ProcessingFee, g.Total, g.DeclaredValue, g.PaymentRef, g.CarrierTracking, g.DeliveredBy,
		g.PaidAt, g.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrObjectNotFound
	}
	return nil
}

func (r *GroupRepo) GetByID(ctx context.Context, id string) (*repository.ShipmentGroup, error) {
	var group repository.ShipmentGroup
	err := r.db.Get(ctx, &group, "SELECT "+groupColumns+" FROM shipment_groups WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, err
	}
	return &group, nil
}

func (r *GroupRepo) GetByIDTx(ctx context.Context, tx db.Tx, id string) (*repository.ShipmentGroup, error) {
	var group repository.ShipmentGroup
	err := tx.Get(ctx, &group, "SELECT "+groupColumns+" FROM shipment_groups WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, err
	}
	return &group, nil
}

func (r *GroupRepo) GetByOwnerID(ctx context.Context, ownerID string, limit int) ([]*repository.ShipmentGroup, error) {
	query := "SELECT " + groupColumns + " FROM shipment_groups WHERE owner_id = $1 ORDER BY created_at DESC"
	args := []interface{}{ownerID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	var groups []*repository.ShipmentGroup
	err := r.db.Select(ctx, &groups, query, args...)
	return groups, err
}
