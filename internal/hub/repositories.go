//go:generate mockgen -source ./repositories.go -destination=./mocks/repositories.go -package=mock_hub
package hub

import (
	"context"
	"time"

	"github.com/google/uuid"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/repository"
)

type ParcelRepository interface {
	CreateTx(ctx context.Context, tx db.Tx, parcel *repository.Parcel) error
	UpdateTx(ctx context.Context, tx db.Tx, parcel *repository.Parcel) error
	GetByID(ctx context.Context, id string) (*repository.Parcel, error)
	// GetByIDTx locks the row until the transaction ends.
	GetByIDTx(ctx context.Context, tx db.Tx, id string) (*repository.Parcel, error)
	// GetByIDsTx locks the rows in id order. Missing ids are skipped.
	GetByIDsTx(ctx context.Context, tx db.Tx, ids []string) ([]*repository.Parcel, error)
	GetByCarrierTrackingTx(ctx context.Context, tx db.Tx, tracking string) (*repository.Parcel, error)
	GetByOwnerID(ctx context.Context, ownerID string, limit int, activeOnly bool) ([]*repository.Parcel, error)
	GetAllActive(ctx context.Context) ([]*repository.Parcel, error)
	// AssignGroupTx attaches the parcel to a group only while it is still
	// ungrouped and in expectedStatus, returning repository.ErrStaleObject
	// otherwise.
	AssignGroupTx(ctx context.Context, tx db.Tx, id, groupID, expectedStatus, newStatus string, updatedAt time.Time) error
}

type GroupRepository interface {
	CreateTx(ctx context.Context, tx db.Tx, group *repository.ShipmentGroup) error
	UpdateTx(ctx context.Context, tx db.Tx, group *repository.ShipmentGroup) error
	GetByID(ctx context.Context, id string) (*repository.ShipmentGroup, error)
	GetByIDTx(ctx context.Context, tx db.Tx, id string) (*repository.ShipmentGroup, error)
	GetByOwnerID(ctx context.Context, ownerID string, limit int) ([]*repository.ShipmentGroup, error)
}

type UserRepository interface {
	CreateTx(ctx context.Context, tx db.Tx, user *repository.User) error
	UpdateTx(ctx context.Context, tx db.Tx, user *repository.User) error
	GetByID(ctx context.Context, id string) (*repository.User, error)
	GetByIDTx(ctx context.Context, tx db.Tx, id string) (*repository.User, error)
	GetByReferralCodeTx(ctx context.Context, tx db.Tx, code string) (*repository.User, error)
}

type HistoryRepository interface {
	CreateTx(ctx context.Context, tx db.Tx, entry *repository.HistoryEntry) error
	GetByEntity(ctx context.Context, entityType, entityID string) ([]*repository.HistoryEntry, error)
}

type OutboxTaskRepository interface {
	CreateTx(ctx context.Context, tx db.Tx, task *repository.OutboxTask) error
	GetProcessableTasksTx(ctx context.Context, tx db.Tx, limit, maxAttempts int) ([]*repository.OutboxTask, error)
	UpdateTaskStatusTx(ctx context.Context, tx db.Tx, id uuid.UUID, status repository.TaskStatus, attempts int, lastError *string, completedAt *time.Time) error
	UpdateTaskStatus(ctx context.Context, database db.DB, id uuid.UUID, status repository.TaskStatus, attempts int, lastError *string, completedAt *time.Time) error
}
