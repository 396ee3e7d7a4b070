package postgresql

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/hub"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/repository"
)

const userColumns = "id, referral_code, referred_by, wallet_balance, has_completed_first_paid_shipment, created_at, updated_at"

// UserRepo stores customer wallets and referral links.
type UserRepo struct {
	db db.DB
}

func NewUserRepo(db db.DB) hub.UserRepository {
	return &UserRepo{db: db}
}

func (r *UserRepo) CreateTx(ctx context.Context, tx db.Tx, u *repository.User) error {
	_, err := tx.Exec(ctx, `
        INSERT INTO users (`+userColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, u.ID, u.ReferralCode, u.ReferredBy, u.WalletBalance, u.HasCompletedFirstPaidShipment, u.CreatedAt, u.UpdatedAt)
	return conflictOnDuplicate(err, "user", u.ID)
}

func (r *UserRepo) UpdateTx(ctx context.Context, tx db.Tx, u *repository.User) error {
	tag, err := tx.Exec(ctx, `
        UPDATE users
        SET
            wallet_balance = $2,
            has_completed_first_paid_shipment = $3,
            updated_at = $4
        WHERE id = $1
    `, u.ID, u.WalletBalance, u.HasCompletedFirstPaidShipment, u.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrObjectNotFound
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*repository.User, error) {
	var user repository.User
	err := r.db.Get(ctx, &user, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
	return userOrNotFound(&user, err)
}

func (r *UserRepo) GetByIDTx(ctx context.Context, tx db.Tx, id string) (*repository.User, error) {
	var user repository.User
	err := tx.Get(ctx, &user, "SELECT "+userColumns+" FROM users WHERE id = $1 FOR UPDATE", id)
	return userOrNotFound(&user, err)
}

func (r *UserRepo) GetByReferralCodeTx(ctx context.Context, tx db.Tx, code string) (*repository.User, error) {
	var user repository.User
	err := tx.Get(ctx, &user, "SELECT "+userColumns+" FROM users WHERE referral_code = $1 FOR UPDATE", code)
	return userOrNotFound(&user, err)
}

func userOrNotFound(user *repository.User, err error) (*repository.User, error) {
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, err
	}
	return user, nil
}
