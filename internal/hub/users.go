package hub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/model"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/repository"
)

type RegisterUserRequest struct {
	// ID is the customer id issued by the account service. Generated when empty.
	ID string
	// ReferralCode is the code of the user who referred this one, if any.
	ReferralCode string
}

// RegisterUser creates the wallet record of a customer with a fresh referral
// code of their own. An unknown referral code is rejected.
func (s *Service) RegisterUser(ctx context.Context, req RegisterUserRequest) (*model.User, error) {
	now := s.now()
	u := &model.User{
		ID:           strings.TrimSpace(req.ID),
		ReferralCode: newReferralCode(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}

	err := s.inTx(ctx, "register_user", func(tx db.Tx) error {
		if _, err := s.users.GetByIDTx(ctx, tx, u.ID); err == nil {
			return fmt.Errorf("%w: user %s already exists", ErrConflict, u.ID)
		} else if !errors.Is(err, repository.ErrObjectNotFound) {
			return fmt.Errorf("failed to get user %s: %w", u.ID, err)
		}

		if code := strings.ToUpper(strings.TrimSpace(req.ReferralCode)); code != "" {
			if _, err := s.users.GetByReferralCodeTx(ctx, tx, code); err != nil {
				if errors.Is(err, repository.ErrObjectNotFound) {
					return fmt.Errorf("%w: unknown referral code %s", ErrInvalidInput, code)
				}
				return fmt.Errorf("failed to resolve referral code: %w", err)
			}
			u.ReferredBy = &code
		}

		if err := s.users.CreateTx(ctx, tx, userToRow(u)); err != nil {
			return fmt.Errorf("failed to add user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (*model.User, error) {
	row, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("user", id, err)
	}
	return userFromRow(row), nil
}
