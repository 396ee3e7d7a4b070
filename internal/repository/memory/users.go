package memory

import (
	"context"
	"fmt"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/hub"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/repository"
)

type UserRepo struct {
	s *Store
}

func (r *UserRepo) CreateTx(ctx context.Context, tx db.Tx, u *repository.User) error {
	t, err := r.s.txFrom(tx)
	if err != nil {
		return err
	}
	r.s.mu.RLock()
	_, exists := r.s.users[u.ID]
	if !exists {
		exists = r.findByCode(u.ReferralCode) != nil
	}
	r.s.mu.RUnlock()
	if exists {
		return fmt.Errorf("%w: user %s already exists", hub.ErrConflict, u.ID)
	}

	row := cloneUser(u)
	r.s.write(t, func() func() {
		r.s.users[row.ID] = row
		return func() { delete(r.s.users, row.ID) }
	})
	return nil
}

// UpdateTx only touches the wallet and the first-shipment flag.
func (r *UserRepo) UpdateTx(ctx context.Context, tx db.Tx, u *repository.User) error {
	t, err := r.s.txFrom(tx)
	if err != nil {
		return err
	}
	var found bool
	r.s.write(t, func() func() {
		prev, ok := r.s.users[u.ID]
		if !ok {
			return nil
		}
		found = true
		row := cloneUser(prev)
		row.WalletBalance = u.WalletBalance
		row.HasCompletedFirstPaidShipment = u.HasCompletedFirstPaidShipment
		row.UpdatedAt = u.UpdatedAt
		r.s.users[row.ID] = row
		return func() { r.s.users[prev.ID] = prev }
	})
	if !found {
		return repository.ErrObjectNotFound
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*repository.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrObjectNotFound
	}
	return cloneUser(u), nil
}

func (r *UserRepo) GetByIDTx(ctx context.Context, tx db.Tx, id string) (*repository.User, error) {
	if _, err := r.s.txFrom(tx); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *UserRepo) GetByReferralCodeTx(ctx context.Context, tx db.Tx, code string) (*repository.User, error) {
	if _, err := r.s.txFrom(tx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u := r.findByCode(code)
	if u == nil {
		return nil, repository.ErrObjectNotFound
	}
	return cloneUser(u), nil
}

func (r *UserRepo) findByCode(code string) *repository.User {
	for _, u := range r.s.users {
		if u.ReferralCode == code {
			return u
		}
	}
	return nil
}
