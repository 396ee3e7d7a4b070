package memory

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// StaffRepo keeps bcrypt hashes of staff credentials.
type StaffRepo struct {
	s *Store
}

func (s *Store) Staff() *StaffRepo {
	return &StaffRepo{s: s}
}

func (r *StaffRepo) CreateUser(ctx context.Context, username, password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.staff[username]; ok {
		return fmt.Errorf("staff %s: duplicate key", username)
	}
	r.s.staff[username] = hashedPassword
	return nil
}

func (r *StaffRepo) EnsureStaff(ctx context.Context, username, password string) (bool, error) {
	r.s.mu.RLock()
	_, exists := r.s.staff[username]
	r.s.mu.RUnlock()
	if exists {
		return false, nil
	}
	if err := r.CreateUser(ctx, username, password); err != nil {
		return false, err
	}
	return true, nil
}

func (r *StaffRepo) ValidateUser(ctx context.Context, username, password string) (bool, error) {
	r.s.mu.RLock()
	hash, ok := r.s.staff[username]
	r.s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil, nil
}
