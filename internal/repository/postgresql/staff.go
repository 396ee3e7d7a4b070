package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"golang.org/x/crypto/bcrypt"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/db"
)

// StaffRepo holds hub staff credentials used for API basic auth.
type StaffRepo struct {
	db db.DB
}

func NewStaffRepo(db db.DB) *StaffRepo {
	return &StaffRepo{db: db}
}

func (r *StaffRepo) CreateUser(ctx context.Context, username, password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx,
		"INSERT INTO staff (username, password) VALUES ($1, $2)",
		username, string(hashedPassword))
	return err
}

// EnsureStaff creates the account unless a staff member with that name exists.
func (r *StaffRepo) EnsureStaff(ctx context.Context, username, password string) (bool, error) {
	var exists bool
	err := r.db.ExecQueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM staff WHERE username = $1)", username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check staff %s: %w", username, err)
	}
	if exists {
		return false, nil
	}
	if err := r.CreateUser(ctx, username, password); err != nil {
		return false, fmt.Errorf("failed to create staff %s: %w", username, err)
	}
	return true, nil
}

func (r *StaffRepo) ValidateUser(ctx context.Context, username, password string) (bool, error) {
	var hashedPassword string
	err := r.db.ExecQueryRow(ctx,
		"SELECT password FROM staff WHERE username = $1", username).Scan(&hashedPassword)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get staff %s: %w", username, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)); err != nil {
		return false, nil
	}
	return true, nil
}
