package postgresql_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	mock_database "gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/db/mocks"
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/repository/postgresql"
)

type fakeRow struct {
	value any
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	switch d := dest[0].(type) {
	case *string:
		*d = r.value.(string)
	case *bool:
		*d = r.value.(bool)
	}
	return nil
}

func TestStaffRepo_ValidateUser(t *testing.T) {
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	tests := []struct {
		name     string
		row      fakeRow
		password string
		want     bool
		wantErr  bool
	}{
		{name: "valid", row: fakeRow{value: string(hash)}, password: "secret", want: true},
		{name: "wrong password", row: fakeRow{value: string(hash)}, password: "nope", want: false},
		{name: "unknown staff", row: fakeRow{err: pgx.ErrNoRows}, password: "secret", want: false},
		{name: "db error", row: fakeRow{err: errors.New("connection reset")}, password: "secret", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockDB := mock_database.NewMockDB(ctrl)
			repo := postgresql.NewStaffRepo(mockDB)

			mockDB.EXPECT().ExecQueryRow(gomock.Any(), gomock.Any(), gomock.Eq("admin")).Return(tt.row)

			ok, err := repo.ValidateUser(ctx, "admin", tt.password)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestStaffRepo_EnsureStaff(t *testing.T) {
	ctx := context.Background()

	t.Run("creates missing staff", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewStaffRepo(mockDB)

		mockDB.EXPECT().ExecQueryRow(gomock.Any(), gomock.Any(), gomock.Eq("admin")).Return(fakeRow{value: false})
		mockDB.EXPECT().Exec(gomock.Any(), gomock.Any(), gomock.Eq("admin"), gomock.Any()).Return(nil, nil)

		created, err := repo.EnsureStaff(ctx, "admin", "secret")
		assert.NoError(t, err)
		assert.True(t, created)
	})

	t.Run("keeps existing staff", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewStaffRepo(mockDB)

		mockDB.EXPECT().ExecQueryRow(gomock.Any(), gomock.Any(), gomock.Eq("admin")).Return(fakeRow{value: true})

		created, err := repo.EnsureStaff(ctx, "admin", "secret")
		assert.NoError(t, err)
		assert.False(t, created)
	})
}
