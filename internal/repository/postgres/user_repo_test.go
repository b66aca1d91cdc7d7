package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/dom/chat-relay/internal/domain"
	"github.com/dom/chat-relay/internal/repository/postgres"
	"github.com/dom/chat-relay/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestUserRepository_Create(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewUserRepository(testDB.Handle())
	ctx := context.Background()

	tests := []struct {
		name    string
		user    *domain.User
		wantErr error
	}{
		{
			name: "successful creation",
			user: &domain.User{
				ID:           uuid.New(),
				Email:        "ana@example.com",
				Name:         "Ana",
				PasswordHash: "hashedpassword",
				CreatedAt:    time.Now(),
				UpdatedAt:    time.Now(),
			},
		},
		{
			name: "duplicate email",
			user: &domain.User{
				ID:           uuid.New(),
				Email:        "ana@example.com", // Same as above
				Name:         "Another Ana",
				PasswordHash: "hashedpassword2",
				CreatedAt:    time.Now(),
				UpdatedAt:    time.Now(),
			},
			wantErr: gorm.ErrDuplicatedKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.Create(ctx, tt.user)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestUserRepository_GetByID(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewUserRepository(testDB.Handle())
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().WithName("Lookup").Build(t, testDB.DB)

	t.Run("existing user", func(t *testing.T) {
		found, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)
		assert.Equal(t, user.Email, found.Email)
		assert.Equal(t, "Lookup", found.Name)
		assert.NotEmpty(t, found.PasswordHash)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := repo.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})
}

func TestUserRepository_GetByEmail(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewUserRepository(testDB.Handle())
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().WithEmail("bob@example.com").Build(t, testDB.DB)

	found, err := repo.GetByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
