package postgres

import (
	"context"
	"testing"
	"time"

	"authcore/internal/domain/entity"
	"authcore/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_CreateAndFindByID(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := &entity.User{
		Name:      "Ada",
		Email:     "ada@example.com",
		AvatarURL: "https://cdn.example.com/ada.png",
	}
	require.NoError(t, repo.Create(ctx, user))

	require.NotEqual(t, uuid.Nil, user.ID)
	assert.False(t, user.CreatedAt.IsZero())

	found, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
	assert.Equal(t, "Ada", found.Name)
	assert.Equal(t, "ada@example.com", found.Email)
	assert.Nil(t, found.EmailVerified)
	assert.Nil(t, found.PhoneVerified)
	assert.Equal(t, "https://cdn.example.com/ada.png", found.AvatarURL)
}

func TestUserRepository_FindByIDMissing(t *testing.T) {
	db := newTestDB(t)

	_, err := NewUserRepository(db).FindByID(context.Background(), uuid.New())

	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestUserRepository_FindByVerifiedEmailSkipsUnverified(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	now := time.Now()
	owner := &entity.User{Name: "Owner", Email: "shared@example.com", EmailVerified: &now}
	require.NoError(t, repo.Create(ctx, owner))

	// A second user may hold the same address unverified; the schema allows it
	// and the lookup must not return it.
	claimant := &entity.User{Name: "Claimant", Email: "shared@example.com"}
	require.NoError(t, repo.Create(ctx, claimant))

	matches, err := repo.FindByVerifiedEmail(ctx, "shared@example.com")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, owner.ID, matches[0].ID)

	none, err := repo.FindByVerifiedEmail(ctx, "absent@example.com")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUserRepository_FindByVerifiedPhoneSkipsUnverified(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	now := time.Now()
	owner := &entity.User{Name: "Owner", Phone: "+15550100", PhoneVerified: &now}
	require.NoError(t, repo.Create(ctx, owner))

	claimant := &entity.User{Name: "Claimant", Phone: "+15550100"}
	require.NoError(t, repo.Create(ctx, claimant))

	matches, err := repo.FindByVerifiedPhone(ctx, "+15550100")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, owner.ID, matches[0].ID)
}

func TestUserRepository_UpdatePersistsVerification(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := &entity.User{Name: "Ada", Email: "ada@example.com"}
	require.NoError(t, repo.Create(ctx, user))

	verifiedAt := time.Now()
	user.Name = "Ada Lovelace"
	user.EmailVerified = &verifiedAt
	require.NoError(t, repo.Update(ctx, user))

	found, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", found.Name)
	require.NotNil(t, found.EmailVerified)
	assert.WithinDuration(t, verifiedAt, *found.EmailVerified, time.Second)
}
