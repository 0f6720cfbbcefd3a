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
	"gorm.io/gorm"
)

func createTestUser(t *testing.T, db *gorm.DB, name string) *entity.User {
	t.Helper()

	user := &entity.User{Name: name, Email: name + "@example.com"}
	require.NoError(t, NewUserRepository(db).Create(context.Background(), user))

	return user
}

func TestAccountRepository_CreateAndFindByProvider(t *testing.T) {
	db := newTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()
	user := createTestUser(t, db, "ada")

	account := &entity.Account{
		UserID:            user.ID,
		Provider:          "google",
		ProviderAccountID: "g-100",
		Secret:            "refresh-token-material",
	}
	require.NoError(t, repo.Create(ctx, account))
	require.NotEqual(t, uuid.Nil, account.ID)

	found, err := repo.FindByProvider(ctx, "google", "g-100")
	require.NoError(t, err)
	assert.Equal(t, account.ID, found.ID)
	assert.Equal(t, user.ID, found.UserID)
	assert.Equal(t, "refresh-token-material", found.Secret)

	_, err = repo.FindByProvider(ctx, "github", "g-100")
	assert.ErrorIs(t, err, repository.ErrAccountNotFound)
}

func TestAccountRepository_DuplicatePairRejected(t *testing.T) {
	db := newTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()
	first := createTestUser(t, db, "ada")
	second := createTestUser(t, db, "grace")

	require.NoError(t, repo.Create(ctx, &entity.Account{
		UserID:            first.ID,
		Provider:          "google",
		ProviderAccountID: "g-100",
	}))

	// Same provider identity under a different user must hit the composite
	// unique index.
	err := repo.Create(ctx, &entity.Account{
		UserID:            second.ID,
		Provider:          "google",
		ProviderAccountID: "g-100",
	})
	assert.ErrorIs(t, err, repository.ErrAccountDuplicate)

	// The same external ID under another provider is a different identity.
	require.NoError(t, repo.Create(ctx, &entity.Account{
		UserID:            second.ID,
		Provider:          "github",
		ProviderAccountID: "g-100",
	}))
}

func TestAccountRepository_FindByUserIDOrdersByCreation(t *testing.T) {
	db := newTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()
	user := createTestUser(t, db, "ada")

	base := time.Now().Add(-time.Hour)
	providers := []string{"google", "github", "email"}
	for i, provider := range providers {
		require.NoError(t, repo.Create(ctx, &entity.Account{
			UserID:            user.ID,
			Provider:          provider,
			ProviderAccountID: "id-" + provider,
			CreatedAt:         base.Add(time.Duration(i) * time.Minute),
		}))
	}

	accounts, err := repo.FindByUserID(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, accounts, 3)
	for i, account := range accounts {
		assert.Equal(t, providers[i], account.Provider)
	}
}

func TestAccountRepository_UpdateSecret(t *testing.T) {
	db := newTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()
	user := createTestUser(t, db, "ada")

	account := &entity.Account{
		UserID:            user.ID,
		Provider:          "google",
		ProviderAccountID: "g-100",
		Secret:            "old",
	}
	require.NoError(t, repo.Create(ctx, account))

	require.NoError(t, repo.UpdateSecret(ctx, account.ID, "new"))

	found, err := repo.FindByProvider(ctx, "google", "g-100")
	require.NoError(t, err)
	assert.Equal(t, "new", found.Secret)

	err = repo.UpdateSecret(ctx, uuid.New(), "orphan")
	assert.ErrorIs(t, err, repository.ErrAccountNotFound)
}

func TestAccountRepository_DeleteByUserIDKeepsOthers(t *testing.T) {
	db := newTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()
	ada := createTestUser(t, db, "ada")
	grace := createTestUser(t, db, "grace")

	require.NoError(t, repo.Create(ctx, &entity.Account{UserID: ada.ID, Provider: "google", ProviderAccountID: "g-1"}))
	require.NoError(t, repo.Create(ctx, &entity.Account{UserID: ada.ID, Provider: "github", ProviderAccountID: "h-1"}))
	require.NoError(t, repo.Create(ctx, &entity.Account{UserID: grace.ID, Provider: "google", ProviderAccountID: "g-2"}))

	require.NoError(t, repo.DeleteByUserID(ctx, ada.ID))

	gone, err := repo.FindByUserID(ctx, ada.ID)
	require.NoError(t, err)
	assert.Empty(t, gone)

	kept, err := repo.FindByUserID(ctx, grace.ID)
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}
