package postgres

import (
	"context"
	"testing"

	"authcore/internal/domain/entity"
	"authcore/internal/domain/repository"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a fresh in-memory SQLite database with the full schema.
// The pool is pinned to one connection because every :memory: connection is
// its own empty database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Discard,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, Migrate(db))

	return db
}

func TestTransactionManager_CommitPersists(t *testing.T) {
	db := newTestDB(t)
	tm := NewTransactionManager(db)
	ctx := context.Background()

	user := &entity.User{Name: "Ada", Email: "ada@example.com"}
	err := tm.Execute(ctx, func(repos repository.RepositoryFactory) error {
		return repos.NewUserRepository().Create(ctx, user)
	})
	require.NoError(t, err)

	found, err := NewUserRepository(db).FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", found.Email)
}

func TestTransactionManager_ErrorRollsBack(t *testing.T) {
	db := newTestDB(t)
	tm := NewTransactionManager(db)
	ctx := context.Background()

	rejected := errors.New("store rejected")
	user := &entity.User{Name: "Ada", Email: "ada@example.com"}

	err := tm.Execute(ctx, func(repos repository.RepositoryFactory) error {
		// Execute runs the callback synchronously, so require is safe here.
		require.NoError(t, repos.NewUserRepository().Create(ctx, user))

		return rejected
	})
	require.ErrorIs(t, err, rejected)

	_, err = NewUserRepository(db).FindByID(ctx, user.ID)
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestTransactionManager_FactoryRepoSeesUncommittedWrites(t *testing.T) {
	db := newTestDB(t)
	tm := NewTransactionManager(db)
	ctx := context.Background()

	err := tm.Execute(ctx, func(repos repository.RepositoryFactory) error {
		user := &entity.User{Name: "Ada", Email: "ada@example.com"}
		if err := repos.NewUserRepository().Create(ctx, user); err != nil {
			return err
		}

		// A repository minted by the same factory shares the transaction.
		found, err := repos.NewUserRepository().FindByID(ctx, user.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, user.ID, found.ID)

		return nil
	})
	require.NoError(t, err)
}

func TestIsSerializationFailure(t *testing.T) {
	assert.True(t, isSerializationFailure(errors.New("ERROR: could not serialize access due to concurrent update (SQLSTATE 40001)")))
	assert.True(t, isSerializationFailure(errors.New("pq: restart transaction: SQLSTATE 40001")))
	assert.False(t, isSerializationFailure(nil))
	assert.False(t, isSerializationFailure(errors.New("duplicate key value violates unique constraint")))
}

func TestConstraintClassifiers(t *testing.T) {
	assert.True(t, isUniqueConstraintViolation(gorm.ErrDuplicatedKey))
	assert.True(t, isUniqueConstraintViolation(errors.New("UNIQUE constraint failed: accounts.provider")))
	assert.False(t, isUniqueConstraintViolation(errors.New("connection refused")))

	assert.True(t, isForeignKeyConstraintViolation(gorm.ErrForeignKeyViolated))
	assert.True(t, isForeignKeyConstraintViolation(errors.New("FOREIGN KEY constraint failed")))

	assert.True(t, isNotNullConstraintViolation(errors.New("NOT NULL constraint failed: users.name")))
	assert.False(t, isNotNullConstraintViolation(errors.New("UNIQUE constraint failed: users.id")))
}
