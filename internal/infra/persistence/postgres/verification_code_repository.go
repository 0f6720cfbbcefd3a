package postgres

import (
	"context"
	"time"

	"authcore/internal/domain/entity"
	domainerrors "authcore/internal/domain/errors"
	"authcore/internal/domain/repository"
	"authcore/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// verificationCodeRepository implements the domain.VerificationCodeRepository interface using GORM.
type verificationCodeRepository struct {
	db *gorm.DB
}

// NewVerificationCodeRepository is the constructor for verificationCodeRepository.
func NewVerificationCodeRepository(db *gorm.DB) repository.VerificationCodeRepository {
	return &verificationCodeRepository{db: db}
}

// Create persists a new code record.
func (repo *verificationCodeRepository) Create(ctx context.Context, code *entity.VerificationCode) error {
	if code.ID == uuid.Nil {
		code.ID = uuid.New()
	}

	codeM := fromVerificationCodeDomain(code)

	if err := repo.db.WithContext(ctx).Create(codeM).Error; err != nil {
		// Convert PostgreSQL errors to domain errors
		if isNotNullConstraintViolation(err) {
			return domainerrors.ErrValidationFailed.WrapMessage("missing required code information")
		}
		// For other database errors, return a generic database error
		return domainerrors.NewDatabaseExecuteError(err, "failed to create verification code")
	}

	// Update the entity with generated values
	code.CreatedAt = codeM.CreatedAt

	return nil
}

// FindByCodeHash retrieves a code record by its hash, scoped to the provider.
// Used and expired rows are returned as stored; classifying them is the
// caller's job.
func (repo *verificationCodeRepository) FindByCodeHash(ctx context.Context, provider string, codeHash string) (*entity.VerificationCode, error) {
	var codeM model.VerificationCodeModel
	err := repo.db.WithContext(ctx).
		Where("provider = ? AND code_hash = ?", provider, codeHash).
		First(&codeM).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrVerificationCodeNotFound
		}

		return nil, errors.Wrap(err, "failed to find verification code by hash")
	}

	return toVerificationCodeDomain(&codeM), nil
}

// MarkUsed sets the used marker if and only if it is still unset. The guarded
// update is the compare-and-set that makes redemption exactly-once: of two
// concurrent redeemers only one update matches a row, the other reads the
// row back and learns it lost.
func (repo *verificationCodeRepository) MarkUsed(ctx context.Context, id uuid.UUID) error {
	result := repo.db.WithContext(ctx).
		Model(&model.VerificationCodeModel{}).
		Where("id = ? AND used_at IS NULL", id).
		Update("used_at", time.Now())

	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to mark verification code used")
	}

	if result.RowsAffected == 0 {
		// Distinguish a lost race from a vanished row.
		var count int64
		if err := repo.db.WithContext(ctx).
			Model(&model.VerificationCodeModel{}).
			Where("id = ?", id).
			Count(&count).Error; err != nil {
			return errors.Wrap(err, "failed to inspect verification code after no-op update")
		}
		if count > 0 {
			return repository.ErrVerificationCodeConsumed
		}

		return repository.ErrVerificationCodeNotFound
	}

	return nil
}

// Delete removes a single code record.
func (repo *verificationCodeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := repo.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&model.VerificationCodeModel{})

	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to delete verification code")
	}

	// If no rows were affected, it means the code was not found.
	if result.RowsAffected == 0 {
		return repository.ErrVerificationCodeNotFound
	}

	return nil
}

// DeleteByAccountRef removes every code record for the (accountRef, provider)
// pair, so a newly issued code supersedes its predecessors.
func (repo *verificationCodeRepository) DeleteByAccountRef(ctx context.Context, accountRef string, provider string) error {
	err := repo.db.WithContext(ctx).
		Where("account_ref = ? AND provider = ?", accountRef, provider).
		Delete(&model.VerificationCodeModel{}).Error

	if err != nil {
		return errors.Wrap(err, "failed to delete verification codes by account ref")
	}

	return nil
}

// DeleteExpired removes all expired code records.
func (repo *verificationCodeRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result := repo.db.WithContext(ctx).
		Where("expires_at < ?", time.Now()).
		Delete(&model.VerificationCodeModel{})

	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to delete expired verification codes")
	}

	return result.RowsAffected, nil
}

// --- Mapper Functions ---

// toVerificationCodeDomain converts a GORM VerificationCodeModel to a domain VerificationCode entity.
func toVerificationCodeDomain(data *model.VerificationCodeModel) *entity.VerificationCode {
	if data == nil {
		return nil
	}

	return &entity.VerificationCode{
		ID:         data.ID,
		AccountRef: data.AccountRef,
		Provider:   data.Provider,
		CodeHash:   data.CodeHash,
		VerifierID: data.VerifierID,
		Method:     entity.AuthMethod(data.Method),
		UsedAt:     data.UsedAt,
		ExpiresAt:  data.ExpiresAt,
		CreatedAt:  data.CreatedAt,
	}
}

// fromVerificationCodeDomain converts a domain VerificationCode entity to a GORM VerificationCodeModel.
func fromVerificationCodeDomain(data *entity.VerificationCode) *model.VerificationCodeModel {
	if data == nil {
		return nil
	}

	return &model.VerificationCodeModel{
		ID:         data.ID,
		AccountRef: data.AccountRef,
		Provider:   data.Provider,
		CodeHash:   data.CodeHash,
		VerifierID: data.VerifierID,
		Method:     string(data.Method),
		UsedAt:     data.UsedAt,
		ExpiresAt:  data.ExpiresAt,
		CreatedAt:  data.CreatedAt,
	}
}
