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

// verifierRepository implements the domain.VerifierRepository interface using GORM.
type verifierRepository struct {
	db *gorm.DB
}

// NewVerifierRepository is the constructor for verifierRepository.
func NewVerifierRepository(db *gorm.DB) repository.VerifierRepository {
	return &verifierRepository{db: db}
}

// Create persists a new verifier record.
func (repo *verifierRepository) Create(ctx context.Context, verifier *entity.Verifier) error {
	if verifier.ID == uuid.Nil {
		verifier.ID = uuid.New()
	}

	verifierM := fromVerifierDomain(verifier)

	if err := repo.db.WithContext(ctx).Create(verifierM).Error; err != nil {
		if isNotNullConstraintViolation(err) {
			return domainerrors.ErrValidationFailed.WrapMessage("missing required verifier information")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create verifier")
	}

	verifier.CreatedAt = verifierM.CreatedAt

	return nil
}

// FindByID retrieves a verifier by its unique ID.
func (repo *verifierRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Verifier, error) {
	var verifierM model.VerifierModel
	err := repo.db.WithContext(ctx).
		Where("id = ?", id).
		First(&verifierM).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrVerifierNotFound
		}

		return nil, errors.Wrap(err, "failed to find verifier by id")
	}

	return toVerifierDomain(&verifierM), nil
}

// Delete removes a verifier record. The delete doubles as the consumption
// gate: whoever deletes the row wins the round trip, everyone else sees
// ErrVerifierNotFound.
func (repo *verifierRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := repo.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&model.VerifierModel{})

	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to delete verifier")
	}

	if result.RowsAffected == 0 {
		return repository.ErrVerifierNotFound
	}

	return nil
}

// DeleteExpired removes all expired verifier records.
func (repo *verifierRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result := repo.db.WithContext(ctx).
		Where("expires_at < ?", time.Now()).
		Delete(&model.VerifierModel{})

	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to delete expired verifiers")
	}

	return result.RowsAffected, nil
}

// --- Mapper Functions ---

// toVerifierDomain converts a GORM VerifierModel to a domain Verifier entity.
func toVerifierDomain(data *model.VerifierModel) *entity.Verifier {
	if data == nil {
		return nil
	}

	return &entity.Verifier{
		ID:           data.ID,
		SignatureSum: data.SignatureSum,
		Provider:     data.Provider,
		RedirectURI:  data.RedirectURI,
		ExpiresAt:    data.ExpiresAt,
		CreatedAt:    data.CreatedAt,
	}
}

// fromVerifierDomain converts a domain Verifier entity to a GORM VerifierModel.
func fromVerifierDomain(data *entity.Verifier) *model.VerifierModel {
	if data == nil {
		return nil
	}

	return &model.VerifierModel{
		ID:           data.ID,
		SignatureSum: data.SignatureSum,
		Provider:     data.Provider,
		RedirectURI:  data.RedirectURI,
		ExpiresAt:    data.ExpiresAt,
		CreatedAt:    data.CreatedAt,
	}
}
