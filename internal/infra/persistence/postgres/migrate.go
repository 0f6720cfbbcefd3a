package postgres

import (
	"authcore/internal/errors"
	"authcore/internal/infra/persistence/model"

	"gorm.io/gorm"
)

// Migrate brings the schema up to date for every table the repositories touch.
// Ordering matters: referencing tables come after the tables they point at.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.UserModel{},
		&model.AccountModel{},
		&model.SessionModel{},
		&model.RefreshTokenModel{},
		&model.VerificationCodeModel{},
		&model.VerifierModel{},
		&model.AuditEventModel{},
	)
	if err != nil {
		return errors.Wrap(err, "failed to run schema migration")
	}

	return nil
}
