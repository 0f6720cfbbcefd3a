package model

import (
	"time"

	"github.com/google/uuid"
)

// VerificationCodeModel mirrors the 'verification_codes' table. Only the hash of
// a code is stored; the raw secret exists nowhere but the delivery channel.
// used_at stays populated after redemption so a replayed code is told apart
// from one that never existed.
type VerificationCodeModel struct {
	ID         uuid.UUID  `gorm:"type:uuid;primary_key"`
	AccountRef string     `gorm:"type:varchar(255);not null;index:idx_codes_provider_account_ref,priority:2"`
	Provider   string     `gorm:"type:varchar(50);not null;index:idx_codes_provider_account_ref,priority:1;uniqueIndex:idx_codes_provider_code_hash,priority:1"`
	CodeHash   string     `gorm:"type:varchar(128);not null;uniqueIndex:idx_codes_provider_code_hash,priority:2"`
	VerifierID *uuid.UUID `gorm:"type:uuid"`
	Method     string     `gorm:"type:varchar(20);not null"`
	UsedAt     *time.Time
	ExpiresAt  time.Time `gorm:"not null;index"`
	CreatedAt  time.Time
}

// TableName explicitly sets the table name for GORM.
func (VerificationCodeModel) TableName() string {
	return "verification_codes"
}

// VerifierModel mirrors the 'verifiers' table holding one-time grant state for
// redirect sign-ins. Rows are deleted on consumption, so presence means the
// grant is still open.
type VerifierModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key"`
	SignatureSum string    `gorm:"type:varchar(128);not null"`
	Provider     string    `gorm:"type:varchar(50);not null"`
	RedirectURI  string    `gorm:"type:text"`
	ExpiresAt    time.Time `gorm:"not null;index"`
	CreatedAt    time.Time
}

// TableName explicitly sets the table name for GORM.
func (VerifierModel) TableName() string {
	return "verifiers"
}
