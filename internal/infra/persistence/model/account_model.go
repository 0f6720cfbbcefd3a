package model

import (
	"time"

	"github.com/google/uuid"
)

// AccountModel mirrors the 'accounts' table linking provider identities to users.
// The composite unique index carries the one-owner-per-identity guarantee.
type AccountModel struct {
	ID                uuid.UUID `gorm:"type:uuid;primary_key"`
	UserID            uuid.UUID `gorm:"type:uuid;not null;index"`
	Provider          string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_accounts_provider_account_id"`
	ProviderAccountID string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_accounts_provider_account_id"`
	Secret            string    `gorm:"type:text"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName explicitly sets the table name for GORM.
func (AccountModel) TableName() string {
	return "accounts"
}
