package model

import (
	"time"

	"github.com/google/uuid"
)

// UserModel mirrors the 'users' table. Primary keys are generated
// application-side (time-ordered UUIDv7) so the schema carries no
// engine-specific default.
// Email is deliberately NOT unique: several users may hold the same unverified
// email, and the single-owner rule for verified identities is enforced at
// linking time, not by the schema.
type UserModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key"`
	Name          string    `gorm:"type:varchar(100)"`
	Email         string    `gorm:"type:varchar(255);index"`
	EmailVerified *time.Time
	Phone         string `gorm:"type:varchar(32);index"`
	PhoneVerified *time.Time
	AvatarURL     string `gorm:"type:text"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Accounts []AccountModel `gorm:"foreignKey:UserID"`
	Sessions []SessionModel `gorm:"foreignKey:UserID"`
}

// TableName explicitly sets the table name for GORM.
func (UserModel) TableName() string {
	return "users"
}
