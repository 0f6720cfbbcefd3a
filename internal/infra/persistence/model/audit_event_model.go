package model

import (
	"time"

	"github.com/google/uuid"
)

// AuditEventModel mirrors the 'audit_events' table. The primary key is derived
// from the event content by the caller, so no database default is declared and
// redelivered events collide on the same row instead of duplicating.
type AuditEventModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	Kind       string    `gorm:"type:varchar(100);not null;index"`
	UserID     uuid.UUID `gorm:"type:uuid;index:idx_audit_events_user_occurred,priority:1"`
	Provider   string    `gorm:"type:varchar(50)"`
	RequestID  string    `gorm:"type:varchar(64)"`
	Detail     string    `gorm:"type:text"`
	OccurredAt time.Time `gorm:"not null;index:idx_audit_events_user_occurred,priority:2"`
	CreatedAt  time.Time
}

// TableName explicitly sets the table name for GORM.
func (AuditEventModel) TableName() string {
	return "audit_events"
}
