// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// User is the canonical identity every linked account resolves to.
// It carries the profile fields the application cares about; the linker
// merges provider profiles into it but never deletes it.
type User struct {
	ID            uuid.UUID  // The unique identifier for the user.
	Name          string     // The user's display name, merged from provider profiles.
	Email         string     // The user's primary email, used for trusted-method deduplication.
	EmailVerified *time.Time // When the email was proven to be controlled by the user; nil means unverified.
	Phone         string     // Optional phone number for OTP flows.
	PhoneVerified *time.Time // When the phone was proven to be controlled by the user; nil means unverified.
	AvatarURL     string     // Optional profile picture URL from the most recent provider profile.
	CreatedAt     time.Time  // Timestamp of when this user was created.
	UpdatedAt     time.Time  // Timestamp of the last modification to this user's data.
}

// HasVerifiedEmail reports whether the user's email has been verified.
func (u *User) HasVerifiedEmail() bool {
	return u.Email != "" && u.EmailVerified != nil
}

// HasVerifiedPhone reports whether the user's phone has been verified.
func (u *User) HasVerifiedPhone() bool {
	return u.Phone != "" && u.PhoneVerified != nil
}
