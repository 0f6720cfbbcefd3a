// Package entity contains the core business objects of the project.
package entity

// AuthMethod represents the kind of authentication flow an attempt came in through.
type AuthMethod string

const (
	// AuthMethodOAuth indicates a redirect-based OAuth/OIDC provider.
	AuthMethodOAuth AuthMethod = "oauth"
	// AuthMethodEmail indicates a magic-link or emailed one-time code flow.
	AuthMethodEmail AuthMethod = "email"
	// AuthMethodPhone indicates an SMS one-time code flow.
	AuthMethodPhone AuthMethod = "phone"
	// AuthMethodCredentials indicates a password or API-key style provider.
	AuthMethodCredentials AuthMethod = "credentials"
)

// String returns the string representation of the AuthMethod.
func (m AuthMethod) String() string {
	return string(m)
}

// IsValid checks if the AuthMethod is a valid value.
func (m AuthMethod) IsValid() bool {
	switch m {
	case AuthMethodOAuth, AuthMethodEmail, AuthMethodPhone, AuthMethodCredentials:
		return true
	default:
		return false
	}
}
