package repository

import "context"

// TransactionManager defines the interface for managing database transactions.
// This allows the use case layer to handle transactions without depending on a specific DB driver like GORM.
//
// The transaction boundary is the only concurrency-control primitive in the
// system. Use cases never take in-process locks; two racing sign-ins are
// serialized by the store, not by the service.
type TransactionManager interface {
	// Execute runs a function within a database transaction.
	// If the function returns an error, the transaction is rolled back. Otherwise, it's committed.
	// All repository operations within the function will use the same database transaction.
	Execute(ctx context.Context, fn func(txRepoFactory RepositoryFactory) error) error

	// ExecuteSerializable is Execute at serializable isolation. Find-or-create
	// flows run here so that two transactions cannot both read "absent" and
	// both insert; the implementation retries serialization aborts before
	// giving up.
	ExecuteSerializable(ctx context.Context, fn func(txRepoFactory RepositoryFactory) error) error
}

// RepositoryFactory provides a way to get repository instances that are bound to a specific transaction.
// This ensures all repository operations within a transaction use the same database connection.
type RepositoryFactory interface {
	// NewUserRepository returns a UserRepository instance bound to the current transaction.
	NewUserRepository() UserRepository

	// NewAccountRepository returns an AccountRepository instance bound to the current transaction.
	NewAccountRepository() AccountRepository

	// NewVerificationCodeRepository returns a VerificationCodeRepository instance bound to the current transaction.
	NewVerificationCodeRepository() VerificationCodeRepository

	// NewVerifierRepository returns a VerifierRepository instance bound to the current transaction.
	NewVerifierRepository() VerifierRepository

	// NewSessionRepository returns a SessionRepository instance bound to the current transaction.
	NewSessionRepository() SessionRepository

	// NewRefreshTokenRepository returns a RefreshTokenRepository instance bound to the current transaction.
	NewRefreshTokenRepository() RefreshTokenRepository

	// NewAuditEventRepository returns an AuditEventRepository instance bound to the current transaction.
	NewAuditEventRepository() AuditEventRepository
}
