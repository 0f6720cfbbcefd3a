// Package constants defines shared configuration values used across layers.
package constants

// Runtime environment names.
const (
	EnvDevelop    = "develop"
	EnvStaging    = "staging"
	EnvProduction = "production"
)

// Pub/Sub provider selectors.
const (
	PubSubProviderGoogle  = "google"
	PubSubProviderGoCloud = "gocloud"
	PubSubProviderLocal   = "local"
	PubSubProviderNoop    = "noop"
)

// Verification code engine backends.
const (
	CodeBackendStore = "store"
	CodeBackendRedis = "redis"
)
