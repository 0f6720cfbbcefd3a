package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const (
	defaultPath               = "."
	defaultMaxRequestBodySize = "100KB"
)

type Config struct {
	Env struct {
		Env         string `json:"env" yaml:"env"`
		ServiceName string `json:"serviceName" yaml:"serviceName"`
		Debug       bool   `json:"debug" yaml:"debug"`
		Log         Log    `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	HTTP struct {
		Port               int    `json:"port" yaml:"port"`
		MaxRequestBodySize string `json:"maxRequestBodySize" yaml:"maxRequestBodySize"`
		Timeouts           struct {
			ReadTimeout       time.Duration `json:"readTimeout" yaml:"readTimeout"`
			ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
			WriteTimeout      time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
			IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
		} `json:"timeouts" yaml:"timeouts"`
	} `json:"http" yaml:"http"`

	Postgres *PostgresConn `json:"postgres" yaml:"postgres" mapstructure:"postgres"`

	Redis *RedisConn `json:"redis" yaml:"redis"`

	// JWT configuration for access token signing
	JWT *JWTConfig `json:"jwt" yaml:"jwt"`

	// Sessions configuration for session and refresh token lifetimes
	Sessions *SessionsConfig `json:"sessions" yaml:"sessions"`

	// Codes configuration for one-time verification codes
	Codes *CodesConfig `json:"codes" yaml:"codes"`

	// Providers lists the configured authentication providers
	Providers []ProviderConfig `json:"providers" yaml:"providers"`

	// PubSub configuration for audit event publishing
	PubSub *PubSubConfig `json:"pubsub" yaml:"pubsub"`

	// QRCode configuration for sign-in hand-off QR codes
	QRCode *QRCodeConfig `json:"qrcode" yaml:"qrcode"`

	// Firebase configuration for Firebase ID token verification
	Firebase *FirebaseConfig `json:"firebase" yaml:"firebase"`

	// Maintenance configuration for the expired-row sweeper
	Maintenance *MaintenanceConfig `json:"maintenance" yaml:"maintenance"`
}

// PostgresConnection holds the address and credentials of one database node.
type PostgresConnection struct {
	Host     string `json:"host" yaml:"host"`
	Port     string `json:"port" yaml:"port"`
	UserName string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

// PostgresConn defines the primary database connection plus optional read replicas.
type PostgresConn struct {
	PostgresConnection `json:",inline" yaml:",inline" mapstructure:",squash"`

	DBName   string `json:"dbname" yaml:"dbname"`
	SSLMode  string `json:"sslMode" yaml:"sslMode"`
	Timezone string `json:"timezone" yaml:"timezone"`

	MaxIdleConns    int           `json:"maxIdleConns" yaml:"maxIdleConns"`
	MaxOpenConns    int           `json:"maxOpenConns" yaml:"maxOpenConns"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime" yaml:"connMaxLifetime"`
	ConnMaxIdleTime time.Duration `json:"connMaxIdleTime" yaml:"connMaxIdleTime"`

	// Replicas are routed read-only through dbresolver; writes always hit the primary.
	Replicas []PostgresConnection `json:"replicas" yaml:"replicas"`
}

// RedisConn defines the Redis connection used by the Redis-backed code engine.
type RedisConn struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

// JWTConfig defines access token signing configuration.
// Signing is asymmetric only; resource servers verify against the published
// key set without calling back here.
type JWTConfig struct {
	Issuer   string `json:"issuer" yaml:"issuer"`
	Audience string `json:"audience" yaml:"audience"`

	// Algorithm selects the signing algorithm: "RS256" or "EdDSA".
	Algorithm string `json:"algorithm" yaml:"algorithm" validate:"omitempty,oneof=RS256 EdDSA"`

	// PrivateKeyPath points at a PEM-encoded private key file.
	PrivateKeyPath string `json:"privateKeyPath" yaml:"privateKeyPath"`

	// PrivateKeyPEM carries the key inline; takes precedence over the path
	// when set. Intended for tests and local development.
	PrivateKeyPEM string `json:"privateKeyPem" yaml:"privateKeyPem"`

	// KeyID overrides the kid header; derived from the key thumbprint when empty.
	KeyID string `json:"keyId" yaml:"keyId"`

	AccessTokenDuration time.Duration `json:"accessTokenDuration" yaml:"accessTokenDuration"`
}

// SessionsConfig defines session and refresh token lifetimes and limits.
type SessionsConfig struct {
	SessionDuration      time.Duration `json:"sessionDuration" yaml:"sessionDuration"`
	RefreshTokenDuration time.Duration `json:"refreshTokenDuration" yaml:"refreshTokenDuration"`

	// MaxActiveSessions caps concurrent sessions per user; 0 disables the cap.
	// When the cap is hit the oldest session is evicted.
	MaxActiveSessions int `json:"maxActiveSessions" yaml:"maxActiveSessions"`

	// RevokeOnReuse controls whether detecting refresh token reuse revokes the
	// whole session. Unset means true.
	RevokeOnReuse *bool `json:"revokeOnReuse" yaml:"revokeOnReuse"`
}

// CodesConfig defines one-time code issuance parameters.
type CodesConfig struct {
	// Backend selects where live codes are kept: "store" (the relational
	// store, default) or "redis".
	Backend string `json:"backend" yaml:"backend" validate:"omitempty,oneof=store redis"`

	// Length is the number of digits in an OTP code.
	Length int `json:"length" yaml:"length"`

	TTL         time.Duration `json:"ttl" yaml:"ttl"`
	VerifierTTL time.Duration `json:"verifierTtl" yaml:"verifierTtl"`
}

// ProviderConfig describes one authentication provider. The trust classifier
// reads these rules; the provider adapters read the endpoints and credentials.
type ProviderConfig struct {
	// Name is the provider key recorded on linked accounts, e.g. "google".
	Name string `json:"name" yaml:"name" validate:"required"`

	// Method is the authentication method this provider performs.
	Method string `json:"method" yaml:"method" validate:"required,oneof=oauth email phone credentials"`

	ClientID     string `json:"clientId" yaml:"clientId" validate:"required_if=Method oauth"`
	ClientSecret string `json:"clientSecret" yaml:"clientSecret"`
	RedirectURI  string `json:"redirectUri" yaml:"redirectUri"`

	// AuthURL and TokenURL configure the generic redirect flow. Well-known
	// providers with dedicated adapters (google, firebase) leave them empty.
	AuthURL  string `json:"authUrl" yaml:"authUrl"`
	TokenURL string `json:"tokenUrl" yaml:"tokenUrl"`

	// UserInfoURL is fetched with the access token after exchange to obtain
	// the profile, expected to answer standard OIDC claim names.
	UserInfoURL string `json:"userInfoUrl" yaml:"userInfoUrl"`

	Scopes []string `json:"scopes" yaml:"scopes"`

	// AllowDangerousEmailAccountLinking controls whether this OAuth provider's
	// verified email may capture an existing user. Unset means allowed; only
	// an explicit false makes the provider untrusted.
	AllowDangerousEmailAccountLinking *bool `json:"allowDangerousEmailAccountLinking" yaml:"allowDangerousEmailAccountLinking"`

	// EmailPreVerified marks a credentials provider whose emails are verified
	// out of band, upgrading it to trusted.
	EmailPreVerified bool `json:"emailPreVerified" yaml:"emailPreVerified"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// PubSubConfig defines Pub/Sub configuration for audit event publishing
type PubSubConfig struct {
	// Provider type: "google" for Google Pub/Sub, "gocloud" for a portable
	// URL-based topic, "local" for local HTTP push, "noop" to discard.
	Provider string `json:"provider" yaml:"provider" validate:"omitempty,oneof=google gocloud local noop"`

	// Google Cloud project ID (for google provider)
	ProjectID string `json:"projectId" yaml:"projectId"`

	// Pub/Sub topic ID (for google provider)
	TopicID string `json:"topicId" yaml:"topicId"`

	// Subscription ID the audit worker validates pushes against
	SubscriptionID string `json:"subscriptionId" yaml:"subscriptionId"`

	// Topic URL for the gocloud provider, e.g. "mem://audit" or "kafka://audit"
	TopicURL string `json:"topicUrl" yaml:"topicUrl"`

	// Local HTTP endpoint for development (for local provider)
	LocalEndpoint string `json:"localEndpoint" yaml:"localEndpoint"`

	// Audience expected in push-delivery OIDC tokens
	PushAudience string `json:"pushAudience" yaml:"pushAudience"`
}

// QRCodeConfig defines QR code generation configuration
type QRCodeConfig struct {
	Size int `json:"size" yaml:"size"`

	// ErrorCorrectionLevel is one of L, M, Q, H.
	ErrorCorrectionLevel string `json:"errorCorrectionLevel" yaml:"errorCorrectionLevel"`

	// SignInBaseURL is the link prefix encoded into hand-off QR codes.
	SignInBaseURL string `json:"signInBaseUrl" yaml:"signInBaseUrl"`
}

// FirebaseConfig defines Firebase configuration for ID token verification
type FirebaseConfig struct {
	ProjectID       string `json:"projectId" yaml:"projectId"`
	CredentialsPath string `json:"credentialsPath" yaml:"credentialsPath"`
}

// MaintenanceConfig defines the expired-row sweeper's schedule and retention.
type MaintenanceConfig struct {
	// Interval between sweep runs.
	Interval time.Duration `json:"interval" yaml:"interval"`

	// AuditRetention is how long audit events are kept before the sweep
	// removes them.
	AuditRetention time.Duration `json:"auditRetention" yaml:"auditRetention"`
}

// LoadWithEnv loads .yaml files through koanf.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	// Build list of paths to search for config file
	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			abs := filepath.Join(pwd, path)
			searchPaths = append(searchPaths, abs)
		}
	}

	// Try to find and load the config file
	var configFile string
	var found bool
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
			found = true

			break
		}
	}

	if !found {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	// Load YAML config file
	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	existingConfigMap := koanfInstance.Raw()

	// Load environment variables
	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			// Convert ENV_VAR_NAME to path and align each segment with existing YAML keys.
			// Example: POSTGRES_SSLMODE -> postgres.sslMode (not postgres.sslmode)
			key := canonicalizeEnvKey(k, existingConfigMap)

			return key, v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	// Unmarshal into the config struct (case-insensitive to match env vars)
	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				// Case-insensitive matching for env var overrides
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

func New() (*Config, error) {
	cfg, err := LoadWithEnv[Config]("config", "config", "../config", "../../config")
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.HTTP.MaxRequestBodySize) == "" {
		cfg.HTTP.MaxRequestBodySize = defaultMaxRequestBodySize
	}

	// Build replicas from environment variables (POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, etc.)
	if cfg.Postgres != nil {
		cfg.Postgres.Replicas = append(cfg.Postgres.Replicas, buildReplicasFromEnv()...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the loaded configuration, most importantly the provider
// entries. A malformed provider is fatal; nothing may start with a provider
// whose trust rules cannot be classified.
func (c *Config) Validate() error {
	validate := validator.New()

	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "config validation failed")
	}

	seen := make(map[string]struct{}, len(c.Providers))
	for i := range c.Providers {
		p := &c.Providers[i]
		if _, dup := seen[p.Name]; dup {
			return errors.Errorf("provider %q configured twice", p.Name)
		}
		seen[p.Name] = struct{}{}
	}

	return nil
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)

		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}

// buildReplicasFromEnv builds the replicas slice from environment variables.
// Environment variable format: POSTGRES_REPLICAS_{index}_{field}
// Example: POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, POSTGRES_REPLICAS_0_USERNAME, POSTGRES_REPLICAS_0_PASSWORD
func buildReplicasFromEnv() []PostgresConnection {
	var replicas []PostgresConnection

	for i := 0; ; i++ {
		prefix := "POSTGRES_REPLICAS_" + strconv.Itoa(i) + "_"

		host := os.Getenv(prefix + "HOST")
		port := os.Getenv(prefix + "PORT")
		if host == "" || port == "" {
			// No more replicas or incomplete configuration.
			break
		}

		replica := PostgresConnection{
			Host:     host,
			Port:     port,
			UserName: os.Getenv(prefix + "USERNAME"),
			Password: os.Getenv(prefix + "PASSWORD"),
		}

		replicas = append(replicas, replica)
	}

	return replicas
}
