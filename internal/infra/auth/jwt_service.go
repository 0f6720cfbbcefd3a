// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"os"
	"time"

	"authcore/config"
	"authcore/internal/domain/service"
	"authcore/internal/errors"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 30 * 24 * time.Hour

	// refreshTokenBytes is the entropy of an opaque refresh token before encoding.
	refreshTokenBytes = 32
)

// jwtService implements the TokenService interface with asymmetric signing.
// Access tokens are verifiable offline against the published key set; refresh
// tokens are opaque and exist in storage only as hashes.
type jwtService struct {
	method    jwt.SigningMethod
	algorithm string
	signKey   crypto.Signer
	publicKey crypto.PublicKey
	keyID     string

	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewJWTService is the constructor for jwtService.
// The private key comes from config, inline PEM taking precedence over a key
// file. The signing algorithm may be omitted and is then inferred from the
// key type.
func NewJWTService(cfg *config.Config) (service.TokenService, error) {
	if cfg.JWT == nil {
		return nil, errors.New("jwt configuration must be provided")
	}

	signKey, err := loadPrivateKey(cfg.JWT)
	if err != nil {
		return nil, err
	}

	algorithm, err := resolveAlgorithm(cfg.JWT.Algorithm, signKey)
	if err != nil {
		return nil, err
	}

	keyID := cfg.JWT.KeyID
	if keyID == "" {
		keyID, err = deriveKeyID(signKey.Public())
		if err != nil {
			return nil, err
		}
	}

	accessTTL := cfg.JWT.AccessTokenDuration
	if accessTTL <= 0 {
		accessTTL = defaultAccessTokenTTL
	}
	refreshTTL := defaultRefreshTokenTTL
	if cfg.Sessions != nil && cfg.Sessions.RefreshTokenDuration > 0 {
		refreshTTL = cfg.Sessions.RefreshTokenDuration
	}

	return &jwtService{
		method:     jwt.GetSigningMethod(algorithm),
		algorithm:  algorithm,
		signKey:    signKey,
		publicKey:  signKey.Public(),
		keyID:      keyID,
		issuer:     cfg.JWT.Issuer,
		audience:   cfg.JWT.Audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}

// GenerateAccessToken creates a signed access token bound to a user and session.
func (s *jwtService) GenerateAccessToken(userID, sessionID uuid.UUID) (string, error) {
	now := time.Now()
	claims := &service.Claims{
		UserID:    userID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID.String(),
			Audience:  jwt.ClaimStrings{s.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(s.method, claims)
	token.Header["kid"] = s.keyID

	signed, err := token.SignedString(signingKeyFor(s.method, s.signKey))
	if err != nil {
		return "", errors.Wrap(err, "failed to sign access token")
	}

	return signed, nil
}

// ValidateToken checks the signature and time bounds of an access token string.
func (s *jwtService) ValidateToken(tokenString string) (*service.Claims, error) {
	claims := &service.Claims{}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{s.algorithm}),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	_, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return s.publicKey, nil
	}, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to validate access token")
	}

	if claims.UserID == uuid.Nil || claims.SessionID == uuid.Nil {
		return nil, errors.New("access token carries no session binding")
	}

	return claims, nil
}

// NewRefreshToken mints an opaque refresh token and its storage hash.
func (s *jwtService) NewRefreshToken() (string, string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", errors.Wrap(err, "failed to read randomness for refresh token")
	}

	raw := base64.RawURLEncoding.EncodeToString(buf)

	return raw, s.HashToken(raw), nil
}

// HashToken computes the storage hash of a raw refresh token.
func (s *jwtService) HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))

	return hex.EncodeToString(sum[:])
}

// PublicKeySet returns the JSON Web Key Set holding the active verification key.
func (s *jwtService) PublicKeySet() ([]byte, error) {
	keySet := jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{{
			Key:       s.publicKey,
			KeyID:     s.keyID,
			Algorithm: s.algorithm,
			Use:       "sig",
		}},
	}

	data, err := json.Marshal(keySet)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal key set")
	}

	return data, nil
}

// GetAccessTokenDuration returns the configured lifetime for access tokens.
func (s *jwtService) GetAccessTokenDuration() time.Duration {
	return s.accessTTL
}

// GetRefreshTokenDuration returns the configured lifetime for refresh tokens.
func (s *jwtService) GetRefreshTokenDuration() time.Duration {
	return s.refreshTTL
}

// loadPrivateKey reads the signing key, preferring inline PEM over a key file.
func loadPrivateKey(cfg *config.JWTConfig) (crypto.Signer, error) {
	var pemBytes []byte
	switch {
	case cfg.PrivateKeyPEM != "":
		pemBytes = []byte(cfg.PrivateKeyPEM)
	case cfg.PrivateKeyPath != "":
		data, err := os.ReadFile(cfg.PrivateKeyPath)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read private key file")
		}
		pemBytes = data
	default:
		return nil, errors.New("jwt private key must be provided")
	}

	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("failed to decode private key PEM")
	}

	// PKCS#8 first; PKCS#1 as a fallback for legacy RSA keys.
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		switch typed := key.(type) {
		case *rsa.PrivateKey:
			return typed, nil
		case ed25519.PrivateKey:
			return typed, nil
		default:
			return nil, errors.Errorf("unsupported private key type %T", key)
		}
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse private key")
	}

	return key, nil
}

// resolveAlgorithm reconciles the configured algorithm with the key type,
// inferring the algorithm when the config leaves it empty.
func resolveAlgorithm(configured string, key crypto.Signer) (string, error) {
	var inferred string
	switch key.(type) {
	case *rsa.PrivateKey:
		inferred = "RS256"
	case ed25519.PrivateKey:
		inferred = "EdDSA"
	default:
		return "", errors.Errorf("unsupported signing key type %T", key)
	}

	if configured == "" {
		return inferred, nil
	}
	if configured != inferred {
		return "", errors.Errorf("algorithm %s does not match key type %T", configured, key)
	}

	return configured, nil
}

// deriveKeyID computes a stable kid from the RFC 7638 key thumbprint.
func deriveKeyID(pub crypto.PublicKey) (string, error) {
	thumb, err := (&jose.JSONWebKey{Key: pub}).Thumbprint(crypto.SHA256)
	if err != nil {
		return "", errors.Wrap(err, "failed to compute key thumbprint")
	}

	return base64.RawURLEncoding.EncodeToString(thumb), nil
}

// signingKeyFor hands golang-jwt the key type its signing method expects.
func signingKeyFor(method jwt.SigningMethod, key crypto.Signer) any {
	if _, ok := method.(*jwt.SigningMethodEd25519); ok {
		return key.(ed25519.PrivateKey)
	}

	return key
}
