package util

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"math/big"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

const (
	// tokenEntropyBytes sizes link tokens and verifier signatures.
	tokenEntropyBytes = 32

	// maxPresentedSecretLength bounds what a redemption attempt may present;
	// anything longer is rejected before any store lookup.
	maxPresentedSecretLength = 512
)

// MintToken returns a URL-safe random token.
func MintToken() (string, error) {
	buf := make([]byte, tokenEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "failed to read random bytes")
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// MintOTP returns a uniformly random numeric code of the given length.
func MintOTP(length int) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)

	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", errors.Wrap(err, "failed to read random number")
	}

	digits := n.String()
	if pad := length - len(digits); pad > 0 {
		digits = strings.Repeat("0", pad) + digits
	}

	return digits, nil
}

// HashSecret is the storage hash for one-time codes and verifier signatures.
// Raw secrets never reach a store.
func HashSecret(raw string) string {
	sum := sha256.Sum256([]byte(raw))

	return hex.EncodeToString(sum[:])
}

// MalformedSecret rejects obviously invalid presentations before any store
// lookup: empty, oversized, or containing non-printable characters.
func MalformedSecret(secret string) bool {
	if secret == "" || len(secret) > maxPresentedSecretLength {
		return true
	}

	for _, r := range secret {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return true
		}
	}

	return false
}
