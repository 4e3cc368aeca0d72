// ABOUTME: Shared-secret issuance and verification for interface authentication
// ABOUTME: Secrets are stored as salt-keyed HMAC-SHA256 digests, never in plaintext

package secrets

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const (
	secretBytes = 32
	saltBytes   = 36
)

// Issued carries the result of issuing a new interface secret. Plaintext is
// returned exactly once to the caller; only Hash and Salt are persisted.
type Issued struct {
	Plaintext string
	Hash      string
	Salt      string
}

// Issue generates a new high-entropy secret and its storage verifier.
func Issue() (*Issued, error) {
	secret := make([]byte, secretBytes)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generating secret: %w", err)
	}
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}

	plaintext := hex.EncodeToString(secret)
	saltHex := hex.EncodeToString(salt)

	return &Issued{
		Plaintext: plaintext,
		Hash:      computeHash(plaintext, saltHex),
		Salt:      saltHex,
	}, nil
}

// Verify reports whether candidate matches the stored hash/salt pair.
// A mismatch is a normal boolean outcome, not an error.
func Verify(candidate, hash, salt string) bool {
	return hmac.Equal([]byte(computeHash(candidate, salt)), []byte(hash))
}

// computeHash is HMAC-SHA256 over the secret, keyed by the salt.
func computeHash(secret, salt string) string {
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte(secret))
	return hex.EncodeToString(mac.Sum(nil))
}
