// Package checksum provides content digests and keyed, non-reversible references.
package checksum

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Keyed returns the hex-encoded HMAC-SHA256 of parts under secret.
// Parts are separated by a NUL byte so ("ab","c") and ("a","bc") differ.
func Keyed(secret []byte, parts ...string) string {
	m := hmac.New(sha256.New, secret)
	for i, p := range parts {
		if i > 0 {
			m.Write([]byte{0})
		}
		m.Write([]byte(p))
	}
	return hex.EncodeToString(m.Sum(nil))
}

// Hasher binds a secret so callers do not pass key material around.
type Hasher struct {
	secret []byte
}

// NewHasher returns a Hasher for secret.
func NewHasher(secret string) *Hasher {
	return &Hasher{secret: []byte(secret)}
}

// Fragment returns the audit hash of a fragment's text.
func (h *Hasher) Fragment(text string) string {
	return Keyed(h.secret, "fragment", text)
}

// Owner returns the opaque owner reference for a user id.
func (h *Hasher) Owner(userID string) string {
	return Keyed(h.secret, "owner", userID)
}

// Provenance returns an opaque reference over a submission and its fragment hashes.
func (h *Hasher) Provenance(submissionID string, fragmentHashes ...string) string {
	return Keyed(h.secret, append([]string{"provenance", submissionID}, fragmentHashes...)...)
}
