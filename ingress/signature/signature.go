package signature

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

const (
	// Header is the HTTP header Typeform delivers the payload signature in.
	Header = "Typeform-Signature"

	// Prefix identifies the signature scheme in the header value.
	Prefix = "sha256="

	// MinSecretBytes is the minimum accepted secret size (128 bits)
	MinSecretBytes = 16

	// MaxSecretBytes is the maximum accepted secret size (512 bits)
	MaxSecretBytes = 64
)

// Secret represents the shared webhook signing secret
type Secret struct {
	raw []byte
}

// GenerateSecret creates a new cryptographically secure signing secret
// between MinSecretBytes and MaxSecretBytes in size.
func GenerateSecret(size int) (Secret, error) {
	if size < MinSecretBytes || size > MaxSecretBytes {
		return Secret{}, fmt.Errorf("secret size must be between %d and %d bytes", MinSecretBytes, MaxSecretBytes)
	}

	bytes := make([]byte, size)
	if _, err := rand.Read(bytes); err != nil {
		return Secret{}, fmt.Errorf("generating random bytes: %w", err)
	}

	return Secret{raw: bytes}, nil
}

// ParseSecret validates and wraps a configured secret string
func ParseSecret(value string) (Secret, error) {
	if len(value) < MinSecretBytes {
		return Secret{}, fmt.Errorf("secret must be at least %d bytes", MinSecretBytes)
	}
	if len(value) > MaxSecretBytes {
		return Secret{}, fmt.Errorf("secret must be at most %d bytes", MaxSecretBytes)
	}

	return Secret{raw: []byte(value)}, nil
}

// String returns a redacted placeholder. The secret value must never
// appear in logs or error messages.
func (s Secret) String() string {
	return "[redacted]"
}

// Bytes returns the raw secret bytes
func (s Secret) Bytes() []byte {
	return s.raw
}

// IsZero reports whether the secret is unset
func (s Secret) IsZero() bool {
	return len(s.raw) == 0
}

// Digest computes the HMAC-SHA256 digest of the payload under the secret.
// The signed content is the raw body with a trailing newline appended,
// matching what Typeform signs on delivery.
func Digest(secret Secret, body []byte) []byte {
	mac := hmac.New(sha256.New, secret.Bytes())
	mac.Write(body)
	mac.Write([]byte("\n"))
	return mac.Sum(nil)
}

// DigestHex returns the payload digest as lowercase hex. Used as the
// deduplication key for replay detection.
func DigestHex(secret Secret, body []byte) string {
	return hex.EncodeToString(Digest(secret, body))
}

// Sign produces the signature header value for the given payload:
// sha256=<base64 digest>
func Sign(secret Secret, body []byte) string {
	return Prefix + base64.StdEncoding.EncodeToString(Digest(secret, body))
}

// Verify checks a presented signature header value against the payload.
// Every failure mode collapses to false: a missing header, a malformed
// prefix, undecodable base64, a truncated digest, and a digest mismatch
// are indistinguishable to the caller.
func Verify(secret Secret, body []byte, presented string) bool {
	if len(presented) <= len(Prefix) || presented[:len(Prefix)] != Prefix {
		return false
	}

	claimed, err := base64.StdEncoding.DecodeString(presented[len(Prefix):])
	if err != nil {
		return false
	}

	return ConstantTimeCompare(Digest(secret, body), claimed)
}

// ConstantTimeCompare reports whether two digests are equal without
// leaking where they diverge. The length check short-circuits, which is
// safe: digest length is public information.
func ConstantTimeCompare(expected, presented []byte) bool {
	if len(expected) != len(presented) {
		return false
	}
	return subtle.ConstantTimeCompare(expected, presented) == 1
}
