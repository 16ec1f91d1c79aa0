// Package visitors derives pseudonymous visitor identities from request metadata.
package visitors

import (
	"crypto/sha256"
	"encoding/hex"
)

// FingerprintSeparator joins the hashed fields. IP strings never contain it.
const FingerprintSeparator = "|"

// Fingerprint returns the SHA-256 of ip and userAgent as 64 lowercase hex characters.
// It is deterministic and one-way: the same pair always yields the same value.
func Fingerprint(ip, userAgent string) string {
	sum := sha256.Sum256([]byte(ip + FingerprintSeparator + userAgent))
	return hex.EncodeToString(sum[:])
}
