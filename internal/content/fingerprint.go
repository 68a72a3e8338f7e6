// Package content computes content fingerprints and validates uploaded media.
package content

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns the lowercase hex SHA-256 of the exact input bytes.
// Identical input always yields the identical 64-character digest, which is
// used as the stable content identifier throughout the system.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
