// Package checksum provides content digests used for change detection and
// optimistic concurrency.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ETag returns the digest of data quoted for use as an HTTP ETag value.
func ETag(data []byte) string {
	return `"` + Sum(data) + `"`
}
