package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashHex returns the hex SHA-256 of b.
func HashHex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// ShortHash returns the first n hex characters of the SHA-256 of b.
func ShortHash(b []byte, n int) string {
	h := HashHex(b)
	if n <= 0 || n >= len(h) {
		return h
	}
	return h[:n]
}
