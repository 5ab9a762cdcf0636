package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hash computes the hex sha256 of data
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashKey hashes parts joined by NUL, so ("ab", "c") and ("a", "bc") differ
func HashKey(parts ...string) string {
	return Hash([]byte(strings.Join(parts, "\x00")))
}
