package fieldcrypt

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HashEmail returns the hex SHA-256 of the normalized address.
func HashEmail(email string) string {
	return SHA256Hex(NormalizeEmail(email))
}

// SHA256Hex is the hex digest used for every lookup-only projection.
func SHA256Hex(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
