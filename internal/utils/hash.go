package utils

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Checksum returns the hex-encoded BLAKE2b-256 digest of content.
//
// It is used as the body checksum carried in sync payloads, letting the
// remote service detect a truncated or altered body.
//
// Example usage:
//
//	sum := utils.Checksum("# Packing list")
func Checksum(content string) string {
	sum := blake2b.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// VerifyChecksum reports whether checksum matches content.
func VerifyChecksum(content, checksum string) bool {
	return checksum != "" && Checksum(content) == checksum
}
