package rag_service

import (
	"crypto/sha256"
	"encoding/hex"
)

// ComputeFileHash returns the hex-encoded sha256 digest of the raw file
// bytes. The digest covers content only, never the filename, and is the
// fingerprint used for deduplication.
func ComputeFileHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
