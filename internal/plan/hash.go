package plan

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher computes content hashes for cache keys
type Hasher struct{}

// NewHasher creates a new hasher
func NewHasher() *Hasher {
	return &Hasher{}
}

// HashContent returns the hex SHA-256 of content
func (h *Hasher) HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// HashString computes a SHA-256 hash of the given string
func (h *Hasher) HashString(content string) string {
	return h.HashContent([]byte(content))
}
