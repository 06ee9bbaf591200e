package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainGraph prefixes graph hashes. The version suffix enables future
// algorithm migration.
const DomainGraph = "tensorgen/graph/v1"

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// GraphHash computes the content address of a graph. Two graphs with the
// same structure hash identically regardless of map iteration order or
// Unicode normalization form of their names.
func GraphHash(g *Graph) (string, error) {
	canonical, err := MarshalCanonical(g.ToCanonical())
	if err != nil {
		return "", fmt.Errorf("GraphHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainGraph, canonical), nil
}

// MustGraphHash is like GraphHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustGraphHash(g *Graph) string {
	h, err := GraphHash(g)
	if err != nil {
		panic(err)
	}
	return h
}
