package doc

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Domain prefixes for content hashing. Version suffix enables future
// algorithm migration without ambiguity against old hashes.
const (
	DomainProducts        = "kardex/products/v1"
	DomainPreferences     = "kardex/preferences/v1"
	DomainIgnoredIDs      = "kardex/ignored_ids/v1"
	DomainCategories      = "kardex/categories/v1"
	DomainMovements       = "kardex/movements/v1"
	DomainManualMovements = "kardex/manual_movements/v1"
	DomainAuditLog        = "kardex/audit_log/v1"
)

// MarshalCanonical serializes a value to deterministic JSON: HTML escaping
// disabled, map keys sorted (encoding/json sorts map keys since Go 1.12),
// struct fields in declaration order, no trailing newline.
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("marshal canonical: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// CollectionHash computes a SHA-256 content hash with domain separation.
// Format: SHA256(domain + 0x00 + canonicalJSON). The null separator
// prevents domain/data boundary ambiguity.
//
// The materializer uses collection hashes to decide whether a top-level
// collection changed between notifications; the backup exporter stamps
// each collection with its hash for integrity checks on restore.
func CollectionHash(domain string, v any) (string, error) {
	data, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("collection hash %q: %w", domain, err)
	}
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// MustCollectionHash is like CollectionHash but panics on error.
// Document collections always marshal cleanly; a failure here means a
// programming error, not bad data.
func MustCollectionHash(domain string, v any) string {
	h, err := CollectionHash(domain, v)
	if err != nil {
		panic(err)
	}
	return h
}
