package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed hashes.
// The version suffix leaves room for algorithm migration.
const (
	DomainEvent = "treesync/event/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// StructuralHash hashes the structural identity of an atomic event: kind,
// changed entity, target and, for attribute value changes, the new value.
// Revision, actor and force flag are excluded, so a speculative local event
// and its server-confirmed counterpart share a hash.
//
// The hash is an index for persisted lookups. Matching itself compares
// events field by field.
func StructuralHash(e Event) (string, error) {
	if e.Kind == KindTransaction {
		return "", fmt.Errorf("StructuralHash: transaction events have no structural identity")
	}
	obj := IRObject{
		"kind":    IRString(e.Kind.String()),
		"changed": IRString(e.Changed.String()),
		"target":  IRString(e.Target.String()),
	}
	if e.Scope() == ScopeAttribute && !IsAbsent(e.NewValue) {
		obj["new_value"] = e.NewValue
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("StructuralHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEvent, canonical), nil
}

// MustStructuralHash is like StructuralHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustStructuralHash(e Event) string {
	h, err := StructuralHash(e)
	if err != nil {
		panic(err)
	}
	return h
}
