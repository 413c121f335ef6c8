package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for a future algorithm change.
const (
	DomainEvent     = "orbit/event/v1"
	DomainDocument  = "orbit/document/v1"
	DomainMigration = "orbit/migration/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// EventID computes a content-addressed id for an event.
// Device id is excluded: two devices recording the same fact derive the
// same id, and the log deduplicates on append.
func EventID(eventType, entityID, timestamp string, payload any) (string, error) {
	p, err := FromGo(payload)
	if err != nil {
		return "", fmt.Errorf("EventID: payload: %w", err)
	}
	canonical, err := MarshalCanonical(Object{
		"type":      String(eventType),
		"entity_id": String(entityID),
		"timestamp": String(timestamp),
		"payload":   p,
	})
	if err != nil {
		return "", fmt.Errorf("EventID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEvent, canonical), nil
}

// MigrationKey derives the stable identity of a legacy record being
// migrated. It depends only on the record's kind and id.
func MigrationKey(kind, id string) string {
	canonical, err := MarshalCanonical(Object{
		"kind": String(kind),
		"id":   String(id),
	})
	if err != nil {
		// Strings always marshal.
		panic(err)
	}
	return hashWithDomain(DomainMigration, canonical)
}

// DocumentHash hashes an encoded document for convergence checks.
func DocumentHash(encoded []byte) string {
	return hashWithDomain(DomainDocument, encoded)
}

// MustEventID is like EventID but panics on error.
// Use only in tests or when the payload is known to be valid.
func MustEventID(eventType, entityID, timestamp string, payload any) string {
	id, err := EventID(eventType, entityID, timestamp, payload)
	if err != nil {
		panic(err)
	}
	return id
}
