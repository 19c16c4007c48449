package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
	"golang.org/x/text/unicode/norm"
)

// DomainEventPayload is the hash domain for event payload integrity.
// Version suffix enables future algorithm migration.
const DomainEventPayload = "halo/event/v1"

// MarshalCanonical produces RFC 8785 canonical JSON: sorted keys, no
// insignificant whitespace, ECMAScript number formatting. Strings are NFC
// normalized first so visually identical payloads hash identically.
func MarshalCanonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: marshal: %w", err)
	}
	out, err := jcs.Transform(norm.NFC.Bytes(raw))
	if err != nil {
		return nil, fmt.Errorf("canonical: transform: %w", err)
	}
	return out, nil
}

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// EventPayloadHash returns the integrity hash stored alongside an event. It
// covers the event type and the canonical payload bytes.
func EventPayloadHash(eventType EventType, canonicalPayload []byte) string {
	data := make([]byte, 0, len(eventType)+1+len(canonicalPayload))
	data = append(data, eventType...)
	data = append(data, 0x00)
	data = append(data, canonicalPayload...)
	return hashWithDomain(DomainEventPayload, data)
}

// VerifyEvent recomputes the payload hash of e and compares it with the
// stored one.
func VerifyEvent(e Event) error {
	canonical, err := MarshalCanonical(e.Payload)
	if err != nil {
		return fmt.Errorf("verify event %s: %w", e.ID, err)
	}
	if got := EventPayloadHash(e.EventType, canonical); got != e.PayloadHash {
		return fmt.Errorf("verify event %s: payload hash mismatch", e.ID)
	}
	return nil
}
