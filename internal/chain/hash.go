package chain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// GenesisHash is the well-known sentinel used as previous_hash by the first
// event of every tenant chain. It marks "no predecessor"; no event row ever
// carries it as its own chain_hash.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Canonicalize produces the deterministic byte representation of a payload.
//
// The canonical form is compact JSON with object keys sorted
// lexicographically at every nesting level. Numeric literals in JSON input
// are preserved verbatim via json.Number, so "1e2" and "100" remain
// distinct. Plain string and []byte payloads are used as-is; json.RawMessage
// is treated as JSON text and re-encoded canonically so key order in the
// incoming document never influences the hash.
//
// The same logical payload always canonicalizes to the same bytes. Any
// divergence here would make verification falsely report tampering, so this
// contract must never change for a deployed ledger.
func Canonicalize(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case nil:
		return []byte("null"), nil
	case string:
		return []byte(v), nil
	case json.RawMessage:
		return canonicalJSON(v)
	case []byte:
		return v, nil
	}

	// Arbitrary Go values: marshal once to JSON, then normalise. The
	// round-trip sorts struct fields as map keys and keeps encoding/json's
	// lexicographic map ordering at every depth.
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("canonicalize payload: %w", err)
	}
	return canonicalJSON(raw)
}

// canonicalJSON decodes raw JSON with json.Number and re-marshals it.
// encoding/json sorts map keys, which yields the canonical ordering.
func canonicalJSON(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("canonicalize payload: %w", err)
	}

	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalize payload: %w", err)
	}
	return out, nil
}

// ContentHash returns the lower-case hex SHA-256 of the canonical payload bytes.
func ContentHash(payload any) (string, error) {
	b, err := Canonicalize(payload)
	if err != nil {
		return "", err
	}
	return sha256Hex(b), nil
}

// ChainHash computes the hash anchoring an event to its predecessor:
// SHA-256 over the ASCII concatenation of the two hex strings. The hex
// strings are hashed as text, not decoded to binary, so the computation is
// trivially reproducible with any external tool.
func ChainHash(contentHash, previousHash string) string {
	return sha256Hex([]byte(contentHash + previousHash))
}

// sha256Hex returns the hex-encoded SHA-256 digest of data.
func sha256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
