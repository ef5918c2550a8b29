package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainState = "tally/state/v1"
	DomainEntry = "tally/entry/v1"
	DomainSpec  = "tally/spec/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// StateHash computes the content hash of a state value.
// Structurally equal states hash identically regardless of key order or
// map identity, which makes hashes comparable across replays.
func StateHash(state IRValue) (string, error) {
	canonical, err := MarshalCanonical(state)
	if err != nil {
		return "", fmt.Errorf("StateHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainState, canonical), nil
}

// EntryID computes the content-addressed ID of a journal entry.
// The ID is stable across replays given the same session, seq and action.
func EntryID(sessionID string, seq int64, action Action) (string, error) {
	obj := IRObject{
		"session_id": IRString(sessionID),
		"seq":        IRInt(seq),
		"action":     IRObject(action),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EntryID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEntry, canonical), nil
}

// SpecHash computes the hash of a compiled reducer description.
func SpecHash(spec IRObject) (string, error) {
	canonical, err := MarshalCanonical(spec)
	if err != nil {
		return "", fmt.Errorf("SpecHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSpec, canonical), nil
}

// MustStateHash is like StateHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustStateHash(state IRValue) string {
	h, err := StateHash(state)
	if err != nil {
		panic(err)
	}
	return h
}
