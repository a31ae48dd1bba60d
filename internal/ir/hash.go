package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainCall   = "sonic/call/v1"
	DomainAnswer = "sonic/answer/v1"
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

// CallID computes the content-addressed id of a command call issued within
// a transaction. The protocol key names the descriptor the call was checked
// against, so the same call on two firmware versions gets two ids.
func CallID(token, protocolKey string, code CommandCode, args IRObject, seq int64) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{
		"token":    token,
		"protocol": protocolKey,
		"code":     code,
		"args":     args,
		"seq":      seq,
	})
	if err != nil {
		return "", fmt.Errorf("CallID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainCall, canonical), nil
}

// AnswerID computes the content-addressed id of an answer. It links to the
// call it answers via callID.
func AnswerID(callID string, code CommandCode, fields IRObject, seq int64) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{
		"call_id": callID,
		"code":    code,
		"fields":  fields,
		"seq":     seq,
	})
	if err != nil {
		return "", fmt.Errorf("AnswerID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainAnswer, canonical), nil
}

// MustCallID is like CallID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustCallID(token, protocolKey string, code CommandCode, args IRObject, seq int64) string {
	id, err := CallID(token, protocolKey, code, args, seq)
	if err != nil {
		panic(err)
	}
	return id
}

// MustAnswerID is like AnswerID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustAnswerID(callID string, code CommandCode, fields IRObject, seq int64) string {
	id, err := AnswerID(callID, code, fields, seq)
	if err != nil {
		panic(err)
	}
	return id
}
