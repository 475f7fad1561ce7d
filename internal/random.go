package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

const opaqueIDSize = 16

// OpaqueID is an unguessable 128-bit identifier used for pending
// two-factor challenges. Refresh tokens use UUIDs instead; see ledger.
type OpaqueID [opaqueIDSize]byte

func NewOpaqueID() (OpaqueID, error) {
	var id OpaqueID
	_, err := rand.Read(id[:])
	return id, err
}

func (o OpaqueID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(o[:])
}

func ParseOpaqueID(s string) (OpaqueID, error) {
	var id OpaqueID

	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(raw) != len(id) {
		return id, errors.New("invalid opaque id size")
	}

	copy(id[:], raw)
	return id, nil
}

// recoveryAlphabet excludes 0/O and 1/I to keep codes transcribable.
const recoveryAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// NewRecoveryCode returns a recovery code in the canonical
// XXXXX-XXXXX form.
func NewRecoveryCode() (string, error) {
	raw := make([]byte, 10)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}

	buf := make([]byte, 0, 11)
	for i, b := range raw {
		if i == 5 {
			buf = append(buf, '-')
		}
		buf = append(buf, recoveryAlphabet[int(b)%len(recoveryAlphabet)])
	}
	return string(buf), nil
}

// HashRecoveryCode is the stored form of a recovery code. Codes are
// compared by hash so a leaked state blob does not leak usable codes.
func HashRecoveryCode(code string) [32]byte {
	return sha256.Sum256([]byte(code))
}
