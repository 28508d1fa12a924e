package model

import (
	"time"

	"github.com/google/uuid"
)

// CredentialInfo describes a stored provider API key without exposing the
// key material. Fingerprint is a one-way hash of the plaintext key, usable
// for verification without decrypting the stored blob.
type CredentialInfo struct {
	UserID      uuid.UUID
	Provider    string
	Fingerprint string
	CreatedAt   time.Time
}
