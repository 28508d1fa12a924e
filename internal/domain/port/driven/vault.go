package driven

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/ericfisherdev/promptpanel/internal/domain/model"
)

// ErrMasterKeyNotSet is returned by CredentialVault operations when
// PROMPTPANEL_MASTER_KEY has not been configured.
var ErrMasterKeyNotSet = errors.New("master key not configured: set PROMPTPANEL_MASTER_KEY")

// ErrCredentialNotFound is returned by Decrypt when no key is stored for
// the given (user, provider) pair.
var ErrCredentialNotFound = errors.New("credential not found")

// ErrDecryptFailure is returned by Decrypt when a stored blob fails
// authentication (tampered ciphertext or a rotated master key).
var ErrDecryptFailure = errors.New("credential decrypt failure")

// CredentialVault defines the driven port for encrypted per-user provider
// API keys. The adapter owns encryption; plaintext crosses this boundary
// only as the Store input and the Decrypt result, and is never persisted
// or logged.
type CredentialVault interface {
	// Store encrypts and saves (or replaces) the API key for the given
	// user and provider. Returns the key fingerprint (one-way hash of the
	// plaintext) recorded alongside the blob.
	Store(ctx context.Context, userID uuid.UUID, provider, plaintext string) (string, error)

	// Decrypt returns the plaintext API key for the given user and provider.
	// Returns ErrCredentialNotFound if no key is stored, ErrDecryptFailure
	// if the blob fails authentication.
	Decrypt(ctx context.Context, userID uuid.UUID, provider string) (string, error)

	// List returns metadata for all of the user's stored keys. Plaintext
	// is never included.
	List(ctx context.Context, userID uuid.UUID) ([]model.CredentialInfo, error)

	// Delete removes the stored key for the given user and provider.
	// Deleting a nonexistent key is not an error.
	Delete(ctx context.Context, userID uuid.UUID, provider string) error
}
