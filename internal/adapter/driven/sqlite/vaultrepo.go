package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/ericfisherdev/promptpanel/internal/domain/model"
	"github.com/ericfisherdev/promptpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialVault = (*VaultRepo)(nil)

// VaultRepo is the SQLite implementation of the CredentialVault port.
// API keys are encrypted with AES-256-GCM before write and decrypted after
// read; plaintext exists in memory only for the duration of a single call.
type VaultRepo struct {
	db        *DB
	masterKey []byte // 32-byte AES-256 key; nil when the vault is disabled.
}

// NewVaultRepo creates a VaultRepo. masterKey must be 32 bytes for
// AES-256-GCM, or nil to disable the vault (all operations return
// driven.ErrMasterKeyNotSet).
func NewVaultRepo(db *DB, masterKey []byte) *VaultRepo {
	return &VaultRepo{db: db, masterKey: masterKey}
}

// Store encrypts and upserts the API key for (user, provider) and returns
// the key fingerprint.
func (r *VaultRepo) Store(ctx context.Context, userID uuid.UUID, provider, plaintext string) (string, error) {
	encrypted, err := r.encrypt(plaintext)
	if err != nil {
		return "", err
	}
	fingerprint := Fingerprint(plaintext)

	const query = `
		INSERT INTO api_keys (user_id, provider, encrypted_key, key_fingerprint, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id, provider) DO UPDATE SET
			encrypted_key = excluded.encrypted_key,
			key_fingerprint = excluded.key_fingerprint,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := r.db.Writer.ExecContext(ctx, query, userID.String(), provider, encrypted, fingerprint); err != nil {
		return "", fmt.Errorf("store api key for %q: %w", provider, err)
	}
	return fingerprint, nil
}

// Decrypt retrieves and decrypts the API key for (user, provider).
func (r *VaultRepo) Decrypt(ctx context.Context, userID uuid.UUID, provider string) (string, error) {
	if r.masterKey == nil {
		return "", driven.ErrMasterKeyNotSet
	}

	const query = `SELECT encrypted_key FROM api_keys WHERE user_id = ? AND provider = ?`
	var encrypted string
	err := r.db.Reader.QueryRowContext(ctx, query, userID.String(), provider).Scan(&encrypted)
	if errors.Is(err, sql.ErrNoRows) {
		return "", driven.ErrCredentialNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get api key for %q: %w", provider, err)
	}

	plaintext, err := r.decrypt(encrypted)
	if err != nil {
		// Tampered blob or rotated master key. The ciphertext itself is
		// never included in the error.
		return "", fmt.Errorf("api key for %q: %w", provider, driven.ErrDecryptFailure)
	}
	return plaintext, nil
}

// List returns fingerprint metadata for all of the user's stored keys.
func (r *VaultRepo) List(ctx context.Context, userID uuid.UUID) ([]model.CredentialInfo, error) {
	const query = `
		SELECT provider, key_fingerprint, created_at
		FROM api_keys
		WHERE user_id = ?
		ORDER BY provider
	`
	rows, err := r.db.Reader.QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var infos []model.CredentialInfo
	for rows.Next() {
		info := model.CredentialInfo{UserID: userID}
		var createdAt string
		if err := rows.Scan(&info.Provider, &info.Fingerprint, &createdAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		info.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at for %q: %w", info.Provider, err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate api keys: %w", err)
	}
	return infos, nil
}

// Delete removes the stored key for (user, provider).
func (r *VaultRepo) Delete(ctx context.Context, userID uuid.UUID, provider string) error {
	const query = `DELETE FROM api_keys WHERE user_id = ? AND provider = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, userID.String(), provider); err != nil {
		return fmt.Errorf("delete api key for %q: %w", provider, err)
	}
	return nil
}

// Fingerprint returns the hex SHA-256 of a plaintext key. It allows
// verifying a key matches the stored one without decrypting the blob.
func Fingerprint(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// encrypt encrypts plaintext using AES-256-GCM and returns a base64-encoded
// string containing the nonce (12 bytes) prepended to the ciphertext.
func (r *VaultRepo) encrypt(plaintext string) (string, error) {
	if r.masterKey == nil {
		return "", driven.ErrMasterKeyNotSet
	}

	block, err := aes.NewCipher(r.masterKey)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts a base64-encoded AES-256-GCM ciphertext.
func (r *VaultRepo) decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	block, err := aes.NewCipher(r.masterKey)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}

	return string(plaintext), nil
}
