package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/ericfisherdev/tokenlink/internal/domain/model"
	"github.com/ericfisherdev/tokenlink/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port.
// The table holds at most one row; the singleton column is constrained to 1
// so an upsert always targets "the one existing record".
//
// When a key is configured, values are sealed with AES-256-GCM before write
// and opened after read.
type CredentialRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key; nil stores plaintext.
}

// NewCredentialRepo creates a CredentialRepo. key must be 32 bytes or nil.
func NewCredentialRepo(db *DB, key []byte) *CredentialRepo {
	return &CredentialRepo{db: db, key: key}
}

// Get returns the singleton credential or driven.ErrCredentialNotFound.
func (r *CredentialRepo) Get(ctx context.Context) (model.Credential, error) {
	const query = `SELECT id, token, encrypted, updated_at FROM credential WHERE singleton = 1`

	var (
		cred      model.Credential
		stored    string
		encrypted bool
		updatedAt string
	)
	err := r.db.Reader.QueryRowContext(ctx, query).Scan(&cred.ID, &stored, &encrypted, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Credential{}, driven.ErrCredentialNotFound
	}
	if err != nil {
		return model.Credential{}, &driven.PersistenceError{Op: "get", Err: err}
	}

	cred.Token = stored
	if encrypted {
		if r.key == nil {
			return model.Credential{}, &driven.PersistenceError{Op: "get", Err: driven.ErrEncryptionKeyNotSet}
		}
		cred.Token, err = r.decrypt(stored)
		if err != nil {
			return model.Credential{}, &driven.PersistenceError{Op: "decrypt", Err: err}
		}
	}

	cred.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return model.Credential{}, &driven.PersistenceError{Op: "get", Err: fmt.Errorf("parse updated_at: %w", err)}
	}
	return cred, nil
}

// Put creates the credential record or replaces its value in place. The row
// id is preserved across updates.
func (r *CredentialRepo) Put(ctx context.Context, token string) error {
	value := token
	encrypted := false
	if r.key != nil {
		sealed, err := r.encrypt(token)
		if err != nil {
			return &driven.PersistenceError{Op: "encrypt", Err: err}
		}
		value = sealed
		encrypted = true
	}

	const query = `
		INSERT INTO credential (singleton, token, encrypted, updated_at)
		VALUES (1, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(singleton) DO UPDATE SET
			token = excluded.token,
			encrypted = excluded.encrypted,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := r.db.Writer.ExecContext(ctx, query, value, encrypted); err != nil {
		return &driven.PersistenceError{Op: "put", Err: err}
	}
	return nil
}

// encrypt encrypts plaintext using AES-256-GCM and returns a base64-encoded string
// containing the nonce prepended to the ciphertext.
func (r *CredentialRepo) encrypt(plaintext string) (string, error) {
	gcm, err := r.aead()
	if err != nil {
		return "", err
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
func (r *CredentialRepo) decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	gcm, err := r.aead()
	if err != nil {
		return "", err
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

func (r *CredentialRepo) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(r.key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}
