package driven

import (
	"context"
	"errors"
	"fmt"

	"github.com/ericfisherdev/tokenlink/internal/domain/model"
)

// ErrCredentialNotFound is returned by CredentialStore.Get when no credential
// record exists yet.
var ErrCredentialNotFound = errors.New("credential not found")

// ErrEncryptionKeyNotSet is returned when a stored credential is encrypted but
// the adapter was constructed without TOKENLINK_SECRET_KEY.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set TOKENLINK_SECRET_KEY")

// PersistenceError wraps a credential read or write failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("credential %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// CredentialStore defines the driven port for the singleton credential record.
// The adapter is responsible for durability and optional encryption; this
// interface operates on plaintext values at the domain boundary.
type CredentialStore interface {
	// Get returns the stored credential, ErrCredentialNotFound if none exists,
	// or a *PersistenceError on I/O failure.
	Get(ctx context.Context) (model.Credential, error)

	// Put creates the record if absent or replaces its value in place.
	// Calling Put twice with the same token leaves exactly one record.
	Put(ctx context.Context, token string) error
}
