package secureauth

import (
	"context"
	"strings"
	"time"
)

// FederatedCredential is stored in place of a password digest for accounts that
// were provisioned by a federated login.  It is not a valid bcrypt digest so no
// password can ever be verified against it.
const FederatedCredential = "!federated"

// User is a single stored account.  Email is the identity and is unique across a
// CredentialStore.
type User struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Credential string    `json:"credential"` // bcrypt digest or FederatedCredential
	CreatedAt  time.Time `json:"created_at"`
}

// IsFederated returns true if the user was provisioned by a federated login and
// has no local password.
func (u *User) IsFederated() bool {
	return u.Credential == FederatedCredential
}

// CredentialStore persists users keyed by identity.
//
// Implementations must enforce identity uniqueness in the storage layer itself:
// two concurrent Create calls for the same identity must yield exactly one
// stored user and one ErrConflict.
type CredentialStore interface {
	// FindByIdentity returns the user for an identity or ErrNotFound
	FindByIdentity(ctx context.Context, identity string) (*User, error)

	// Create stores a new user.  Returns ErrConflict if the identity exists.
	Create(ctx context.Context, identity string, credential string) (*User, error)
}

// NormalizeIdentity canonicalizes an email so that lookups and the uniqueness
// constraint agree on what "the same identity" means.
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}
