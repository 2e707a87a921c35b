package secureauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// MergePolicy decides what a federated login does when the asserted email
// already belongs to an account with a local password.
type MergePolicy int

const (
	// MergeByEmail signs the federated user into the existing account.  This
	// trusts the provider's assertion of the email without any proof that the
	// same person owns the local password.
	MergeByEmail MergePolicy = iota

	// RejectLocalAccounts refuses federated logins for emails that have a
	// local password.  Accounts provisioned by a federated login are unaffected.
	RejectLocalAccounts
)

// ParseMergePolicy maps a config value to a MergePolicy
func ParseMergePolicy(s string) (MergePolicy, error) {
	switch s {
	case "", "merge", "merge_by_email":
		return MergeByEmail, nil
	case "reject", "reject_local":
		return RejectLocalAccounts, nil
	}
	return MergeByEmail, fmt.Errorf("unknown merge policy: %q", s)
}

// FederatedAssertion is an identity vouched for by an external provider.  Only
// Email is persisted.
type FederatedAssertion struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// FederatedResolver maps a federated assertion to a local user, provisioning
// one on first sight.
type FederatedResolver struct {
	Store                CredentialStore
	Policy               MergePolicy
	RequireVerifiedEmail bool
	Logger               *slog.Logger
}

func NewFederatedResolver(store CredentialStore) *FederatedResolver {
	return &FederatedResolver{Store: store}
}

func (f *FederatedResolver) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

// Resolve returns the user for the asserted email, creating it with
// FederatedCredential if it does not exist.
func (f *FederatedResolver) Resolve(ctx context.Context, assertion FederatedAssertion) (*User, error) {
	identity := NormalizeIdentity(assertion.Email)
	if identity == "" {
		return nil, ErrMissingField
	}
	if f.RequireVerifiedEmail && !assertion.EmailVerified {
		f.logger().Warn("federated login rejected", "provider", assertion.Provider, "identity", identity, "reason", "unverified email")
		return nil, ErrUnverifiedEmail
	}

	user, err := f.Store.FindByIdentity(ctx, identity)
	if err == nil {
		return f.admit(user, assertion)
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: lookup %s: %v", ErrInternal, identity, err)
	}

	user, err = f.Store.Create(ctx, identity, FederatedCredential)
	if errors.Is(err, ErrConflict) {
		// lost a race with another first login (or a registration) for this email
		user, err = f.Store.FindByIdentity(ctx, identity)
		if err != nil {
			return nil, fmt.Errorf("%w: reload %s: %v", ErrInternal, identity, err)
		}
		return f.admit(user, assertion)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", ErrInternal, identity, err)
	}
	f.logger().Info("provisioned federated user", "id", user.ID, "identity", identity, "provider", assertion.Provider)
	return user, nil
}

func (f *FederatedResolver) admit(user *User, assertion FederatedAssertion) (*User, error) {
	if user.IsFederated() {
		return user, nil
	}
	if f.Policy == RejectLocalAccounts {
		f.logger().Warn("federated login rejected", "provider", assertion.Provider, "identity", user.Email, "reason", "local account exists")
		return nil, ErrConflict
	}
	f.logger().Info("federated login merged into local account", "provider", assertion.Provider, "id", user.ID)
	return user, nil
}
