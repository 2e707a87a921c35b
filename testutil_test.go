package secureauth_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	oa "github.com/panyam/secureauth"
	"github.com/panyam/secureauth/stores"
)

var errStoreDown = errors.New("store unavailable")

// brokenStore fails every call
type brokenStore struct{}

func (brokenStore) FindByIdentity(ctx context.Context, identity string) (*oa.User, error) {
	return nil, errStoreDown
}

func (brokenStore) Create(ctx context.Context, identity string, credential string) (*oa.User, error) {
	return nil, errStoreDown
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *stores.FSCredentialStore {
	t.Helper()
	s, err := stores.NewFSCredentialStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return s
}

func newTestVerifier(store oa.CredentialStore) *oa.LocalVerifier {
	v := oa.NewLocalVerifier(store, oa.NewBcryptHasher(bcrypt.MinCost))
	v.Logger = quietLogger()
	return v
}

// setupTestAuth builds a coordinator over fs stores in a temp dir
func setupTestAuth(t *testing.T) (*oa.SecureAuth, *stores.FSCredentialStore) {
	t.Helper()
	store := newTestStore(t)
	sessionStore, err := stores.NewFSSessionStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create session store: %v", err)
	}

	federated := oa.NewFederatedResolver(store)
	federated.Logger = quietLogger()
	sessions := oa.NewSessionManager(sessionStore, time.Hour, "test-secret")
	sessions.Logger = quietLogger()

	auth := oa.New(newTestVerifier(store), federated, sessions)
	auth.Logger = quietLogger()
	return auth, store
}
