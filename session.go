package secureauth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
)

// DefaultSessionLifetime is the absolute lifetime of a session from creation.
const DefaultSessionLifetime = 24 * time.Hour

// MethodLocal identifies sessions established by a password login or registration.
const MethodLocal = "local"

// Session payload keys.  Only enough to re-derive identity is stored; never the
// credential.
const (
	sessionKeyUserID = "uid"
	sessionKeyEmail  = "email"
	sessionKeyMethod = "method"
)

// Principal is the authenticated identity bound to a session.
type Principal struct {
	UserID string
	Email  string
	Method string
	Expiry time.Time
}

// SessionManager maps opaque session tokens to principals.  Sessions live for a
// fixed absolute lifetime and can be invalidated early.
type SessionManager struct {
	scs    *scs.SessionManager
	Logger *slog.Logger
}

// NewSessionManager creates a SessionManager over store (in-memory if nil).  When
// secret is non-empty every token is keyed with HMAC-SHA256 before it reaches
// the store; otherwise scs hashes tokens with plain SHA-256.
func NewSessionManager(store scs.Store, lifetime time.Duration, secret string) *SessionManager {
	if store == nil {
		store = memstore.New()
	}
	if lifetime <= 0 {
		lifetime = DefaultSessionLifetime
	}
	sm := scs.New()
	sm.Lifetime = lifetime
	if secret != "" {
		sm.Store = &keyedStore{Store: store, key: []byte(secret)}
	} else {
		sm.Store = store
		sm.HashTokenInStore = true
	}
	return &SessionManager{scs: sm}
}

// Lifetime is the absolute lifetime given to new sessions
func (m *SessionManager) Lifetime() time.Duration {
	return m.scs.Lifetime
}

func (m *SessionManager) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

// Establish creates a new session for user and returns its token and expiry.  A
// fresh token is always issued, so a token planted before login is never
// promoted to an authenticated session.
func (m *SessionManager) Establish(ctx context.Context, user *User, method string) (string, time.Time, error) {
	sctx, err := m.scs.Load(ctx, "")
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: new session: %v", ErrInternal, err)
	}
	m.scs.Put(sctx, sessionKeyUserID, user.ID)
	m.scs.Put(sctx, sessionKeyEmail, user.Email)
	m.scs.Put(sctx, sessionKeyMethod, method)

	token, expiry, err := m.scs.Commit(sctx)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: commit session: %v", ErrInternal, err)
	}
	m.logger().Info("session established", "user", user.ID, "method", method, "expiry", expiry)
	return token, expiry, nil
}

// Resolve returns the principal bound to token, or ErrUnauthenticated if the
// token is empty, unknown or expired.
func (m *SessionManager) Resolve(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	sctx, err := m.scs.Load(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: load session: %v", ErrInternal, err)
	}
	userID := m.scs.GetString(sctx, sessionKeyUserID)
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	deadline := m.scs.Deadline(sctx)
	if !time.Now().Before(deadline) {
		return nil, ErrUnauthenticated
	}
	return &Principal{
		UserID: userID,
		Email:  m.scs.GetString(sctx, sessionKeyEmail),
		Method: m.scs.GetString(sctx, sessionKeyMethod),
		Expiry: deadline,
	}, nil
}

// Invalidate destroys the session for token.  Unknown, expired and empty tokens
// are a no-op.
func (m *SessionManager) Invalidate(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	sctx, err := m.scs.Load(ctx, token)
	if err != nil {
		return fmt.Errorf("%w: load session: %v", ErrInternal, err)
	}
	if err := m.scs.Destroy(sctx); err != nil {
		return fmt.Errorf("%w: destroy session: %v", ErrInternal, err)
	}
	return nil
}

// keyedStore replaces each token with its HMAC before delegating to the wrapped
// store.
type keyedStore struct {
	scs.Store
	key []byte
}

func (k *keyedStore) mac(token string) string {
	h := hmac.New(sha256.New, k.key)
	h.Write([]byte(token))
	return hex.EncodeToString(h.Sum(nil))
}

func (k *keyedStore) Find(token string) ([]byte, bool, error) {
	return k.Store.Find(k.mac(token))
}

func (k *keyedStore) Commit(token string, b []byte, expiry time.Time) error {
	return k.Store.Commit(k.mac(token), b, expiry)
}

func (k *keyedStore) Delete(token string) error {
	return k.Store.Delete(k.mac(token))
}

func (k *keyedStore) FindCtx(ctx context.Context, token string) ([]byte, bool, error) {
	if cs, ok := k.Store.(scs.CtxStore); ok {
		return cs.FindCtx(ctx, k.mac(token))
	}
	return k.Find(token)
}

func (k *keyedStore) CommitCtx(ctx context.Context, token string, b []byte, expiry time.Time) error {
	if cs, ok := k.Store.(scs.CtxStore); ok {
		return cs.CommitCtx(ctx, k.mac(token), b, expiry)
	}
	return k.Commit(token, b, expiry)
}

func (k *keyedStore) DeleteCtx(ctx context.Context, token string) error {
	if cs, ok := k.Store.(scs.CtxStore); ok {
		return cs.DeleteCtx(ctx, k.mac(token))
	}
	return k.Delete(token)
}
