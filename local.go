package secureauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// LocalVerifier validates email/password pairs against a CredentialStore and
// registers new local accounts.
type LocalVerifier struct {
	Store  CredentialStore
	Hasher PasswordHasher
	Logger *slog.Logger
}

func NewLocalVerifier(store CredentialStore, hasher PasswordHasher) *LocalVerifier {
	if hasher == nil {
		hasher = NewBcryptHasher(DefaultHashCost)
	}
	return &LocalVerifier{Store: store, Hasher: hasher}
}

func (v *LocalVerifier) logger() *slog.Logger {
	if v.Logger != nil {
		return v.Logger
	}
	return slog.Default()
}

// Verify checks a submitted password for identity.  It returns ErrNotFound when
// there is no such user and ErrInvalidCredential when the password does not
// match.  Callers must present both the same way.
func (v *LocalVerifier) Verify(ctx context.Context, identity, secret string) (*User, error) {
	identity = NormalizeIdentity(identity)
	if identity == "" || secret == "" {
		return nil, ErrMissingField
	}

	user, err := v.Store.FindByIdentity(ctx, identity)
	if errors.Is(err, ErrNotFound) {
		if b, ok := v.Hasher.(interface{ burn(string) }); ok {
			b.burn(secret)
		}
		v.logger().Info("login rejected", "identity", identity, "reason", "no such user")
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lookup %s: %v", ErrInternal, identity, err)
	}

	ok, err := v.Hasher.Compare(secret, user.Credential)
	if err != nil {
		return nil, err
	}
	if !ok {
		reason := "password mismatch"
		if user.IsFederated() {
			reason = "federated account has no password"
		}
		v.logger().Info("login rejected", "identity", identity, "reason", reason)
		return nil, ErrInvalidCredential
	}
	return user, nil
}

// Register creates a local account.  Uniqueness is left to the store so that two
// concurrent registrations for one identity produce one user and one ErrConflict.
func (v *LocalVerifier) Register(ctx context.Context, identity, secret string) (*User, error) {
	identity = NormalizeIdentity(identity)
	if identity == "" || secret == "" {
		return nil, ErrMissingField
	}

	digest, err := v.Hasher.Hash(secret)
	if err != nil {
		return nil, err
	}

	user, err := v.Store.Create(ctx, identity, digest)
	if errors.Is(err, ErrConflict) {
		v.logger().Info("registration rejected", "identity", identity, "reason", "already registered")
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", ErrInternal, identity, err)
	}
	v.logger().Info("created local user", "id", user.ID, "identity", identity)
	return user, nil
}

// maxCredentialsBody caps JSON login and registration bodies.
const maxCredentialsBody = 1 << 20

// parseCredentialsForm reads an identity and password from either a url-encoded
// form or a JSON body.
func parseCredentialsForm(r *http.Request, usernameField, passwordField string) (username, password string, err error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		var data map[string]any
		body := http.MaxBytesReader(nil, r.Body, maxCredentialsBody)
		if err = json.NewDecoder(body).Decode(&data); err != nil || data == nil {
			return "", "", fmt.Errorf("invalid post body")
		}
		username, _ = data[usernameField].(string)
		password, _ = data[passwordField].(string)
	} else {
		if err = r.ParseForm(); err != nil {
			return "", "", fmt.Errorf("error parsing form")
		}
		username = r.FormValue(usernameField)
		password = r.FormValue(passwordField)
	}

	if strings.TrimSpace(username) == "" || password == "" {
		return "", "", ErrMissingField
	}
	return username, password, nil
}
