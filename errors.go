package secureauth

import "errors"

var (
	// ErrNotFound is returned by a CredentialStore when no user exists for an identity.
	ErrNotFound = errors.New("user not found")

	// ErrInvalidCredential means the supplied password did not match the stored digest.
	ErrInvalidCredential = errors.New("invalid credentials")

	// ErrConflict is returned when creating a user whose identity is already registered.
	ErrConflict = errors.New("identity already registered")

	// ErrInternal wraps store, hashing and session codec failures.  These are never
	// reported to callers as a credential problem.
	ErrInternal = errors.New("internal failure")

	// ErrUnauthenticated is returned by SessionManager.Resolve when no valid session exists.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrMissingField means the identity or password was empty.
	ErrMissingField = errors.New("identity and password required")

	// ErrPasswordTooLong means the password is over bcrypt's 72 byte input limit.
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

	// ErrUnverifiedEmail is returned by the federated resolver when verified
	// emails are required and the provider did not vouch for this one.
	ErrUnverifiedEmail = errors.New("provider did not verify email")
)

// IsRejection reports whether err is one of the errors a caller should treat as
// "bad credentials, try again" as opposed to an internal failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidCredential)
}
