// Package secureauth authenticates users by email and password or by a Google
// account, and keeps them signed in with server-side sessions.
//
// The pieces compose bottom-up:
//
//   - A CredentialStore persists users keyed by normalized email.  Identity
//     uniqueness is enforced by the store itself (see the stores, stores/gorm
//     and stores/gae packages).
//   - LocalVerifier checks and registers passwords through a PasswordHasher
//     (bcrypt by default).
//   - FederatedResolver maps a provider-asserted email to a user, provisioning
//     one with FederatedCredential on first sight.
//   - SessionManager maps opaque tokens to a Principal on top of scs.
//   - SecureAuth wires the HTTP routes and sets the session cookie; its
//     Middleware guards protected handlers.
//
// # Basic Usage
//
//	credentials, _ := stores.NewFSCredentialStore("/var/lib/secureauth")
//	sessionStore, _ := stores.NewFSSessionStore("/var/lib/secureauth")
//
//	auth := secureauth.New(
//	    secureauth.NewLocalVerifier(credentials, nil),
//	    secureauth.NewFederatedResolver(credentials),
//	    secureauth.NewSessionManager(sessionStore, 24*time.Hour, os.Getenv("SESSION_SECRET")),
//	)
//	google := oauth2.NewGoogleOAuth2("", "", "", auth.SaveFederatedUserAndRedirect)
//	auth.AddAuth("/auth/google", google.Handler())
//
//	mux := http.NewServeMux()
//	mux.Handle("/", auth.Handler())
//	mux.Handle("GET /welcome", auth.Middleware().EnsureUser(welcomePage))
//
// # Errors
//
// ErrNotFound and ErrInvalidCredential are both rejections and are presented
// to the caller identically.  ErrInternal marks store, hashing and session
// failures; the HTTP layer turns it into a 500.
//
// # Security
//
// Passwords are hashed with bcrypt at a fixed cost and limited to 72 bytes.
// Session tokens never reach the session store in the clear: they are keyed
// with HMAC-SHA256 under the session secret, or hashed with SHA-256 when no
// secret is configured.  A fresh token is issued on every login.
package secureauth
