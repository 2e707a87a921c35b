package secureauth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	oa2 "github.com/panyam/secureauth/oauth2"
)

// DefaultSessionCookieName is the cookie that carries the session token.
const DefaultSessionCookieName = "secureauth_session"

// SecureAuth coordinates the login, registration, federated login and logout
// flows and hands out the session cookie.
type SecureAuth struct {
	mux *http.ServeMux

	Local     *LocalVerifier
	Federated *FederatedResolver
	Sessions  *SessionManager
	Logger    *slog.Logger

	// Name of the cookie holding the session token
	CookieName   string
	CookieDomain string
	CookieSecure bool

	// Where callers are sent after each outcome
	LoginURL     string
	RegisterURL  string
	ProtectedURL string
	PublicURL    string

	// Form field names
	UsernameField string
	PasswordField string
}

func New(local *LocalVerifier, federated *FederatedResolver, sessions *SessionManager) *SecureAuth {
	out := &SecureAuth{Local: local, Federated: federated, Sessions: sessions}
	return out.EnsureDefaults()
}

func (a *SecureAuth) EnsureDefaults() *SecureAuth {
	if a.CookieName == "" {
		a.CookieName = DefaultSessionCookieName
	}
	if a.LoginURL == "" {
		a.LoginURL = "/login"
	}
	if a.RegisterURL == "" {
		a.RegisterURL = "/register"
	}
	if a.ProtectedURL == "" {
		a.ProtectedURL = "/welcome"
	}
	if a.PublicURL == "" {
		a.PublicURL = "/"
	}
	if a.UsernameField == "" {
		a.UsernameField = "username"
	}
	if a.PasswordField == "" {
		a.PasswordField = "password"
	}
	return a
}

func (a *SecureAuth) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

// Handler returns the routes owned by the coordinator.  Pages are left to the
// caller.
func (a *SecureAuth) Handler() http.Handler {
	return a.setupRoutes().mux
}

// AddAuth mounts a federated provider handler under prefix, e.g. "/auth/google".
func (a *SecureAuth) AddAuth(prefix string, handler http.Handler) *SecureAuth {
	a.setupRoutes()
	prefix = strings.TrimSuffix(prefix, "/")
	a.logger().Info("adding federated auth", "prefix", prefix)
	a.mux.Handle(prefix+"/", http.StripPrefix(prefix, handler))
	// "/auth/google" itself starts the handshake
	a.mux.Handle(prefix, http.StripPrefix(prefix, handler))
	return a
}

func (a *SecureAuth) setupRoutes() *SecureAuth {
	a.EnsureDefaults()
	if a.mux == nil {
		a.mux = http.NewServeMux()
		a.mux.HandleFunc("POST "+a.LoginURL, a.HandleLogin)
		a.mux.HandleFunc("POST "+a.RegisterURL, a.HandleRegister)
		a.mux.HandleFunc("/logout", a.HandleLogout)
	}
	return a
}

// HandleLogin verifies a submitted email/password.  Both an unknown email and a
// wrong password send the caller back to the login page.
func (a *SecureAuth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	username, password, err := parseCredentialsForm(r, a.UsernameField, a.PasswordField)
	if err != nil {
		a.logger().Info("login form rejected", "err", err)
		http.Redirect(w, r, a.LoginURL, http.StatusFound)
		return
	}

	user, err := a.Local.Verify(r.Context(), username, password)
	if err != nil {
		if IsRejection(err) || errors.Is(err, ErrMissingField) {
			http.Redirect(w, r, a.LoginURL, http.StatusFound)
			return
		}
		a.fail(w, "login", err)
		return
	}
	a.saveUserAndRedirect(w, r, user, MethodLocal)
}

// HandleRegister creates a local account and logs it in.  A duplicate email is
// sent to the login page instead.
func (a *SecureAuth) HandleRegister(w http.ResponseWriter, r *http.Request) {
	username, password, err := parseCredentialsForm(r, a.UsernameField, a.PasswordField)
	if err != nil {
		a.logger().Info("registration form rejected", "err", err)
		http.Redirect(w, r, a.RegisterURL, http.StatusFound)
		return
	}

	user, err := a.Local.Register(r.Context(), username, password)
	switch {
	case err == nil:
		a.saveUserAndRedirect(w, r, user, MethodLocal)
	case errors.Is(err, ErrConflict):
		http.Redirect(w, r, a.LoginURL, http.StatusFound)
	case errors.Is(err, ErrMissingField), errors.Is(err, ErrPasswordTooLong):
		http.Redirect(w, r, a.RegisterURL, http.StatusFound)
	default:
		a.fail(w, "register", err)
	}
}

// SaveFederatedUserAndRedirect is the oauth2.HandleUserFunc for federated
// providers.  It resolves the asserted identity and establishes a session.
func (a *SecureAuth) SaveFederatedUserAndRedirect(provider string, token *oauth2.Token, info *oa2.UserInfo, w http.ResponseWriter, r *http.Request) {
	assertion := FederatedAssertion{
		Provider:      provider,
		Subject:       info.Subject,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		Name:          info.Name,
		Picture:       info.Picture,
	}
	user, err := a.Federated.Resolve(r.Context(), assertion)
	if err != nil {
		if errors.Is(err, ErrInternal) {
			a.fail(w, "federated login", err)
			return
		}
		a.logger().Info("federated login rejected", "provider", provider, "err", err)
		http.Redirect(w, r, a.LoginURL, http.StatusFound)
		return
	}
	a.saveUserAndRedirect(w, r, user, provider)
}

// HandleLogout destroys the current session and clears the cookie.
func (a *SecureAuth) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(a.CookieName); err == nil && cookie.Value != "" {
		if err := a.Sessions.Invalidate(r.Context(), cookie.Value); err != nil {
			a.logger().Warn("error invalidating session", "err", err)
		}
	}
	a.setSessionCookie(w, "", time.Time{})
	http.Redirect(w, r, a.PublicURL, http.StatusFound)
}

func (a *SecureAuth) saveUserAndRedirect(w http.ResponseWriter, r *http.Request, user *User, method string) {
	// drop whatever session the caller arrived with
	if cookie, err := r.Cookie(a.CookieName); err == nil && cookie.Value != "" {
		if err := a.Sessions.Invalidate(r.Context(), cookie.Value); err != nil {
			a.logger().Warn("error invalidating previous session", "err", err)
		}
	}

	token, expiry, err := a.Sessions.Establish(r.Context(), user, method)
	if err != nil {
		a.fail(w, "establish session", err)
		return
	}
	a.setSessionCookie(w, token, expiry)
	http.Redirect(w, r, a.ProtectedURL, http.StatusFound)
}

// setSessionCookie writes the session cookie, or clears it when token is empty.
func (a *SecureAuth) setSessionCookie(w http.ResponseWriter, token string, expiry time.Time) {
	cookie := &http.Cookie{
		Name:     a.CookieName,
		Value:    token,
		Domain:   a.CookieDomain,
		Path:     "/",
		HttpOnly: true,
		Secure:   a.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if token == "" {
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(1, 0)
	} else {
		cookie.MaxAge = int(a.Sessions.Lifetime().Seconds())
		cookie.Expires = expiry
	}
	http.SetCookie(w, cookie)
}

func (a *SecureAuth) fail(w http.ResponseWriter, op string, err error) {
	a.logger().Error("auth failure", "op", op, "err", err)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}
