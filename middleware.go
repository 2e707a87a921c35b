package secureauth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
)

type principalKey struct{}

// Middleware performs the access check for protected handlers by resolving the
// session cookie through a SessionManager.
type Middleware struct {
	Sessions   *SessionManager
	CookieName string

	// Where unauthenticated callers are sent.  If empty a 401 is returned instead.
	LoginURL string
	Logger   *slog.Logger
}

// Middleware returns an access-check middleware sharing the coordinator's cookie
// and login page.
func (a *SecureAuth) Middleware() *Middleware {
	a.EnsureDefaults()
	return &Middleware{
		Sessions:   a.Sessions,
		CookieName: a.CookieName,
		LoginURL:   a.LoginURL,
		Logger:     a.Logger,
	}
}

func (m *Middleware) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

func (m *Middleware) cookieName() string {
	if m.CookieName != "" {
		return m.CookieName
	}
	return DefaultSessionCookieName
}

// GetLoggedInPrincipal resolves the session carried by the request.
func (m *Middleware) GetLoggedInPrincipal(r *http.Request) (*Principal, error) {
	if p := PrincipalFromContext(r.Context()); p != nil {
		return p, nil
	}
	cookie, err := r.Cookie(m.cookieName())
	if err != nil {
		return nil, ErrUnauthenticated
	}
	return m.Sessions.Resolve(r.Context(), cookie.Value)
}

// ExtractUser loads the principal, if any, into the request context.  It never
// redirects.
func (m *Middleware) ExtractUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := m.GetLoggedInPrincipal(r)
		if err != nil {
			if !errors.Is(err, ErrUnauthenticated) {
				m.logger().Warn("error resolving session", "err", err)
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// EnsureUser only lets authenticated requests through.  Everyone else is
// redirected to the login page.
func (m *Middleware) EnsureUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := m.GetLoggedInPrincipal(r)
		if err != nil {
			if !errors.Is(err, ErrUnauthenticated) {
				m.logger().Error("error resolving session", "err", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			if m.LoginURL == "" {
				http.Error(w, "Login Required", http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, m.LoginURL, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// WithPrincipal returns a context carrying p
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal stored by the middleware, or nil.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}
