package secureauth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	oauth2lib "golang.org/x/oauth2"

	oa "github.com/panyam/secureauth"
	oa2 "github.com/panyam/secureauth/oauth2"
)

// newTestApp mounts the auth routes next to a protected /welcome page
func newTestApp(auth *oa.SecureAuth) http.Handler {
	mw := auth.Middleware()
	mux := http.NewServeMux()
	mux.Handle("/", auth.Handler())
	mux.Handle("GET /welcome", mw.EnsureUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := oa.PrincipalFromContext(r.Context())
		w.Write([]byte("hello " + p.Email + " via " + p.Method))
	})))
	return mux
}

func postForm(h http.Handler, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func get(h http.Handler, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func sessionCookie(rr *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == oa.DefaultSessionCookieName {
			return c
		}
	}
	return nil
}

func expectRedirect(t *testing.T, rr *httptest.ResponseRecorder, location string) {
	t.Helper()
	if rr.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Location"); got != location {
		t.Fatalf("expected redirect to %s, got %s", location, got)
	}
}

func TestRegisterFlow(t *testing.T) {
	auth, _ := setupTestAuth(t)
	app := newTestApp(auth)

	rr := postForm(app, "/register", url.Values{"username": {"flow@example.com"}, "password": {"password123"}})
	expectRedirect(t, rr, "/welcome")

	cookie := sessionCookie(rr)
	if cookie == nil || cookie.Value == "" {
		t.Fatal("expected a session cookie")
	}
	if !cookie.HttpOnly || cookie.SameSite != http.SameSiteLaxMode || cookie.Path != "/" {
		t.Errorf("unexpected cookie attributes: %+v", cookie)
	}
	if cookie.MaxAge != int(auth.Sessions.Lifetime().Seconds()) {
		t.Errorf("expected Max-Age %v, got %d", auth.Sessions.Lifetime().Seconds(), cookie.MaxAge)
	}

	rr = get(app, "/welcome", cookie)
	if rr.Code != http.StatusOK || rr.Body.String() != "hello flow@example.com via local" {
		t.Errorf("unexpected welcome response %d: %q", rr.Code, rr.Body.String())
	}
}

func TestRegisterFlowRejections(t *testing.T) {
	auth, _ := setupTestAuth(t)
	app := newTestApp(auth)

	rr := postForm(app, "/register", url.Values{"username": {"dup@example.com"}, "password": {"password123"}})
	expectRedirect(t, rr, "/welcome")

	tests := []struct {
		name     string
		form     url.Values
		location string
	}{
		{"duplicate email", url.Values{"username": {"dup@example.com"}, "password": {"other"}}, "/login"},
		{"missing password", url.Values{"username": {"new@example.com"}}, "/register"},
		{"missing username", url.Values{"password": {"password123"}}, "/register"},
		{"too long", url.Values{"username": {"long@example.com"}, "password": {strings.Repeat("x", 80)}}, "/register"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postForm(app, "/register", tt.form)
			expectRedirect(t, rr, tt.location)
			if c := sessionCookie(rr); c != nil {
				t.Errorf("no session expected, got %+v", c)
			}
		})
	}
}

func TestLoginFlow(t *testing.T) {
	auth, _ := setupTestAuth(t)
	app := newTestApp(auth)
	postForm(app, "/register", url.Values{"username": {"login@example.com"}, "password": {"password123"}})

	t.Run("wrong password", func(t *testing.T) {
		rr := postForm(app, "/login", url.Values{"username": {"login@example.com"}, "password": {"nope"}})
		expectRedirect(t, rr, "/login")
		if sessionCookie(rr) != nil {
			t.Error("rejected login must not set a cookie")
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		rr := postForm(app, "/login", url.Values{"username": {"ghost@example.com"}, "password": {"password123"}})
		expectRedirect(t, rr, "/login")
		if sessionCookie(rr) != nil {
			t.Error("rejected login must not set a cookie")
		}
	})

	t.Run("json body", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{"username": "login@example.com", "password": "password123"})
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(string(body)))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		app.ServeHTTP(rr, req)
		expectRedirect(t, rr, "/welcome")
	})

	t.Run("oversized json body", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{
			"username": "login@example.com",
			"password": "password123",
			"padding":  strings.Repeat("x", 2<<20),
		})
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(string(body)))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		app.ServeHTTP(rr, req)
		expectRedirect(t, rr, "/login")
		if sessionCookie(rr) != nil {
			t.Error("oversized body must not log in")
		}
	})

	t.Run("success replaces the old session", func(t *testing.T) {
		first := sessionCookie(postForm(app, "/login", url.Values{"username": {"login@example.com"}, "password": {"password123"}}))
		rr := postForm(app, "/login", url.Values{"username": {"login@example.com"}, "password": {"password123"}}, first)
		expectRedirect(t, rr, "/welcome")
		second := sessionCookie(rr)
		if second == nil || second.Value == first.Value {
			t.Fatal("expected a fresh session token")
		}
		expectRedirect(t, get(app, "/welcome", first), "/login")
		if rr := get(app, "/welcome", second); rr.Code != http.StatusOK {
			t.Errorf("new session should be valid, got %d", rr.Code)
		}
	})

	t.Run("GET is not a login", func(t *testing.T) {
		rr := get(app, "/login")
		if rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rr.Code)
		}
	})
}

func TestLogoutFlow(t *testing.T) {
	auth, _ := setupTestAuth(t)
	app := newTestApp(auth)
	cookie := sessionCookie(postForm(app, "/register", url.Values{"username": {"bye@example.com"}, "password": {"password123"}}))

	rr := get(app, "/logout", cookie)
	expectRedirect(t, rr, "/")
	cleared := sessionCookie(rr)
	if cleared == nil || cleared.Value != "" || cleared.MaxAge >= 0 {
		t.Errorf("expected the cookie to be cleared, got %+v", cleared)
	}

	expectRedirect(t, get(app, "/welcome", cookie), "/login")

	// logging out twice, or without a session, is harmless
	expectRedirect(t, postForm(app, "/logout", nil, cookie), "/")
	expectRedirect(t, get(app, "/logout"), "/")
}

func TestEnsureUserWithoutLoginURL(t *testing.T) {
	auth, _ := setupTestAuth(t)
	mw := auth.Middleware()
	mw.LoginURL = ""
	h := mw.EnsureUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run")
	}))
	if rr := get(h, "/"); rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
}

func TestExtractUser(t *testing.T) {
	auth, _ := setupTestAuth(t)
	app := newTestApp(auth)
	cookie := sessionCookie(postForm(app, "/register", url.Values{"username": {"x@example.com"}, "password": {"password123"}}))

	var seen *oa.Principal
	h := auth.Middleware().ExtractUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = oa.PrincipalFromContext(r.Context())
	}))

	get(h, "/")
	if seen != nil {
		t.Errorf("expected no principal, got %+v", seen)
	}
	get(h, "/", &http.Cookie{Name: oa.DefaultSessionCookieName, Value: "forged"})
	if seen != nil {
		t.Errorf("expected no principal for a forged token, got %+v", seen)
	}
	get(h, "/", cookie)
	if seen == nil || seen.Email != "x@example.com" {
		t.Errorf("expected principal for x@example.com, got %+v", seen)
	}
}

// mockGoogle serves the token and userinfo endpoints for the callback test
func mockGoogle(t *testing.T, email string, verified bool) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"access_token": "at", "token_type": "Bearer", "expires_in": 3600})
	})
	mux.HandleFunc("/oauth2/v2/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": "g-42", "email": email, "verified_email": verified, "name": "G User"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func mountGoogle(auth *oa.SecureAuth, provider *httptest.Server) http.Handler {
	g := oa2.NewGoogleOAuth2("cid", "csecret", "http://localhost/auth/google/welcome", auth.SaveFederatedUserAndRedirect)
	g.SetOAuthEndpoint(oauth2lib.Endpoint{
		AuthURL:   provider.URL + "/auth",
		TokenURL:  provider.URL + "/token",
		AuthStyle: oauth2lib.AuthStyleInParams,
	})
	g.UserInfoEndpoint = provider.URL + "/"
	auth.AddAuth("/auth/google", g.Handler())
	return newTestApp(auth)
}

func googleCallback(app http.Handler) *httptest.ResponseRecorder {
	start := get(app, "/auth/google")
	var state *http.Cookie
	for _, c := range start.Result().Cookies() {
		if c.Name == "oauthstate" {
			state = c
		}
	}
	loc, _ := url.Parse(start.Header().Get("Location"))
	return get(app, "/auth/google/welcome?code=abc&state="+url.QueryEscape(loc.Query().Get("state")), state)
}

func TestGoogleLoginFlow(t *testing.T) {
	auth, store := setupTestAuth(t)
	app := mountGoogle(auth, mockGoogle(t, "GUser@Example.com", true))

	rr := googleCallback(app)
	expectRedirect(t, rr, "/welcome")
	cookie := sessionCookie(rr)
	if cookie == nil {
		t.Fatal("expected a session cookie")
	}
	if rr := get(app, "/welcome", cookie); rr.Body.String() != "hello guser@example.com via google" {
		t.Errorf("unexpected welcome body %q", rr.Body.String())
	}

	user, err := store.FindByIdentity(t.Context(), "guser@example.com")
	if err != nil || !user.IsFederated() {
		t.Fatalf("expected a federated user, got %+v, %v", user, err)
	}

	// a second login reuses the account
	googleCallback(app)
	again, _ := store.FindByIdentity(t.Context(), "guser@example.com")
	if again.ID != user.ID {
		t.Errorf("expected the same user, got %s and %s", user.ID, again.ID)
	}

	// and the account cannot be used with a password
	rr = postForm(app, "/login", url.Values{"username": {"guser@example.com"}, "password": {oa.FederatedCredential}})
	expectRedirect(t, rr, "/login")
}

func TestGoogleLoginRejected(t *testing.T) {
	auth, _ := setupTestAuth(t)
	auth.Federated.Policy = oa.RejectLocalAccounts
	app := mountGoogle(auth, mockGoogle(t, "local@example.com", true))
	postForm(app, "/register", url.Values{"username": {"local@example.com"}, "password": {"password123"}})

	rr := googleCallback(app)
	expectRedirect(t, rr, "/login")
	if sessionCookie(rr) != nil {
		t.Error("rejected federated login must not set a session")
	}
}

func TestGoogleProviderError(t *testing.T) {
	auth, _ := setupTestAuth(t)
	app := mountGoogle(auth, mockGoogle(t, "x@example.com", true))

	rr := get(app, "/auth/google/welcome?error=access_denied")
	expectRedirect(t, rr, "/login")
}
