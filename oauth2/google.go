package oauth2

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	googleoauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// ProviderGoogle is the provider name passed to HandleUserFunc.
const ProviderGoogle = "google"

// GoogleOAuth2 runs the authorization-code handshake against Google.  Mounted
// under a prefix, "/" starts the handshake and the callback path completes it.
type GoogleOAuth2 struct {
	*BaseOAuth2

	// Base URL of the userinfo API.  Empty means Google's.
	UserInfoEndpoint string
}

func NewGoogleOAuth2(clientId string, clientSecret string, callbackUrl string, handleUser HandleUserFunc) *GoogleOAuth2 {
	if clientId == "" {
		clientId = os.Getenv("GOOGLE_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	}
	if callbackUrl == "" {
		callbackUrl = os.Getenv("GOOGLE_CALLBACK_URL")
	}

	out := &GoogleOAuth2{
		BaseOAuth2: NewBaseOAuth2(clientId, clientSecret, callbackUrl, handleUser),
	}
	out.oauthConfig.Endpoint = google.Endpoint
	out.oauthConfig.Scopes = []string{
		googleoauth2.UserinfoEmailScope,
		googleoauth2.UserinfoProfileScope,
	}
	return out
}

// Handler returns g as an http.Handler
func (g *GoogleOAuth2) Handler() http.Handler {
	return g
}

func (g *GoogleOAuth2) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "", "/":
		OauthRedirector(&g.oauthConfig)(w, r)
	case g.callbackPath(), g.callbackPath() + "/":
		g.handleCallback(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (g *GoogleOAuth2) handleCallback(w http.ResponseWriter, r *http.Request) {
	if providerErr := r.FormValue("error"); providerErr != "" {
		slog.Info("google declined authorization", "error", providerErr)
		g.failed(w, r)
		return
	}

	oauthState, _ := r.Cookie(stateCookieName)
	if oauthState == nil || oauthState.Value == "" {
		slog.Warn("oauth callback without state cookie")
		g.failed(w, r)
		return
	}
	if r.FormValue("state") != oauthState.Value {
		slog.Warn("oauth state mismatch")
		g.failed(w, r)
		return
	}
	clearStateOauthCookie(w)

	ctx := g.ExchangeContext(r.Context())
	token, err := g.oauthConfig.Exchange(ctx, r.FormValue("code"))
	if err != nil {
		slog.Warn("oauth code exchange failed", "err", err)
		g.failed(w, r)
		return
	}

	info, err := g.fetchUserInfo(ctx, token)
	if err != nil {
		slog.Warn("fetching google profile failed", "err", err)
		g.failed(w, r)
		return
	}
	g.HandleUser(ProviderGoogle, token, info, w, r)
}

func (g *GoogleOAuth2) failed(w http.ResponseWriter, r *http.Request) {
	clearStateOauthCookie(w)
	http.Redirect(w, r, g.AuthFailureUrl, http.StatusFound)
}

func (g *GoogleOAuth2) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*UserInfo, error) {
	opts := []option.ClientOption{option.WithHTTPClient(g.oauthConfig.Client(ctx, token))}
	if g.UserInfoEndpoint != "" {
		opts = append(opts, option.WithEndpoint(g.UserInfoEndpoint))
	}
	svc, err := googleoauth2.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("userinfo client: %w", err)
	}
	if g.UserInfoEndpoint != "" {
		svc.BasePath = g.UserInfoEndpoint
	}

	ui, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("userinfo: %w", err)
	}
	if ui.Id == "" || ui.Email == "" {
		return nil, fmt.Errorf("userinfo: missing id or email")
	}
	out := &UserInfo{
		Subject: ui.Id,
		Email:   ui.Email,
		Name:    ui.Name,
		Picture: ui.Picture,
	}
	if ui.VerifiedEmail != nil {
		out.EmailVerified = *ui.VerifiedEmail
	}
	return out, nil
}
