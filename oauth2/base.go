package oauth2

import (
	"context"
	"net/http"
	"net/url"
	"path"

	"golang.org/x/oauth2"
)

// UserInfo is the identity a provider asserts after a successful handshake.
type UserInfo struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// HandleUserFunc is called once the provider has vouched for a user.  It owns the
// response from that point on.
type HandleUserFunc func(provider string, token *oauth2.Token, info *UserInfo, w http.ResponseWriter, r *http.Request)

type BaseOAuth2 struct {
	ClientId     string
	ClientSecret string
	CallbackURL  string

	// Path, relative to where the handler is mounted, that the provider
	// redirects back to.  Defaults to the last element of CallbackURL.
	CallbackPath string

	// Where the caller is sent when the handshake fails
	AuthFailureUrl string

	HandleUser  HandleUserFunc
	oauthConfig oauth2.Config
	httpClient  *http.Client
}

func NewBaseOAuth2(clientId string, clientSecret string, callbackUrl string, handleUser HandleUserFunc) *BaseOAuth2 {
	out := &BaseOAuth2{
		ClientId:       clientId,
		ClientSecret:   clientSecret,
		CallbackURL:    callbackUrl,
		AuthFailureUrl: "/login",
		HandleUser:     handleUser,
		oauthConfig: oauth2.Config{
			ClientID:     clientId,
			ClientSecret: clientSecret,
			RedirectURL:  callbackUrl,
		},
	}
	return out
}

// SetHTTPClient sets the client used for token exchange and profile calls.
func (b *BaseOAuth2) SetHTTPClient(c *http.Client) {
	b.httpClient = c
}

// SetOAuthEndpoint overrides the provider's auth and token URLs.
func (b *BaseOAuth2) SetOAuthEndpoint(e oauth2.Endpoint) {
	b.oauthConfig.Endpoint = e
}

// Config returns a copy of the underlying oauth2 config
func (b *BaseOAuth2) Config() oauth2.Config {
	return b.oauthConfig
}

// ExchangeContext returns ctx carrying the configured HTTP client for the oauth2
// library to use.
func (b *BaseOAuth2) ExchangeContext(ctx context.Context) context.Context {
	if b.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, b.httpClient)
}

func (b *BaseOAuth2) callbackPath() string {
	if b.CallbackPath != "" {
		return b.CallbackPath
	}
	u, err := url.Parse(b.CallbackURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return "/callback"
	}
	return "/" + path.Base(u.Path)
}
