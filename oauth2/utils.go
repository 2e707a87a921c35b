package oauth2

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

const stateCookieName = "oauthstate"

// stateCookieLifetime bounds how long a user can sit on the provider's consent
// screen.
const stateCookieLifetime = 10 * time.Minute

func generateStateOauthCookie(w http.ResponseWriter) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate oauth state: %w", err)
	}
	state := base64.URLEncoding.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(stateCookieLifetime.Seconds()),
		Expires:  time.Now().Add(stateCookieLifetime),
	})
	return state, nil
}

func clearStateOauthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:    stateCookieName,
		Value:   "",
		Path:    "/",
		MaxAge:  -1,
		Expires: time.Unix(1, 0),
	})
}

// OauthRedirector starts the authorization-code handshake: it sets a fresh state
// cookie and sends the caller to the provider's consent page.
func OauthRedirector(oauthConfig *oauth2.Config) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		oauthState, err := generateStateOauthCookie(w)
		if err != nil {
			slog.Error("error starting oauth handshake", "err", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		u := oauthConfig.AuthCodeURL(oauthState)
		http.Redirect(w, r, u, http.StatusFound)
	}
}
