package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	oa "github.com/panyam/secureauth"
	"github.com/panyam/secureauth/internal/config"
	oa2 "github.com/panyam/secureauth/oauth2"
)

// sweepInterval is how often expired sessions are purged from stores that
// don't expire them on their own.
const sweepInterval = 15 * time.Minute

// Server is the secureauth web application: the auth routes, the pages and the
// store backend behind them.
type Server struct {
	cfg     *config.Config
	log     *slog.Logger
	backend *backend
	auth    *oa.SecureAuth
	pages   *pages
	handler http.Handler
}

// New opens the configured backend and wires the application.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Server, error) {
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s, err := newServer(cfg, log, b)
	if err != nil {
		b.close()
		return nil, err
	}
	return s, nil
}

func newServer(cfg *config.Config, log *slog.Logger, b *backend) (*Server, error) {
	policy, err := oa.ParseMergePolicy(cfg.Federated.MergePolicy)
	if err != nil {
		return nil, err
	}

	local := oa.NewLocalVerifier(b.credentials, oa.NewBcryptHasher(cfg.Hash.Cost))
	local.Logger = log

	federated := oa.NewFederatedResolver(b.credentials)
	federated.Policy = policy
	federated.RequireVerifiedEmail = cfg.Federated.RequireVerifiedEmail
	federated.Logger = log

	if cfg.Session.Secret == "" {
		log.Warn("SESSION_SECRET not set, session tokens are stored as plain SHA-256")
	}
	sessions := oa.NewSessionManager(b.sessions, cfg.Session.Lifetime, cfg.Session.Secret)
	sessions.Logger = log

	auth := oa.New(local, federated, sessions)
	auth.Logger = log
	auth.CookieSecure = cfg.Session.CookieSecure

	s := &Server{
		cfg:     cfg,
		log:     log,
		backend: b,
		auth:    auth,
		pages:   newPages(),
	}

	if cfg.Google.ClientID != "" {
		google := oa2.NewGoogleOAuth2(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.CallbackURL, auth.SaveFederatedUserAndRedirect)
		google.AuthFailureUrl = auth.LoginURL
		auth.AddAuth("/auth/google", google.Handler())
	} else {
		log.Info("GOOGLE_CLIENT_ID not set, federated login disabled")
	}

	s.handler = s.routes()
	return s, nil
}

// Auth returns the auth coordinator
func (s *Server) Auth() *oa.SecureAuth {
	return s.auth
}

func (s *Server) routes() http.Handler {
	mw := s.auth.Middleware()
	mux := http.NewServeMux()

	mux.Handle("/", s.auth.Handler())
	mux.Handle("GET /{$}", mw.ExtractUser(s.pages.handler("home")))
	mux.Handle("GET /close", s.pages.handler("home"))
	mux.Handle("GET /login", s.pages.handler("login"))
	mux.Handle("GET /register", s.pages.handler("register"))
	mux.Handle("GET /welcome", mw.EnsureUser(s.pages.handler("welcome")))
	return mux
}

// Handler returns the application's root handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.sweepSessions(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", srv.Addr, "store", s.cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) sweepSessions(ctx context.Context) {
	if s.backend.sweep == nil {
		return
	}
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.backend.sweep(ctx)
			if err != nil {
				s.log.Warn("session sweep failed", "err", err)
				continue
			}
			if n > 0 {
				s.log.Debug("swept expired sessions", "count", n)
			}
		}
	}
}

// Close releases the store backend
func (s *Server) Close() error {
	return s.backend.close()
}
