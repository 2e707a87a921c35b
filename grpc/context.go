// Package grpc carries secureauth sessions into gRPC services.  Clients send the
// session token as metadata; the server interceptors resolve it to a principal.
package grpc

import (
	"context"

	"google.golang.org/grpc/metadata"

	oa "github.com/panyam/secureauth"
)

// DefaultMetadataKeySessionToken is the gRPC metadata key carrying the session token
const DefaultMetadataKeySessionToken = "x-session-token"

// Config holds the metadata key configuration for auth context.
type Config struct {
	// MetadataKeySessionToken defaults to "x-session-token".
	MetadataKeySessionToken string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{MetadataKeySessionToken: DefaultMetadataKeySessionToken}
}

// EnsureDefaults fills in default values for any unset fields.
func (c *Config) EnsureDefaults() {
	if c.MetadataKeySessionToken == "" {
		c.MetadataKeySessionToken = DefaultMetadataKeySessionToken
	}
}

// SessionTokenFromContext returns the session token from incoming metadata, or "".
func SessionTokenFromContext(ctx context.Context, config *Config) string {
	if config == nil {
		config = DefaultConfig()
	}
	config.EnsureDefaults()

	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(config.MetadataKeySessionToken); len(values) > 0 {
		return values[0]
	}
	return ""
}

// SessionTokenToOutgoingContext attaches a session token to outgoing metadata.
func SessionTokenToOutgoingContext(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, DefaultMetadataKeySessionToken, token)
}

// PrincipalFromContext returns the principal the interceptor resolved, or nil.
func PrincipalFromContext(ctx context.Context) *oa.Principal {
	return oa.PrincipalFromContext(ctx)
}

// UserIDFromContext returns the authenticated user's id, or "".
func UserIDFromContext(ctx context.Context) string {
	if p := oa.PrincipalFromContext(ctx); p != nil {
		return p.UserID
	}
	return ""
}

// IsAuthenticated returns true if the interceptor resolved a principal.
func IsAuthenticated(ctx context.Context) bool {
	return oa.PrincipalFromContext(ctx) != nil
}
