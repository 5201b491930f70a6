package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/staffauth"
)

// Authenticator verifies an access token. *staffauth.Engine implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (staffauth.Identity, error)
}

// GuardOption configures Guard.
type GuardOption func(*guardConfig)

type guardConfig struct {
	clientIP ClientIPFunc
}

// WithClientIPFunc replaces ClientIP as the source of the audited caller address.
func WithClientIPFunc(f ClientIPFunc) GuardOption {
	return func(c *guardConfig) {
		if f != nil {
			c.clientIP = f
		}
	}
}

// Guard rejects requests without a valid access credential and passes the
// rest on with the identity attached to the request context.
func Guard(auth Authenticator, opts ...GuardOption) func(http.Handler) http.Handler {
	cfg := guardConfig{clientIP: ClientIP}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				WriteError(w, staffauth.ErrStorage)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				WriteError(w, staffauth.ErrMissingCredential)
				return
			}

			ctx := staffauth.WithClientIP(r.Context(), cfg.clientIP(r))
			ident, err := auth.Authenticate(ctx, token)
			if err != nil {
				WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(staffauth.WithIdentity(ctx, ident)))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	value = strings.TrimSpace(value)
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
