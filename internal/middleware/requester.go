package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/onnwee/civitas/internal/auth"
)

// Demo identity headers, honoured only when AuthConfig.AllowDemoHeaders is set.
const (
	DemoUserHeader = "X-Demo-User"
	DemoRoleHeader = "X-Role"
)

// AuthConfig configures requester authentication.
type AuthConfig struct {
	// Tokens validates bearer tokens. Nil disables bearer authentication.
	Tokens *auth.TokenService
	// AllowDemoHeaders accepts X-Demo-User / X-Role without a token.
	// Development only.
	AllowDemoHeaders bool
	// Metrics receives auth failure counts. Optional.
	Metrics *Metrics
}

// Authenticate resolves the requester from a bearer token (or demo headers)
// and stores it with SetRequester. Requests without credentials continue as
// anonymous; handlers decide whether that is acceptable. Invalid credentials
// are rejected with 401 auth_failed.
func Authenticate(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requester, reason, err := resolveRequester(cfg, r)
			if err != nil {
				cfg.Metrics.IncAuthFailure(reason)
				writeError(w, r, http.StatusUnauthorized, "auth_failed", err.Error())
				return
			}

			if !requester.Anonymous() {
				ctx := SetRequester(r.Context(), requester)
				UpdateResponseContext(w, ctx)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

var (
	errMalformedAuth = errors.New("authorization header must use the Bearer scheme")
	errTokenInvalid  = errors.New("invalid access token")
	errTokenExpired  = errors.New("access token has expired")
	errDemoRole      = errors.New("X-Role must be civilian or authority")
)

func resolveRequester(cfg AuthConfig, r *http.Request) (auth.Requester, string, error) {
	if header := r.Header.Get("Authorization"); header != "" && cfg.Tokens != nil {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return auth.Requester{}, "invalid_token", errMalformedAuth
		}
		claims, err := cfg.Tokens.Validate(strings.TrimSpace(token))
		switch {
		case errors.Is(err, auth.ErrExpiredToken):
			return auth.Requester{}, "expired_token", errTokenExpired
		case err != nil:
			return auth.Requester{}, "invalid_token", errTokenInvalid
		}
		return claims.Requester(), "", nil
	}

	if cfg.AllowDemoHeaders {
		user := strings.TrimSpace(r.Header.Get(DemoUserHeader))
		if user == "" {
			return auth.Requester{}, "", nil
		}
		role := auth.RoleCivilian
		if h := r.Header.Get(DemoRoleHeader); h != "" {
			parsed, err := auth.ParseRole(h)
			if err != nil {
				return auth.Requester{}, "invalid_role", errDemoRole
			}
			role = parsed
		}
		return auth.Requester{UserID: user, Role: role}, "", nil
	}

	return auth.Requester{}, "", nil
}
