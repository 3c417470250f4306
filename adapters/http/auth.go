package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/glowdesk/aimeter/ports"
	"github.com/rs/zerolog"
)

// TokenPrefix is the scheme marker of an API token. Full format:
// am_<prefix>_<secret>, where the prefix is a public lookup key and the
// secret is stored hashed.
const TokenPrefix = "am_"

type contextKey string

const actingUserKey contextKey = "acting_user"

// ActingUser returns the user the authenticated request acts for.
func ActingUser(ctx context.Context) string {
	v, _ := ctx.Value(actingUserKey).(string)
	return v
}

// TokenAuth validates API tokens and resolves the acting user.
// User-bound tokens act for their own user. Service tokens (no bound
// user) must name the acting user via the X-Acting-User header.
type TokenAuth struct {
	tokens ports.TokenStore
	hasher ports.Hasher
	logger zerolog.Logger
}

// NewTokenAuth creates token auth middleware state.
func NewTokenAuth(tokens ports.TokenStore, hasher ports.Hasher, logger zerolog.Logger) *TokenAuth {
	return &TokenAuth{tokens: tokens, hasher: hasher, logger: logger}
}

// Middleware authenticates the request and stores the acting user in the
// context.
func (a *TokenAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := extractToken(r)
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "missing_token", "An API token is required")
			return
		}

		token, err := a.validate(r.Context(), raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token", "The provided token is invalid")
			return
		}

		userID := token.UserID
		if userID == "" {
			userID = r.Header.Get("X-Acting-User")
			if userID == "" {
				writeError(w, http.StatusBadRequest, "missing_acting_user", "Service tokens must set the X-Acting-User header")
				return
			}
		}

		ctx := context.WithValue(r.Context(), actingUserKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

var errInvalidToken = errors.New("invalid token")

func (a *TokenAuth) validate(ctx context.Context, raw string) (ports.Token, error) {
	rest, ok := strings.CutPrefix(raw, TokenPrefix)
	if !ok {
		return ports.Token{}, errInvalidToken
	}
	prefix, secret, ok := strings.Cut(rest, "_")
	if !ok || prefix == "" || secret == "" {
		return ports.Token{}, errInvalidToken
	}

	token, err := a.tokens.GetByPrefix(ctx, prefix)
	if err != nil {
		if !errors.Is(err, ports.ErrNotFound) {
			a.logger.Error().Err(err).Msg("token lookup failed")
		}
		return ports.Token{}, errInvalidToken
	}
	if token.RevokedAt != nil {
		return ports.Token{}, errInvalidToken
	}
	if !a.hasher.Compare(token.SecretHash, secret) {
		return ports.Token{}, errInvalidToken
	}
	return token, nil
}

// extractToken extracts the API token from the request.
// Supports: Authorization header (Bearer token) and X-API-Key header.
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if strings.HasPrefix(auth, "Bearer ") {
			return strings.TrimPrefix(auth, "Bearer ")
		}
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	return ""
}
