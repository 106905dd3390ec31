package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/Togather-Foundation/eventhub/internal/api/problem"
	"github.com/Togather-Foundation/eventhub/internal/auth"
	"github.com/rs/zerolog"
)

const claimsKey contextKey = "claims"

// TokenValidator checks a bearer access token.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// Authenticate requires a valid bearer access token and stores its claims in
// the request context.
func Authenticate(tokens TokenValidator, env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := auth.TokenFromHeader(r.Header.Get("Authorization"))
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="eventhub"`)
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Missing bearer token", err, env)
				return
			}
			claims, err := tokens.Validate(raw)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="eventhub", error="invalid_token"`)
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Invalid token", err, env)
				return
			}

			ctx := WithClaims(r.Context(), claims)
			logger := zerolog.Ctx(ctx).With().Str("user_id", claims.Subject).Logger()
			next.ServeHTTP(w, r.WithContext(logger.WithContext(ctx)))
		})
	}
}

// RequireAdmin rejects authenticated callers without the Admin role. It must
// run after Authenticate.
func RequireAdmin(env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := Claims(r.Context())
			if claims == nil {
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Unauthorized", problem.ErrUnauthorized, env)
				return
			}
			if !auth.IsAdmin(claims.Role) {
				problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Insufficient permissions", problem.ErrForbidden, env)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// Claims returns the token claims of the authenticated caller, or nil.
func Claims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

var errNoSubject = errors.New("token has no user id")

// UserID returns the caller's user id from the token subject.
func UserID(ctx context.Context) (int64, error) {
	claims := Claims(ctx)
	if claims == nil {
		return 0, errNoSubject
	}
	id, err := claims.UserID()
	if err != nil {
		return 0, errors.Join(errNoSubject, err)
	}
	return id, nil
}
