package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/PaulBabatuyi/pairchat/internal/apperror"
	"github.com/PaulBabatuyi/pairchat/internal/auth"
	"github.com/PaulBabatuyi/pairchat/internal/envelope"
)

type contextKey string

const claimsKey contextKey = "claims"

// Identity is the authenticated caller.
type Identity struct {
	UserID uuid.UUID
	Email  string
}

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	VerifyToken(token string) (*auth.Claims, error)
}

// RequireAuth rejects requests without a valid "Authorization: Bearer"
// token and stores the caller's Identity in the request context.
func RequireAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				envelope.Error(w, apperror.ErrMissingCredentials)
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				envelope.Error(w, apperror.ErrMissingCredentials)
				return
			}
			id, err := claims.UserUUID()
			if err != nil {
				envelope.Error(w, apperror.ErrMissingCredentials)
				return
			}

			ctx := WithIdentity(r.Context(), Identity{UserID: id, Email: claims.Email})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, claimsKey, id)
}

// IdentityFrom returns the caller stored by RequireAuth.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(claimsKey).(Identity)
	return id, ok
}
