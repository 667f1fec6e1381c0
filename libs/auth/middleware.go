package auth

import (
	"context"
	"net/http"

	"github.com/md-rashed-zaman/slotmeet/libs/httpx"
)

type ctxKey int

const ctxKeyIdentity ctxKey = iota

// Identity is the authenticated caller.
type Identity struct {
	UserID   string
	Username string
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKeyIdentity).(Identity)
	return id, ok && id.UserID != ""
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(v Verifier) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "Unauthenticated")
				return
			}
			claims, err := v.Verify(token)
			if err != nil {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "Unauthenticated")
				return
			}
			ctx := WithIdentity(r.Context(), Identity{UserID: claims.Subject, Username: claims.Username})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserKey keys rate limits by the authenticated user, falling back to the client IP.
func UserKey(r *http.Request) string {
	if id, ok := IdentityFromContext(r.Context()); ok {
		return "user:" + id.UserID
	}
	return "ip:" + httpx.ClientIP(r)
}
