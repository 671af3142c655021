package api

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/merchkit/catalog-api/internal/domain/auth"
)

type ctxKey int

const userKey ctxKey = 0

// APIKeyHeader carries the raw API key on authenticated requests.
const APIKeyHeader = "X-Api-Key"

// requireUser authenticates the request by hashing the presented API key with
// the server pepper and resolving it to an active user. The stored hash is
// re-compared in constant time to guard against timing side-channels even
// when the lookup already matched.
func (h *Handler) requireUser(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(APIKeyHeader)
		if key == "" {
			h.writeUnauthorized(w)
			return
		}

		hash := auth.HashKey(key, h.pepper)
		user, err := h.users.FindByKeyHash(r.Context(), hash)
		if err != nil {
			h.writeUnauthorized(w)
			return
		}

		if subtle.ConstantTimeCompare([]byte(hash), []byte(user.KeyHash)) != 1 || !user.Active {
			h.writeUnauthorized(w)
			return
		}

		ctx := context.WithValue(r.Context(), userKey, *user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// userFrom returns the authenticated user stored by requireUser.
func userFrom(ctx context.Context) auth.User {
	u, _ := ctx.Value(userKey).(auth.User)
	return u
}

func (h *Handler) writeUnauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, errorResponse{
		Code:    http.StatusUnauthorized,
		Message: "unauthorized",
	})
}
