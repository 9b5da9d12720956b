package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type identityKey struct{}

// devIdentity is used for every request when no JWT secret is configured.
const devIdentity = "admin@localhost"

type adminClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Identity returns the authenticated administrator stored by requireIdentity.
func Identity(ctx context.Context) string {
	id, _ := ctx.Value(identityKey{}).(string)
	return id
}

func (h *Handler) requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(h.JWTSecret) == 0 {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, devIdentity)))
			return
		}

		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			fail(w, http.StatusUnauthorized, "missing bearer token", nil)
			return
		}

		var claims adminClaims
		_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
			return h.JWTSecret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			h.Log.Debug("rejected bearer token", zap.Error(err))
			fail(w, http.StatusUnauthorized, "invalid token", nil)
			return
		}

		identity := claims.Email
		if identity == "" {
			identity = claims.Subject
		}
		if identity == "" {
			fail(w, http.StatusUnauthorized, "token carries no identity", nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, identity)))
	})
}
