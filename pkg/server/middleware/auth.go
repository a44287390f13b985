package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/clearview/reportline/pkg/models/domain"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const actorKey contextKey = "actor"

// ActorFromContext returns the authenticated stakeholder placed in the
// context by Auth. The bool is false on unauthenticated requests.
func ActorFromContext(ctx context.Context) (domain.StakeholderAccount, bool) {
	actor, ok := ctx.Value(actorKey).(domain.StakeholderAccount)
	return actor, ok
}

// WithActor returns a context carrying the stakeholder. Exposed for
// handler tests that bypass the middleware.
func WithActor(ctx context.Context, actor domain.StakeholderAccount) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// sessionClaims is the token payload issued at sign-in. The access level
// and domain grants ride in the token so request handling never needs a
// directory lookup.
type sessionClaims struct {
	Email   string   `json:"email"`
	Title   string   `json:"title"`
	Level   string   `json:"level"`
	Domains []string `json:"domains,omitempty"`
	jwt.RegisteredClaims
}

// SignSession issues a session token for the account.
func SignSession(secret string, account domain.StakeholderAccount, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Email:   account.Email,
		Title:   account.Title,
		Level:   string(account.AccessLevel),
		Domains: account.DomainAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Auth validates the bearer token and injects the stakeholder account
// into the request context. Requests without a valid session get 401.
func Auth(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeError(w, http.StatusUnauthorized, "authorization header required")
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeError(w, http.StatusUnauthorized, "invalid authorization format, use: Bearer <token>")
				return
			}

			claims := &sessionClaims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return key, nil
			})
			if err != nil || !token.Valid {
				writeError(w, http.StatusUnauthorized, "invalid or expired session")
				return
			}
			if claims.Subject == "" {
				writeError(w, http.StatusUnauthorized, "session is missing the account id")
				return
			}

			actor := domain.StakeholderAccount{
				ID:           claims.Subject,
				Email:        claims.Email,
				Title:        claims.Title,
				AccessLevel:  domain.AccessLevel(claims.Level),
				DomainAccess: claims.Domains,
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
