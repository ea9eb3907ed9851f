package devserver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/liftme/liftme-go/internal/entities"
	"github.com/liftme/liftme-go/pkg/utils"
)

var (
	errPhoneTaken   = errors.New("phone already registered")
	errOrderExists  = errors.New("customer already has an active order")
	errAlreadyRated = errors.New("order already rated")
)

const tokenTTL = 24 * time.Hour

type claims struct {
	Role entities.Role `json:"role"`
	jwt.RegisteredClaims
}

func issueToken(secret []byte, user entities.User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	})
	return token.SignedString(secret)
}

func parseToken(secret []byte, raw string) (string, entities.Role, error) {
	var c claims
	token, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return "", "", entities.ErrUnauthorized
	}
	return c.Subject, c.Role, nil
}

type ctxKey int

const userKey ctxKey = 0

type authUser struct {
	ID   string
	Role entities.Role
}

func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			utils.WriteError(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		id, role, err := parseToken(h.secret, raw)
		if err != nil {
			utils.WriteError(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userKey, authUser{ID: id, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFrom(ctx context.Context) authUser {
	u, _ := ctx.Value(userKey).(authUser)
	return u
}

// requireRole rejects requests from the wrong account kind, mirroring the
// production gateway's route guards.
func (h *Handler) requireRole(role entities.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userFrom(r.Context()).Role != role {
				utils.WriteError(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
