package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	authcore "github.com/radelabs/authcore"
)

// Reason codes returned in the 401 body so clients can distinguish
// failure classes without parsing messages.
const (
	ReasonHeaderMissing   = "authorization_header_missing"
	ReasonMalformedHeader = "authorization_header_malformed"
	ReasonEmptyToken      = "token_empty"
	ReasonTokenExpired    = "token_expired"
	ReasonTokenInvalid    = "token_invalid"
)

type userIDContextKey struct{}

// UserIDFromContext returns the authenticated user ID injected by
// Guard.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDContextKey{}).(string)
	return id, ok
}

// Guard wraps a handler with bearer-token authentication against svc.
func Guard(svc *authcore.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if svc == nil {
				reject(w, ReasonTokenInvalid)
				return
			}

			token, reason := bearerToken(r.Header.Get("Authorization"))
			if reason != "" {
				reject(w, reason)
				return
			}

			userID, err := svc.Validate(token)
			if err != nil {
				switch {
				case errors.Is(err, authcore.ErrTokenExpired):
					reject(w, ReasonTokenExpired)
				default:
					reject(w, ReasonTokenInvalid)
				}
				return
			}

			ctx := context.WithValue(r.Context(), userIDContextKey{}, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token and reports which contract clause a
// bad header violated.
func bearerToken(value string) (token, reason string) {
	const bearer = "Bearer "
	if value == "" {
		return "", ReasonHeaderMissing
	}
	if !strings.HasPrefix(value, bearer) {
		return "", ReasonMalformedHeader
	}
	token = value[len(bearer):]
	if token == "" {
		return "", ReasonEmptyToken
	}
	return token, ""
}

func reject(w http.ResponseWriter, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": reason,
	})
}
