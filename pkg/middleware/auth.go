package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Authorizer resolves the user a request acts as.
type Authorizer interface {
	// Authorize returns the user name and true when the request carries valid credentials.
	Authorize(r *http.Request) (string, bool)
}

// BearerTokenAuthorizer accepts "Authorization: Bearer <token>" headers carrying the token of
// one of Users.
type BearerTokenAuthorizer struct {
	Users map[string]string // user -> token
}

// Authorize compares the presented token against every configured token in constant time.
func (a *BearerTokenAuthorizer) Authorize(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	presented := []byte(strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")))
	if len(presented) == 0 {
		return "", false
	}

	user, found := "", false
	for name, token := range a.Users {
		if token != "" && subtle.ConstantTimeCompare(presented, []byte(token)) == 1 {
			user, found = name, true
		}
	}
	return user, found
}

type userKey struct{}

// GetUser returns the user stored by Authorization.
func GetUser(r *http.Request) (string, bool) {
	user, ok := r.Context().Value(userKey{}).(string)
	return user, ok
}

// Authorization is a middleware that rejects requests the authorizer does not accept with
// 401 Unauthorized. Accepted requests continue with the user stored in the context.
func Authorization(authorizer Authorizer, logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := "", false
			if authorizer != nil {
				user, ok = authorizer.Authorize(r)
			}
			if !ok {
				logger.Warn("Authorization failed",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", remoteAddress(r)),
					zap.String("request_id", GetRequestID(r)),
				)
				w.Header().Set("WWW-Authenticate", `Bearer realm="restricted"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			logger.Debug("Authorization successful",
				zap.String("user", user),
				zap.String("path", r.URL.Path),
			)
			ctx := context.WithValue(r.Context(), userKey{}, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
