package middleware

import (
	"net/http"

	"github.com/Togather-Foundation/favorites/internal/api/problem"
	"github.com/Togather-Foundation/favorites/internal/auth"
)

// UserIDExtractor resolves an Authorization header to a user id.
type UserIDExtractor interface {
	UserID(authHeader string) (int64, error)
}

// Authenticate attaches the caller's auth.Principal. Requests without an
// Authorization header pass through as anonymous; a header that does not
// resolve to a user is rejected with 401.
func Authenticate(extractor UserIDExtractor, env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := extractor.UserID(header)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="favorites"`)
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthenticated, "Invalid credentials", err, env)
				return
			}

			ctx := auth.WithPrincipal(r.Context(), auth.Principal{UserID: userID, Credential: header})
			logger := LoggerFromContext(ctx).With().Int64("user_id", userID).Logger()
			ctx = logger.WithContext(ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects anonymous requests with 401.
func RequireUser(env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := auth.PrincipalFrom(r.Context()); !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="favorites"`)
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthenticated, "Authentication required", nil, env)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
