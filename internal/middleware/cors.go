// Package middleware provides HTTP middleware for the pairchat API.
package middleware

import "net/http"

// CORS returns middleware that handles cross-origin requests. The chat
// client sends the session cookie, so credentials are only allowed for
// origins listed explicitly, never for wildcard matches.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			explicit := false
			for _, o := range allowedOrigins {
				if o == origin {
					allowed = true
					explicit = true
					break
				}
				if o == "*" {
					allowed = true
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Admin-Code")
				if explicit {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
