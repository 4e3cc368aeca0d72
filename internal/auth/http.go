// ABOUTME: HTTP middleware authenticating API requests
// ABOUTME: Resolves the Authorization header and scopes the caller to the path project

package auth

import (
	"encoding/json"
	"net"
	"net/http"
)

// Middleware creates an HTTP middleware that authenticates every request and
// adds the resulting Outcome to the request context. Requests carrying a
// projectId path value are rejected unless the caller is scoped to that
// project; basic-auth callers are additionally checked against their
// interface's IP allowlist.
func Middleware(authenticator *Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			outcome, err := authenticator.Authenticate(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			if !outcome.AllowedIP(remoteIP(r)) {
				writeJSONError(w, http.StatusForbidden, "address not allowed")
				return
			}

			if projectID := r.PathValue("projectId"); projectID != "" && !outcome.Allowed(projectID) {
				writeJSONError(w, http.StatusForbidden, "you cannot access this project")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), outcome)))
		})
	}
}

// writeJSONError writes the API's JSON error envelope.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// remoteIP extracts the peer address without the port.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
