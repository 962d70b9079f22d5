package core

import "net/http"

// Exact CORS values sent on every response. Browsers embedding the form on
// any origin must be able to read the JSON envelope, including error bodies.
const (
	corsAllowOrigin      = "*"
	corsAllowCredentials = "true"
	corsAllowMethods     = "GET,OPTIONS,PATCH,DELETE,POST,PUT"
	corsAllowHeaders     = "X-CSRF-Token, X-Requested-With, Accept, Accept-Version, Content-Length, Content-MD5, Content-Type, Date, X-Api-Version"
)

// CORSMiddleware sets the permissive CORS headers on every response and
// answers any OPTIONS request with 200 and an empty body.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetCORSHeaders(w.Header())

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// SetCORSHeaders writes the CORS header set into h.
func SetCORSHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", corsAllowOrigin)
	h.Set("Access-Control-Allow-Credentials", corsAllowCredentials)
	h.Set("Access-Control-Allow-Methods", corsAllowMethods)
	h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
}
