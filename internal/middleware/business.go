package middleware

import (
	"context"
	"net/http"
)

const businessHeader = "X-Business-ID"

const businessKey contextKey = "business"

// Business reads the tenant code from the X-Business-ID header and stores it
// on the request context. The header is optional; endpoints that take the
// business in the request body override it.
func Business(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if code := r.Header.Get(businessHeader); code != "" {
			r = r.WithContext(context.WithValue(r.Context(), businessKey, code))
		}
		next.ServeHTTP(w, r)
	})
}

// BusinessFromContext returns the tenant code set by Business, if any.
func BusinessFromContext(ctx context.Context) (string, bool) {
	code, ok := ctx.Value(businessKey).(string)
	return code, ok
}
