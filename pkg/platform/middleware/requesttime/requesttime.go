// Package requesttime pins one wall-clock reading per HTTP request. Every
// operation inside the request observes the same "now", so a check's
// StartedAt, its audit event, and its outbox entry carry one timestamp.
package requesttime

import (
	"net/http"
	"time"

	"vigil/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request and
// stores it in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
