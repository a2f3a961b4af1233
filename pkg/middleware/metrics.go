package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/medialert/medialert-engine/pkg/metrics"
)

// Metrics returns middleware that counts requests and observes latency per
// route pattern. It must wrap the ServeMux directly so the matched pattern
// is visible once the handler returns.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := newResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			m.ObserveRequest(r.Method, routeLabel(r), strconv.Itoa(wrapped.statusCode), time.Since(start).Seconds())
		})
	}
}

// Chain applies middlewares so that the first one listed is the outermost.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
