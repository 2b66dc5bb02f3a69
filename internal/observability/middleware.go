package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"ai-interview-coach-service/internal/observability/metrics"
)

// RequestLogger returns an HTTP middleware that logs every request and
// records it in the request metrics. WebSocket upgrades are logged at
// connection close, which is when the wrapped handler returns.
func RequestLogger(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			m.RecordHTTPRequest(r.Method, r.URL.Path, ww.Status(), duration.Seconds())

			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", duration).
				Msg("HTTP request")
		})
	}
}
