package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/WossMusic/woss-royalties/internal/auth"
	"github.com/WossMusic/woss-royalties/internal/logging"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// Logging attaches a request-scoped logger carrying the request id and the
// authenticated caller, then logs one line per request. Must run after Auth.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		attrs := []any{"request_id", RequestIDFromContext(r.Context())}
		if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
			attrs = append(attrs, "user_id", claims.UserID, "role", claims.Role)
		}
		logger := slog.Default().With(attrs...)
		r = r.WithContext(logging.WithLogger(r.Context(), logger))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		logger.Log(r.Context(), levelFor(rec.status), "request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"bytes", rec.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func levelFor(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

