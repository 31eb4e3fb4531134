package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/WossMusic/woss-royalties/internal/handler"
	"github.com/WossMusic/woss-royalties/internal/logging"
)

type headerTracker struct {
	http.ResponseWriter
	wrote bool
}

func (h *headerTracker) WriteHeader(code int) {
	h.wrote = true
	h.ResponseWriter.WriteHeader(code)
}

func (h *headerTracker) Write(b []byte) (int, error) {
	h.wrote = true
	return h.ResponseWriter.Write(b)
}

// Recovery turns a handler panic into a 500 envelope. A panic after the
// response has started is only logged; the connection is left to the server.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tw := &headerTracker{ResponseWriter: w}
		defer func() {
			err := recover()
			if err == nil {
				return
			}
			if err == http.ErrAbortHandler {
				panic(err)
			}

			logging.FromContext(r.Context()).Error("panic recovered",
				"error", err,
				"request_id", RequestIDFromContext(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"response_started", tw.wrote,
				"stack", string(debug.Stack()),
			)
			if !tw.wrote {
				handler.RespondAppError(tw, handler.ErrInternalError, nil)
			}
		}()
		next.ServeHTTP(tw, r)
	})
}
