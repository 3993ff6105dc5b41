package http

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/alem-gamification/pkg/logger"
)

const headerRequestID = "X-Request-ID"

type requestIDKey struct{}

// withRequestID accepts the caller's X-Request-ID or mints one, echoes it
// back and puts a logger tagged with it into the context.
func withRequestID(next http.Handler, base *logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)

		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		ctx = logger.WithContext(ctx, base.WithRequestID(id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// statusRecorder remembers the first status written.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.status == 0 {
		sr.status = code
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	return sr.ResponseWriter.Write(b)
}

// withAccessLog writes one line per request. Probes log at debug, 5xx at error.
func withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		fields := []logger.Field{
			logger.Route(r.Method, r.URL.Path),
			logger.Status(rec.status),
			logger.Latency(time.Since(start)),
		}

		log := logger.FromContext(r.Context())
		switch {
		case rec.status >= http.StatusInternalServerError:
			log.Error("http request", fields...)
		case r.URL.Path == "/live" || r.URL.Path == "/ready":
			log.Debug("http request", fields...)
		default:
			log.Info("http request", fields...)
		}
	})
}

// withRecovery turns a handler panic into a logged 500.
func withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			logger.FromContext(r.Context()).Error("panic recovered",
				logger.Any("panic", rec),
				logger.String("stack", string(debug.Stack())),
				logger.String("path", r.URL.Path),
			)
			writeJSONError(w, r, http.StatusInternalServerError, "internal_error", "An unexpected error occurred", nil)
		}()
		next.ServeHTTP(w, r)
	})
}

// withTimeout bounds the request context; stores observe the deadline and
// return a retryable error. d <= 0 leaves the context alone.
func withTimeout(next http.Handler, d time.Duration) http.Handler {
	if d <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), d)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
