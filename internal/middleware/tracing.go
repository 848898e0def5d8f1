package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/teambase/teambase/pkg/logger"
)

const (
	requestIDKey contextKey = "request_id"
	identityKey  contextKey = "identity"
)

// identity is a per-request holder the auth layer fills once the bearer
// token resolves. It lets the completion log carry the user even though
// authentication runs deeper in the chain than the tracing wrapper.
type identity struct {
	userID string
}

// RequestID returns the request's correlation ID.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Observability tags every request with a correlation ID, logs a summary
// line after it completes and recovers panics into 500 responses.
type Observability struct {
	logger *logger.Logger
}

// NewObservability creates the request tracing middleware.
func NewObservability(log *logger.Logger) *Observability {
	return &Observability{logger: log}
}

// Handler returns the middleware handler.
func (m *Observability) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		who := &identity{}
		ctx = context.WithValue(ctx, identityKey, who)
		w.Header().Set("X-Request-ID", requestID)

		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		defer func() {
			if rec := recover(); rec != nil {
				m.logger.WithFields(map[string]interface{}{
					"request_id": requestID,
					"panic":      rec,
					"stack":      string(debug.Stack()),
				}).Error("request panicked")
				rw.Header().Set("Content-Type", "application/json")
				rw.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(rw).Encode(map[string]string{"error": "internal server error"})
			}
		}()

		next.ServeHTTP(rw, r.WithContext(ctx))

		m.logger.WithFields(map[string]interface{}{
			"request_id": requestID,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rw.status,
			"duration":   time.Since(start).String(),
			"user_id":    who.userID,
		}).Info("request completed")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
