/*
Package middleware provides HTTP middleware for logging, error handling, and request/response tracking.
*/
package middleware

import (
	"bytes"
	"net/http"
	"time"

	"github.com/okanyucel2/coloring-book-generator-sub000/utils"
	"github.com/sirupsen/logrus"
)

// Logger is the shared structured logger
var Logger *logrus.Logger

// ResponseWriter captures response data for logging
type ResponseWriter struct {
	http.ResponseWriter
	status int
	body   *bytes.Buffer
}

func (rw *ResponseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *ResponseWriter) Write(b []byte) (int, error) {
	// capture is bounded so long-lived streaming responses stay cheap
	if rw.body.Len() < 1024 {
		rw.body.Write(b)
	}
	return rw.ResponseWriter.Write(b)
}

// Flush forwards flushes to the underlying writer so streaming responses
// (SSE) still work behind this middleware.
func (rw *ResponseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// InitLogger initializes the structured logger
func InitLogger() {
	Logger = logrus.New()
	Logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})
	Logger.SetLevel(logrus.InfoLevel)
}

// LoggingMiddleware logs HTTP requests and responses
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &ResponseWriter{
			ResponseWriter: w,
			status:         http.StatusOK,
			body:           bytes.NewBuffer(nil),
		}

		next.ServeHTTP(rw, r)

		duration := time.Since(start)

		fields := logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"query":       r.URL.RawQuery,
			"remote_addr": r.RemoteAddr,
			"user_agent":  r.UserAgent(),
			"status":      rw.status,
			"duration_ms": duration.Milliseconds(),
			"request_id":  utils.GenerateRequestID(),
		}

		// Include error response bodies, bounded for log size
		if rw.status >= 400 && rw.body.Len() > 0 && rw.body.Len() < 1024 {
			fields["response_body"] = rw.body.String()
		}

		switch {
		case rw.status >= 500:
			Logger.WithFields(fields).Error("Request completed with server error")
		case rw.status >= 400:
			Logger.WithFields(fields).Warn("Request completed with client error")
		default:
			Logger.WithFields(fields).Info("Request completed successfully")
		}
	})
}
