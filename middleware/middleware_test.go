package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initTestLogger() {
	InitLogger()
	Logger.SetLevel(logrus.ErrorLevel)
}

func TestErrorHandlerResponseShape(t *testing.T) {
	initTestLogger()

	rr := httptest.NewRecorder()
	ErrorHandler(rr, errors.New("job not found"), ErrCodeNotFound, http.StatusNotFound, "req-123")

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var apiErr APIError
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &apiErr))
	assert.Equal(t, ErrCodeNotFound, apiErr.Error)
	assert.Equal(t, "job not found", apiErr.Details)
	assert.Equal(t, "req-123", apiErr.RequestID)
	assert.NotEmpty(t, apiErr.Message)
	assert.NotEmpty(t, apiErr.Timestamp)
}

func TestResponderStatusCodes(t *testing.T) {
	initTestLogger()

	tests := []struct {
		name     string
		respond  func(http.ResponseWriter, error, string)
		wantCode int
		wantErr  ErrorCode
	}{
		{"bad request", RespondBadRequest, http.StatusBadRequest, ErrCodeBadRequest},
		{"not found", RespondNotFound, http.StatusNotFound, ErrCodeNotFound},
		{"conflict", RespondConflict, http.StatusConflict, ErrCodeConflict},
		{"rate limited", RespondRateLimited, http.StatusTooManyRequests, ErrCodeRateLimited},
		{"queue full", RespondQueueFull, http.StatusTooManyRequests, ErrCodeQueueFull},
		{"internal", RespondInternalError, http.StatusInternalServerError, ErrCodeInternalError},
		{"unavailable", RespondServiceUnavailable, http.StatusServiceUnavailable, ErrCodeUnavailable},
		{"validation", RespondValidationError, http.StatusBadRequest, ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			tt.respond(rr, errors.New("boom"), "req-1")

			assert.Equal(t, tt.wantCode, rr.Code)
			var apiErr APIError
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &apiErr))
			assert.Equal(t, tt.wantErr, apiErr.Error)
		})
	}
}

func TestLoggingMiddlewarePassesThrough(t *testing.T) {
	initTestLogger()

	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"job_id":"job_a"}`))
	}))

	req := httptest.NewRequest("POST", "/jobs", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, `{"job_id":"job_a"}`, rr.Body.String())
}

func TestResponseWriterFlushForwarding(t *testing.T) {
	initTestLogger()

	var flushed bool
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, ok := w.(http.Flusher)
		require.True(t, ok)
		w.Write([]byte("data: {}\n\n"))
		f.Flush()
		flushed = true
	}))

	req := httptest.NewRequest("GET", "/jobs/job_a/events", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.True(t, flushed)
	assert.True(t, rr.Flushed)
}

func TestResponseWriterBoundedCapture(t *testing.T) {
	initTestLogger()

	chunk := make([]byte, 128)
	writes := 100
	var captured int
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		for i := 0; i < writes; i++ {
			w.Write(chunk)
		}
		rw := w.(*ResponseWriter)
		captured = rw.body.Len()
	}))

	req := httptest.NewRequest("GET", "/jobs", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	// The client still receives everything; only the log capture is bounded
	assert.Equal(t, writes*len(chunk), rr.Body.Len())
	assert.LessOrEqual(t, captured, 1024+len(chunk))
}
