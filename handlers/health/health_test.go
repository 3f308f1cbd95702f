package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/okanyucel2/coloring-book-generator-sub000/middleware"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubQueue struct {
	depth    int
	capacity int
}

func (s stubQueue) Depth() int    { return s.depth }
func (s stubQueue) Capacity() int { return s.capacity }

func testLogger() *logrus.Logger {
	middleware.InitLogger()
	middleware.Logger.SetLevel(logrus.ErrorLevel)

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestHandleHealthCheckHealthy(t *testing.T) {
	h := NewHandler(stubQueue{depth: 2, capacity: 100}, testLogger())

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	h.HandleHealthCheck(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "healthy", status.Services["queue"])
	assert.NotEmpty(t, status.Uptime)
}

func TestHandleHealthCheckDegraded(t *testing.T) {
	h := NewHandler(stubQueue{depth: 100, capacity: 100}, testLogger())

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	h.HandleHealthCheck(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	assert.Equal(t, "degraded", status.Status)
	assert.Contains(t, status.Services["queue"], "degraded")
}

func TestHandleLivenessCheck(t *testing.T) {
	h := NewHandler(stubQueue{}, testLogger())

	req := httptest.NewRequest("GET", "/health/live", nil)
	rr := httptest.NewRecorder()
	h.HandleLivenessCheck(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"alive"`)
}

func TestHandleReadinessCheck(t *testing.T) {
	h := NewHandler(stubQueue{depth: 0, capacity: 100}, testLogger())

	req := httptest.NewRequest("GET", "/health/ready", nil)
	rr := httptest.NewRecorder()
	h.HandleReadinessCheck(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHandleReadinessCheckSaturatedQueue(t *testing.T) {
	h := NewHandler(stubQueue{depth: 100, capacity: 100}, testLogger())

	req := httptest.NewRequest("GET", "/health/ready", nil)
	rr := httptest.NewRecorder()
	h.HandleReadinessCheck(rr, req)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
