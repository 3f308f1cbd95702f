// Package health provides health check handlers for the coloring book backend
package health

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/okanyucel2/coloring-book-generator-sub000/middleware"
	"github.com/okanyucel2/coloring-book-generator-sub000/utils"
	"github.com/sirupsen/logrus"
)

// QueueStats exposes the queue readings the health probes need
type QueueStats interface {
	Depth() int
	Capacity() int
}

// HealthStatus represents the health check response structure
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Version   string            `json:"version"`
	Services  map[string]string `json:"services"`
	Uptime    string            `json:"uptime"`
}

// Handler contains dependencies for health handlers
type Handler struct {
	Queue  QueueStats
	Logger *logrus.Logger
}

// NewHandler creates a new health handler
func NewHandler(queue QueueStats, logger *logrus.Logger) *Handler {
	return &Handler{
		Queue:  queue,
		Logger: logger,
	}
}

// HandleHealthCheck provides a health check endpoint for monitoring
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = utils.GenerateRequestID()
		w.Header().Set("X-Request-ID", requestID)
	}

	health := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Version:   "1.0.0",
		Services:  make(map[string]string),
		Uptime:    time.Since(startTime).String(),
	}

	if err := h.checkQueueHealth(); err != nil {
		health.Status = "degraded"
		health.Services["queue"] = "degraded: " + err.Error()
		h.Logger.WithFields(logrus.Fields{
			"service": "queue",
			"error":   err.Error(),
		}).Warn("Health check reports degraded queue")
	} else {
		health.Services["queue"] = "healthy"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(health)
}

// HandleLivenessCheck provides a simple liveness probe
func (h *Handler) HandleLivenessCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(startTime).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// HandleReadinessCheck provides a readiness probe. The service is not ready
// to accept submissions while the pending queue is saturated.
func (h *Handler) HandleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = utils.GenerateRequestID()
	}

	if err := h.checkQueueHealth(); err != nil {
		middleware.RespondServiceUnavailable(w, err, requestID)
		return
	}

	response := map[string]interface{}{
		"status":    "ready",
		"timestamp": time.Now().Format(time.RFC3339),
		"services": map[string]string{
			"queue": "ready",
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// checkQueueHealth reports saturation of the pending queue
func (h *Handler) checkQueueHealth() error {
	depth := h.Queue.Depth()
	capacity := h.Queue.Capacity()
	if capacity > 0 && depth >= capacity {
		return fmt.Errorf("pending queue is full (%d/%d)", depth, capacity)
	}
	return nil
}

var startTime = time.Now()
