/*
Package main initializes the coloring book generation backend server.

The backend accepts batch jobs of coloring pages, drives generation through a
single background worker, and streams per-page progress to live observers.

Key Features:
  - Submit batch generation jobs with bounded admission.
  - Poll job progress or stream it over Server-Sent Events.
  - Cancel, delete, list jobs; download finished pages as a ZIP.
  - Prometheus metrics, tracing spans, and a live WebSocket dashboard.

Run the application:

	$ go run main.go

Endpoints:
  - POST /jobs: submit a batch generation job.
  - GET /jobs/{id}/events: stream progress as Server-Sent Events.
*/
package main

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/okanyucel2/coloring-book-generator-sub000/config"
	"github.com/okanyucel2/coloring-book-generator-sub000/handlers"
	"github.com/okanyucel2/coloring-book-generator-sub000/handlers/health"
	"github.com/okanyucel2/coloring-book-generator-sub000/middleware"
	"github.com/okanyucel2/coloring-book-generator-sub000/monitoring"
	"github.com/okanyucel2/coloring-book-generator-sub000/utils"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
)

// RateLimiter implements a simple token bucket rate limiter
type RateLimiter struct {
	clients map[string]*ClientLimiter
	mutex   sync.RWMutex
	rate    rate.Limit
	burst   int
}

// ClientLimiter represents a rate limiter for a specific client
type ClientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(r rate.Limit, b int) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*ClientLimiter),
		rate:    r,
		burst:   b,
	}
}

// Allow checks if a client is allowed to make a request
func (rl *RateLimiter) Allow(clientID string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	if _, exists := rl.clients[clientID]; !exists {
		rl.clients[clientID] = &ClientLimiter{
			limiter:  rate.NewLimiter(rl.rate, rl.burst),
			lastSeen: time.Now(),
		}
	}

	rl.clients[clientID].lastSeen = time.Now()
	return rl.clients[clientID].limiter.Allow()
}

// Cleanup removes stale client entries
func (rl *RateLimiter) Cleanup() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	for clientID, client := range rl.clients {
		if time.Since(client.lastSeen) > 5*time.Minute {
			delete(rl.clients, clientID)
		}
	}
}

func main() {
	// Initialize structured logger first so every component logs through it
	middleware.InitLogger()
	middleware.Logger.Info("Starting Coloring Book Backend Server")

	// Initialize tracing
	tracerProvider, err := monitoring.InitTracing("coloring-book-backend")
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer monitoring.ShutdownTracing(tracerProvider)

	// Initialize alert manager
	alertManager := monitoring.NewAlertManager(middleware.Logger)
	defer alertManager.Stop()

	// Initialize configuration and services
	appConfig, err := config.NewAppConfig()
	if err != nil {
		log.Fatalf("Failed to initialize application configuration: %v", err)
	}
	defer appConfig.Services.Close()

	// Initialize handler with dependencies from the DI container
	handler, err := appConfig.Services.Container.GetHandler()
	if err != nil {
		log.Fatalf("Failed to initialize handler: %v", err)
	}
	handler.KeepAlive = appConfig.Config.BatchConfig.SSEKeepAliveInterval
	handler.DefaultModel = appConfig.Config.BatchConfig.DefaultModel
	handler.DefaultTTL = appConfig.Config.BatchConfig.JobTTL

	jobQueue, err := appConfig.Services.Container.GetQueue()
	if err != nil {
		log.Fatalf("Failed to resolve job queue: %v", err)
	}
	hub, err := appConfig.Services.Container.GetHub()
	if err != nil {
		log.Fatalf("Failed to resolve progress hub: %v", err)
	}

	healthHandler := health.NewHandler(jobQueue, appConfig.Services.Logger)
	dashboard := handlers.NewDashboardManager(jobQueue, hub, 2*time.Second, appConfig.Services.Logger)

	// Wire alert rules to live readings
	alertManager.UpdateRuleCondition("Pending Queue Saturated", func() bool {
		return float64(jobQueue.Depth()) >= 0.9*float64(jobQueue.Capacity())
	})
	alertManager.UpdateRuleCondition("High Publish Latency", func() bool {
		return hub.Metrics().AvgPublishLatency > 250.0
	})

	// Initialize rate limiter with configuration
	limiter := NewRateLimiter(rate.Limit(appConfig.Config.RateLimitRequestsPerMinute/60.0), appConfig.Config.RateLimitBurst)

	// Start background services: reapers, worker, dashboard, limiter cleanup
	appConfig.Services.Container.Start()
	dashboard.Start()
	defer dashboard.Stop()

	go func() {
		ticker := time.NewTicker(appConfig.Config.ClientCleanupInterval)
		defer ticker.Stop()
		for range ticker.C {
			limiter.Cleanup()
		}
	}()

	// Initialize the router
	router := mux.NewRouter()

	// Setup metrics endpoint
	monitoring.SetupMetricsEndpoint(router)

	// Setup health check endpoints (no rate limiting)
	router.HandleFunc("/health", healthHandler.HandleHealthCheck).Methods("GET")
	router.HandleFunc("/health/live", healthHandler.HandleLivenessCheck).Methods("GET")
	router.HandleFunc("/health/ready", healthHandler.HandleReadinessCheck).Methods("GET")

	// Job management API
	router.HandleFunc("/jobs", MonitoringMiddleware(RateLimitMiddleware(limiter, handler.HandleSubmitJob))).Methods("POST")
	router.HandleFunc("/jobs", MonitoringMiddleware(RateLimitMiddleware(limiter, handler.HandleListJobs))).Methods("GET")
	router.HandleFunc("/jobs/{id}", MonitoringMiddleware(RateLimitMiddleware(limiter, handler.HandleGetJobStatus))).Methods("GET")
	router.HandleFunc("/jobs/{id}", MonitoringMiddleware(RateLimitMiddleware(limiter, handler.HandleDeleteJob))).Methods("DELETE")
	router.HandleFunc("/jobs/{id}/progress", MonitoringMiddleware(RateLimitMiddleware(limiter, handler.HandleGetProgress))).Methods("GET")
	router.HandleFunc("/jobs/{id}/cancel", MonitoringMiddleware(RateLimitMiddleware(limiter, handler.HandleCancelJob))).Methods("POST")
	router.HandleFunc("/jobs/{id}/download", MonitoringMiddleware(RateLimitMiddleware(limiter, handler.HandleDownloadJob))).Methods("GET")

	// Streaming endpoints stay outside the rate limiter: one long-lived
	// request should not consume the client's token budget
	router.HandleFunc("/jobs/{id}/events", MonitoringMiddleware(handler.HandleJobEvents)).Methods("GET")
	router.HandleFunc("/ws/dashboard", dashboard.HandleDashboard).Methods("GET")

	// Hub observability
	router.HandleFunc("/internal/hub-metrics", handler.HandleHubMetrics).Methods("GET")

	// Apply logging middleware
	withLogging := middleware.LoggingMiddleware(router)

	// Attach the CORS middleware
	withCORS := CORSMiddleware(withLogging, appConfig.Config)

	server := &http.Server{
		Addr:    ":" + appConfig.Config.ServerPort,
		Handler: withCORS,
	}

	go func() {
		middleware.Logger.Info("Server starting on :" + appConfig.Config.ServerPort)
		fmt.Println("Server is running on http://localhost:" + appConfig.Config.ServerPort)
		fmt.Println("Metrics available at http://localhost:" + appConfig.Config.ServerPort + "/metrics")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Block until a shutdown signal arrives, then drain
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	middleware.Logger.Info("Shutdown signal received, draining")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		middleware.Logger.WithField("error", err.Error()).Error("Server shutdown failed")
	}
}

// MonitoringMiddleware adds metrics and tracing to HTTP handlers
func MonitoringMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ctx, span := monitoring.CreateSpan(r.Context(), fmt.Sprintf("%s %s", r.Method, r.URL.Path))
		defer span.End()

		monitoring.SetSpanAttributes(span, map[string]interface{}{
			"http.method":     r.Method,
			"http.url":        r.URL.String(),
			"http.user_agent": r.UserAgent(),
			"remote.addr":     r.RemoteAddr,
		})

		r = r.WithContext(ctx)

		rw := &responseWriter{ResponseWriter: w, statusCode: 200}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := fmt.Sprintf("%d", rw.statusCode)

		monitoring.RecordHTTPRequest(r.Method, r.URL.Path, status, duration)

		monitoring.SetSpanAttributes(span, map[string]interface{}{
			"http.status_code": rw.statusCode,
			"duration_seconds": duration,
		})

		if rw.statusCode >= 400 {
			monitoring.SetSpanError(span, fmt.Errorf("HTTP %d", rw.statusCode))
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush forwards flushes so SSE responses stream through this wrapper
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// getClientIdentifier generates a client identifier from the request
func getClientIdentifier(r *http.Request) string {
	ip := r.RemoteAddr
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		ips := strings.Split(forwarded, ",")
		ip = strings.TrimSpace(ips[0])
	} else if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		ip = realIP
	}

	combined := "ip:" + ip
	if userAgent := r.Header.Get("User-Agent"); userAgent != "" {
		combined += "|ua:" + strings.ToLower(strings.Fields(userAgent)[0])
	}

	hash := sha256.Sum256([]byte(combined))
	return fmt.Sprintf("%x", hash)[:16]
}

// RateLimitMiddleware implements rate limiting for HTTP handlers
func RateLimitMiddleware(limiter *RateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := getClientIdentifier(r)

		if !limiter.Allow(clientID) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = utils.GenerateRequestID()
			}
			middleware.RespondRateLimited(w, fmt.Errorf("rate limit exceeded"), requestID)
			return
		}

		next.ServeHTTP(w, r)
	}
}

// isOriginAllowed checks if the origin is in the configured allow list
func isOriginAllowed(origin string, corsConfig config.CORSConfig) bool {
	for _, allowed := range corsConfig.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// CORSMiddleware applies the configured CORS policy
func CORSMiddleware(next http.Handler, appConfig *config.Config) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		corsConfig := appConfig.CORSConfig

		if origin != "" && isOriginAllowed(origin, corsConfig) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}

		if len(corsConfig.AllowedMethods) > 0 {
			w.Header().Set("Access-Control-Allow-Methods", strings.Join(corsConfig.AllowedMethods, ", "))
		}
		if len(corsConfig.AllowedHeaders) > 0 {
			w.Header().Set("Access-Control-Allow-Headers", strings.Join(corsConfig.AllowedHeaders, ", "))
		}
		if len(corsConfig.ExposedHeaders) > 0 {
			w.Header().Set("Access-Control-Expose-Headers", strings.Join(corsConfig.ExposedHeaders, ", "))
		}
		if corsConfig.AllowCredentials {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		if corsConfig.MaxAge > 0 {
			w.Header().Set("Access-Control-Max-Age", fmt.Sprintf("%d", corsConfig.MaxAge))
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
