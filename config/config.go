/*
Package config provides configuration management for the coloring book backend.

This package separates configuration concerns from business logic and wires
the queue, progress hub, worker, and artifact store together at startup so
nothing lives in package-level mutable state.
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/okanyucel2/coloring-book-generator-sub000/container"
	"github.com/okanyucel2/coloring-book-generator-sub000/generator"
	"github.com/okanyucel2/coloring-book-generator-sub000/middleware"
	"github.com/okanyucel2/coloring-book-generator-sub000/progress"
	"github.com/okanyucel2/coloring-book-generator-sub000/queue"
	"github.com/okanyucel2/coloring-book-generator-sub000/store"
	"github.com/okanyucel2/coloring-book-generator-sub000/worker"
	"github.com/sirupsen/logrus"
)

// Config holds all application configuration
type Config struct {
	LogLevel    string
	ServerPort  string
	Environment string
	// Rate limiting configuration
	RateLimitRequestsPerMinute float64
	RateLimitBurst             int
	ClientCleanupInterval      time.Duration
	// CORS configuration
	CORSConfig CORSConfig
	// Batch pipeline settings
	BatchConfig BatchConfig
}

// BatchConfig holds queue, hub, and worker settings
type BatchConfig struct {
	// Queue settings
	MaxQueueSize      int           `json:"max_queue_size"`
	JobTTL            time.Duration `json:"job_ttl"`
	SnapshotTTL       time.Duration `json:"snapshot_ttl"`
	QueueReapInterval time.Duration `json:"queue_reap_interval"`
	// Progress hub settings
	HubSendTimeout  time.Duration `json:"hub_send_timeout"`
	HubTTL          time.Duration `json:"hub_ttl"`
	HubReapInterval time.Duration `json:"hub_reap_interval"`
	// Worker settings
	WorkerPollInterval time.Duration `json:"worker_poll_interval"`
	// Streaming settings
	SSEKeepAliveInterval time.Duration `json:"sse_keepalive_interval"`
	// Artifact store settings
	ArtifactTTL time.Duration `json:"artifact_ttl"`
	// Default generation model tag
	DefaultModel string `json:"default_model"`
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// Services holds all service dependencies
type Services struct {
	Container *container.Container
	Logger    *logrus.Logger
}

// AppConfig holds both configuration and services
type AppConfig struct {
	Config   *Config
	Services *Services
}

// NewConfig creates a new configuration instance from the environment
func NewConfig() *Config {
	return &Config{
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		// Rate limiting defaults (60 requests per minute, burst of 10)
		RateLimitRequestsPerMinute: getEnvFloat("RATE_LIMIT_RPM", 60.0),
		RateLimitBurst:             getEnvInt("RATE_LIMIT_BURST", 10),
		ClientCleanupInterval:      getEnvDuration("CLIENT_CLEANUP_INTERVAL", 1*time.Minute),
		CORSConfig: CORSConfig{
			AllowedOrigins: getEnvSlice("CORS_ORIGINS", []string{
				"http://localhost:3000",
				"http://localhost:8080",
			}),
			AllowedMethods: getEnvSlice("CORS_ALLOWED_METHODS", []string{
				"GET", "POST", "DELETE", "OPTIONS",
			}),
			AllowedHeaders: getEnvSlice("CORS_ALLOWED_HEADERS", []string{
				"Content-Type", "Authorization", "X-Request-ID", "Accept",
				"Cache-Control", "Last-Event-ID",
			}),
			ExposedHeaders:   getEnvSlice("CORS_EXPOSED_HEADERS", []string{"X-Request-ID"}),
			AllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", true),
			MaxAge:           getEnvInt("CORS_MAX_AGE", 86400),
		},
		BatchConfig: BatchConfig{
			MaxQueueSize:         getEnvInt("MAX_QUEUE_SIZE", 100),
			JobTTL:               getEnvDuration("JOB_TTL", 24*time.Hour),
			SnapshotTTL:          getEnvDuration("SNAPSHOT_TTL", 5*time.Second),
			QueueReapInterval:    getEnvDuration("QUEUE_REAP_INTERVAL", 10*time.Minute),
			HubSendTimeout:       getEnvDuration("HUB_SEND_TIMEOUT", 500*time.Millisecond),
			HubTTL:               getEnvDuration("HUB_TTL", 24*time.Hour),
			HubReapInterval:      getEnvDuration("HUB_REAP_INTERVAL", 10*time.Minute),
			WorkerPollInterval:   getEnvDuration("WORKER_POLL_INTERVAL", 1*time.Second),
			SSEKeepAliveInterval: getEnvDuration("SSE_KEEPALIVE_INTERVAL", 30*time.Second),
			ArtifactTTL:          getEnvDuration("ARTIFACT_TTL", 24*time.Hour),
			DefaultModel:         getEnv("DEFAULT_MODEL", "lineart-v1"),
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT must not be empty")
	}
	bc := c.BatchConfig
	if bc.MaxQueueSize <= 0 {
		return fmt.Errorf("MAX_QUEUE_SIZE must be positive, got %d", bc.MaxQueueSize)
	}
	if bc.JobTTL < 0 {
		return fmt.Errorf("JOB_TTL must not be negative")
	}
	if bc.WorkerPollInterval <= 0 {
		return fmt.Errorf("WORKER_POLL_INTERVAL must be positive")
	}
	if bc.HubSendTimeout <= 0 {
		return fmt.Errorf("HUB_SEND_TIMEOUT must be positive")
	}
	return nil
}

// NewServices creates and initializes all service dependencies using the DI container
func NewServices(config *Config) (*Services, error) {
	logger := middleware.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.InfoLevel)
	}
	if level, err := logrus.ParseLevel(config.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	bc := config.BatchConfig

	artifactStore := store.NewInMemoryStore(bc.ArtifactTTL)
	artifacts := store.NewArtifactManager(artifactStore, logger, bc.ArtifactTTL)
	logger.Info("Artifact store initialized successfully")

	jobQueue := queue.NewQueue(bc.MaxQueueSize, bc.SnapshotTTL, bc.QueueReapInterval, logger)
	hub := progress.NewHub(bc.HubSendTimeout, bc.HubTTL, bc.HubReapInterval, logger)
	gen := generator.NewSVGGenerator(artifacts, logger)
	batchWorker := worker.New(jobQueue, hub, gen, bc.WorkerPollInterval, logger)

	diContainer := container.NewContainer()
	if err := diContainer.InitializeServices(jobQueue, hub, batchWorker, artifacts, logger); err != nil {
		return nil, fmt.Errorf("failed to initialize dependency container: %v", err)
	}

	logger.WithFields(logrus.Fields{
		"max_queue_size":       bc.MaxQueueSize,
		"job_ttl_hours":        bc.JobTTL.Hours(),
		"worker_poll_interval": bc.WorkerPollInterval.String(),
		"hub_send_timeout":     bc.HubSendTimeout.String(),
	}).Info("Batch pipeline initialized")

	return &Services{
		Container: diContainer,
		Logger:    logger,
	}, nil
}

// NewAppConfig creates a new application configuration with all dependencies
func NewAppConfig() (*AppConfig, error) {
	config := NewConfig()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %v", err)
	}

	services, err := NewServices(config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %v", err)
	}

	return &AppConfig{
		Config:   config,
		Services: services,
	}, nil
}

// Close gracefully stops all background services
func (s *Services) Close() error {
	if s.Container != nil {
		return s.Container.Close()
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvFloat gets an environment variable as float64 with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvInt gets an environment variable as int with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as time.Duration with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as bool with a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvSlice gets an environment variable as a string slice with a default value
func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
