package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 60.0, cfg.RateLimitRequestsPerMinute)
	assert.Equal(t, 10, cfg.RateLimitBurst)

	bc := cfg.BatchConfig
	assert.Equal(t, 100, bc.MaxQueueSize)
	assert.Equal(t, 24*time.Hour, bc.JobTTL)
	assert.Equal(t, 5*time.Second, bc.SnapshotTTL)
	assert.Equal(t, 500*time.Millisecond, bc.HubSendTimeout)
	assert.Equal(t, time.Second, bc.WorkerPollInterval)
	assert.Equal(t, 30*time.Second, bc.SSEKeepAliveInterval)
	assert.Equal(t, "lineart-v1", bc.DefaultModel)
}

func TestNewConfigFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("MAX_QUEUE_SIZE", "5")
	t.Setenv("JOB_TTL", "2h")
	t.Setenv("HUB_SEND_TIMEOUT", "250ms")
	t.Setenv("DEFAULT_MODEL", "lineart-v2")
	t.Setenv("CORS_ORIGINS", "https://app.example.com,https://staging.example.com")

	cfg := NewConfig()

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, 5, cfg.BatchConfig.MaxQueueSize)
	assert.Equal(t, 2*time.Hour, cfg.BatchConfig.JobTTL)
	assert.Equal(t, 250*time.Millisecond, cfg.BatchConfig.HubSendTimeout)
	assert.Equal(t, "lineart-v2", cfg.BatchConfig.DefaultModel)
	assert.Equal(t, []string{"https://app.example.com", "https://staging.example.com"}, cfg.CORSConfig.AllowedOrigins)
}

func TestNewConfigIgnoresMalformedValues(t *testing.T) {
	t.Setenv("MAX_QUEUE_SIZE", "not-a-number")
	t.Setenv("JOB_TTL", "soon")
	t.Setenv("RATE_LIMIT_RPM", "fast")

	cfg := NewConfig()

	assert.Equal(t, 100, cfg.BatchConfig.MaxQueueSize)
	assert.Equal(t, 24*time.Hour, cfg.BatchConfig.JobTTL)
	assert.Equal(t, 60.0, cfg.RateLimitRequestsPerMinute)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "empty server port",
			mutate:  func(c *Config) { c.ServerPort = "" },
			wantErr: "SERVER_PORT",
		},
		{
			name:    "non-positive queue size",
			mutate:  func(c *Config) { c.BatchConfig.MaxQueueSize = 0 },
			wantErr: "MAX_QUEUE_SIZE",
		},
		{
			name:    "negative job ttl",
			mutate:  func(c *Config) { c.BatchConfig.JobTTL = -time.Hour },
			wantErr: "JOB_TTL",
		},
		{
			name:    "non-positive poll interval",
			mutate:  func(c *Config) { c.BatchConfig.WorkerPollInterval = 0 },
			wantErr: "WORKER_POLL_INTERVAL",
		},
		{
			name:    "non-positive send timeout",
			mutate:  func(c *Config) { c.BatchConfig.HubSendTimeout = 0 },
			wantErr: "HUB_SEND_TIMEOUT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestNewServicesWiresContainer(t *testing.T) {
	services, err := NewServices(NewConfig())
	require.NoError(t, err)
	defer services.Close()

	q, err := services.Container.GetQueue()
	require.NoError(t, err)
	assert.Equal(t, 100, q.Capacity())

	_, err = services.Container.GetHub()
	assert.NoError(t, err)
	_, err = services.Container.GetWorker()
	assert.NoError(t, err)

	h, err := services.Container.GetHandler()
	require.NoError(t, err)
	assert.NotNil(t, h)
}
