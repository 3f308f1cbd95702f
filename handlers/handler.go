/*
Package handlers provides HTTP handlers with dependency injection support.

This package defines the Handler struct that contains all service
dependencies behind small interfaces, eliminating global variables and
enabling better testability and separation of concerns.
*/
package handlers

import (
	"time"

	"github.com/okanyucel2/coloring-book-generator-sub000/progress"
	"github.com/okanyucel2/coloring-book-generator-sub000/queue"
	"github.com/okanyucel2/coloring-book-generator-sub000/store"
	"github.com/okanyucel2/coloring-book-generator-sub000/types"
	"github.com/sirupsen/logrus"
)

// JobQueueInterface defines the queue operations the HTTP layer needs
type JobQueueInterface interface {
	Submit(job *types.Job) (string, error)
	GetJobStatus(jobID string) *types.Job
	GetProgress(jobID string) *types.ProgressSnapshot
	ListJobs(filter types.JobStatus, limit int) []types.JobSummary
	UpdateJobStatus(jobID string, status types.JobStatus, processed int, totalSize int64) bool
	Delete(jobID string) bool
	Depth() int
	Capacity() int
}

// ProgressHubInterface defines the hub operations the HTTP layer needs
type ProgressHubInterface interface {
	Subscribe(jobID string) <-chan types.ProgressUpdate
	Unsubscribe(jobID string, ch <-chan types.ProgressUpdate) bool
	Publish(update types.ProgressUpdate) int
	GetLatest(jobID string) *types.ProgressUpdate
	CloseAll(jobID string)
	Metrics() progress.Metrics
}

// ArtifactFetcher defines read access to stored page artifacts
type ArtifactFetcher interface {
	Fetch(ref string) ([]byte, bool)
}

// Handler contains all service dependencies for HTTP handlers
type Handler struct {
	Queue     JobQueueInterface
	Hub       ProgressHubInterface
	Artifacts ArtifactFetcher
	Logger    *logrus.Logger
	// KeepAlive is the idle interval between SSE keep-alive comments
	KeepAlive time.Duration
	// DefaultModel is used for submissions that omit a model tag
	DefaultModel string
	// DefaultTTL is applied to submissions that omit ttl_hours
	DefaultTTL time.Duration
}

// NewHandler creates a new handler instance with injected dependencies
func NewHandler(jobQueue *queue.Queue, hub *progress.Hub, artifacts *store.ArtifactManager, logger *logrus.Logger) *Handler {
	return &Handler{
		Queue:        jobQueue,
		Hub:          hub,
		Artifacts:    artifacts,
		Logger:       logger,
		KeepAlive:    30 * time.Second,
		DefaultModel: "lineart-v1",
		DefaultTTL:   24 * time.Hour,
	}
}
