// Package types contains shared types used across the coloring book backend
package types

import (
	"time"
)

// JobStatus is the lifecycle state of a batch job
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// Terminal reports whether the status is an end state
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// ItemStatus is the state of a single page within a job
type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemCompleted ItemStatus = "completed"
	ItemFailed    ItemStatus = "failed"
)

// MaxItemRetries caps how many times a failed item is retried
const MaxItemRetries = 3

// Item is one generation unit (a single coloring page) within a Job.
// Items are owned by their parent Job and mutated only through the queue.
type Item struct {
	ID          string     `json:"id"`
	SourceRef   string     `json:"source_ref"`
	Prompt      string     `json:"prompt"`
	Status      ItemStatus `json:"status"`
	OutputRef   string     `json:"output_ref,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	RetryCount  int        `json:"retry_count"`
	LastErrorAt *time.Time `json:"last_error_at,omitempty"`
}

// Job is a single batch submission containing an ordered list of Items.
// Item order is processing order.
type Job struct {
	ID             string            `json:"job_id"`
	Items          []*Item           `json:"items"`
	Model          string            `json:"model"`
	Options        map[string]string `json:"options,omitempty"`
	Status         JobStatus         `json:"status"`
	CreatedAt      time.Time         `json:"created_at"`
	StartedAt      *time.Time        `json:"started_at,omitempty"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
	ProcessedCount int               `json:"processed_count"`
	FailedCount    int               `json:"failed_count"`
	TotalSizeBytes int64             `json:"total_size_bytes"`
	TTL            time.Duration     `json:"-"`
}

// Expired reports whether the job's TTL has elapsed. A zero TTL expires
// at CreatedAt itself, making the job invisible from the moment it is stored.
func (j *Job) Expired(now time.Time) bool {
	return !now.Before(j.CreatedAt.Add(j.TTL))
}

// JobSummary is the list-view projection of a Job
type JobSummary struct {
	ID          string     `json:"job_id"`
	Status      JobStatus  `json:"status"`
	Model       string     `json:"model"`
	TotalItems  int        `json:"total_items"`
	Processed   int        `json:"processed"`
	Failed      int        `json:"failed"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ProgressSnapshot is the poll-path view of a job's progress, cached by the
// queue for up to its snapshot TTL after computation.
type ProgressSnapshot struct {
	JobID           string     `json:"job_id"`
	Status          JobStatus  `json:"status"`
	TotalItems      int        `json:"total_items"`
	Processed       int        `json:"processed"`
	Failed          int        `json:"failed"`
	Pending         int        `json:"pending"`
	ProgressPercent float64    `json:"progress_percent"`
	TotalSizeBytes  int64      `json:"total_size_bytes"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	ExpiresAt       time.Time  `json:"expires_at"`
}

// Stream statuses carried by ProgressUpdate. StreamEnd is the end-of-stream
// sentinel delivered when a job's subscriptions are closed.
const (
	StreamProcessing = "processing"
	StreamCompleted  = "completed"
	StreamFailed     = "failed"
	StreamCancelled  = "cancelled"
	StreamEnd        = "end_of_stream"
)

// ProgressUpdate is a single progress event published to subscribers.
// Updates are immutable; each subscriber channel receives its own copy.
type ProgressUpdate struct {
	JobID          string    `json:"job_id"`
	Processed      int       `json:"processed"`
	Total          int       `json:"total"`
	CurrentItem    string    `json:"current_item,omitempty"`
	Message        string    `json:"message"`
	Status         string    `json:"status"`
	Error          string    `json:"error,omitempty"`
	TotalSizeBytes int64     `json:"total_size_bytes"`
	Timestamp      time.Time `json:"timestamp"`
}

// Terminal reports whether a stream status ends the job's event stream
func TerminalStream(status string) bool {
	return status == StreamCompleted || status == StreamFailed || status == StreamCancelled
}
