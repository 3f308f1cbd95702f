/*
Package queue implements the in-memory batch job queue.

The queue owns the job table, the item index, and the bounded pending buffer.
Admission is non-blocking: Submit fails with ErrQueueFull when the pending
buffer is at capacity. All job and item mutation goes through the queue under
a single coarse lock, so the worker can update item state while HTTP read
paths query progress concurrently.
*/
package queue

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okanyucel2/coloring-book-generator-sub000/monitoring"
	"github.com/okanyucel2/coloring-book-generator-sub000/types"
	"github.com/sirupsen/logrus"
)

// ErrQueueFull is returned by Submit when the pending buffer is at capacity.
// Callers are expected to back off and retry.
var ErrQueueFull = errors.New("job queue is at capacity")

// itemRef locates an item inside the job table in O(1)
type itemRef struct {
	jobID string
	pos   int
}

// jobEntry pairs a job with its cached progress snapshot. The snapshot is
// invalidated on every mutation and recomputed lazily by GetProgress.
type jobEntry struct {
	job        *types.Job
	progress   *types.ProgressSnapshot
	progressAt time.Time
}

// Queue is the bounded in-memory job queue with TTL-based eviction
type Queue struct {
	mu      sync.RWMutex
	jobs    map[string]*jobEntry
	index   map[string]itemRef
	pending chan string

	snapshotTTL  time.Duration
	reapInterval time.Duration

	logger *logrus.Logger
	quit   chan struct{}
	wg     sync.WaitGroup
}

// NewQueue creates a job queue with the given admission capacity. The reaper
// does not run until Start is called.
func NewQueue(capacity int, snapshotTTL, reapInterval time.Duration, logger *logrus.Logger) *Queue {
	return &Queue{
		jobs:         make(map[string]*jobEntry),
		index:        make(map[string]itemRef),
		pending:      make(chan string, capacity),
		snapshotTTL:  snapshotTTL,
		reapInterval: reapInterval,
		logger:       logger,
		quit:         make(chan struct{}),
	}
}

// Start launches the background TTL reaper
func (q *Queue) Start() {
	q.wg.Add(1)
	go q.reap()
}

// Stop terminates the background reaper and waits for it to exit
func (q *Queue) Stop() {
	close(q.quit)
	q.wg.Wait()
}

// Submit stores the job and enqueues it for processing. It rejects with
// ErrQueueFull when the pending buffer is at capacity and never blocks.
// The job's TTL is stored verbatim; a zero TTL means already expired, and
// defaulting is the submitting layer's policy.
func (q *Queue) Submit(job *types.Job) (string, error) {
	if job.ID == "" {
		return "", fmt.Errorf("job has no identifier")
	}
	job.Status = types.JobPending
	job.CreatedAt = time.Now()

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.jobs[job.ID]; exists {
		return "", fmt.Errorf("job %s already exists", job.ID)
	}

	select {
	case q.pending <- job.ID:
	default:
		monitoring.RecordJobSubmitted("rejected")
		q.logger.WithFields(logrus.Fields{
			"job_id":         job.ID,
			"max_queue_size": cap(q.pending),
		}).Warn("Rejecting job submission, pending queue at capacity")
		return "", ErrQueueFull
	}

	q.jobs[job.ID] = &jobEntry{job: job}
	for pos, it := range job.Items {
		it.Status = types.ItemPending
		q.index[it.ID] = itemRef{jobID: job.ID, pos: pos}
	}

	monitoring.RecordJobSubmitted("accepted")
	monitoring.UpdateQueueDepth(len(q.pending))

	q.logger.WithFields(logrus.Fields{
		"job_id":      job.ID,
		"model":       job.Model,
		"items_count": len(job.Items),
		"ttl_hours":   job.TTL.Hours(),
		"queue_depth": len(q.pending),
	}).Info("Job submitted for batch generation")

	return job.ID, nil
}

// Dequeue pops the next pending job without blocking. It returns nil when the
// buffer is empty or when every buffered identifier refers to a job that has
// been deleted or expired since submission.
func (q *Queue) Dequeue() *types.Job {
	for {
		select {
		case jobID := <-q.pending:
			monitoring.UpdateQueueDepth(len(q.pending))
			q.mu.RLock()
			e, ok := q.jobs[jobID]
			if !ok || e.job.Expired(time.Now()) {
				q.mu.RUnlock()
				continue
			}
			job := copyJob(e.job)
			q.mu.RUnlock()
			return job
		default:
			return nil
		}
	}
}

// UpdateItemStatus mutates a single item, resolved through the item index in
// O(1). A retryable failure below the retry budget increments the retry count
// and resets the item to pending so the worker picks it up again; once the
// budget is exhausted the failure is terminal and the error message is
// annotated accordingly. Returns false when the job or item does not exist or
// the index entry does not match the given job.
func (q *Queue) UpdateItemStatus(jobID, itemID string, status types.ItemStatus, outputRef, errMsg string, retryable bool) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	ref, ok := q.index[itemID]
	if !ok || ref.jobID != jobID {
		return false
	}
	e, ok := q.jobs[jobID]
	if !ok || ref.pos >= len(e.job.Items) {
		return false
	}
	it := e.job.Items[ref.pos]
	if it.ID != itemID {
		// index corruption guard
		return false
	}

	switch status {
	case types.ItemCompleted:
		if it.Status != types.ItemCompleted {
			e.job.ProcessedCount++
		}
		it.Status = types.ItemCompleted
		it.OutputRef = outputRef
		it.LastError = ""
		monitoring.RecordItem("completed")
	case types.ItemFailed:
		now := time.Now()
		it.LastErrorAt = &now
		if retryable && it.RetryCount < types.MaxItemRetries {
			it.RetryCount++
		}
		if retryable && it.RetryCount < types.MaxItemRetries {
			it.Status = types.ItemPending
			it.LastError = errMsg
			monitoring.RecordItemRetry()
			q.logger.WithFields(logrus.Fields{
				"job_id":      jobID,
				"item_id":     itemID,
				"retry_count": it.RetryCount,
				"error":       errMsg,
			}).Warn("Item generation failed, reset to pending for retry")
		} else {
			if it.Status != types.ItemFailed {
				e.job.FailedCount++
			}
			it.Status = types.ItemFailed
			if retryable {
				it.LastError = fmt.Sprintf("%s (failed after %d retries)", errMsg, types.MaxItemRetries)
			} else {
				it.LastError = errMsg
			}
			monitoring.RecordItem("failed")
		}
	default:
		it.Status = status
	}

	e.progress = nil
	return true
}

// ItemStatus returns the current status of an item within a job
func (q *Queue) ItemStatus(jobID, itemID string) (types.ItemStatus, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	ref, ok := q.index[itemID]
	if !ok || ref.jobID != jobID {
		return "", false
	}
	e, ok := q.jobs[jobID]
	if !ok || ref.pos >= len(e.job.Items) {
		return "", false
	}
	return e.job.Items[ref.pos].Status, true
}

// UpdateJobStatus sets job-level status and timestamps. Processing stamps
// startedAt once; terminal statuses stamp completedAt. Negative processed or
// totalSize values leave the stored counters untouched. A terminal status is
// final: once a job is completed, failed, or cancelled, further updates are
// rejected so a cancellation cannot be undone by a concurrent progress write
// and a finished job cannot be cancelled retroactively.
func (q *Queue) UpdateJobStatus(jobID string, status types.JobStatus, processed int, totalSize int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.jobs[jobID]
	if !ok {
		return false
	}
	if e.job.Status.Terminal() {
		return false
	}

	now := time.Now()
	e.job.Status = status
	switch {
	case status == types.JobProcessing:
		if e.job.StartedAt == nil {
			e.job.StartedAt = &now
		}
	case status.Terminal():
		if e.job.CompletedAt == nil {
			e.job.CompletedAt = &now
		}
		duration := now.Sub(e.job.CreatedAt).Seconds()
		monitoring.RecordJob(string(status), duration)
	}
	if processed >= 0 {
		e.job.ProcessedCount = processed
	}
	if totalSize >= 0 {
		e.job.TotalSizeBytes = totalSize
	}

	e.progress = nil
	return true
}

// GetProgress returns the job's progress snapshot, recomputing it when the
// cached copy is older than the snapshot TTL or has been invalidated by a
// mutation. Returns nil for absent or expired jobs.
func (q *Queue) GetProgress(jobID string) *types.ProgressSnapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.jobs[jobID]
	if !ok {
		return nil
	}
	now := time.Now()
	if e.job.Expired(now) {
		return nil
	}

	if e.progress != nil && now.Sub(e.progressAt) < q.snapshotTTL {
		cp := *e.progress
		return &cp
	}

	var processed, failed int
	for _, it := range e.job.Items {
		switch it.Status {
		case types.ItemCompleted:
			processed++
		case types.ItemFailed:
			failed++
		}
	}
	total := len(e.job.Items)
	percent := 0.0
	if total > 0 {
		percent = float64(processed) / float64(total) * 100
	}

	snap := &types.ProgressSnapshot{
		JobID:           e.job.ID,
		Status:          e.job.Status,
		TotalItems:      total,
		Processed:       processed,
		Failed:          failed,
		Pending:         total - processed - failed,
		ProgressPercent: percent,
		TotalSizeBytes:  e.job.TotalSizeBytes,
		CreatedAt:       e.job.CreatedAt,
		StartedAt:       e.job.StartedAt,
		CompletedAt:     e.job.CompletedAt,
		ExpiresAt:       e.job.CreatedAt.Add(e.job.TTL),
	}
	e.progress = snap
	e.progressAt = now

	cp := *snap
	return &cp
}

// GetJobStatus returns a copy of the job, or nil when the job is absent or
// expired. Expiry is evaluated lazily here so the read path does not depend
// on reaper timing.
func (q *Queue) GetJobStatus(jobID string) *types.Job {
	q.mu.RLock()
	defer q.mu.RUnlock()

	e, ok := q.jobs[jobID]
	if !ok || e.job.Expired(time.Now()) {
		return nil
	}
	return copyJob(e.job)
}

// ListJobs returns non-expired jobs, newest first, optionally filtered by
// status and truncated to limit.
func (q *Queue) ListJobs(filter types.JobStatus, limit int) []types.JobSummary {
	q.mu.RLock()
	now := time.Now()
	summaries := make([]types.JobSummary, 0, len(q.jobs))
	for _, e := range q.jobs {
		if e.job.Expired(now) {
			continue
		}
		if filter != "" && e.job.Status != filter {
			continue
		}
		summaries = append(summaries, types.JobSummary{
			ID:          e.job.ID,
			Status:      e.job.Status,
			Model:       e.job.Model,
			TotalItems:  len(e.job.Items),
			Processed:   e.job.ProcessedCount,
			Failed:      e.job.FailedCount,
			CreatedAt:   e.job.CreatedAt,
			CompletedAt: e.job.CompletedAt,
		})
	}
	q.mu.RUnlock()

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries
}

// CleanupExpired removes jobs whose TTL has elapsed along with all of their
// item index entries, and returns the number of jobs removed. This is the
// only place index entries are reclaimed.
func (q *Queue) CleanupExpired() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	removed := 0
	for jobID, e := range q.jobs {
		if !e.job.Expired(now) {
			continue
		}
		for _, it := range e.job.Items {
			delete(q.index, it.ID)
		}
		delete(q.jobs, jobID)
		removed++
	}

	if removed > 0 {
		monitoring.RecordJobsReaped(removed)
		q.logger.WithField("removed_count", removed).Info("Cleaned up expired jobs")
	}
	return removed
}

// Delete removes a job and its index entries regardless of TTL
func (q *Queue) Delete(jobID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.jobs[jobID]
	if !ok {
		return false
	}
	for _, it := range e.job.Items {
		delete(q.index, it.ID)
	}
	delete(q.jobs, jobID)
	return true
}

// Depth returns the current number of buffered pending jobs
func (q *Queue) Depth() int {
	return len(q.pending)
}

// Capacity returns the admission limit of the pending buffer
func (q *Queue) Capacity() int {
	return cap(q.pending)
}

// reap runs CleanupExpired on the configured interval until Stop
func (q *Queue) reap() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.quit:
			return
		case <-ticker.C:
			q.CleanupExpired()
		}
	}
}

// copyJob returns a deep copy safe to hand out without holding the lock
func copyJob(job *types.Job) *types.Job {
	cp := *job
	cp.Items = make([]*types.Item, len(job.Items))
	for i, it := range job.Items {
		itemCp := *it
		cp.Items[i] = &itemCp
	}
	if job.Options != nil {
		cp.Options = make(map[string]string, len(job.Options))
		for k, v := range job.Options {
			cp.Options[k] = v
		}
	}
	return &cp
}
