package queue

import (
	"testing"
	"time"

	"github.com/okanyucel2/coloring-book-generator-sub000/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testQueue(capacity int) *Queue {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewQueue(capacity, 5*time.Second, 10*time.Minute, logger)
}

func testJob(id string, itemIDs ...string) *types.Job {
	items := make([]*types.Item, 0, len(itemIDs))
	for _, iid := range itemIDs {
		items = append(items, &types.Item{
			ID:        iid,
			SourceRef: "sources/" + iid + ".jpg",
			Prompt:    "a friendly dinosaur",
		})
	}
	return &types.Job{
		ID:    id,
		Items: items,
		Model: "lineart-v1",
		TTL:   24 * time.Hour,
	}
}

func TestSubmitAndGetJobStatus(t *testing.T) {
	q := testQueue(10)

	id, err := q.Submit(testJob("job_a", "job_a_item_000", "job_a_item_001"))
	require.NoError(t, err)
	assert.Equal(t, "job_a", id)

	job := q.GetJobStatus("job_a")
	require.NotNil(t, job)
	assert.Equal(t, types.JobPending, job.Status)
	assert.Len(t, job.Items, 2)
	assert.Equal(t, types.ItemPending, job.Items[0].Status)
	assert.False(t, job.CreatedAt.IsZero())
	assert.Equal(t, 24*time.Hour, job.TTL)
}

func TestSubmitRejectsDuplicateID(t *testing.T) {
	q := testQueue(10)

	_, err := q.Submit(testJob("job_a", "job_a_item_000"))
	require.NoError(t, err)

	_, err = q.Submit(testJob("job_a", "job_a_item_001"))
	assert.Error(t, err)
}

func TestSubmitRejectsWhenFull(t *testing.T) {
	q := testQueue(1)

	_, err := q.Submit(testJob("job_a", "job_a_item_000"))
	require.NoError(t, err)

	_, err = q.Submit(testJob("job_b", "job_b_item_000"))
	assert.ErrorIs(t, err, ErrQueueFull)

	// The rejected job must not leak into the job table
	assert.Nil(t, q.GetJobStatus("job_b"))

	// Draining the buffer reopens admission
	job := q.Dequeue()
	require.NotNil(t, job)
	assert.Equal(t, "job_a", job.ID)

	_, err = q.Submit(testJob("job_b", "job_b_item_000"))
	assert.NoError(t, err)
}

func TestDequeueEmptyReturnsNil(t *testing.T) {
	q := testQueue(5)
	assert.Nil(t, q.Dequeue())
}

func TestDequeueSkipsDeletedJobs(t *testing.T) {
	q := testQueue(5)

	_, err := q.Submit(testJob("job_a", "job_a_item_000"))
	require.NoError(t, err)
	_, err = q.Submit(testJob("job_b", "job_b_item_000"))
	require.NoError(t, err)

	require.True(t, q.Delete("job_a"))

	job := q.Dequeue()
	require.NotNil(t, job)
	assert.Equal(t, "job_b", job.ID)
	assert.Nil(t, q.Dequeue())
}

func TestDequeueReturnsCopy(t *testing.T) {
	q := testQueue(5)

	_, err := q.Submit(testJob("job_a", "job_a_item_000"))
	require.NoError(t, err)

	job := q.Dequeue()
	require.NotNil(t, job)
	job.Items[0].Status = types.ItemCompleted

	status, ok := q.ItemStatus("job_a", "job_a_item_000")
	require.True(t, ok)
	assert.Equal(t, types.ItemPending, status)
}

func TestUpdateItemStatusCompleted(t *testing.T) {
	q := testQueue(5)

	_, err := q.Submit(testJob("job_a", "job_a_item_000", "job_a_item_001"))
	require.NoError(t, err)

	ok := q.UpdateItemStatus("job_a", "job_a_item_000", types.ItemCompleted, "pages/dino.svg", "", false)
	require.True(t, ok)

	job := q.GetJobStatus("job_a")
	require.NotNil(t, job)
	assert.Equal(t, 1, job.ProcessedCount)
	assert.Equal(t, types.ItemCompleted, job.Items[0].Status)
	assert.Equal(t, "pages/dino.svg", job.Items[0].OutputRef)
}

func TestUpdateItemStatusRetryBudget(t *testing.T) {
	q := testQueue(5)

	_, err := q.Submit(testJob("job_a", "job_a_item_000"))
	require.NoError(t, err)

	// First two retryable failures reset the item to pending
	for i := 1; i <= 2; i++ {
		ok := q.UpdateItemStatus("job_a", "job_a_item_000", types.ItemFailed, "", "timeout", true)
		require.True(t, ok)

		job := q.GetJobStatus("job_a")
		require.NotNil(t, job)
		assert.Equal(t, types.ItemPending, job.Items[0].Status)
		assert.Equal(t, i, job.Items[0].RetryCount)
		assert.Equal(t, "timeout", job.Items[0].LastError)
		assert.Equal(t, 0, job.FailedCount)
	}

	// Third retryable failure exhausts the budget and is terminal
	ok := q.UpdateItemStatus("job_a", "job_a_item_000", types.ItemFailed, "", "timeout", true)
	require.True(t, ok)

	job := q.GetJobStatus("job_a")
	require.NotNil(t, job)
	assert.Equal(t, types.ItemFailed, job.Items[0].Status)
	assert.Equal(t, types.MaxItemRetries, job.Items[0].RetryCount)
	assert.Equal(t, "timeout (failed after 3 retries)", job.Items[0].LastError)
	assert.Equal(t, 1, job.FailedCount)
	assert.NotNil(t, job.Items[0].LastErrorAt)

	// A further failure report cannot push the retry count past the budget
	// or double-count the item as failed
	ok = q.UpdateItemStatus("job_a", "job_a_item_000", types.ItemFailed, "", "timeout", true)
	require.True(t, ok)
	job = q.GetJobStatus("job_a")
	require.NotNil(t, job)
	assert.Equal(t, types.ItemFailed, job.Items[0].Status)
	assert.Equal(t, types.MaxItemRetries, job.Items[0].RetryCount)
	assert.Equal(t, 1, job.FailedCount)
}

func TestUpdateItemStatusNonRetryable(t *testing.T) {
	q := testQueue(5)

	_, err := q.Submit(testJob("job_a", "job_a_item_000"))
	require.NoError(t, err)

	ok := q.UpdateItemStatus("job_a", "job_a_item_000", types.ItemFailed, "", "prompt rejected", false)
	require.True(t, ok)

	job := q.GetJobStatus("job_a")
	require.NotNil(t, job)
	assert.Equal(t, types.ItemFailed, job.Items[0].Status)
	assert.Equal(t, 0, job.Items[0].RetryCount)
	assert.Equal(t, "prompt rejected", job.Items[0].LastError)
	assert.Equal(t, 1, job.FailedCount)
}

func TestUpdateItemStatusUnknown(t *testing.T) {
	q := testQueue(5)

	_, err := q.Submit(testJob("job_a", "job_a_item_000"))
	require.NoError(t, err)

	assert.False(t, q.UpdateItemStatus("job_a", "no_such_item", types.ItemCompleted, "", "", false))
	assert.False(t, q.UpdateItemStatus("wrong_job", "job_a_item_000", types.ItemCompleted, "", "", false))
}

func TestUpdateJobStatusTimestamps(t *testing.T) {
	q := testQueue(5)

	_, err := q.Submit(testJob("job_a", "job_a_item_000"))
	require.NoError(t, err)

	require.True(t, q.UpdateJobStatus("job_a", types.JobProcessing, -1, -1))
	job := q.GetJobStatus("job_a")
	require.NotNil(t, job)
	require.NotNil(t, job.StartedAt)
	started := *job.StartedAt

	// A second transition to processing must not restamp startedAt
	require.True(t, q.UpdateJobStatus("job_a", types.JobProcessing, -1, -1))
	job = q.GetJobStatus("job_a")
	assert.Equal(t, started, *job.StartedAt)

	require.True(t, q.UpdateJobStatus("job_a", types.JobCompleted, 1, 2048))
	job = q.GetJobStatus("job_a")
	require.NotNil(t, job.CompletedAt)
	assert.Equal(t, 1, job.ProcessedCount)
	assert.Equal(t, int64(2048), job.TotalSizeBytes)

	assert.False(t, q.UpdateJobStatus("no_such_job", types.JobCompleted, -1, -1))
}

func TestUpdateJobStatusTerminalIsFinal(t *testing.T) {
	q := testQueue(5)

	_, err := q.Submit(testJob("job_a", "job_a_item_000"))
	require.NoError(t, err)

	require.True(t, q.UpdateJobStatus("job_a", types.JobCancelled, -1, -1))

	// A progress write racing with the cancellation must not resurrect the job
	assert.False(t, q.UpdateJobStatus("job_a", types.JobProcessing, -1, 512))
	job := q.GetJobStatus("job_a")
	require.NotNil(t, job)
	assert.Equal(t, types.JobCancelled, job.Status)
	assert.Equal(t, int64(0), job.TotalSizeBytes)

	// Nor can a finished job be flipped to a different terminal status
	assert.False(t, q.UpdateJobStatus("job_a", types.JobCompleted, -1, -1))
	job = q.GetJobStatus("job_a")
	assert.Equal(t, types.JobCancelled, job.Status)
}

func TestGetProgress(t *testing.T) {
	q := testQueue(5)

	_, err := q.Submit(testJob("job_a", "job_a_item_000", "job_a_item_001"))
	require.NoError(t, err)

	snap := q.GetProgress("job_a")
	require.NotNil(t, snap)
	assert.Equal(t, 2, snap.TotalItems)
	assert.Equal(t, 0, snap.Processed)
	assert.Equal(t, 2, snap.Pending)
	assert.Equal(t, 0.0, snap.ProgressPercent)
	assert.Equal(t, snap.CreatedAt.Add(24*time.Hour), snap.ExpiresAt)

	q.UpdateItemStatus("job_a", "job_a_item_000", types.ItemCompleted, "pages/a.svg", "", false)

	snap = q.GetProgress("job_a")
	require.NotNil(t, snap)
	assert.Equal(t, 1, snap.Processed)
	assert.Equal(t, 1, snap.Pending)
	assert.Equal(t, 50.0, snap.ProgressPercent)
}

func TestGetProgressCacheInvalidation(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	// Long snapshot TTL so only explicit invalidation can refresh the cache
	q := NewQueue(5, time.Hour, 10*time.Minute, logger)

	_, err := q.Submit(testJob("job_a", "job_a_item_000"))
	require.NoError(t, err)

	first := q.GetProgress("job_a")
	require.NotNil(t, first)
	assert.Equal(t, 0, first.Processed)

	// Mutation invalidates the cached snapshot despite the long TTL
	q.UpdateItemStatus("job_a", "job_a_item_000", types.ItemCompleted, "pages/a.svg", "", false)

	second := q.GetProgress("job_a")
	require.NotNil(t, second)
	assert.Equal(t, 1, second.Processed)
	assert.Equal(t, 100.0, second.ProgressPercent)
}

func TestGetProgressUnknownJob(t *testing.T) {
	q := testQueue(5)
	assert.Nil(t, q.GetProgress("no_such_job"))
}

func TestExpiredJobIsInvisible(t *testing.T) {
	q := testQueue(5)

	job := testJob("job_a", "job_a_item_000")
	job.TTL = time.Nanosecond
	_, err := q.Submit(job)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	assert.Nil(t, q.GetJobStatus("job_a"))
	assert.Nil(t, q.GetProgress("job_a"))
	assert.Empty(t, q.ListJobs("", 0))
	assert.Nil(t, q.Dequeue())
}

func TestZeroTTLJobExpiresImmediately(t *testing.T) {
	q := testQueue(5)

	job := testJob("job_a", "job_a_item_000")
	job.TTL = 0
	_, err := q.Submit(job)
	require.NoError(t, err)

	assert.Nil(t, q.GetJobStatus("job_a"))
	assert.Nil(t, q.Dequeue())
}

func TestCleanupExpiredReclaimsIndex(t *testing.T) {
	q := testQueue(5)

	expired := testJob("job_a", "job_a_item_000")
	expired.TTL = time.Nanosecond
	_, err := q.Submit(expired)
	require.NoError(t, err)

	_, err = q.Submit(testJob("job_b", "job_b_item_000"))
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	removed := q.CleanupExpired()
	assert.Equal(t, 1, removed)

	_, ok := q.ItemStatus("job_a", "job_a_item_000")
	assert.False(t, ok)
	_, ok = q.ItemStatus("job_b", "job_b_item_000")
	assert.True(t, ok)

	assert.Equal(t, 0, q.CleanupExpired())
}

func TestListJobsOrderingAndFilter(t *testing.T) {
	q := testQueue(10)

	for _, id := range []string{"job_a", "job_b", "job_c"} {
		_, err := q.Submit(testJob(id, id+"_item_000"))
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}
	require.True(t, q.UpdateJobStatus("job_b", types.JobCompleted, -1, -1))

	all := q.ListJobs("", 0)
	require.Len(t, all, 3)
	assert.Equal(t, "job_c", all[0].ID)
	assert.Equal(t, "job_a", all[2].ID)

	completed := q.ListJobs(types.JobCompleted, 0)
	require.Len(t, completed, 1)
	assert.Equal(t, "job_b", completed[0].ID)

	limited := q.ListJobs("", 2)
	require.Len(t, limited, 2)
	assert.Equal(t, "job_c", limited[0].ID)
}

func TestDelete(t *testing.T) {
	q := testQueue(5)

	_, err := q.Submit(testJob("job_a", "job_a_item_000"))
	require.NoError(t, err)

	assert.True(t, q.Delete("job_a"))
	assert.Nil(t, q.GetJobStatus("job_a"))
	_, ok := q.ItemStatus("job_a", "job_a_item_000")
	assert.False(t, ok)

	assert.False(t, q.Delete("job_a"))
}

func TestDepthAndCapacity(t *testing.T) {
	q := testQueue(3)
	assert.Equal(t, 0, q.Depth())
	assert.Equal(t, 3, q.Capacity())

	_, err := q.Submit(testJob("job_a", "job_a_item_000"))
	require.NoError(t, err)
	assert.Equal(t, 1, q.Depth())

	q.Dequeue()
	assert.Equal(t, 0, q.Depth())
}

func TestStartStopReaper(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	q := NewQueue(5, 5*time.Second, 10*time.Millisecond, logger)

	job := testJob("job_a", "job_a_item_000")
	job.TTL = time.Nanosecond
	_, err := q.Submit(job)
	require.NoError(t, err)

	q.Start()
	time.Sleep(50 * time.Millisecond)
	assert.NotPanics(t, q.Stop)

	q.mu.RLock()
	_, exists := q.jobs["job_a"]
	q.mu.RUnlock()
	assert.False(t, exists)
}
