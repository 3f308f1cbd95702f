/*
Package worker drives batch job execution.

A single worker loop polls the queue, walks each job's items in submission
order, invokes the page generator, and publishes progress to the hub. The
worker holds no state of its own beyond loop variables; every cross-call fact
lives in the queue or the hub, which makes the loop restartable.
*/
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/okanyucel2/coloring-book-generator-sub000/generator"
	"github.com/okanyucel2/coloring-book-generator-sub000/monitoring"
	"github.com/okanyucel2/coloring-book-generator-sub000/progress"
	"github.com/okanyucel2/coloring-book-generator-sub000/queue"
	"github.com/okanyucel2/coloring-book-generator-sub000/types"
	"github.com/sirupsen/logrus"
)

// Worker consumes the job queue and drives per-page generation
type Worker struct {
	queue        *queue.Queue
	hub          *progress.Hub
	gen          generator.Generator
	pollInterval time.Duration
	logger       *logrus.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a worker. It does not start consuming until Start is called.
func New(q *queue.Queue, hub *progress.Hub, gen generator.Generator, pollInterval time.Duration, logger *logrus.Logger) *Worker {
	return &Worker{
		queue:        q,
		hub:          hub,
		gen:          gen,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// Start launches the consumer loop
func (w *Worker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	monitoring.UpdateActiveWorkers(1)

	go w.run(ctx)
	w.logger.Info("Batch worker started")
}

// Stop signals the loop to exit and waits for it. An item already handed to
// the generator finishes; remaining items are left in place.
func (w *Worker) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
	monitoring.UpdateActiveWorkers(0)
	w.logger.Info("Batch worker stopped")
}

// run polls the queue on the configured interval when idle
func (w *Worker) run(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				job := w.queue.Dequeue()
				if job == nil {
					break
				}
				w.process(ctx, job)
				if ctx.Err() != nil {
					return
				}
			}
		}
	}
}

// process runs one job to a terminal state. Items reset to pending by the
// retry contract are picked up again on a later pass over the same job; the
// pass count is bounded by the per-item retry budget, so the loop always
// terminates.
func (w *Worker) process(ctx context.Context, job *types.Job) {
	ctx, span := monitoring.CreateSpan(ctx, "process job")
	defer span.End()
	monitoring.SetSpanAttributes(span, map[string]interface{}{
		"job.id":    job.ID,
		"job.items": len(job.Items),
		"job.model": job.Model,
	})

	start := time.Now()
	total := len(job.Items)

	w.queue.UpdateJobStatus(job.ID, types.JobProcessing, -1, -1)
	w.hub.Publish(types.ProgressUpdate{
		JobID:   job.ID,
		Total:   total,
		Message: fmt.Sprintf("starting generation of %d pages", total),
		Status:  types.StreamProcessing,
	})

	w.logger.WithFields(logrus.Fields{
		"job_id":      job.ID,
		"items_count": total,
		"model":       job.Model,
	}).Info("Processing batch job")

	var (
		processed int
		failed    int
		totalSize int64
		cancelled bool
	)

	for pass := 0; pass <= types.MaxItemRetries && !cancelled; pass++ {
		anyPending := false

		for _, it := range job.Items {
			status, ok := w.queue.ItemStatus(job.ID, it.ID)
			if !ok || status != types.ItemPending {
				continue
			}

			current := w.queue.GetJobStatus(job.ID)
			if current == nil || current.Status == types.JobCancelled {
				cancelled = true
				break
			}
			if ctx.Err() != nil {
				// Shutdown: leave the job processing with its remaining items
				// pending and return without publishing a terminal event.
				w.logger.WithFields(logrus.Fields{
					"job_id":    job.ID,
					"processed": processed,
				}).Info("Worker stopping mid-job, remaining items left pending")
				return
			}

			out, err := w.generateItem(ctx, it)
			switch {
			case err == nil:
				w.queue.UpdateItemStatus(job.ID, it.ID, types.ItemCompleted, out.Ref, "", false)
				processed++
				totalSize += out.Size
				w.queue.UpdateJobStatus(job.ID, types.JobProcessing, -1, totalSize)
				w.hub.Publish(types.ProgressUpdate{
					JobID:          job.ID,
					Processed:      processed,
					Total:          total,
					CurrentItem:    it.SourceRef,
					Message:        fmt.Sprintf("generated page %d of %d", processed, total),
					Status:         types.StreamProcessing,
					TotalSizeBytes: totalSize,
				})

			case generator.IsPermanent(err):
				w.queue.UpdateItemStatus(job.ID, it.ID, types.ItemFailed, "", err.Error(), false)
				failed++
				w.hub.Publish(types.ProgressUpdate{
					JobID:       job.ID,
					Processed:   processed,
					Total:       total,
					CurrentItem: it.SourceRef,
					Message:     fmt.Sprintf("page %s failed", it.SourceRef),
					Status:      types.StreamProcessing,
					Error:       err.Error(),
				})

			default:
				// Retryable: the queue either resets the item to pending
				// (consuming retry budget) or records the terminal failure.
				w.queue.UpdateItemStatus(job.ID, it.ID, types.ItemFailed, "", err.Error(), true)
				after, _ := w.queue.ItemStatus(job.ID, it.ID)
				if after == types.ItemPending {
					anyPending = true
				} else {
					failed++
					w.hub.Publish(types.ProgressUpdate{
						JobID:       job.ID,
						Processed:   processed,
						Total:       total,
						CurrentItem: it.SourceRef,
						Message:     fmt.Sprintf("page %s exhausted retries", it.SourceRef),
						Status:      types.StreamProcessing,
						Error:       err.Error(),
					})
				}
			}
		}

		if !anyPending {
			break
		}
	}

	w.finalize(job.ID, total, processed, failed, totalSize, cancelled, time.Since(start))
}

func (w *Worker) finalize(jobID string, total, processed, failed int, totalSize int64, cancelled bool, elapsed time.Duration) {
	if cancelled {
		w.logger.WithFields(logrus.Fields{
			"job_id":    jobID,
			"processed": processed,
			"failed":    failed,
		}).Info("Batch job stopped on cancellation")
		return
	}

	final := types.JobCompleted
	stream := types.StreamCompleted
	if total > 0 && failed >= total {
		final = types.JobFailed
		stream = types.StreamFailed
	}

	w.queue.UpdateJobStatus(jobID, final, processed, totalSize)
	w.hub.Publish(types.ProgressUpdate{
		JobID:          jobID,
		Processed:      processed,
		Total:          total,
		Message:        fmt.Sprintf("finished: %d generated, %d failed", processed, failed),
		Status:         stream,
		TotalSizeBytes: totalSize,
	})

	w.logger.WithFields(logrus.Fields{
		"job_id":      jobID,
		"status":      final,
		"processed":   processed,
		"failed":      failed,
		"size_bytes":  totalSize,
		"duration_ms": elapsed.Milliseconds(),
	}).Info("Batch job finished")
}

// generateItem invokes the generator with panic containment: a panic inside
// one page's generation is recorded as that page's failure, never allowed to
// kill the loop.
func (w *Worker) generateItem(ctx context.Context, it *types.Item) (out *generator.Output, err error) {
	ctx, span := monitoring.CreateSpan(ctx, "generate page")
	defer span.End()
	monitoring.SetSpanAttributes(span, map[string]interface{}{
		"item.id":     it.ID,
		"item.source": it.SourceRef,
	})

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("generation panic: %v", r)
			monitoring.SetSpanError(span, err)
			w.logger.WithFields(logrus.Fields{
				"item_id": it.ID,
				"panic":   fmt.Sprintf("%v", r),
			}).Error("Recovered panic during page generation")
		}
	}()

	start := time.Now()
	out, err = w.gen.Generate(ctx, it.SourceRef, it.Prompt)
	if err != nil {
		monitoring.SetSpanError(span, err)
		return nil, err
	}
	monitoring.RecordGeneration(time.Since(start).Seconds(), out.Size)
	return out, nil
}
