package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/okanyucel2/coloring-book-generator-sub000/export"
	"github.com/okanyucel2/coloring-book-generator-sub000/middleware"
	"github.com/okanyucel2/coloring-book-generator-sub000/types"
	"github.com/okanyucel2/coloring-book-generator-sub000/utils"
	"github.com/sirupsen/logrus"
)

// defaultListLimit caps a job listing when the client does not pass one
const defaultListLimit = 50

/*
HandleListJobs lists non-expired jobs, newest first.

Query Parameters:
  - status: optional filter (pending, processing, completed, failed, cancelled)
  - limit: optional maximum count, default 50
*/
func (h *Handler) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = utils.GenerateRequestID()
		w.Header().Set("X-Request-ID", requestID)
	}

	filter := types.JobStatus(r.URL.Query().Get("status"))
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			middleware.RespondBadRequest(w, fmt.Errorf("invalid limit %q", raw), requestID)
			return
		}
		limit = parsed
	}

	jobs := h.Queue.ListJobs(filter, limit)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

/*
HandleCancelJob requests cooperative cancellation of a job. The worker stops
before the next item; the item currently being generated is not interrupted.

Response:
  - 200 OK: job marked cancelled.
  - 404 Not Found: job missing or expired.
  - 409 Conflict: job already in a terminal state.
*/
func (h *Handler) HandleCancelJob(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = utils.GenerateRequestID()
		w.Header().Set("X-Request-ID", requestID)
	}

	jobID := mux.Vars(r)["id"]
	job := h.Queue.GetJobStatus(jobID)
	if job == nil {
		middleware.RespondNotFound(w, fmt.Errorf("job not found"), requestID)
		return
	}
	if job.Status.Terminal() {
		middleware.RespondConflict(w, fmt.Errorf("job is already %s", job.Status), requestID)
		return
	}

	// The worker may finalize the job between the check above and this write;
	// the queue rejects the update in that case and the cancel is a conflict.
	if !h.Queue.UpdateJobStatus(jobID, types.JobCancelled, -1, -1) {
		middleware.RespondConflict(w, fmt.Errorf("job already finished"), requestID)
		return
	}
	h.Hub.Publish(types.ProgressUpdate{
		JobID:     jobID,
		Processed: job.ProcessedCount,
		Total:     len(job.Items),
		Message:   "job cancelled",
		Status:    types.StreamCancelled,
	})
	h.Hub.CloseAll(jobID)

	h.Logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"job_id":     jobID,
	}).Info("Job cancelled")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"job_id": jobID,
		"status": string(types.JobCancelled),
	})
}

/*
HandleDeleteJob removes a job's state and artifacts ahead of its TTL and
terminates any live event streams.
*/
func (h *Handler) HandleDeleteJob(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = utils.GenerateRequestID()
		w.Header().Set("X-Request-ID", requestID)
	}

	jobID := mux.Vars(r)["id"]
	if !h.Queue.Delete(jobID) {
		middleware.RespondNotFound(w, fmt.Errorf("job not found"), requestID)
		return
	}
	h.Hub.CloseAll(jobID)

	h.Logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"job_id":     jobID,
	}).Info("Job deleted")

	w.WriteHeader(http.StatusNoContent)
}

/*
HandleDownloadJob serves the completed pages of a job as a ZIP archive.

Response:
  - 200 OK: application/zip attachment.
  - 404 Not Found: job missing or expired, or no artifacts remain.
  - 409 Conflict: job has not reached a terminal state yet.
*/
func (h *Handler) HandleDownloadJob(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = utils.GenerateRequestID()
		w.Header().Set("X-Request-ID", requestID)
	}

	jobID := mux.Vars(r)["id"]
	job := h.Queue.GetJobStatus(jobID)
	if job == nil {
		middleware.RespondNotFound(w, fmt.Errorf("job not found"), requestID)
		return
	}
	if !job.Status.Terminal() {
		middleware.RespondConflict(w, fmt.Errorf("job is still %s", job.Status), requestID)
		return
	}

	archive, included, err := export.Archive(job, h.Artifacts)
	if err != nil {
		middleware.RespondInternalError(w, err, requestID)
		return
	}
	if included == 0 {
		middleware.RespondNotFound(w, fmt.Errorf("no generated pages available for download"), requestID)
		return
	}

	h.Logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"job_id":     jobID,
		"pages":      included,
		"size_bytes": len(archive),
	}).Info("Serving job archive")

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.zip"`, jobID))
	w.Header().Set("Content-Length", strconv.Itoa(len(archive)))
	w.WriteHeader(http.StatusOK)
	w.Write(archive)
}

// HandleHubMetrics exposes the progress hub's counters as JSON
func (h *Handler) HandleHubMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(h.Hub.Metrics())
}
