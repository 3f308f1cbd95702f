package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/okanyucel2/coloring-book-generator-sub000/middleware"
	"github.com/okanyucel2/coloring-book-generator-sub000/utils"
	"github.com/sirupsen/logrus"
)

/*
HandleGetJobStatus retrieves the full state of a batch job.

Example:

	GET /jobs/job_7f3a...

Response:
  - 200 OK: job state including per-item status.
  - 404 Not Found: job missing or expired.
*/
func (h *Handler) HandleGetJobStatus(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = utils.GenerateRequestID()
		w.Header().Set("X-Request-ID", requestID)
	}

	jobID := mux.Vars(r)["id"]
	if jobID == "" {
		middleware.RespondBadRequest(w, fmt.Errorf("job id is missing"), requestID)
		return
	}

	job := h.Queue.GetJobStatus(jobID)
	if job == nil {
		middleware.RespondNotFound(w, fmt.Errorf("job not found"), requestID)
		return
	}

	h.Logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"job_id":     jobID,
		"status":     job.Status,
	}).Info("Job status retrieved")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(job)
}

/*
HandleGetProgress returns the cached progress snapshot for a job.

Response:
  - 200 OK: snapshot with counts, percent, and expiry.
  - 404 Not Found: job missing or expired.
*/
func (h *Handler) HandleGetProgress(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = utils.GenerateRequestID()
		w.Header().Set("X-Request-ID", requestID)
	}

	jobID := mux.Vars(r)["id"]
	snap := h.Queue.GetProgress(jobID)
	if snap == nil {
		middleware.RespondNotFound(w, fmt.Errorf("job not found"), requestID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(snap)
}
