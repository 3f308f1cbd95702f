package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/okanyucel2/coloring-book-generator-sub000/middleware"
	"github.com/okanyucel2/coloring-book-generator-sub000/queue"
	"github.com/okanyucel2/coloring-book-generator-sub000/types"
	"github.com/okanyucel2/coloring-book-generator-sub000/utils"
	"github.com/sirupsen/logrus"
)

// SubmitItemRequest is one page in a submission
type SubmitItemRequest struct {
	Name   string `json:"name"`
	Prompt string `json:"prompt"`
}

// SubmitJobRequest is the body of POST /jobs. TTLHours is a pointer so an
// explicit zero (expire immediately) is distinguishable from an omitted field.
type SubmitJobRequest struct {
	Items    []SubmitItemRequest `json:"items"`
	Model    string              `json:"model,omitempty"`
	Options  map[string]string   `json:"options,omitempty"`
	TTLHours *float64            `json:"ttl_hours,omitempty"`
}

// SubmitJobResponse is the body returned on accepted submission
type SubmitJobResponse struct {
	JobID      string `json:"job_id"`
	Status     string `json:"status"`
	TotalItems int    `json:"total_items"`
}

// maxItemsPerJob bounds a single submission
const maxItemsPerJob = 500

/*
HandleSubmitJob accepts a batch generation job.

Example:

	POST /jobs
	{"items": [{"name": "cat", "prompt": "a cat with a ball"}], "model": "lineart-v1"}

Response:
  - 202 Accepted: job accepted with its identifier.
  - 400 Bad Request: malformed body or no items.
  - 429 Too Many Requests: the pending queue is at capacity.
*/
func (h *Handler) HandleSubmitJob(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = utils.GenerateRequestID()
		w.Header().Set("X-Request-ID", requestID)
	}

	var req SubmitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.RespondBadRequest(w, fmt.Errorf("invalid request body: %v", err), requestID)
		return
	}
	if len(req.Items) == 0 {
		middleware.RespondValidationError(w, fmt.Errorf("job must contain at least one item"), requestID)
		return
	}
	if len(req.Items) > maxItemsPerJob {
		middleware.RespondValidationError(w, fmt.Errorf("job exceeds %d items", maxItemsPerJob), requestID)
		return
	}
	for i, it := range req.Items {
		if it.Name == "" {
			middleware.RespondValidationError(w, fmt.Errorf("item %d has no name", i), requestID)
			return
		}
	}

	model := req.Model
	if model == "" {
		model = h.DefaultModel
	}

	ttl := h.DefaultTTL
	if req.TTLHours != nil {
		if *req.TTLHours < 0 {
			middleware.RespondValidationError(w, fmt.Errorf("ttl_hours must not be negative"), requestID)
			return
		}
		ttl = time.Duration(*req.TTLHours * float64(time.Hour))
	}

	jobID := utils.NewJobID()
	items := make([]*types.Item, len(req.Items))
	for i, it := range req.Items {
		items[i] = &types.Item{
			ID:        utils.NewItemID(jobID, i),
			SourceRef: it.Name,
			Prompt:    it.Prompt,
			Status:    types.ItemPending,
		}
	}

	job := &types.Job{
		ID:      jobID,
		Items:   items,
		Model:   model,
		Options: req.Options,
		TTL:     ttl,
	}

	if _, err := h.Queue.Submit(job); err != nil {
		if errors.Is(err, queue.ErrQueueFull) {
			middleware.RespondQueueFull(w, err, requestID)
			return
		}
		middleware.RespondInternalError(w, err, requestID)
		return
	}

	h.Logger.WithFields(logrus.Fields{
		"request_id":  requestID,
		"job_id":      jobID,
		"items_count": len(items),
		"model":       model,
	}).Info("Batch job accepted")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(SubmitJobResponse{
		JobID:      jobID,
		Status:     string(types.JobPending),
		TotalItems: len(items),
	})
}
