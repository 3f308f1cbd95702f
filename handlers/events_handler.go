package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/okanyucel2/coloring-book-generator-sub000/middleware"
	"github.com/okanyucel2/coloring-book-generator-sub000/types"
	"github.com/okanyucel2/coloring-book-generator-sub000/utils"
	"github.com/sirupsen/logrus"
)

/*
HandleJobEvents streams a job's progress as Server-Sent Events.

Each update is written as:

	event: <status>
	data: <json>

A keep-alive comment line is sent on idle intervals so intermediaries do not
time the connection out. The stream ends when the end-of-stream sentinel
arrives, when a terminal event is delivered, or when the client disconnects.
*/
func (h *Handler) HandleJobEvents(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = utils.GenerateRequestID()
		w.Header().Set("X-Request-ID", requestID)
	}

	jobID := mux.Vars(r)["id"]
	if h.Queue.GetJobStatus(jobID) == nil && h.Hub.GetLatest(jobID) == nil {
		middleware.RespondNotFound(w, fmt.Errorf("job not found"), requestID)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		middleware.RespondInternalError(w, fmt.Errorf("streaming not supported by connection"), requestID)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := h.Hub.Subscribe(jobID)
	defer h.Hub.Unsubscribe(jobID, ch)

	h.Logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"job_id":     jobID,
	}).Info("Progress stream opened")

	keepAlive := time.NewTicker(h.KeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case update, open := <-ch:
			if !open {
				return
			}
			if update.Status == types.StreamEnd {
				fmt.Fprintf(w, "event: %s\ndata: {}\n\n", types.StreamEnd)
				flusher.Flush()
				return
			}
			data, err := json.Marshal(update)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", update.Status, data)
			flusher.Flush()
			// a terminal event is the last thing a subscriber will see
			if types.TerminalStream(update.Status) {
				return
			}

		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		}
	}
}
