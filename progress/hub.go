/*
Package progress implements per-job pub/sub of generation progress events.

The hub fans published updates out to every subscriber concurrently, bounded
by a per-subscriber send timeout, so one slow SSE client can never delay
delivery to the others. Subscribers that fail three consecutive sends are
evicted. Snapshots and subscriber sets for finished jobs are reclaimed by a
TTL reaper.
*/
package progress

import (
	"sync"
	"time"

	"github.com/okanyucel2/coloring-book-generator-sub000/monitoring"
	"github.com/okanyucel2/coloring-book-generator-sub000/types"
	"github.com/sirupsen/logrus"
)

// SubscriberBuffer is the channel capacity given to each subscriber
const SubscriberBuffer = 10

// maxSendFailures is how many consecutive timed-out sends evict a subscriber
const maxSendFailures = 3

// latencyWindow is the number of recent publishes kept for the rolling
// latency figures in Metrics
const latencyWindow = 100

// subscriber is one registered observer channel plus its health counter
type subscriber struct {
	ch       chan types.ProgressUpdate
	failures int
}

// Metrics is a read-only snapshot of hub counters
type Metrics struct {
	Publishes          uint64  `json:"publishes"`
	SubscribersEvicted uint64  `json:"subscribers_evicted"`
	JobsCleaned        uint64  `json:"jobs_cleaned"`
	ActiveSubscribers  int     `json:"active_subscribers"`
	AvgPublishLatency  float64 `json:"avg_publish_latency_ms"`
	MaxPublishLatency  float64 `json:"max_publish_latency_ms"`
}

// Hub owns the per-job subscriber sets and last-known snapshots
type Hub struct {
	mu          sync.Mutex
	subs        map[string][]*subscriber
	latest      map[string]types.ProgressUpdate
	completedAt map[string]time.Time

	sendTimeout  time.Duration
	ttl          time.Duration
	reapInterval time.Duration

	publishes uint64
	evicted   uint64
	cleaned   uint64
	latencies []float64

	logger *logrus.Logger
	quit   chan struct{}
	wg     sync.WaitGroup
}

// NewHub creates a progress hub. The reaper does not run until Start.
func NewHub(sendTimeout, ttl, reapInterval time.Duration, logger *logrus.Logger) *Hub {
	return &Hub{
		subs:         make(map[string][]*subscriber),
		latest:       make(map[string]types.ProgressUpdate),
		completedAt:  make(map[string]time.Time),
		sendTimeout:  sendTimeout,
		ttl:          ttl,
		reapInterval: reapInterval,
		latencies:    make([]float64, 0, latencyWindow),
		logger:       logger,
		quit:         make(chan struct{}),
	}
}

// Start launches the background TTL reaper
func (h *Hub) Start() {
	h.wg.Add(1)
	go h.reap()
}

// Stop terminates the background reaper and waits for it to exit
func (h *Hub) Stop() {
	close(h.quit)
	h.wg.Wait()
}

// Subscribe registers a new observer channel for the job and returns it. The
// job's last known snapshot, if any, is enqueued immediately so late joiners
// see current state without waiting for the next event; that delivery is
// best-effort and never blocks.
func (h *Hub) Subscribe(jobID string) <-chan types.ProgressUpdate {
	sub := &subscriber{ch: make(chan types.ProgressUpdate, SubscriberBuffer)}

	h.mu.Lock()
	h.subs[jobID] = append(h.subs[jobID], sub)
	last, hasLast := h.latest[jobID]
	subscriberCount := len(h.subs[jobID])
	h.mu.Unlock()

	if hasLast {
		select {
		case sub.ch <- last:
		default:
		}
	}

	monitoring.UpdateActiveSubscribers(h.subscriberCount())
	h.logger.WithFields(logrus.Fields{
		"job_id":      jobID,
		"subscribers": subscriberCount,
	}).Debug("Progress subscriber registered")

	return sub.ch
}

// Unsubscribe removes the channel from the job's subscriber set by identity.
// The set itself is removed once empty.
func (h *Hub) Unsubscribe(jobID string, ch <-chan types.ProgressUpdate) bool {
	h.mu.Lock()
	removed := h.removeLocked(jobID, ch)
	h.mu.Unlock()

	if removed {
		monitoring.UpdateActiveSubscribers(h.subscriberCount())
	}
	return removed
}

func (h *Hub) removeLocked(jobID string, ch <-chan types.ProgressUpdate) bool {
	subs := h.subs[jobID]
	for i, sub := range subs {
		if sub.ch != ch {
			continue
		}
		h.subs[jobID] = append(subs[:i], subs[i+1:]...)
		if len(h.subs[jobID]) == 0 {
			delete(h.subs, jobID)
		}
		return true
	}
	return false
}

// Publish stores the update as the job's latest snapshot and delivers it to
// every current subscriber concurrently, each send bounded by the hub's
// timeout. Returns the number of subscribers successfully notified.
func (h *Hub) Publish(update types.ProgressUpdate) int {
	start := time.Now()
	if update.Timestamp.IsZero() {
		update.Timestamp = start
	}

	h.mu.Lock()
	h.latest[update.JobID] = update
	if types.TerminalStream(update.Status) {
		if _, ok := h.completedAt[update.JobID]; !ok {
			h.completedAt[update.JobID] = start
		}
	}
	targets := make([]*subscriber, len(h.subs[update.JobID]))
	copy(targets, h.subs[update.JobID])
	h.mu.Unlock()

	delivered := 0
	results := make([]bool, len(targets))
	if len(targets) > 0 {
		var wg sync.WaitGroup
		for i, sub := range targets {
			wg.Add(1)
			go func(i int, sub *subscriber) {
				defer wg.Done()
				timer := time.NewTimer(h.sendTimeout)
				defer timer.Stop()
				select {
				case sub.ch <- update:
					results[i] = true
				case <-timer.C:
				}
			}(i, sub)
		}
		wg.Wait()
	}

	h.mu.Lock()
	for i, sub := range targets {
		if results[i] {
			sub.failures = 0
			delivered++
			continue
		}
		sub.failures++
		if sub.failures >= maxSendFailures {
			if h.removeLocked(update.JobID, sub.ch) {
				h.evicted++
				monitoring.RecordSubscriberEvicted()
				h.logger.WithFields(logrus.Fields{
					"job_id":   update.JobID,
					"failures": sub.failures,
				}).Warn("Evicting slow progress subscriber")
			}
		}
	}
	h.publishes++
	latency := float64(time.Since(start).Microseconds()) / 1000.0
	if len(h.latencies) >= latencyWindow {
		h.latencies = h.latencies[1:]
	}
	h.latencies = append(h.latencies, latency)
	h.mu.Unlock()

	monitoring.RecordProgressPublish(time.Since(start).Seconds(), delivered)
	monitoring.UpdateActiveSubscribers(h.subscriberCount())
	return delivered
}

// GetLatest returns the job's last published update without subscribing
func (h *Hub) GetLatest(jobID string) *types.ProgressUpdate {
	h.mu.Lock()
	defer h.mu.Unlock()

	update, ok := h.latest[jobID]
	if !ok {
		return nil
	}
	cp := update
	return &cp
}

// CloseAll sends the end-of-stream sentinel to every subscriber of the job,
// bounded per subscriber by the send timeout, then drops the subscriber set.
// Used when a job is cancelled or deleted so streaming handlers terminate.
func (h *Hub) CloseAll(jobID string) {
	sentinel := types.ProgressUpdate{
		JobID:     jobID,
		Status:    types.StreamEnd,
		Message:   "stream closed",
		Timestamp: time.Now(),
	}

	h.mu.Lock()
	targets := h.subs[jobID]
	delete(h.subs, jobID)
	h.mu.Unlock()

	var wg sync.WaitGroup
	for _, sub := range targets {
		wg.Add(1)
		go func(sub *subscriber) {
			defer wg.Done()
			timer := time.NewTimer(h.sendTimeout)
			defer timer.Stop()
			select {
			case sub.ch <- sentinel:
			case <-timer.C:
			}
		}(sub)
	}
	wg.Wait()

	monitoring.UpdateActiveSubscribers(h.subscriberCount())
}

// CleanupExpired drops snapshots and subscriber sets for jobs whose terminal
// event is older than the hub TTL, and returns the number of jobs cleaned.
func (h *Hub) CleanupExpired() int {
	h.mu.Lock()
	cutoff := time.Now().Add(-h.ttl)
	var expired []string
	for jobID, done := range h.completedAt {
		if done.Before(cutoff) {
			expired = append(expired, jobID)
		}
	}
	for _, jobID := range expired {
		delete(h.latest, jobID)
		delete(h.completedAt, jobID)
		delete(h.subs, jobID)
		h.cleaned++
	}
	h.mu.Unlock()

	if len(expired) > 0 {
		h.logger.WithField("removed_count", len(expired)).Info("Cleaned up expired progress state")
	}
	return len(expired)
}

// Metrics returns a snapshot of the hub's running counters, including
// rolling average and max publish latency over the last publishes.
func (h *Hub) Metrics() Metrics {
	h.mu.Lock()
	defer h.mu.Unlock()

	m := Metrics{
		Publishes:          h.publishes,
		SubscribersEvicted: h.evicted,
		JobsCleaned:        h.cleaned,
	}
	for _, subs := range h.subs {
		m.ActiveSubscribers += len(subs)
	}
	for _, l := range h.latencies {
		m.AvgPublishLatency += l
		if l > m.MaxPublishLatency {
			m.MaxPublishLatency = l
		}
	}
	if len(h.latencies) > 0 {
		m.AvgPublishLatency /= float64(len(h.latencies))
	}
	return m
}

func (h *Hub) subscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	count := 0
	for _, subs := range h.subs {
		count += len(subs)
	}
	return count
}

// reap runs CleanupExpired on the configured interval until Stop
func (h *Hub) reap() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.quit:
			return
		case <-ticker.C:
			h.CleanupExpired()
		}
	}
}
