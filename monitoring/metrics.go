// Package monitoring provides metrics and observability for the coloring book backend
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Job lifecycle metrics
	jobsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cbg_jobs_submitted_total",
			Help: "Total number of batch job submissions by admission outcome",
		},
		[]string{"outcome"},
	)

	jobsFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cbg_jobs_finished_total",
			Help: "Total number of batch jobs reaching a terminal status",
		},
		[]string{"status"},
	)

	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cbg_job_duration_seconds",
			Help:    "Time from job submission to terminal status",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"status"},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cbg_queue_depth",
			Help: "Current number of jobs buffered in the pending queue",
		},
	)

	jobsReapedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cbg_jobs_reaped_total",
			Help: "Total number of expired jobs removed by the reaper",
		},
	)

	// Item generation metrics
	itemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cbg_items_total",
			Help: "Total number of items reaching a terminal status",
		},
		[]string{"status"},
	)

	itemRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cbg_item_retries_total",
			Help: "Total number of item retry resets",
		},
	)

	generationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cbg_generation_duration_seconds",
			Help:    "Duration of single page generation calls",
			Buckets: prometheus.DefBuckets,
		},
	)

	generationBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cbg_generation_bytes",
			Help:    "Size of generated pages in bytes",
			Buckets: []float64{1024, 8192, 65536, 262144, 1048576, 4194304, 16777216},
		},
	)

	// Progress hub metrics
	progressPublishesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cbg_progress_publishes_total",
			Help: "Total number of progress publishes",
		},
	)

	progressPublishLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cbg_progress_publish_duration_seconds",
			Help:    "Duration of progress fan-out including per-subscriber timeouts",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .25, .5, 1},
		},
	)

	progressDeliveredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cbg_progress_delivered_total",
			Help: "Total number of per-subscriber deliveries that succeeded",
		},
	)

	subscribersEvictedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cbg_subscribers_evicted_total",
			Help: "Total number of subscribers evicted for persistent backpressure",
		},
	)

	activeSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cbg_active_subscribers",
			Help: "Current number of registered progress subscribers",
		},
	)

	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cbg_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cbg_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	// System metrics
	activeWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cbg_active_workers",
			Help: "Number of running batch workers",
		},
	)
)

// RecordJobSubmitted records an admission decision ("accepted" or "rejected")
func RecordJobSubmitted(outcome string) {
	jobsSubmittedTotal.WithLabelValues(outcome).Inc()
}

// RecordJob records a job reaching a terminal status
func RecordJob(status string, duration float64) {
	jobsFinishedTotal.WithLabelValues(status).Inc()
	jobDuration.WithLabelValues(status).Observe(duration)
}

// UpdateQueueDepth updates the pending queue depth gauge
func UpdateQueueDepth(depth int) {
	queueDepth.Set(float64(depth))
}

// RecordJobsReaped records expired jobs removed by the reaper
func RecordJobsReaped(count int) {
	jobsReapedTotal.Add(float64(count))
}

// RecordItem records an item reaching a terminal status
func RecordItem(status string) {
	itemsTotal.WithLabelValues(status).Inc()
}

// RecordItemRetry records an item being reset to pending for retry
func RecordItemRetry() {
	itemRetriesTotal.Inc()
}

// RecordGeneration records a successful page generation
func RecordGeneration(duration float64, size int64) {
	generationDuration.Observe(duration)
	generationBytes.Observe(float64(size))
}

// RecordProgressPublish records one publish fan-out
func RecordProgressPublish(duration float64, delivered int) {
	progressPublishesTotal.Inc()
	progressPublishLatency.Observe(duration)
	progressDeliveredTotal.Add(float64(delivered))
}

// RecordSubscriberEvicted records a backpressure eviction
func RecordSubscriberEvicted() {
	subscribersEvictedTotal.Inc()
}

// UpdateActiveSubscribers updates the subscriber gauge
func UpdateActiveSubscribers(count int) {
	activeSubscribers.Set(float64(count))
}

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, endpoint, status string, duration float64) {
	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration)
}

// UpdateActiveWorkers updates the active workers gauge
func UpdateActiveWorkers(count int) {
	activeWorkers.Set(float64(count))
}
