package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "risingstars_jobs_processed_total",
		Help: "Total number of processing jobs finished, by outcome",
	}, []string{"outcome"})

	JobProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "risingstars_job_processing_duration_seconds",
		Help:    "Duration of video processing pipeline stages",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	ActiveJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "risingstars_active_jobs",
		Help: "Number of jobs currently being processed by this worker",
	})

	MessagesAcknowledgedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "risingstars_messages_acknowledged_total",
		Help: "Queue messages acknowledged or left for redelivery",
	}, []string{"action"})

	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "risingstars_uploads_total",
		Help: "Upload attempts, by result",
	}, []string{"result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "risingstars_http_request_duration_seconds",
		Help:    "API request latency by route and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
