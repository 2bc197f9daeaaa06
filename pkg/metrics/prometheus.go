package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements repository.Metrics using Prometheus.
type Recorder struct {
	jobsTotal    *prometheus.CounterVec
	recordsTotal *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

var (
	once     sync.Once
	recorder *Recorder
)

// New returns the process-wide recorder. Collectors are registered once with
// the default registry.
func New() *Recorder {
	once.Do(func() {
		recorder = NewWithRegisterer(prometheus.DefaultRegisterer)
	})
	return recorder
}

// NewWithRegisterer registers a fresh set of collectors on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		jobsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pasture_jobs_total",
				Help: "Batch job runs by outcome",
			},
			[]string{"job", "status"},
		),
		recordsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pasture_records_written_total",
				Help: "Rows written per record kind",
			},
			[]string{"kind"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pasture_errors_total",
				Help: "Errors by kind",
			},
			[]string{"kind"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pasture_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"operation"},
		),
	}
}

// RecordJob counts a finished job run; status is ok, skipped or error.
func (r *Recorder) RecordJob(job, status string) {
	r.jobsTotal.WithLabelValues(job, status).Inc()
}

func (r *Recorder) RecordRecords(kind string, n int) {
	if n <= 0 {
		return
	}
	r.recordsTotal.WithLabelValues(kind).Add(float64(n))
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
