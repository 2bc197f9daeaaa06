package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegisterer(reg)

	r.RecordJob("settlement", "ok")
	r.RecordJob("settlement", "ok")
	r.RecordRecords("holding", 3)
	r.RecordRecords("holding", 0)
	r.RecordError("data_not_ready")
	r.RecordLatency("settlement", 0.2)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.jobsTotal.WithLabelValues("settlement", "ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.recordsTotal.WithLabelValues("holding")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("data_not_ready")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.latency))
}

func TestNewIsShared(t *testing.T) {
	assert.Same(t, New(), New())
}
