// Package metrics records batch-operation outcomes.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder observes one batch operation.
type Recorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration, sections int)
}

// Nop discards every observation.
type Nop struct{}

// Observe implements Recorder.
func (Nop) Observe(context.Context, string, bool, time.Duration, int) {}

// Prometheus exports batch metrics as prometheus collectors.
type Prometheus struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
	sections *prometheus.CounterVec
}

// NewPrometheus creates the collectors and registers them with reg. A nil
// reg registers nothing, which is useful in tests that only read the values.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recon",
			Name:      "batch_operations_total",
			Help:      "Batch operations by outcome.",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "recon",
			Name:      "batch_duration_seconds",
			Help:      "Wall time of batch operations.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"operation"}),
		sections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recon",
			Name:      "sections_written_total",
			Help:      "Sections committed by batch operations.",
		}, []string{"operation"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{p.ops, p.duration, p.sections} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

// Observe implements Recorder.
func (p *Prometheus) Observe(_ context.Context, operation string, success bool, duration time.Duration, sections int) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	p.ops.WithLabelValues(operation, status).Inc()
	p.duration.WithLabelValues(operation).Observe(duration.Seconds())
	if sections > 0 {
		p.sections.WithLabelValues(operation).Add(float64(sections))
	}
}
