package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPrometheus(reg)
	if err != nil {
		t.Fatalf("NewPrometheus: %v", err)
	}
	ctx := context.Background()
	p.Observe(ctx, "merge_objects", true, 20*time.Millisecond, 3)
	p.Observe(ctx, "merge_objects", false, time.Millisecond, 0)
	p.Observe(ctx, "", true, time.Millisecond, 1)

	if got := testutil.ToFloat64(p.ops.WithLabelValues("merge_objects", "success")); got != 1 {
		t.Fatalf("success count = %v", got)
	}
	if got := testutil.ToFloat64(p.ops.WithLabelValues("merge_objects", "error")); got != 1 {
		t.Fatalf("error count = %v", got)
	}
	if got := testutil.ToFloat64(p.sections.WithLabelValues("merge_objects")); got != 3 {
		t.Fatalf("sections = %v", got)
	}
	if n := testutil.CollectAndCount(p.duration); n != 1 {
		t.Fatalf("histogram series = %d", n)
	}
}

func TestPrometheusDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPrometheus(reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := NewPrometheus(reg); err == nil {
		t.Fatal("second registration should fail")
	}
}
