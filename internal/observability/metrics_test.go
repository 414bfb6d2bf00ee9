package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lao-tseu-is-alive/go-boids/pkg/simulation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveStepRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}

	collector.ObserveStep(simulation.StepStats{Tick: 1, Agents: 10, Candidates: 40, Neighbors: 25, Relocations: 2}, 2*time.Millisecond)
	collector.ObserveStep(simulation.StepStats{Tick: 2, Agents: 9, Candidates: 30, Neighbors: 20, Relocations: 1}, 3*time.Millisecond)

	if got := testutil.ToFloat64(collector.Ticks); got != 2 {
		t.Fatalf("boids_ticks_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.Agents); got != 9 {
		t.Fatalf("boids_agents = %v, want 9", got)
	}
	if got := testutil.ToFloat64(collector.Candidates); got != 70 {
		t.Fatalf("boids_neighbor_candidates_total = %v, want 70", got)
	}
	if got := testutil.ToFloat64(collector.Relocations); got != 3 {
		t.Fatalf("boids_relocations_total = %v, want 3", got)
	}
	if got := histogramSampleCount(t, reg, "boids_step_duration_seconds"); got != 2 {
		t.Fatalf("boids_step_duration_seconds sample_count = %d, want 2", got)
	}
}

func TestRegisterTwiceReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}
	second, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("second NewSimCollector: %v", err)
	}
	second.Ticks.Inc()
	if got := testutil.ToFloat64(first.Ticks); got != 1 {
		t.Fatalf("expected collectors to be shared, first sees %v", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *SimCollector
	c.ObserveStep(simulation.StepStats{}, time.Millisecond)
	c.SetClients(3)
	c.FrameDropped()
}

func TestMetricsHandlerExposesGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}
	collector.ObserveStep(simulation.StepStats{Agents: 400}, time.Millisecond)
	collector.SetClients(2)
	collector.FrameDropped()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"boids_ticks_total",
		"boids_step_duration_seconds",
		"boids_agents 400",
		"boids_stream_clients 2",
		"boids_stream_frames_dropped_total 1",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}
