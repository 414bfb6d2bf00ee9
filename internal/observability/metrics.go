package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/lao-tseu-is-alive/go-boids/pkg/simulation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SimCollector bundles the Prometheus metrics of a running simulation. It
// implements simulation.StepObserver.
type SimCollector struct {
	gatherer prometheus.Gatherer

	Ticks         prometheus.Counter
	StepDurations prometheus.Histogram
	Agents        prometheus.Gauge
	Candidates    prometheus.Counter
	Neighbors     prometheus.Counter
	Relocations   prometheus.Counter
	StreamClients prometheus.Gauge
	FramesDropped prometheus.Counter
}

var _ simulation.StepObserver = (*SimCollector)(nil)

// NewSimCollector registers the simulation metrics against reg, defaulting
// to the global Prometheus registry when nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &SimCollector{gatherer: gatherer}
	var err error
	if c.Ticks, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "boids_ticks_total",
		Help: "Number of completed simulation ticks.",
	}), "boids_ticks_total"); err != nil {
		return nil, err
	}
	if c.StepDurations, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "boids_step_duration_seconds",
		Help:    "Wall time spent in one World.Step.",
		Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.0167, 0.025, 0.05, 0.1},
	}), "boids_step_duration_seconds"); err != nil {
		return nil, err
	}
	if c.Agents, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "boids_agents",
		Help: "Current number of live agents.",
	}), "boids_agents"); err != nil {
		return nil, err
	}
	if c.Candidates, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "boids_neighbor_candidates_total",
		Help: "Agents returned by the grid broad phase, summed over queries.",
	}), "boids_neighbor_candidates_total"); err != nil {
		return nil, err
	}
	if c.Neighbors, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "boids_neighbors_total",
		Help: "Agents kept after the exact distance and group filter, summed over queries.",
	}), "boids_neighbors_total"); err != nil {
		return nil, err
	}
	if c.Relocations, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "boids_relocations_total",
		Help: "Agents that moved to another grid bucket.",
	}), "boids_relocations_total"); err != nil {
		return nil, err
	}
	if c.StreamClients, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "boids_stream_clients",
		Help: "Connected websocket viewers.",
	}), "boids_stream_clients"); err != nil {
		return nil, err
	}
	if c.FramesDropped, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "boids_stream_frames_dropped_total",
		Help: "Frames not delivered to a viewer because its send buffer was full.",
	}), "boids_stream_frames_dropped_total"); err != nil {
		return nil, err
	}
	return c, nil
}

// ObserveStep records one tick.
func (c *SimCollector) ObserveStep(stats simulation.StepStats, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Ticks.Inc()
	c.StepDurations.Observe(elapsed.Seconds())
	c.Agents.Set(float64(stats.Agents))
	c.Candidates.Add(float64(stats.Candidates))
	c.Neighbors.Add(float64(stats.Neighbors))
	c.Relocations.Add(float64(stats.Relocations))
}

// SetClients satisfies the stream hub's metrics hook.
func (c *SimCollector) SetClients(n int) {
	if c == nil {
		return
	}
	c.StreamClients.Set(float64(n))
}

// FrameDropped satisfies the stream hub's metrics hook.
func (c *SimCollector) FrameDropped() {
	if c == nil {
		return
	}
	c.FramesDropped.Inc()
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// register adds col to reg, reusing an identical collector registered earlier.
func register[T prometheus.Collector](reg prometheus.Registerer, col T, name string) (T, error) {
	if err := reg.Register(col); err != nil {
		var zero T
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return zero, err
	}
	return col, nil
}
