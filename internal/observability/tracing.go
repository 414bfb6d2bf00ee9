package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lao-tseu-is-alive/go-boids/pkg/simulation"
	golog "github.com/tochemey/goakt/v3/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	serviceName = "go-boids"

	// DefaultTraceEvery keeps one step span per second at the default 60 ticks/s.
	DefaultTraceEvery = 60

	defaultOTLPEndpoint = "localhost:4317"
)

// TracingConfig selects where step spans go and how many of them are kept.
type TracingConfig struct {
	Exporter string // "" disables tracing, otherwise stdout | otlp
	Endpoint string // otlp collector, localhost:4317 when empty
	// Every keeps the step span of one tick in Every. 0 and 1 keep all.
	Every uint64
	// Writer receives stdout spans, os.Stdout when nil.
	Writer io.Writer
}

// TracingConfigFromEnv reads BOIDS_TRACE_EXPORTER, BOIDS_TRACE_ENDPOINT and
// BOIDS_TRACE_EVERY. Setting only the endpoint implies the otlp exporter.
func TracingConfigFromEnv() (TracingConfig, error) {
	cfg := TracingConfig{
		Exporter: strings.ToLower(strings.TrimSpace(os.Getenv("BOIDS_TRACE_EXPORTER"))),
		Endpoint: os.Getenv("BOIDS_TRACE_ENDPOINT"),
		Every:    DefaultTraceEvery,
	}
	if cfg.Exporter == "" && cfg.Endpoint != "" {
		cfg.Exporter = "otlp"
	}
	if raw := os.Getenv("BOIDS_TRACE_EVERY"); raw != "" {
		every, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("BOIDS_TRACE_EVERY: %w", err)
		}
		cfg.Every = every
	}
	return cfg, cfg.Validate()
}

// Validate rejects unknown exporters.
func (c TracingConfig) Validate() error {
	switch c.Exporter {
	case "", "none", "stdout", "otlp":
		return nil
	default:
		return fmt.Errorf("unsupported tracing exporter %q (want stdout or otlp)", c.Exporter)
	}
}

// Enabled reports whether spans are exported at all.
func (c TracingConfig) Enabled() bool {
	return c.Exporter != "" && c.Exporter != "none"
}

// Sampler keeps the World.Step span of every Every-th tick. Spans without a
// tick follow their parent and are always kept as roots.
func (c TracingConfig) Sampler() sdktrace.Sampler {
	return tickSampler{every: max(c.Every, 1)}
}

type tickSampler struct {
	every uint64
}

func (s tickSampler) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	if p.Name == simulation.StepSpanName {
		for _, kv := range p.Attributes {
			if kv.Key != simulation.TickAttribute {
				continue
			}
			decision := sdktrace.Drop
			if uint64(kv.Value.AsInt64())%s.every == 0 {
				decision = sdktrace.RecordAndSample
			}
			return sdktrace.SamplingResult{
				Decision:   decision,
				Tracestate: trace.SpanContextFromContext(p.ParentContext).TraceState(),
			}
		}
	}
	return sdktrace.ParentBased(sdktrace.AlwaysSample()).ShouldSample(p)
}

func (s tickSampler) Description() string {
	return fmt.Sprintf("BoidsTickSampler{every=%d}", s.every)
}

// InitTracing installs the global tracer provider and returns a shutdown
// function that flushes pending spans.
func InitTracing(ctx context.Context, cfg TracingConfig, log simulation.Logger) (func(context.Context) error, error) {
	if log == nil {
		log = golog.DiscardLogger
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	otel.SetTextMapPropagator(propagation.TraceContext{})

	if !cfg.Enabled() {
		otel.SetTracerProvider(noop.NewTracerProvider())
		log.Debugf("tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	exp, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s exporter: %w", cfg.Exporter, err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", serviceName),
		attribute.String("service.namespace", "boids"),
	))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(cfg.Sampler()),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	log.Infof("tracing %s spans, one tick in %d", cfg.Exporter, max(cfg.Every, 1))
	return tp.Shutdown, nil
}

func newExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	if cfg.Exporter == "stdout" {
		w := cfg.Writer
		if w == nil {
			w = os.Stdout
		}
		return stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithoutTimestamps())
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultOTLPEndpoint
	}
	return otlptrace.New(ctx, otlptracegrpc.NewClient(
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	))
}

// ShutdownWithTimeout flushes spans for at most five seconds and only logs
// failures; it runs on the way out of main.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error, log simulation.Logger) {
	if shutdown == nil {
		return
	}
	if log == nil {
		log = golog.DiscardLogger
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Warnf("tracing shutdown failed: %v", err)
	}
}
