package simulation

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/tochemey/goakt/v3/actor"
	"github.com/tochemey/goakt/v3/goaktpb"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const tracerName = "github.com/lao-tseu-is-alive/go-boids/pkg/simulation"

// StepSpanName names the span recorded around every tick. It carries the
// tick number under TickAttribute from the start, so samplers can pick ticks.
const (
	StepSpanName  = "World.Step"
	TickAttribute = "boids.tick"
)

// StepObserver receives the outcome of every tick, e.g. to export metrics.
type StepObserver interface {
	ObserveStep(stats StepStats, elapsed time.Duration)
}

// WorldActor owns a World and drives it from its mailbox. Being an actor, it
// processes one message at a time, which gives World the single-threaded
// access it requires.
//
// Messages:
//
//	*durationpb.Duration    advance one tick; the duration is the tick's dt
//	*emptypb.Empty          Ask for the current frame, answered with a *wrapperspb.BytesValue (msgpack)
//	*wrapperspb.Int64Value  Ask to despawn the agent with that id, answered with the remaining population
type WorldActor struct {
	cfg      *Config
	world    *World
	frames   chan<- []byte
	observer StepObserver
	tracer   trace.Tracer

	// --- Benchmark Stats ---
	ticks       int
	stepTotal   time.Duration
	lastLogTime time.Time
}

var _ actor.Actor = (*WorldActor)(nil)

// NewWorldActor creates the world actor. frames may be nil when nobody
// watches; observer may be nil.
func NewWorldActor(frames chan<- []byte, cfg *Config, observer StepObserver) *WorldActor {
	return &WorldActor{
		cfg:         cfg,
		frames:      frames,
		observer:    observer,
		tracer:      otel.Tracer(tracerName),
		lastLogTime: time.Now(),
	}
}

// World gives read access to the simulated world once the actor has started.
// It must only be used from inside the actor or after the actor stopped.
func (w *WorldActor) World() *World { return w.world }

func (w *WorldActor) PreStart(ctx *actor.Context) error {
	world, err := NewWorld(w.cfg, WithLogger(ctx.ActorSystem().Logger()))
	if err != nil {
		return fmt.Errorf("world actor: %w", err)
	}
	w.world = world
	return nil
}

func (w *WorldActor) Receive(ctx *actor.ReceiveContext) {
	switch msg := ctx.Message().(type) {
	case *goaktpb.PostStart:
		w.spawnFlock(ctx)

	case *durationpb.Duration:
		w.step(ctx, msg.AsDuration())

	case *emptypb.Empty:
		b, err := EncodeFrame(w.world.Frame())
		if err != nil {
			ctx.Err(err)
			return
		}
		ctx.Response(wrapperspb.Bytes(b))

	case *wrapperspb.Int64Value:
		if err := w.world.Despawn(AgentID(msg.GetValue())); err != nil {
			ctx.Logger().Warnf("despawn %d: %v", msg.GetValue(), err)
			ctx.Err(err)
			return
		}
		ctx.Response(wrapperspb.Int64(int64(w.world.Len())))

	default:
		ctx.Unhandled()
	}
}

func (w *WorldActor) PostStop(ctx *actor.Context) error {
	if w.world != nil {
		ctx.ActorSystem().Logger().Infof("World stopped at tick %d with %d agents", w.world.Tick(), w.world.Len())
	}
	return nil
}

func (w *WorldActor) spawnFlock(ctx *actor.ReceiveContext) {
	seed := w.cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	ctx.Logger().Infof("World Started. Spawning %d boids in %d group(s), seed %d", w.cfg.Population, w.cfg.Groups, seed)
	if _, err := w.world.SpawnFlock(r, w.cfg.Population, w.cfg.Groups); err != nil {
		ctx.Logger().Errorf("spawn flock: %v", err)
	}
}

func (w *WorldActor) step(ctx *actor.ReceiveContext, dt time.Duration) {
	_, span := w.tracer.Start(ctx.Context(), StepSpanName,
		trace.WithAttributes(
			attribute.Int64(TickAttribute, int64(w.world.Tick()+1)),
			attribute.Int("boids.agents", w.world.Len()),
		))
	defer span.End()

	start := time.Now()
	stats, err := w.world.Step(dt.Seconds())
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		ctx.Logger().Errorf("step failed: %v", err)
		return
	}
	span.SetAttributes(
		attribute.Int("boids.candidates", stats.Candidates),
		attribute.Int("boids.neighbors", stats.Neighbors),
		attribute.Int("boids.relocations", stats.Relocations),
	)

	if w.observer != nil {
		w.observer.ObserveStep(stats, elapsed)
	}
	w.logBenchmarks(ctx, elapsed)
	w.pushFrame(ctx)
}

func (w *WorldActor) logBenchmarks(ctx *actor.ReceiveContext, elapsed time.Duration) {
	w.ticks++
	w.stepTotal += elapsed
	if time.Since(w.lastLogTime) >= time.Second {
		ctx.Logger().Infof("📊 TICK RATE: %d/sec | avg step %s | Agents: %d",
			w.ticks, w.stepTotal/time.Duration(w.ticks), w.world.Len())
		w.ticks = 0
		w.stepTotal = 0
		w.lastLogTime = time.Now()
	}
}

func (w *WorldActor) pushFrame(ctx *actor.ReceiveContext) {
	if w.frames == nil {
		return
	}
	b, err := EncodeFrame(w.world.Frame())
	if err != nil {
		ctx.Logger().Warnf("encode frame: %v", err)
		return
	}
	select {
	case w.frames <- b:
	default:
		// viewers busy, skip frame
	}
}
