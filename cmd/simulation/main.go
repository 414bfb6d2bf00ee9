package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lao-tseu-is-alive/go-boids/internal/observability"
	"github.com/lao-tseu-is-alive/go-boids/internal/stream"
	"github.com/lao-tseu-is-alive/go-boids/pkg/simulation"
	"github.com/tochemey/goakt/v3/actor"
	golog "github.com/tochemey/goakt/v3/log"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func main() {
	configPath := flag.String("config", "configs/boids.json", "Path to a JSON config file (empty for defaults)")
	addr := flag.String("addr", ":8080", "HTTP address serving /ws, /frame and /metrics")
	maxTicks := flag.Uint64("ticks", 0, "Stop after this many ticks (0 runs until interrupted)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	level := golog.InfoLevel
	if *debug {
		level = golog.DebugLevel
	}
	logger := golog.New(level, os.Stdout)

	cfg := simulation.DefaultConfig()
	if *configPath != "" {
		loaded, err := simulation.LoadConfig(*configPath)
		if err != nil {
			logger.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracingCfg, err := observability.TracingConfigFromEnv()
	if err != nil {
		logger.Fatalf("Invalid tracing settings: %v", err)
	}
	shutdownTracing, err := observability.InitTracing(ctx, tracingCfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialise tracing: %v", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)

	collector, err := observability.NewSimCollector(nil)
	if err != nil {
		logger.Fatalf("Failed to initialise metrics collector: %v", err)
	}

	system, err := actor.NewActorSystem("BoidsWorld",
		actor.WithLogger(logger),
		actor.WithActorInitMaxRetries(3))
	if err != nil {
		logger.Fatalf("Failed to create actor system: %v", err)
	}
	if err := system.Start(ctx); err != nil {
		logger.Fatalf("Failed to start actor system: %v", err)
	}
	defer func() { _ = system.Stop(context.Background()) }()

	frames := make(chan []byte, 4)
	worldPID, err := system.Spawn(ctx, "world", simulation.NewWorldActor(frames, cfg, collector))
	if err != nil {
		logger.Fatalf("Failed to spawn world: %v", err)
	}

	hub := stream.NewHub(collector, logger)
	go hub.Run(ctx, frames)

	mux := http.NewServeMux()
	mux.Handle("/ws", hub.Handler())
	mux.Handle("/metrics", collector.Handler())
	mux.HandleFunc("/frame", func(w http.ResponseWriter, r *http.Request) {
		resp, err := system.NoSender().Ask(r.Context(), worldPID, &emptypb.Empty{}, time.Second)
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		b, ok := resp.(*wrapperspb.BytesValue)
		if !ok {
			http.Error(w, "unexpected world response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/msgpack")
		_, _ = w.Write(b.GetValue())
	})
	srv := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("serving viewers on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("http server exited: %v", err)
			stop()
		}
	}()

	run(ctx, system, worldPID, cfg.TickRate, *maxTicks, logger)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// run drives the world at tickRate until ctx ends or maxTicks were sent.
func run(ctx context.Context, system actor.ActorSystem, world *actor.PID, tickRate int, maxTicks uint64, logger golog.Logger) {
	period := time.Second / time.Duration(max(tickRate, 1))
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	var sent uint64
	for {
		select {
		case <-ctx.Done():
			logger.Infof("shutting down after %d ticks", sent)
			return
		case <-ticker.C:
			if err := system.NoSender().Tell(ctx, world, durationpb.New(period)); err != nil {
				logger.Warnf("tick %d: %v", sent+1, err)
				continue
			}
			sent++
			if maxTicks > 0 && sent >= maxTicks {
				logger.Infof("reached %d ticks", sent)
				return
			}
		}
	}
}
