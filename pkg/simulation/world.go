package simulation

import (
	"errors"
	"fmt"
	"iter"
	"math/rand/v2"

	"github.com/lao-tseu-is-alive/go-boids/pkg/behavior"
	"github.com/lao-tseu-is-alive/go-boids/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-boids/pkg/spatial"
	"github.com/paulmach/orb"
	golog "github.com/tochemey/goakt/v3/log"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidSpawn is returned when a spawn request carries NaN or infinite values.
var ErrInvalidSpawn = errors.New("simulation: spawn position and velocity must be finite")

// Logger is the subset of the actor system logger the world writes to.
// goakt's log.Logger satisfies it.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// StepStats summarises one tick.
type StepStats struct {
	Tick        uint64
	Agents      int
	Candidates  int // ids returned by the grid broad phase
	Neighbors   int // candidates kept after the exact distance and group filter
	Relocations int // agents that changed bucket
}

// AgentView is what a renderer needs to place and orient one agent.
type AgentView struct {
	ID      AgentID
	Pos     geometry.Vector2D
	Vel     geometry.Vector2D
	Heading float64 // degrees, see geometry.Vector2D.HeadingDegrees
	Group   int
}

// scratch holds per-worker buffers reused across ticks.
type scratch struct {
	ids    []AgentID
	bodies []behavior.Body
	stats  StepStats
}

// World owns the agents and the spatial grid and advances them one tick at a
// time. It is single-threaded from the caller's point of view: Step runs to
// completion before returning and no method may be called concurrently.
//
// Integration is fixed-step semi-implicit Euler. Each Step is one logical
// tick regardless of dt; dt only advances SimTime.
type World struct {
	cfg      Config
	settings behavior.Settings
	bounds   orb.Bound
	store    *Store
	grid     *spatial.Grid[AgentID]
	nextID   AgentID
	tick     uint64
	simTime  float64
	workers  int
	scratch  []scratch
	logger   Logger
}

// Option customises a World.
type Option func(*World)

// WithLogger routes world logs to l.
func WithLogger(l Logger) Option {
	return func(w *World) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithWorkers overrides Config.Workers.
func WithWorkers(n int) Option {
	return func(w *World) { w.workers = n }
}

// NewWorld validates cfg and builds an empty world.
func NewWorld(cfg *Config, opts ...Option) (*World, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	grid, err := spatial.NewGrid[AgentID](cfg.WorldWidth, cfg.WorldHeight, cfg.CellSize)
	if err != nil {
		return nil, err
	}
	w := &World{
		cfg:      *cfg,
		settings: cfg.Settings(),
		bounds:   orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{cfg.WorldWidth, cfg.WorldHeight}},
		store:    NewStore(cfg.Population),
		grid:     grid,
		nextID:   1,
		workers:  cfg.Workers,
		logger:   golog.DiscardLogger,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.workers = max(w.workers, 1)
	w.scratch = make([]scratch, w.workers)

	cols, rows := grid.Dims()
	w.logger.Infof("world %vx%v, cell %v (%dx%d buckets), %d worker(s)",
		cfg.WorldWidth, cfg.WorldHeight, cfg.CellSize, cols, rows, w.workers)
	if cfg.CellSize < cfg.ViewRadius {
		w.logger.Warnf("cell size %v is smaller than view radius %v: queries will scan more than 3x3 buckets",
			cfg.CellSize, cfg.ViewRadius)
	}
	return w, nil
}

// Config returns a copy of the configuration the world was built with.
func (w *World) Config() Config { return w.cfg }

// Len returns the number of live agents.
func (w *World) Len() int { return w.store.Len() }

// Tick returns the number of completed steps.
func (w *World) Tick() uint64 { return w.tick }

// SimTime returns the sum of every dt passed to Step.
func (w *World) SimTime() float64 { return w.simTime }

// Grid exposes the spatial index for inspection. Callers must not mutate it.
func (w *World) Grid() *spatial.Grid[AgentID] { return w.grid }

// Spawn adds an agent. The position is clamped into the world rectangle and
// the velocity into the speed limit.
func (w *World) Spawn(pos, vel geometry.Vector2D, group int) (AgentID, error) {
	if !pos.IsFinite() || !vel.IsFinite() {
		return 0, ErrInvalidSpawn
	}
	a := Agent{
		ID:         w.nextID,
		Pos:        pos.ClampTo(w.bounds),
		Vel:        vel.Limit(w.cfg.MaxSpeed),
		ViewRadius: w.cfg.ViewRadius,
		Group:      group,
	}
	if err := w.store.Append(a); err != nil {
		return 0, err
	}
	if _, err := w.grid.Insert(a.ID, a.Pos); err != nil {
		w.store.SwapRemove(a.ID)
		return 0, err
	}
	w.nextID++
	w.logger.Debugf("spawned agent %d at %s group %d", a.ID, a.Pos, a.Group)
	return a.ID, nil
}

// SpawnFlock spawns n agents at random positions with random headings.
// Groups are assigned round-robin from 1..groups, or NoGroup when groups is 0.
func (w *World) SpawnFlock(r *rand.Rand, n, groups int) ([]AgentID, error) {
	ids := make([]AgentID, 0, n)
	for i := 0; i < n; i++ {
		pos := geometry.Vector2D{X: r.Float64() * w.cfg.WorldWidth, Y: r.Float64() * w.cfg.WorldHeight}
		vel := geometry.Vector2D{X: r.Float64()*2 - 1, Y: r.Float64()*2 - 1}.Mul(w.cfg.MaxSpeed)
		group := NoGroup
		if groups > 0 {
			group = 1 + i%groups
		}
		id, err := w.Spawn(pos, vel, group)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Despawn removes an agent from the grid and the store. Unknown ids fail
// with an error matching spatial.ErrNotFound.
func (w *World) Despawn(id AgentID) error {
	if err := w.grid.Remove(id); err != nil {
		return fmt.Errorf("despawn: %w", err)
	}
	w.store.SwapRemove(id)
	w.logger.Debugf("despawned agent %d", id)
	return nil
}

// Agent returns a copy of the agent with the given id.
func (w *World) Agent(id AgentID) (Agent, bool) {
	a := w.store.Get(id)
	if a == nil {
		return Agent{}, false
	}
	return *a, true
}

// Step advances every agent by one tick:
//
//  1. compute: every agent's acceleration from the start-of-tick state
//  2. integrate: velocity, speed clamp, position
//  3. re-bucket: relocate agents whose cell changed
//
// The compute pass only reads positions and velocities and only writes
// accelerations, so it can be split across workers; the barrier between
// passes keeps results identical to the serial order.
func (w *World) Step(dt float64) (StepStats, error) {
	n := w.store.Len()
	if err := w.computeForces(n); err != nil {
		return StepStats{}, err
	}

	stats := StepStats{Agents: n}
	for i := range w.scratch {
		stats.Candidates += w.scratch[i].stats.Candidates
		stats.Neighbors += w.scratch[i].stats.Neighbors
	}

	for _, a := range w.store.All() {
		a.Pos, a.Vel = behavior.Integrate(a.Pos, a.Vel, a.Acc, w.settings)
		a.Acc = geometry.Vector2D{}
	}

	for _, a := range w.store.All() {
		moved, err := w.grid.Relocate(a.ID, a.Pos)
		if err != nil {
			return stats, fmt.Errorf("step %d: grid out of sync: %w", w.tick+1, err)
		}
		if moved {
			stats.Relocations++
		}
	}

	w.tick++
	w.simTime += dt
	stats.Tick = w.tick
	return stats, nil
}

func (w *World) computeForces(n int) error {
	for i := range w.scratch {
		w.scratch[i].stats = StepStats{}
	}
	if w.workers <= 1 || n < 2*w.workers {
		w.computeRange(&w.scratch[0], 0, n)
		return nil
	}

	var g errgroup.Group
	chunk := (n + w.workers - 1) / w.workers
	for k := 0; k < w.workers; k++ {
		lo, hi := k*chunk, min((k+1)*chunk, n)
		if lo >= hi {
			break
		}
		sc := &w.scratch[k]
		g.Go(func() error {
			w.computeRange(sc, lo, hi)
			return nil
		})
	}
	return g.Wait()
}

// computeRange fills Acc for agents [lo, hi) of the dense array.
func (w *World) computeRange(sc *scratch, lo, hi int) {
	for i := lo; i < hi; i++ {
		a := w.store.At(i)
		sc.bodies = w.visibleBodies(sc, a)
		a.Acc = behavior.Steer(a.body(), sc.bodies, w.settings)
	}
}

// visibleBodies runs the two-phase neighbor query for a: broad phase from the
// grid, then exact squared distance and group filtering.
func (w *World) visibleBodies(sc *scratch, a *Agent) []behavior.Body {
	sc.ids = w.grid.AppendRadius(sc.ids[:0], a.Pos, a.ViewRadius)
	sc.stats.Candidates += len(sc.ids)
	bodies := sc.bodies[:0]
	rSq := a.ViewRadius * a.ViewRadius
	for _, id := range sc.ids {
		if id == a.ID {
			continue
		}
		other := w.store.Get(id)
		if other == nil || !a.sees(other) {
			continue
		}
		if a.Pos.DistanceSquaredTo(other.Pos) > rSq {
			continue
		}
		bodies = append(bodies, other.body())
	}
	sc.stats.Neighbors += len(bodies)
	return bodies
}

// QueryRadius yields the agents whose position is within radius of center.
// A negative radius yields nothing; radius 0 yields agents exactly at center.
func (w *World) QueryRadius(center geometry.Vector2D, radius float64) iter.Seq[AgentID] {
	return func(yield func(AgentID) bool) {
		if radius < 0 {
			return
		}
		rSq := radius * radius
		for id := range w.grid.QueryRadius(center, radius) {
			a := w.store.Get(id)
			if a == nil || a.Pos.DistanceSquaredTo(center) > rSq {
				continue
			}
			if !yield(id) {
				return
			}
		}
	}
}

// Neighbors returns the agents that influence id: within its view radius,
// in its group, excluding itself.
func (w *World) Neighbors(id AgentID) ([]AgentID, error) {
	a := w.store.Get(id)
	if a == nil {
		return nil, fmt.Errorf("neighbors: %w", &spatial.NotFoundError[AgentID]{Op: "neighbors", ID: id})
	}
	var sc scratch
	var out []AgentID
	for _, b := range w.visibleBodies(&sc, a) {
		out = append(out, AgentID(b.ID))
	}
	return out, nil
}

// Snapshot returns the renderer view of every live agent in dense order.
func (w *World) Snapshot() []AgentView {
	views := make([]AgentView, 0, w.store.Len())
	for _, a := range w.store.All() {
		views = append(views, AgentView{
			ID:      a.ID,
			Pos:     a.Pos,
			Vel:     a.Vel,
			Heading: a.Heading(),
			Group:   a.Group,
		})
	}
	return views
}
