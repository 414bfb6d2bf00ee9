package simulation

import (
	"fmt"
	"iter"

	"github.com/lao-tseu-is-alive/go-boids/pkg/behavior"
	"github.com/lao-tseu-is-alive/go-boids/pkg/geometry"
)

// AgentID identifies an agent for its whole life. IDs are handed out in
// increasing order and never reused.
type AgentID int64

// NoGroup marks an agent that flocks with everybody.
const NoGroup = 0

// Agent is one member of the flock.
type Agent struct {
	ID         AgentID
	Pos        geometry.Vector2D
	Vel        geometry.Vector2D
	Acc        geometry.Vector2D // written by the compute pass, consumed by integration
	ViewRadius float64
	Group      int
}

// sees reports whether other may influence a. Ungrouped agents see
// everybody; grouped agents only see their own group.
func (a *Agent) sees(other *Agent) bool {
	return a.Group == NoGroup || a.Group == other.Group
}

func (a *Agent) body() behavior.Body {
	return behavior.Body{ID: int64(a.ID), Pos: a.Pos, Vel: a.Vel}
}

// Heading returns the on-screen heading of the agent in degrees.
func (a *Agent) Heading() float64 {
	return a.Vel.HeadingDegrees()
}

// Store is a dense array of agents with an id index. It is the arena the
// spatial grid refers into: the grid only keeps ids, never pointers.
//
// Pointers returned by Get and At stay valid until the next Append or
// SwapRemove.
type Store struct {
	agents []Agent
	index  map[AgentID]int
}

// NewStore creates an empty store sized for capacity agents.
func NewStore(capacity int) *Store {
	return &Store{
		agents: make([]Agent, 0, capacity),
		index:  make(map[AgentID]int, capacity),
	}
}

// Len returns the number of live agents.
func (s *Store) Len() int { return len(s.agents) }

// Append adds a new agent at the end of the dense array.
func (s *Store) Append(a Agent) error {
	if _, ok := s.index[a.ID]; ok {
		return fmt.Errorf("store: agent %d already exists", a.ID)
	}
	s.index[a.ID] = len(s.agents)
	s.agents = append(s.agents, a)
	return nil
}

// Get returns the agent with the given id, or nil.
func (s *Store) Get(id AgentID) *Agent {
	i, ok := s.index[id]
	if !ok {
		return nil
	}
	return &s.agents[i]
}

// At returns the agent at dense index i.
func (s *Store) At(i int) *Agent {
	return &s.agents[i]
}

// SwapRemove deletes the agent by moving the last agent into its slot.
func (s *Store) SwapRemove(id AgentID) (Agent, bool) {
	i, ok := s.index[id]
	if !ok {
		return Agent{}, false
	}
	removed := s.agents[i]
	last := len(s.agents) - 1
	if i != last {
		s.agents[i] = s.agents[last]
		s.index[s.agents[i].ID] = i
	}
	s.agents[last] = Agent{}
	s.agents = s.agents[:last]
	delete(s.index, id)
	return removed, true
}

// All iterates over the agents in dense order.
func (s *Store) All() iter.Seq2[int, *Agent] {
	return func(yield func(int, *Agent) bool) {
		for i := range s.agents {
			if !yield(i, &s.agents[i]) {
				return
			}
		}
	}
}
