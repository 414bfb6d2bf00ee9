// Package stream fans simulation frames out to websocket viewers.
package stream

import (
	"context"
	"sync"

	"github.com/lao-tseu-is-alive/go-boids/pkg/simulation"
	golog "github.com/tochemey/goakt/v3/log"
)

const maxClients = 256

// Metrics is the hook the hub reports to. observability.SimCollector
// implements it.
type Metrics interface {
	SetClients(n int)
	FrameDropped()
}

// Hub tracks connected clients and broadcasts every frame to all of them.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{} // closed once Run returns
	metrics    Metrics
	log        simulation.Logger
}

// NewHub creates a hub. metrics and log may be nil.
func NewHub(metrics Metrics, log simulation.Logger) *Hub {
	if log == nil {
		log = golog.DiscardLogger
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		done:       make(chan struct{}),
		metrics:    metrics,
		log:        log,
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CanAccept reports whether another client fits.
func (h *Hub) CanAccept() bool {
	return h.Len() < maxClients
}

// Run forwards frames to clients and processes register/unregister events
// until ctx is cancelled or frames is closed.
func (h *Hub) Run(ctx context.Context, frames <-chan []byte) {
	defer func() {
		close(h.done)
		h.closeAll()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debugf("viewer %s connected (%d total)", client.remoteAddr, n)
			h.reportClients(n)
		case client := <-h.unregister:
			h.remove(client)
		case frame, ok := <-frames:
			if !ok {
				return
			}
			h.broadcast(frame)
		}
	}
}

// join hands c to Run. It reports false once the hub has stopped.
func (h *Hub) join(c *Client) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// leave hands c back to Run; after shutdown closeAll already dropped it.
func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) broadcast(frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			// Client too slow, drop frame
			if h.metrics != nil {
				h.metrics.FrameDropped()
			}
		}
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Debugf("viewer %s disconnected (%d left)", c.remoteAddr, n)
	h.reportClients(n)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	// Pick up clients that registered while Run was shutting down.
	for drained := false; !drained; {
		select {
		case c := <-h.register:
			h.clients[c] = true
		default:
			drained = true
		}
	}
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.reportClients(0)
}

func (h *Hub) reportClients(n int) {
	if h.metrics != nil {
		h.metrics.SetClients(n)
	}
}
