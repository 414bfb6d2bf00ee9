package stream

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lao-tseu-is-alive/go-boids/pkg/simulation"
)

type fakeMetrics struct {
	mu      sync.Mutex
	clients int
	dropped int
}

func (m *fakeMetrics) SetClients(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients = n
}

func (m *fakeMetrics) FrameDropped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped++
}

func (m *fakeMetrics) snapshot() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clients, m.dropped
}

// startTestHub spins up a hub behind an httptest.Server and returns the
// frame channel feeding it and the websocket URL.
func startTestHub(t *testing.T, metrics Metrics) (*Hub, chan<- []byte, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	frames := make(chan []byte, 4)
	hub := NewHub(metrics, nil)
	done := make(chan struct{})
	go func() {
		hub.Run(ctx, frames)
		close(done)
	}()

	srv := httptest.NewServer(hub.Handler())
	t.Cleanup(func() {
		cancel()
		<-done
		srv.Close()
	})
	return hub, frames, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialWS(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial WS: %v", err)
	}
	return conn
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubBroadcastsFrames(t *testing.T) {
	metrics := &fakeMetrics{}
	hub, frames, wsURL := startTestHub(t, metrics)

	a := dialWS(t, wsURL)
	defer a.Close()
	b := dialWS(t, wsURL)
	defer b.Close()
	waitFor(t, "two clients", func() bool { return hub.Len() == 2 })

	want := simulation.Frame{Tick: 42, Width: 100, Height: 50, Agents: []simulation.FrameAgent{{ID: 1, X: 3, Y: 4, Group: 2}}}
	raw, err := simulation.EncodeFrame(want)
	if err != nil {
		t.Fatal(err)
	}
	frames <- raw

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read WS: %v", err)
		}
		if msgType != websocket.BinaryMessage {
			t.Fatalf("expected binary message, got type %d", msgType)
		}
		got, err := simulation.DecodeFrame(msg)
		if err != nil {
			t.Fatal(err)
		}
		if got.Tick != 42 || len(got.Agents) != 1 || got.Agents[0] != want.Agents[0] {
			t.Fatalf("unexpected frame %+v", got)
		}
	}

	if clients, _ := metrics.snapshot(); clients != 2 {
		t.Fatalf("expected metrics to report 2 clients, got %d", clients)
	}
}

func TestHubUnregistersOnClose(t *testing.T) {
	metrics := &fakeMetrics{}
	hub, _, wsURL := startTestHub(t, metrics)

	conn := dialWS(t, wsURL)
	waitFor(t, "client registered", func() bool { return hub.Len() == 1 })

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	waitFor(t, "client unregistered", func() bool { return hub.Len() == 0 })
	waitFor(t, "metrics updated", func() bool {
		clients, _ := metrics.snapshot()
		return clients == 0
	})
}

func TestHubDropsFramesForSlowClients(t *testing.T) {
	metrics := &fakeMetrics{}
	hub := NewHub(metrics, nil)
	slow := &Client{hub: hub, send: make(chan []byte, 1)}
	hub.clients[slow] = true

	hub.broadcast([]byte{1})
	hub.broadcast([]byte{2})

	if _, dropped := metrics.snapshot(); dropped != 1 {
		t.Fatalf("expected 1 dropped frame, got %d", dropped)
	}
	if got := <-slow.send; got[0] != 1 {
		t.Fatalf("expected the first frame to be kept, got %v", got)
	}
}

func TestHubStoppedDoesNotBlockClients(t *testing.T) {
	hub := NewHub(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx, make(chan []byte))
		close(done)
	}()
	cancel()
	<-done

	// Far more clients than the channel buffers hold.
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for range 200 {
			c := &Client{hub: hub, send: make(chan []byte, 1)}
			if hub.join(c) {
				t.Error("Expected join to fail on a stopped hub")
				return
			}
			hub.leave(c)
		}
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("join/leave blocked after the hub stopped")
	}

	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial WS: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("Expected the stopped hub to close new connections")
	}
}
