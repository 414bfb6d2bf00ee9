package simulation

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// FrameAgent is the wire form of one agent. Floats are narrowed to float32:
// viewers only need screen precision.
type FrameAgent struct {
	ID      int64   `msgpack:"i" json:"i"`
	X       float32 `msgpack:"x" json:"x"`
	Y       float32 `msgpack:"y" json:"y"`
	VX      float32 `msgpack:"vx" json:"vx"`
	VY      float32 `msgpack:"vy" json:"vy"`
	Heading float32 `msgpack:"h" json:"h"`
	Group   int     `msgpack:"g" json:"g"`
}

// Frame is the state broadcast to viewers after each tick.
type Frame struct {
	Tick    uint64       `msgpack:"t" json:"t"`
	SimTime float64      `msgpack:"st" json:"st"`
	Width   float64      `msgpack:"w" json:"w"`
	Height  float64      `msgpack:"hgt" json:"hgt"`
	Agents  []FrameAgent `msgpack:"a" json:"a"`
}

// Frame captures the current world state.
func (w *World) Frame() Frame {
	f := Frame{
		Tick:    w.tick,
		SimTime: w.simTime,
		Width:   w.cfg.WorldWidth,
		Height:  w.cfg.WorldHeight,
		Agents:  make([]FrameAgent, 0, w.store.Len()),
	}
	for _, v := range w.Snapshot() {
		f.Agents = append(f.Agents, FrameAgent{
			ID:      int64(v.ID),
			X:       float32(v.Pos.X),
			Y:       float32(v.Pos.Y),
			VX:      float32(v.Vel.X),
			VY:      float32(v.Vel.Y),
			Heading: float32(v.Heading),
			Group:   v.Group,
		})
	}
	return f
}

// EncodeFrame serialises f with msgpack.
func EncodeFrame(f Frame) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	if err := enc.Encode(&f); err != nil {
		return nil, fmt.Errorf("encode frame %d: %w", f.Tick, err)
	}
	return buf.Bytes(), nil
}

// DecodeFrame is the inverse of EncodeFrame.
func DecodeFrame(b []byte) (Frame, error) {
	var f Frame
	if err := msgpack.Unmarshal(b, &f); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	return f, nil
}
