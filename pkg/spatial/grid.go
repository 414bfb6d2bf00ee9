// Package spatial implements a uniform bucket grid answering "which ids are
// near this point" for agents moving in a bounded 2D world.
//
// The grid maps a position to an integer bucket key
//
//	key = floor(x / cellSize) + floor(y / cellSize) * cols
//
// and keeps, for every id, the bucket it lives in and its slot inside that
// bucket, so removal is a swap-with-last instead of a linear scan. The grid
// never owns agent data: callers keep positions in their own store and call
// Relocate whenever a position changes.
package spatial

import (
	"fmt"
	"iter"
	"math"

	"github.com/lao-tseu-is-alive/go-boids/pkg/geometry"
	"github.com/paulmach/orb"
)

// location is the weak back reference from an id to its bucket.
type location struct {
	key  int
	slot int
}

// Grid is a uniform spatial hash over [0,width]×[0,height].
// Coordinates outside the world are clamped to the nearest edge bucket, so
// every position maps to exactly one valid key.
//
// A Grid is not safe for concurrent mutation. Concurrent queries are fine as
// long as nobody inserts, removes or relocates at the same time.
type Grid[ID comparable] struct {
	cellSize    float64
	invCellSize float64
	cols        int
	rows        int
	buckets     map[int][]ID
	where       map[ID]location
}

// NewGrid builds an empty grid covering a width×height world with square cells.
// cols = ceil(width / cellSize) and rows = ceil(height / cellSize), at least 1 each.
func NewGrid[ID comparable](width, height, cellSize float64) (*Grid[ID], error) {
	if cellSize <= 0 || math.IsNaN(cellSize) {
		return nil, fmt.Errorf("spatial: cell size must be positive, got %v", cellSize)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("spatial: world must have positive dimensions, got %vx%v", width, height)
	}
	cols := int(math.Ceil(width / cellSize))
	rows := int(math.Ceil(height / cellSize))
	return &Grid[ID]{
		cellSize:    cellSize,
		invCellSize: 1 / cellSize,
		cols:        max(cols, 1),
		rows:        max(rows, 1),
		buckets:     make(map[int][]ID),
		where:       make(map[ID]location),
	}, nil
}

// CellSize returns the side of one bucket.
func (g *Grid[ID]) CellSize() float64 { return g.cellSize }

// Dims returns the number of bucket columns and rows.
func (g *Grid[ID]) Dims() (cols, rows int) { return g.cols, g.rows }

// Len returns the number of indexed ids.
func (g *Grid[ID]) Len() int { return len(g.where) }

// Buckets returns the number of non-empty buckets.
func (g *Grid[ID]) Buckets() int { return len(g.buckets) }

// coordToCell floors a coordinate to a cell index clamped into [0, n).
// A value exactly on a boundary follows floor: x == k*cellSize lands in cell k.
// Clamping happens before the int conversion so huge or infinite values
// land on the edge cells instead of overflowing.
func (g *Grid[ID]) coordToCell(value float64, n int) int {
	f := math.Floor(value * g.invCellSize)
	switch {
	case math.IsNaN(f), f < 0:
		return 0
	case f >= float64(n):
		return n - 1
	}
	return int(f)
}

// Cell returns the clamped (column, row) of a position.
func (g *Grid[ID]) Cell(pos geometry.Vector2D) (cx, cy int) {
	return g.coordToCell(pos.X, g.cols), g.coordToCell(pos.Y, g.rows)
}

// Key computes the bucket key of a position.
func (g *Grid[ID]) Key(pos geometry.Vector2D) int {
	cx, cy := g.Cell(pos)
	return g.keyOf(cx, cy)
}

// CellOf is the inverse of Key.
func (g *Grid[ID]) CellOf(key int) (cx, cy int) {
	return key % g.cols, key / g.cols
}

func (g *Grid[ID]) keyOf(cx, cy int) int {
	return cx + cy*g.cols
}

// KeyOf returns the bucket key currently recorded for id.
func (g *Grid[ID]) KeyOf(id ID) (int, bool) {
	loc, ok := g.where[id]
	return loc.key, ok
}

// Contains reports whether id is indexed.
func (g *Grid[ID]) Contains(id ID) bool {
	_, ok := g.where[id]
	return ok
}

// Insert appends id to the bucket of pos and returns the bucket key.
func (g *Grid[ID]) Insert(id ID, pos geometry.Vector2D) (int, error) {
	if _, ok := g.where[id]; ok {
		return 0, fmt.Errorf("spatial: insert %v: %w", id, ErrDuplicate)
	}
	key := g.Key(pos)
	g.push(id, key)
	return key, nil
}

func (g *Grid[ID]) push(id ID, key int) {
	bucket := g.buckets[key]
	g.where[id] = location{key: key, slot: len(bucket)}
	g.buckets[key] = append(bucket, id)
}

// Remove deletes id from its bucket in O(1): the last id of the bucket is
// moved into the vacated slot and its slot index is updated. Empty buckets
// are dropped.
func (g *Grid[ID]) Remove(id ID) error {
	loc, ok := g.where[id]
	if !ok {
		return &NotFoundError[ID]{Op: "remove", ID: id}
	}
	g.detach(id, loc)
	return nil
}

func (g *Grid[ID]) detach(id ID, loc location) {
	bucket := g.buckets[loc.key]
	last := len(bucket) - 1
	if loc.slot != last {
		moved := bucket[last]
		bucket[loc.slot] = moved
		g.where[moved] = location{key: loc.key, slot: loc.slot}
	}
	var zero ID
	bucket[last] = zero
	bucket = bucket[:last]
	if len(bucket) == 0 {
		delete(g.buckets, loc.key)
	} else {
		g.buckets[loc.key] = bucket
	}
	delete(g.where, id)
}

// Relocate moves id to the bucket of newPos. It is a no-op when the bucket
// does not change. The returned bool reports whether the id changed bucket.
func (g *Grid[ID]) Relocate(id ID, newPos geometry.Vector2D) (bool, error) {
	loc, ok := g.where[id]
	if !ok {
		return false, &NotFoundError[ID]{Op: "relocate", ID: id}
	}
	key := g.Key(newPos)
	if key == loc.key {
		return false, nil
	}
	g.detach(id, loc)
	g.push(id, key)
	return true, nil
}

// Bucket returns the ids stored in cell (cx, cy). The slice is owned by the
// grid and is only valid until the next mutation.
func (g *Grid[ID]) Bucket(cx, cy int) []ID {
	if cx < 0 || cx >= g.cols || cy < 0 || cy >= g.rows {
		return nil
	}
	return g.buckets[g.keyOf(cx, cy)]
}

// cellRange converts a rectangle to an inclusive, clamped range of cells.
func (g *Grid[ID]) cellRange(b orb.Bound) (minX, minY, maxX, maxY int) {
	minX = g.coordToCell(b.Min.X(), g.cols)
	minY = g.coordToCell(b.Min.Y(), g.rows)
	maxX = g.coordToCell(b.Max.X(), g.cols)
	maxY = g.coordToCell(b.Max.Y(), g.rows)
	return minX, minY, maxX, maxY
}

// QueryBounds lazily yields every id stored in a bucket that overlaps b.
// This is the broad phase only: callers must filter by exact position.
func (g *Grid[ID]) QueryBounds(b orb.Bound) iter.Seq[ID] {
	return func(yield func(ID) bool) {
		minX, minY, maxX, maxY := g.cellRange(b)
		for cy := minY; cy <= maxY; cy++ {
			for cx := minX; cx <= maxX; cx++ {
				for _, id := range g.buckets[g.keyOf(cx, cy)] {
					if !yield(id) {
						return
					}
				}
			}
		}
	}
}

// QueryRadius lazily yields every id whose bucket intersects the square of
// side 2*radius centred at center. A non-positive radius still scans the
// bucket holding center, so an id always finds itself with radius 0; a
// negative radius yields nothing.
//
// The grid must not be mutated while the sequence is being consumed.
func (g *Grid[ID]) QueryRadius(center geometry.Vector2D, radius float64) iter.Seq[ID] {
	if radius < 0 || math.IsNaN(radius) {
		return func(func(ID) bool) {}
	}
	return g.QueryBounds(center.Point().Bound().Pad(radius))
}

// AppendRadius is QueryRadius collecting into buf, for hot loops that reuse
// a scratch slice instead of allocating a closure per query.
func (g *Grid[ID]) AppendRadius(buf []ID, center geometry.Vector2D, radius float64) []ID {
	if radius < 0 || math.IsNaN(radius) {
		return buf
	}
	minX, minY, maxX, maxY := g.cellRange(center.Point().Bound().Pad(radius))
	for cy := minY; cy <= maxY; cy++ {
		for cx := minX; cx <= maxX; cx++ {
			buf = append(buf, g.buckets[g.keyOf(cx, cy)]...)
		}
	}
	return buf
}
