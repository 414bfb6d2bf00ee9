// Package behavior holds the flocking rules.
//
// Boids is an artificial life program, developed by Craig Reynolds in 1986,
// which simulates the flocking behaviour of birds, and related group motion.
// https://en.wikipedia.org/wiki/Boids
//
// Every rule here is a pure function of one body and the bodies it can see.
// Neighbor slices have no canonical order, so each rule only sums and
// averages; the result does not depend on iteration order.
package behavior

import (
	"github.com/lao-tseu-is-alive/go-boids/pkg/geometry"
)

// Body is the read-only view of an agent that the rules need.
// ID is only used to break the tie between two bodies at the same position.
type Body struct {
	ID  int64
	Pos geometry.Vector2D
	Vel geometry.Vector2D
}

// Weights scales the three flocking contributions.
type Weights struct {
	Separation float64
	Alignment  float64
	Cohesion   float64
}

// Settings controls the physics constants for one tick.
type Settings struct {
	Weights

	SeparationRadius float64 // Personal space radius

	BoundaryMargin float64 // Distance from an edge where turning starts
	BoundaryForce  float64 // Edge turning strength

	MaxSpeed float64
	MinSpeed float64 // 0 disables the lower bound

	Width  float64
	Height float64
}

// Separation pushes me away from every neighbor closer than radius.
// Each push is the unit vector away from the neighbor divided by the
// distance, so near neighbors push harder; pushes are averaged over the
// neighbors that contributed.
//
// A neighbor at (or within geometry.Epsilon of) my position has no usable
// "away" direction. It contributes a unit push along x instead: the body
// with the lower ID goes -x, the other +x, so the pair splits apart
// symmetrically.
func Separation(me Body, neighbors []Body, radius float64) geometry.Vector2D {
	radiusSq := radius * radius
	var sum geometry.Vector2D
	n := 0
	for _, other := range neighbors {
		if other.ID == me.ID {
			continue
		}
		d := me.Pos.Sub(other.Pos)
		distSq := d.LenSqr()
		if distSq >= radiusSq {
			continue
		}
		n++
		if distSq < geometry.Epsilon*geometry.Epsilon {
			if me.ID < other.ID {
				sum.X--
			} else {
				sum.X++
			}
			continue
		}
		// (d / |d|) / |d|
		sum = sum.Add(d.Mul(1 / distSq))
	}
	if n == 0 {
		return geometry.Vector2D{}
	}
	return sum.Mul(1 / float64(n))
}

// Alignment steers my velocity toward the mean velocity of the neighbors.
func Alignment(me Body, neighbors []Body) geometry.Vector2D {
	var sum geometry.Vector2D
	n := 0
	for _, other := range neighbors {
		if other.ID == me.ID {
			continue
		}
		sum = sum.Add(other.Vel)
		n++
	}
	if n == 0 {
		return geometry.Vector2D{}
	}
	return sum.Mul(1 / float64(n)).Sub(me.Vel)
}

// Cohesion steers me toward the centroid of the neighbors.
func Cohesion(me Body, neighbors []Body) geometry.Vector2D {
	var sum geometry.Vector2D
	n := 0
	for _, other := range neighbors {
		if other.ID == me.ID {
			continue
		}
		sum = sum.Add(other.Pos)
		n++
	}
	if n == 0 {
		return geometry.Vector2D{}
	}
	return sum.Mul(1 / float64(n)).Sub(me.Pos)
}

// Boundary returns a fixed turning force away from every world edge that
// pos is within margin of. It is independent of neighbors.
func Boundary(pos geometry.Vector2D, s Settings) geometry.Vector2D {
	var f geometry.Vector2D
	if pos.X < s.BoundaryMargin {
		f.X += s.BoundaryForce
	}
	if pos.X > s.Width-s.BoundaryMargin {
		f.X -= s.BoundaryForce
	}
	if pos.Y < s.BoundaryMargin {
		f.Y += s.BoundaryForce
	}
	if pos.Y > s.Height-s.BoundaryMargin {
		f.Y -= s.BoundaryForce
	}
	return f
}

// Steer sums all weighted contributions into an acceleration.
// neighbors must already be filtered to the bodies me can see.
func Steer(me Body, neighbors []Body, s Settings) geometry.Vector2D {
	acc := Boundary(me.Pos, s)
	if len(neighbors) == 0 {
		return acc
	}
	if s.Separation != 0 {
		acc = acc.Add(Separation(me, neighbors, s.SeparationRadius).Mul(s.Separation))
	}
	if s.Alignment != 0 {
		acc = acc.Add(Alignment(me, neighbors).Mul(s.Alignment))
	}
	if s.Cohesion != 0 {
		acc = acc.Add(Cohesion(me, neighbors).Mul(s.Cohesion))
	}
	return acc
}

// Integrate advances one logical tick with semi-implicit Euler:
// the velocity absorbs the acceleration and is clamped to the speed limits,
// then the position moves by the new velocity.
func Integrate(pos, vel, acc geometry.Vector2D, s Settings) (geometry.Vector2D, geometry.Vector2D) {
	vel = vel.Add(acc).AtLeast(s.MinSpeed).Limit(s.MaxSpeed)
	return pos.Add(vel), vel
}
