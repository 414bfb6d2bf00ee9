package geometry

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Epsilon is the tolerance used for float comparisons and for deciding
// that a vector is too short to have a direction.
const (
	Epsilon = 1e-9
)

// Vector2D is a position, velocity or force in world coordinates.
// World coordinates follow screen conventions: x grows to the right, y grows downward.
type Vector2D struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// NewVector creates a new Vector2D.
func NewVector(x, y float64) Vector2D {
	return Vector2D{X: x, Y: y}
}

// FromPoint converts an orb point to a vector.
func FromPoint(p orb.Point) Vector2D {
	return Vector2D{X: p.X(), Y: p.Y()}
}

// Point converts the vector to an orb point for use with planar bounds.
func (v Vector2D) Point() orb.Point {
	return orb.Point{v.X, v.Y}
}

// String implements the fmt.Stringer interface.
func (v Vector2D) String() string {
	return fmt.Sprintf("(%.2f, %.2f)", v.X, v.Y)
}

// ---------------------------------------------------------------------
// Arithmetic
// Value receivers, new values returned: the struct is two floats.
// ---------------------------------------------------------------------

// Add adds two vectors and returns the result.
func (v Vector2D) Add(other Vector2D) Vector2D {
	return Vector2D{v.X + other.X, v.Y + other.Y}
}

// Sub subtracts the other vector from the current vector.
func (v Vector2D) Sub(other Vector2D) Vector2D {
	return Vector2D{v.X - other.X, v.Y - other.Y}
}

// Mul scales the vector by a scalar value.
func (v Vector2D) Mul(scalar float64) Vector2D {
	return Vector2D{v.X * scalar, v.Y * scalar}
}

// Dot calculates the dot product of two vectors.
func (v Vector2D) Dot(other Vector2D) float64 {
	return v.X*other.X + v.Y*other.Y
}

// ---------------------------------------------------------------------
// Magnitude
// ---------------------------------------------------------------------

// LenSqr calculates the squared magnitude of the vector.
// Prefer it over Len for comparisons against a squared radius.
func (v Vector2D) LenSqr() float64 {
	return v.X*v.X + v.Y*v.Y
}

// Len calculates the magnitude (length) of the vector.
func (v Vector2D) Len() float64 {
	return math.Hypot(v.X, v.Y)
}

// Normalize returns a unit vector in the same direction.
// Returns a zero vector if the length is effectively zero.
func (v Vector2D) Normalize() Vector2D {
	l := v.Len()
	if l < Epsilon {
		return Vector2D{0, 0}
	}
	return v.Mul(1 / l)
}

// Limit rescales the vector to exactly max when it is longer than max,
// keeping its direction. Shorter vectors are returned unchanged.
func (v Vector2D) Limit(max float64) Vector2D {
	if max <= 0 {
		return Vector2D{}
	}
	lSq := v.LenSqr()
	if lSq <= max*max {
		return v
	}
	return v.Mul(max / math.Sqrt(lSq))
}

// AtLeast rescales a non-zero vector shorter than min up to min.
// The zero vector has no direction and is returned unchanged.
func (v Vector2D) AtLeast(min float64) Vector2D {
	if min <= 0 {
		return v
	}
	l := v.Len()
	if l < Epsilon || l >= min {
		return v
	}
	return v.Mul(min / l)
}

// ---------------------------------------------------------------------
// Geometric Utilities
// ---------------------------------------------------------------------

// DistanceTo calculates the Euclidean distance to another vector.
func (v Vector2D) DistanceTo(other Vector2D) float64 {
	return v.Sub(other).Len()
}

// DistanceSquaredTo calculates the squared Euclidean distance to another vector.
func (v Vector2D) DistanceSquaredTo(other Vector2D) float64 {
	return v.Sub(other).LenSqr()
}

// Angle returns the angle (in radians) of the vector relative to the X-axis
// in raw coordinates. Range: [-Pi, Pi]
func (v Vector2D) Angle() float64 {
	return math.Atan2(v.Y, v.X)
}

// HeadingDegrees returns the on-screen heading of a velocity in degrees.
// 0° faces +x and angles grow counter-clockwise as seen on a y-down screen,
// so the y component is negated: atan2(-y, x). The zero vector has heading 0.
func (v Vector2D) HeadingDegrees() float64 {
	if v.LenSqr() < Epsilon*Epsilon {
		return 0
	}
	deg := math.Atan2(-v.Y, v.X) * 180 / math.Pi
	if deg == -180 {
		deg = 180
	}
	return deg
}

// ClampTo returns the vector with each component clamped into the bound.
func (v Vector2D) ClampTo(b orb.Bound) Vector2D {
	return Vector2D{
		X: math.Min(math.Max(v.X, b.Min.X()), b.Max.X()),
		Y: math.Min(math.Max(v.Y, b.Min.Y()), b.Max.Y()),
	}
}

// IsFinite reports whether both components are neither NaN nor infinite.
func (v Vector2D) IsFinite() bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0)
}

// ---------------------------------------------------------------------
// Comparison
// ---------------------------------------------------------------------

// Eq checks if two vectors are approximately equal using the Epsilon constant.
func (v Vector2D) Eq(other Vector2D) bool {
	return math.Abs(v.X-other.X) <= Epsilon && math.Abs(v.Y-other.Y) <= Epsilon
}
