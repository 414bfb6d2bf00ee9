package geometry

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

// floatEquals is a helper for testing scalar float values with epsilon.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= Epsilon
}

func TestVector_String(t *testing.T) {
	v := Vector2D{1.234, 5.678}
	want := "(1.23, 5.68)"
	if got := v.String(); got != want {
		t.Errorf("Vector2D.String() = %q; want %q", got, want)
	}
}

func TestVector_Arithmetic(t *testing.T) {
	v1 := Vector2D{1, 2}
	v2 := Vector2D{3, 4}

	t.Run("Add", func(t *testing.T) {
		want := Vector2D{4, 6}
		if got := v1.Add(v2); !got.Eq(want) {
			t.Errorf("%v.Add(%v) = %v; want %v", v1, v2, got, want)
		}
	})

	t.Run("Sub", func(t *testing.T) {
		want := Vector2D{-2, -2}
		if got := v1.Sub(v2); !got.Eq(want) {
			t.Errorf("%v.Sub(%v) = %v; want %v", v1, v2, got, want)
		}
	})

	t.Run("Mul", func(t *testing.T) {
		want := Vector2D{2, 4}
		if got := v1.Mul(2); !got.Eq(want) {
			t.Errorf("%v.Mul(2) = %v; want %v", v1, got, want)
		}
	})

	t.Run("Dot", func(t *testing.T) {
		if got := (Vector2D{1, 0}).Dot(Vector2D{0, 1}); got != 0 {
			t.Errorf("Dot orthogonal = %v; want 0", got)
		}
		if got := v1.Dot(v2); got != 11 {
			t.Errorf("Dot = %v; want 11", got)
		}
	})
}

func TestVector_Magnitude(t *testing.T) {
	v := Vector2D{3, 4} // 3-4-5 triangle

	t.Run("Len", func(t *testing.T) {
		if got := v.Len(); got != 5 {
			t.Errorf("Len = %v; want 5", got)
		}
	})

	t.Run("LenSqr", func(t *testing.T) {
		if got := v.LenSqr(); got != 25 {
			t.Errorf("LenSqr = %v; want 25", got)
		}
	})

	t.Run("Normalize", func(t *testing.T) {
		got := v.Normalize()
		want := Vector2D{0.6, 0.8}
		if !got.Eq(want) {
			t.Errorf("Normalize = %v; want %v", got, want)
		}
	})

	t.Run("NormalizeZero", func(t *testing.T) {
		if got := (Vector2D{}).Normalize(); !got.Eq(Vector2D{}) {
			t.Errorf("Normalize(0,0) = %v; want (0,0)", got)
		}
	})
}

func TestVector_Limit(t *testing.T) {
	tests := []struct {
		name string
		v    Vector2D
		max  float64
		want Vector2D
	}{
		{"Shorter unchanged", Vector2D{0.034, -0.02}, 5, Vector2D{0.034, -0.02}},
		{"Exactly max unchanged", Vector2D{3, 4}, 5, Vector2D{3, 4}},
		{"Longer rescaled", Vector2D{6, 8}, 5, Vector2D{3, 4}},
		{"Zero stays zero", Vector2D{}, 5, Vector2D{}},
		{"Non-positive max", Vector2D{1, 1}, 0, Vector2D{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.v.Limit(tt.max)
			if !got.Eq(tt.want) {
				t.Errorf("%v.Limit(%v) = %v; want %v", tt.v, tt.max, got, tt.want)
			}
			if tt.max > 0 && got.Len() > tt.max+Epsilon {
				t.Errorf("Limit result length %v exceeds %v", got.Len(), tt.max)
			}
		})
	}
}

func TestVector_AtLeast(t *testing.T) {
	if got := (Vector2D{0.3, 0.4}).AtLeast(1); !got.Eq(Vector2D{0.6, 0.8}) {
		t.Errorf("AtLeast(1) = %v; want (0.6, 0.8)", got)
	}
	if got := (Vector2D{}).AtLeast(1); !got.Eq(Vector2D{}) {
		t.Errorf("AtLeast on zero vector = %v; want zero", got)
	}
	if got := (Vector2D{3, 4}).AtLeast(1); !got.Eq(Vector2D{3, 4}) {
		t.Errorf("AtLeast should not shrink, got %v", got)
	}
}

func TestVector_Distance(t *testing.T) {
	v1 := Vector2D{1, 1}
	v2 := Vector2D{4, 5} // dx=3, dy=4, dist=5

	if got := v1.DistanceTo(v2); got != 5 {
		t.Errorf("DistanceTo = %v; want 5", got)
	}

	if got := v1.DistanceSquaredTo(v2); got != 25 {
		t.Errorf("DistanceSquaredTo = %v; want 25", got)
	}
}

func TestVector_HeadingDegrees(t *testing.T) {
	tests := []struct {
		name string
		v    Vector2D
		want float64
	}{
		{"East", Vector2D{1, 0}, 0},
		{"Up on screen", Vector2D{0, -1}, 90},
		{"West", Vector2D{-1, 0}, 180},
		{"Down on screen", Vector2D{0, 1}, -90},
		{"North-east on screen", Vector2D{1, -1}, 45},
		{"Zero velocity", Vector2D{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.HeadingDegrees(); !floatEquals(got, tt.want) {
				t.Errorf("%v.HeadingDegrees() = %v; want %v", tt.v, got, tt.want)
			}
		})
	}
}

func TestVector_Angle(t *testing.T) {
	if got := (Vector2D{0, 1}).Angle(); !floatEquals(got, math.Pi/2) {
		t.Errorf("Angle = %v; want %v", got, math.Pi/2)
	}
}

func TestVector_ClampTo(t *testing.T) {
	b := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{600, 400}}
	tests := []struct {
		in, want Vector2D
	}{
		{Vector2D{-10, 50}, Vector2D{0, 50}},
		{Vector2D{700, 500}, Vector2D{600, 400}},
		{Vector2D{300, 200}, Vector2D{300, 200}},
	}
	for _, tt := range tests {
		if got := tt.in.ClampTo(b); !got.Eq(tt.want) {
			t.Errorf("%v.ClampTo = %v; want %v", tt.in, got, tt.want)
		}
	}
}

func TestVector_PointRoundTrip(t *testing.T) {
	v := Vector2D{12.5, -3}
	if got := FromPoint(v.Point()); !got.Eq(v) {
		t.Errorf("FromPoint(Point()) = %v; want %v", got, v)
	}
}

func TestVector_IsFinite(t *testing.T) {
	if !(Vector2D{1, 2}).IsFinite() {
		t.Error("Expected (1,2) to be finite")
	}
	if (Vector2D{math.NaN(), 0}).IsFinite() {
		t.Error("Expected NaN vector to be reported as not finite")
	}
	if (Vector2D{0, math.Inf(1)}).IsFinite() {
		t.Error("Expected Inf vector to be reported as not finite")
	}
}

func TestVector_Eq(t *testing.T) {
	v := Vector2D{1, 2}

	if !v.Eq(Vector2D{1, 2}) {
		t.Error("Eq exact match failed")
	}

	vClose := Vector2D{1 + Epsilon/2, 2 - Epsilon/2}
	if !v.Eq(vClose) {
		t.Error("Eq epsilon match failed")
	}

	if v.Eq(Vector2D{1.1, 2}) {
		t.Error("Eq mismatch failed")
	}
}
