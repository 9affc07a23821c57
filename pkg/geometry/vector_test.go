package geometry

import (
	"encoding/json"
	"math"
	"testing"
)

const eps = 1e-9

func TestArithmetic(t *testing.T) {
	a := New(3, -4)
	b := New(1, 2)

	if got := Add(a, b); got != New(4, -2) {
		t.Errorf("Add = %v", got)
	}
	if got := a.Sub(b); got != New(2, -6) {
		t.Errorf("Sub = %v", got)
	}
	if got := Scale(a, 2); got != New(6, -8) {
		t.Errorf("Scale = %v", got)
	}
	if got := a.Dot(b); got != -5 {
		t.Errorf("Dot = %v", got)
	}
	if got := a.Length(); got != 5 {
		t.Errorf("Length = %v", got)
	}
	if a != New(3, -4) {
		t.Errorf("operands were mutated: %v", a)
	}
}

func TestNormalize(t *testing.T) {
	n := New(10, 0).Normalize()
	if !n.Equal(Right, eps) {
		t.Errorf("Normalize = %v", n)
	}

	n = New(3, 4).Normalize()
	if math.Abs(n.Length()-1) > eps {
		t.Errorf("normalized length = %v", n.Length())
	}

	z := Zero.Normalize()
	if !math.IsNaN(z.X) || !math.IsNaN(z.Y) {
		t.Errorf("zero vector normalize should be NaN, got %v", z)
	}
}

func TestRotateClockwise(t *testing.T) {
	tests := []struct {
		in      Vector2D
		degrees float64
		want    Vector2D
	}{
		{Up, 90, Right},
		{Right, 90, Down},
		{Down, 90, Left},
		{Left, 90, Up},
		{Up, 180, Down},
		{Up, -90, Left},
		{Up, 360, Up},
	}

	for _, tt := range tests {
		got := tt.in.Rotate(tt.degrees)
		if !got.Equal(tt.want, 1e-12) {
			t.Errorf("%v.Rotate(%v) = %v, want %v", tt.in, tt.degrees, got, tt.want)
		}
	}
}

func TestToAngle(t *testing.T) {
	tests := []struct {
		in   Vector2D
		want float64
	}{
		{Up, 0},
		{Right, 90},
		{Down, 180},
		{Left, 270},
		{New(1, -1).Normalize(), 45},
	}

	for _, tt := range tests {
		if got := tt.in.ToAngle(); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%v.ToAngle() = %v, want %v", tt.in, got, tt.want)
		}
	}

	// rotating up by an angle and converting back recovers the angle
	for _, deg := range []float64{10, 135, 200, 359} {
		if got := Up.Rotate(deg).ToAngle(); math.Abs(got-deg) > 1e-9 {
			t.Errorf("round trip %v got %v", deg, got)
		}
	}
}

func TestJSONKeys(t *testing.T) {
	data, err := json.Marshal(New(1.5, -2))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `{"x":1.5,"y":-2}` {
		t.Errorf("unexpected json %s", data)
	}
}

func TestIsFinite(t *testing.T) {
	if !New(1, 2).IsFinite() {
		t.Error("finite vector reported as non-finite")
	}
	if New(math.NaN(), 0).IsFinite() {
		t.Error("NaN vector reported as finite")
	}
	if New(0, math.Inf(1)).IsFinite() {
		t.Error("Inf vector reported as finite")
	}
}
