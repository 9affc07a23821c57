package geometry

import (
	"fmt"
	"math"
)

// Vector2D is a 2D vector in screen space: x grows to the right, y grows down.
// It is a value type; every operation returns a new vector.
type Vector2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

var (
	Zero  = Vector2D{}
	Up    = Vector2D{X: 0, Y: -1}
	Down  = Vector2D{X: 0, Y: 1}
	Left  = Vector2D{X: -1, Y: 0}
	Right = Vector2D{X: 1, Y: 0}
)

func New(x, y float64) Vector2D {
	return Vector2D{X: x, Y: y}
}

func Add(a, b Vector2D) Vector2D {
	return Vector2D{X: a.X + b.X, Y: a.Y + b.Y}
}

func Sub(a, b Vector2D) Vector2D {
	return Vector2D{X: a.X - b.X, Y: a.Y - b.Y}
}

func Scale(v Vector2D, s float64) Vector2D {
	return Vector2D{X: v.X * s, Y: v.Y * s}
}

func (v Vector2D) Add(u Vector2D) Vector2D {
	return Add(v, u)
}

func (v Vector2D) Sub(u Vector2D) Vector2D {
	return Sub(v, u)
}

func (v Vector2D) Scale(s float64) Vector2D {
	return Scale(v, s)
}

func (v Vector2D) Neg() Vector2D {
	return Vector2D{X: -v.X, Y: -v.Y}
}

func (v Vector2D) Dot(u Vector2D) float64 {
	return v.X*u.X + v.Y*u.Y
}

func (v Vector2D) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y)
}

// Normalize returns the unit vector in the direction of v.
// The zero vector has no direction and yields NaN components.
func (v Vector2D) Normalize() Vector2D {
	l := v.Length()
	return Vector2D{X: v.X / l, Y: v.Y / l}
}

// Rotate turns v clockwise by the given number of degrees.
func (v Vector2D) Rotate(degrees float64) Vector2D {
	rad := degrees * math.Pi / 180
	sin, cos := math.Sincos(rad)
	return Vector2D{
		X: v.X*cos - v.Y*sin,
		Y: v.X*sin + v.Y*cos,
	}
}

// ToAngle returns the clockwise angle from Up in degrees, in [0, 360).
// v must be a unit vector.
func (v Vector2D) ToAngle() float64 {
	angle := math.Acos(math.Max(-1, math.Min(1, -v.Y))) * 180 / math.Pi
	if v.X < 0 {
		angle = 360 - angle
	}
	if angle >= 360 {
		angle -= 360
	}
	return angle
}

func (v Vector2D) Distance(u Vector2D) float64 {
	return v.Sub(u).Length()
}

func (v Vector2D) IsZero() bool {
	return v.X == 0 && v.Y == 0
}

func (v Vector2D) IsFinite() bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0)
}

func (v Vector2D) Equal(u Vector2D, eps float64) bool {
	return math.Abs(v.X-u.X) <= eps && math.Abs(v.Y-u.Y) <= eps
}

func (v Vector2D) String() string {
	return fmt.Sprintf("(%g, %g)", v.X, v.Y)
}
