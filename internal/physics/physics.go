package physics

import (
	"math"

	"github.com/siohaza/tankwars/internal/world"
	"github.com/siohaza/tankwars/pkg/geometry"
)

// SpawnMargin shrinks the random spawn square so nothing spawns on the border.
const SpawnMargin = 25

type Rect struct {
	MinX, MinY, MaxX, MaxY float64
}

// Contains is inclusive: a point on the edge is inside.
func (r Rect) Contains(p geometry.Vector2D) bool {
	return p.X >= r.MinX && p.X <= r.MaxX && p.Y >= r.MinY && p.Y <= r.MaxY
}

// WallBounds returns the box covered by a wall padded by pad on every side.
func WallBounds(w world.Wall, pad float64) Rect {
	x1, y1, x2, y2 := w.P1.X, w.P1.Y, w.P2.X, w.P2.Y

	var r Rect
	switch {
	case x1 == x2 && y1 >= y2:
		// vertical, p1 lower on screen
		r = Rect{MinX: x1, MaxX: x1, MinY: y2, MaxY: y1}
	case x1 == x2:
		// vertical, p2 lower on screen
		r = Rect{MinX: x1, MaxX: x1, MinY: y1, MaxY: y2}
	case x1 > x2:
		// horizontal, p1 on the right
		r = Rect{MinX: x2, MaxX: x1, MinY: y1, MaxY: y1}
	default:
		// horizontal, p2 on the right
		r = Rect{MinX: x1, MaxX: x2, MinY: y1, MaxY: y1}
	}

	r.MinX -= pad
	r.MinY -= pad
	r.MaxX += pad
	r.MaxY += pad
	return r
}

func TankWallCollides(loc geometry.Vector2D, w world.Wall, tankSize, wallSize float64) bool {
	return WallBounds(w, wallSize/2+tankSize/2).Contains(loc)
}

// PointWallCollides tests a point sized object (projectile, power-up) against a wall.
func PointWallCollides(loc geometry.Vector2D, w world.Wall, wallSize float64) bool {
	return WallBounds(w, wallSize/2).Contains(loc)
}

func TankCollidesAnyWall(loc geometry.Vector2D, walls []world.Wall, tankSize, wallSize float64) bool {
	for _, w := range walls {
		if TankWallCollides(loc, w, tankSize, wallSize) {
			return true
		}
	}
	return false
}

func PointCollidesAnyWall(loc geometry.Vector2D, walls []world.Wall, wallSize float64) bool {
	for _, w := range walls {
		if PointWallCollides(loc, w, wallSize) {
			return true
		}
	}
	return false
}

// CircleCollides reports whether two centers are closer than radius.
func CircleCollides(a, b geometry.Vector2D, radius float64) bool {
	return a.Distance(b) < radius
}

// RayCircleIntersects solves |O + tV - C|^2 = r^2 and reports a hit only when
// both roots lie strictly in front of the origin.
func RayCircleIntersects(origin, dir, center geometry.Vector2D, radius float64) bool {
	oc := origin.Sub(center)
	a := dir.Dot(dir)
	b := 2 * oc.Dot(dir)
	c := oc.Dot(oc) - radius*radius

	disc := b*b - 4*a*c
	if disc < 0 {
		return false
	}

	// the 1/2a factor does not change the signs for a > 0
	sq := math.Sqrt(disc)
	root1 := -b + sq
	root2 := -b - sq
	return root1 > 0 && root2 > 0
}

func OutOfBounds(loc geometry.Vector2D, arenaSize int) bool {
	half := float64(arenaSize) / 2
	return math.Abs(loc.X) >= half || math.Abs(loc.Y) >= half
}
