package physics

import (
	"math"
	"math/rand"

	"github.com/siohaza/tankwars/internal/world"
	"github.com/siohaza/tankwars/pkg/geometry"
)

const maxPlacementAttempts = 10000

// Unit returns the axis vector for a movement; MoveNone maps to the zero vector.
func Unit(m world.Movement) geometry.Vector2D {
	switch m {
	case world.MoveLeft:
		return geometry.Left
	case world.MoveRight:
		return geometry.Right
	case world.MoveUp:
		return geometry.Up
	case world.MoveDown:
		return geometry.Down
	default:
		return geometry.Zero
	}
}

// Move displaces the tank by speed along the movement axis and faces it that way.
func Move(t world.Tank, m world.Movement, speed float64) world.Tank {
	dir := Unit(m)
	if dir.IsZero() {
		return t
	}
	t.Location = t.Location.Add(dir.Scale(speed))
	t.Orientation = dir
	return t
}

// MoveWithWalls applies Move and bounces the tank back if the new location
// overlaps a wall. A bounced tank ends where it started, still facing the
// requested direction. The second result reports whether the move was reverted.
func MoveWithWalls(t world.Tank, m world.Movement, speed float64, walls []world.Wall, tankSize, wallSize float64) (world.Tank, bool) {
	dir := Unit(m)
	if dir.IsZero() {
		return t, false
	}

	moved := Move(t, m, speed)
	if !TankCollidesAnyWall(moved.Location, walls, tankSize, wallSize) {
		return moved, false
	}

	back := dir.Neg()
	moved.Location = moved.Location.Add(back.Scale(speed))
	moved.Orientation = back.Neg()
	return moved, true
}

// Wrap teleports a tank that reached the arena edge to the opposite side.
func Wrap(loc geometry.Vector2D, arenaSize int, tankSize, wallSize float64) geometry.Vector2D {
	half := float64(arenaSize) / 2
	edge := -half + wallSize + tankSize/2

	if math.Abs(loc.X)+tankSize/2 >= half {
		loc.X = edge * sign(loc.X)
	}
	if math.Abs(loc.Y)+tankSize/2 >= half {
		loc.Y = edge * sign(loc.Y)
	}
	return loc
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// RandomLocation picks integer coordinates uniformly in [-(size-25)/2, (size-25)/2).
func RandomLocation(rng *rand.Rand, arenaSize int) geometry.Vector2D {
	lo := -(arenaSize - SpawnMargin) / 2
	hi := (arenaSize - SpawnMargin) / 2
	span := hi - lo
	if span <= 0 {
		return geometry.Zero
	}
	return geometry.New(float64(lo+rng.Intn(span)), float64(lo+rng.Intn(span)))
}

// FreeTankLocation retries RandomLocation until the spot is clear of walls.
// ok is false if no clear spot was found.
func FreeTankLocation(rng *rand.Rand, arenaSize int, walls []world.Wall, tankSize, wallSize float64) (geometry.Vector2D, bool) {
	return freeLocation(rng, arenaSize, func(loc geometry.Vector2D) bool {
		return TankCollidesAnyWall(loc, walls, tankSize, wallSize)
	})
}

func FreePowerUpLocation(rng *rand.Rand, arenaSize int, walls []world.Wall, wallSize float64) (geometry.Vector2D, bool) {
	return freeLocation(rng, arenaSize, func(loc geometry.Vector2D) bool {
		return PointCollidesAnyWall(loc, walls, wallSize)
	})
}

func freeLocation(rng *rand.Rand, arenaSize int, blocked func(geometry.Vector2D) bool) (geometry.Vector2D, bool) {
	var loc geometry.Vector2D
	for range maxPlacementAttempts {
		loc = RandomLocation(rng, arenaSize)
		if !blocked(loc) {
			return loc, true
		}
	}
	return loc, false
}

// AdvanceProjectile moves a projectile one tick and marks it dead if it hits a
// wall or leaves the arena.
func AdvanceProjectile(p world.Projectile, speed float64, arenaSize int, walls []world.Wall, wallSize float64) world.Projectile {
	if p.Died {
		return p
	}
	p.Location = p.Location.Add(p.Direction.Scale(speed))
	if PointCollidesAnyWall(p.Location, walls, wallSize) || OutOfBounds(p.Location, arenaSize) {
		p.Died = true
	}
	return p
}
