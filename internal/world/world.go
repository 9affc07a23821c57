package world

import (
	"maps"
	"slices"
)

// World stores every entity by ID. Entities are held by value: read one,
// modify the copy and upsert it back. World does no locking of its own.
type World struct {
	Size int

	tanks       map[int]Tank
	projectiles map[int]Projectile
	beams       map[int]Beam
	powerUps    map[int]PowerUp
	walls       map[int]Wall
}

func New(size int) *World {
	return &World{
		Size:        size,
		tanks:       make(map[int]Tank),
		projectiles: make(map[int]Projectile),
		beams:       make(map[int]Beam),
		powerUps:    make(map[int]PowerUp),
		walls:       make(map[int]Wall),
	}
}

func (w *World) UpsertTank(t Tank)             { w.tanks[t.ID] = t }
func (w *World) UpsertProjectile(p Projectile) { w.projectiles[p.ID] = p }
func (w *World) UpsertBeam(b Beam)             { w.beams[b.ID] = b }
func (w *World) UpsertPowerUp(p PowerUp)       { w.powerUps[p.ID] = p }
func (w *World) UpsertWall(wall Wall)          { w.walls[wall.ID] = wall }

func (w *World) RemoveTank(id int)       { delete(w.tanks, id) }
func (w *World) RemoveProjectile(id int) { delete(w.projectiles, id) }
func (w *World) RemoveBeam(id int)       { delete(w.beams, id) }
func (w *World) RemovePowerUp(id int)    { delete(w.powerUps, id) }

func (w *World) Tank(id int) (Tank, bool) {
	t, ok := w.tanks[id]
	return t, ok
}

func (w *World) Projectile(id int) (Projectile, bool) {
	p, ok := w.projectiles[id]
	return p, ok
}

func (w *World) Beam(id int) (Beam, bool) {
	b, ok := w.beams[id]
	return b, ok
}

func (w *World) PowerUp(id int) (PowerUp, bool) {
	p, ok := w.powerUps[id]
	return p, ok
}

func (w *World) Wall(id int) (Wall, bool) {
	wall, ok := w.walls[id]
	return wall, ok
}

// The enumerators return copies sorted by ID so frames serialize deterministically.

func (w *World) Tanks() []Tank             { return sortedValues(w.tanks) }
func (w *World) Projectiles() []Projectile { return sortedValues(w.projectiles) }
func (w *World) Beams() []Beam             { return sortedValues(w.beams) }
func (w *World) PowerUps() []PowerUp       { return sortedValues(w.powerUps) }
func (w *World) Walls() []Wall             { return sortedValues(w.walls) }

func (w *World) TankCount() int       { return len(w.tanks) }
func (w *World) ProjectileCount() int { return len(w.projectiles) }
func (w *World) BeamCount() int       { return len(w.beams) }
func (w *World) PowerUpCount() int    { return len(w.powerUps) }
func (w *World) WallCount() int       { return len(w.walls) }

// Clear drops every entity except walls.
func (w *World) Clear() {
	clear(w.tanks)
	clear(w.projectiles)
	clear(w.beams)
	clear(w.powerUps)
}

func sortedValues[V any](m map[int]V) []V {
	keys := slices.Sorted(maps.Keys(m))
	out := make([]V, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}
