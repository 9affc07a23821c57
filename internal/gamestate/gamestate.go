package gamestate

import (
	"math/rand"
	"sync"
	"time"

	"github.com/siohaza/tankwars/internal/world"
	"github.com/siohaza/tankwars/pkg/config"
	"github.com/siohaza/tankwars/pkg/geometry"
)

// GameState owns the world and serializes every access to it behind one lock.
// The world is only reachable inside Update and View.
type GameState struct {
	Config *config.Config

	world *world.World
	rng   *rand.Rand
	mu    sync.Mutex

	nextClientID     int
	nextProjectileID int
	nextBeamID       int
	nextPowerUpID    int

	powerUpsSeeded bool
	powerUpDelay   int
	frame          uint64
}

func New(cfg *config.Config) *GameState {
	return NewWithSeed(cfg, time.Now().UnixNano())
}

func NewWithSeed(cfg *config.Config, seed int64) *GameState {
	gs := &GameState{
		Config: cfg,
		world:  world.New(cfg.Game.UniverseSize),
		rng:    rand.New(rand.NewSource(seed)),
	}

	for i, w := range cfg.Walls {
		gs.world.UpsertWall(world.Wall{
			ID: i,
			P1: geometry.New(w.P1.X, w.P1.Y),
			P2: geometry.New(w.P2.X, w.P2.Y),
		})
	}

	return gs
}

// Tx is the view of the game state handed to Update callbacks.
type Tx struct {
	*world.World
	gs *GameState
}

func (tx *Tx) Rand() *rand.Rand { return tx.gs.rng }

func (tx *Tx) NextClientID() int {
	id := tx.gs.nextClientID
	tx.gs.nextClientID++
	return id
}

func (tx *Tx) NextProjectileID() int {
	id := tx.gs.nextProjectileID
	tx.gs.nextProjectileID++
	return id
}

func (tx *Tx) NextBeamID() int {
	id := tx.gs.nextBeamID
	tx.gs.nextBeamID++
	return id
}

func (tx *Tx) NextPowerUpID() int {
	id := tx.gs.nextPowerUpID
	tx.gs.nextPowerUpID++
	return id
}

func (tx *Tx) PowerUpsSeeded() bool  { return tx.gs.powerUpsSeeded }
func (tx *Tx) MarkPowerUpsSeeded()   { tx.gs.powerUpsSeeded = true }
func (tx *Tx) PowerUpDelay() int     { return tx.gs.powerUpDelay }
func (tx *Tx) SetPowerUpDelay(n int) { tx.gs.powerUpDelay = n }
func (tx *Tx) Frame() uint64         { return tx.gs.frame }
func (tx *Tx) AdvanceFrame()         { tx.gs.frame++ }

// Update runs fn with exclusive access to the world.
func (gs *GameState) Update(fn func(tx *Tx)) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	fn(&Tx{World: gs.world, gs: gs})
}

// View runs fn with the lock held. fn must not keep references past its return.
func (gs *GameState) View(fn func(w *world.World)) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	fn(gs.world)
}

func (gs *GameState) Walls() []world.Wall {
	var walls []world.Wall
	gs.View(func(w *world.World) {
		walls = w.Walls()
	})
	return walls
}

func (gs *GameState) Tank(id int) (world.Tank, bool) {
	var (
		t  world.Tank
		ok bool
	)
	gs.View(func(w *world.World) {
		t, ok = w.Tank(id)
	})
	return t, ok
}

func (gs *GameState) TankCount() int {
	n := 0
	gs.View(func(w *world.World) {
		n = w.TankCount()
	})
	return n
}

func (gs *GameState) Frame() uint64 {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return gs.frame
}
