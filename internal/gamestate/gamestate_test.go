package gamestate

import (
	"sync"
	"testing"

	"github.com/siohaza/tankwars/internal/world"
	"github.com/siohaza/tankwars/pkg/config"
)

func TestNewLoadsWalls(t *testing.T) {
	cfg := config.Default()
	gs := NewWithSeed(cfg, 1)

	walls := gs.Walls()
	if len(walls) != len(cfg.Walls) {
		t.Fatalf("got %d walls, want %d", len(walls), len(cfg.Walls))
	}
	for i, w := range walls {
		if w.ID != i {
			t.Errorf("wall %d has id %d", i, w.ID)
		}
		if w.P1.X != cfg.Walls[i].P1.X || w.P2.Y != cfg.Walls[i].P2.Y {
			t.Errorf("wall %d = %+v, config %+v", i, w, cfg.Walls[i])
		}
	}
}

func TestIDCountersAreIndependent(t *testing.T) {
	gs := NewWithSeed(config.Default(), 1)

	gs.Update(func(tx *Tx) {
		if tx.NextClientID() != 0 || tx.NextClientID() != 1 {
			t.Error("client ids not sequential")
		}
		if tx.NextProjectileID() != 0 {
			t.Error("projectile ids should start at 0")
		}
		if tx.NextBeamID() != 0 || tx.NextPowerUpID() != 0 {
			t.Error("beam and power-up ids should start at 0")
		}
		if tx.NextProjectileID() != 1 {
			t.Error("projectile ids not sequential")
		}
	})
}

func TestConcurrentUpdates(t *testing.T) {
	gs := NewWithSeed(config.Default(), 1)
	gs.Update(func(tx *Tx) {
		tx.UpsertTank(world.Tank{ID: 0})
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			gs.Update(func(tx *Tx) {
				tank, _ := tx.Tank(0)
				tank.Score++
				tx.UpsertTank(tank)
			})
		}()
	}
	wg.Wait()

	tank, ok := gs.Tank(0)
	if !ok || tank.Score != 50 {
		t.Errorf("score = %d, want 50", tank.Score)
	}
}

func TestFrameCounter(t *testing.T) {
	gs := NewWithSeed(config.Default(), 1)
	gs.Update(func(tx *Tx) {
		tx.AdvanceFrame()
		tx.AdvanceFrame()
	})
	if gs.Frame() != 2 {
		t.Errorf("frame = %d, want 2", gs.Frame())
	}
}
