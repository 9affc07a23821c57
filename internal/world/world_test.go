package world

import (
	"encoding/json"
	"testing"

	"github.com/siohaza/tankwars/pkg/geometry"
)

func TestUpsertLookupRemove(t *testing.T) {
	w := New(1000)

	w.UpsertTank(Tank{ID: 3, Name: "a", HP: 3})
	w.UpsertTank(Tank{ID: 1, Name: "b", HP: 3})

	tank, ok := w.Tank(3)
	if !ok || tank.Name != "a" {
		t.Fatalf("Tank(3) = %+v, %v", tank, ok)
	}

	// lookups hand out copies
	tank.HP = 0
	if again, _ := w.Tank(3); again.HP != 3 {
		t.Errorf("mutating a lookup changed stored tank: %+v", again)
	}

	w.UpsertTank(tank)
	if again, _ := w.Tank(3); again.HP != 0 {
		t.Errorf("upsert did not replace tank: %+v", again)
	}

	w.RemoveTank(3)
	if _, ok := w.Tank(3); ok {
		t.Error("tank 3 still present after remove")
	}
	if _, ok := w.Tank(42); ok {
		t.Error("missing tank reported present")
	}
	if w.TankCount() != 1 {
		t.Errorf("TankCount = %d, want 1", w.TankCount())
	}
}

func TestEnumerationSortedByID(t *testing.T) {
	w := New(1000)
	for _, id := range []int{5, 2, 9, 0} {
		w.UpsertProjectile(Projectile{ID: id})
		w.UpsertPowerUp(PowerUp{ID: id})
	}

	projs := w.Projectiles()
	if len(projs) != 4 {
		t.Fatalf("got %d projectiles", len(projs))
	}
	for i := 1; i < len(projs); i++ {
		if projs[i-1].ID >= projs[i].ID {
			t.Errorf("projectiles not sorted: %v", projs)
		}
	}

	if w.PowerUpCount() != 4 {
		t.Errorf("PowerUpCount = %d", w.PowerUpCount())
	}
}

func TestClearKeepsWalls(t *testing.T) {
	w := New(1000)
	w.UpsertWall(Wall{ID: 0, P1: geometry.New(0, 0), P2: geometry.New(0, 100)})
	w.UpsertTank(Tank{ID: 0})
	w.UpsertBeam(Beam{ID: 0})

	w.Clear()
	if w.WallCount() != 1 || w.TankCount() != 0 || w.BeamCount() != 0 {
		t.Errorf("unexpected counts after Clear: walls=%d tanks=%d beams=%d", w.WallCount(), w.TankCount(), w.BeamCount())
	}
}

func TestTankJSONHidesServerFields(t *testing.T) {
	tank := Tank{
		ID:          7,
		Location:    geometry.New(1, 2),
		Orientation: geometry.Up,
		Aim:         geometry.Left,
		Name:        "ace",
		HP:          2,
		Score:       4,
		MainReady:   true,
		AttackDelay: 12,
		SpeedBoost:  true,
	}

	data, err := json.Marshal(tank)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	want := []string{"tank", "loc", "bdir", "tdir", "name", "hp", "score", "died", "dc", "join"}
	if len(fields) != len(want) {
		t.Errorf("got %d keys, want %d: %s", len(fields), len(want), data)
	}
	for _, k := range want {
		if _, ok := fields[k]; !ok {
			t.Errorf("missing key %q in %s", k, data)
		}
	}
}

func TestWallOrientation(t *testing.T) {
	v := Wall{P1: geometry.New(5, -10), P2: geometry.New(5, 10)}
	h := Wall{P1: geometry.New(-10, 5), P2: geometry.New(10, 5)}

	if !v.Vertical() || v.Horizontal() {
		t.Errorf("vertical wall misclassified")
	}
	if !h.Horizontal() || h.Vertical() {
		t.Errorf("horizontal wall misclassified")
	}
}

func TestEnumValidation(t *testing.T) {
	if !MoveUp.Valid() || Movement("sideways").Valid() {
		t.Error("movement validation wrong")
	}
	if !FireAlt.Valid() || FireMode("nuke").Valid() {
		t.Error("fire validation wrong")
	}
	cmd := DefaultCommand()
	if cmd.Moving != MoveNone || cmd.Fire != FireNone || cmd.Aim != geometry.Up {
		t.Errorf("DefaultCommand = %+v", cmd)
	}
}
