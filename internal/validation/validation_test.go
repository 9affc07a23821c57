package validation

import (
	"math"
	"testing"

	"github.com/siohaza/tankwars/internal/world"
	"github.com/siohaza/tankwars/pkg/geometry"
)

func TestSanitizeCommand(t *testing.T) {
	tests := []struct {
		name    string
		cmd     world.Command
		wantErr bool
		wantAim geometry.Vector2D
	}{
		{"valid", world.Command{Moving: world.MoveUp, Fire: world.FireNone, Aim: geometry.Up}, false, geometry.Up},
		{"scaled aim", world.Command{Moving: world.MoveNone, Fire: world.FireMain, Aim: geometry.New(0, 5)}, false, geometry.Down},
		{"zero aim", world.Command{Moving: world.MoveNone, Fire: world.FireNone, Aim: geometry.Zero}, true, geometry.Zero},
		{"nan aim", world.Command{Moving: world.MoveNone, Fire: world.FireNone, Aim: geometry.New(math.NaN(), 1)}, true, geometry.Zero},
		{"bad movement", world.Command{Moving: "jump", Fire: world.FireNone, Aim: geometry.Up}, true, geometry.Zero},
		{"bad fire", world.Command{Moving: world.MoveNone, Fire: "laser", Aim: geometry.Up}, true, geometry.Zero},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeCommand(tt.cmd)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %+v", tt.cmd)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Aim.Equal(tt.wantAim, 1e-12) {
				t.Errorf("aim = %v, want %v", got.Aim, tt.wantAim)
			}
		})
	}
}

func TestNearUnitAimIsKept(t *testing.T) {
	aim := geometry.New(0.999, 0)
	got, ok := NormalizeAim(aim)
	if !ok || got != aim {
		t.Errorf("NormalizeAim(%v) = %v, %v", aim, got, ok)
	}
}

func TestIsValidName(t *testing.T) {
	if IsValidName("") {
		t.Error("empty name accepted")
	}
	if !IsValidName("tank") {
		t.Error("short name rejected")
	}
	if !IsValidName("ääääääääääääääää") {
		t.Error("16 multi-byte runes rejected")
	}
	if IsValidName("abcdefghijklmnopq") {
		t.Error("17 runes accepted")
	}
}

func TestIsValidWall(t *testing.T) {
	if !IsValidWall(world.Wall{P1: geometry.New(0, 0), P2: geometry.New(0, 10)}) {
		t.Error("vertical wall rejected")
	}
	if IsValidWall(world.Wall{P1: geometry.New(0, 0), P2: geometry.New(3, 10)}) {
		t.Error("diagonal wall accepted")
	}
	if IsValidWall(world.Wall{P1: geometry.New(math.Inf(1), 0), P2: geometry.New(0, 0)}) {
		t.Error("infinite wall accepted")
	}
}

func TestIsValidHP(t *testing.T) {
	if !IsValidHP(0, 3) || !IsValidHP(3, 3) || IsValidHP(4, 3) || IsValidHP(-1, 3) {
		t.Error("hp bounds wrong")
	}
}
