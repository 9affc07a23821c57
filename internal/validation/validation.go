package validation

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/siohaza/tankwars/internal/world"
	"github.com/siohaza/tankwars/pkg/geometry"
)

const (
	MaxNameLen = 16

	// aim vectors within this distance of unit length are accepted as is
	unitTolerance = 0.01
)

func IsValidAim(v geometry.Vector2D) bool {
	if !v.IsFinite() {
		return false
	}
	return !v.IsZero()
}

// NormalizeAim returns v as a unit vector, or false if v has no direction.
func NormalizeAim(v geometry.Vector2D) (geometry.Vector2D, bool) {
	if !IsValidAim(v) {
		return v, false
	}
	if math.Abs(v.Length()-1) > unitTolerance {
		v = v.Normalize()
	}
	return v, true
}

func SanitizeCommand(cmd world.Command) (world.Command, error) {
	if !cmd.Moving.Valid() {
		return cmd, fmt.Errorf("unknown movement %q", cmd.Moving)
	}
	if !cmd.Fire.Valid() {
		return cmd, fmt.Errorf("unknown fire mode %q", cmd.Fire)
	}

	aim, ok := NormalizeAim(cmd.Aim)
	if !ok {
		return cmd, fmt.Errorf("invalid aim %v", cmd.Aim)
	}
	cmd.Aim = aim
	return cmd, nil
}

func IsValidName(name string) bool {
	n := utf8.RuneCountInString(name)
	return n > 0 && n <= MaxNameLen
}

func IsValidWall(w world.Wall) bool {
	if !w.P1.IsFinite() || !w.P2.IsFinite() {
		return false
	}
	return w.Vertical() || w.Horizontal()
}

func IsValidHP(hp, max int) bool {
	return hp >= 0 && hp <= max
}
