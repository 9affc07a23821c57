package gamemode

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/siohaza/tankwars/internal/world"
	"github.com/siohaza/tankwars/pkg/config"
)

// Effect is what an alt-fire charge does when spent.
type Effect int

const (
	EffectBeam Effect = iota
	EffectHeal
	EffectSpeed
)

func (e Effect) String() string {
	switch e {
	case EffectBeam:
		return "beam"
	case EffectHeal:
		return "heal"
	case EffectSpeed:
		return "speed"
	default:
		return "unknown"
	}
}

func ParseEffect(s string) (Effect, error) {
	switch s {
	case "beam":
		return EffectBeam, nil
	case "heal":
		return EffectHeal, nil
	case "speed":
		return EffectSpeed, nil
	default:
		return EffectBeam, fmt.Errorf("unknown effect %q", s)
	}
}

// GameMode decides alt-fire effects and kill scoring. Methods are called from
// the tick with the world locked.
type GameMode interface {
	Name() string
	AltEffect(w *world.World, rng *rand.Rand, t world.Tank) Effect
	OnKill(w *world.World, killer, victim world.Tank) int
	Close()
}

type BaseGameMode struct {
	name string
}

func (b *BaseGameMode) Name() string {
	return b.name
}

func (b *BaseGameMode) OnKill(w *world.World, killer, victim world.Tank) int {
	return 1
}

func (b *BaseGameMode) Close() {}

// BasicMode spends every alt charge on a beam.
type BasicMode struct {
	BaseGameMode
}

func NewBasicMode() *BasicMode {
	return &BasicMode{BaseGameMode{name: config.ModeBasic}}
}

func (m *BasicMode) AltEffect(w *world.World, rng *rand.Rand, t world.Tank) Effect {
	return EffectBeam
}

// ExtraMode picks heal, speed boost or beam uniformly.
type ExtraMode struct {
	BaseGameMode
}

func NewExtraMode() *ExtraMode {
	return &ExtraMode{BaseGameMode{name: config.ModeExtra}}
}

func (m *ExtraMode) AltEffect(w *world.World, rng *rand.Rand, t world.Tank) Effect {
	switch rng.Intn(3) {
	case 0:
		return EffectHeal
	case 1:
		return EffectSpeed
	default:
		return EffectBeam
	}
}

// New selects the mode named in the config, wrapping it in a Lua mode when a
// script is configured.
func New(cfg *config.Config, logger *slog.Logger) (GameMode, error) {
	mode, err := config.ParseMode(cfg.Game.Mode)
	if err != nil {
		return nil, fmt.Errorf("invalid game mode: %w", err)
	}

	var base GameMode
	switch mode {
	case config.ModeExtra:
		base = NewExtraMode()
	default:
		base = NewBasicMode()
	}

	if cfg.Game.Script == "" {
		return base, nil
	}

	gm, err := NewLuaGameMode(cfg.Game.Script, base, cfg, logger)
	if err != nil {
		return nil, err
	}
	return gm, nil
}
