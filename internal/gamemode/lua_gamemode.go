package gamemode

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/siohaza/tankwars/internal/world"
	"github.com/siohaza/tankwars/pkg/config"
	"github.com/siohaza/tankwars/pkg/lua"
)

// LuaGameMode lets a script override alt effects and kill scoring. Anything
// the script leaves undefined, or gets wrong, falls back to the base mode.
type LuaGameMode struct {
	vm     *lua.VM
	api    *lua.GameAPI
	base   GameMode
	name   string
	logger *slog.Logger
}

func NewLuaGameMode(scriptPath string, base GameMode, cfg *config.Config, logger *slog.Logger) (*LuaGameMode, error) {
	if logger == nil {
		logger = slog.Default()
	}

	vm := lua.NewVM()
	api := lua.NewGameAPI(logger)
	api.RegisterFunctions(vm)

	if err := vm.SetGlobalTable("settings", settingsTable(cfg)); err != nil {
		vm.Close()
		return nil, fmt.Errorf("failed to publish settings: %w", err)
	}

	if err := vm.LoadFile(scriptPath); err != nil {
		vm.Close()
		return nil, fmt.Errorf("failed to load gamemode script: %w", err)
	}

	name, err := vm.GetGlobalString("name")
	if err != nil {
		name = "lua_" + base.Name()
	}

	gm := &LuaGameMode{
		vm:     vm,
		api:    api,
		base:   base,
		name:   name,
		logger: logger,
	}

	if vm.HasFunction("on_init") {
		if err := vm.CallFunction("on_init"); err != nil {
			vm.Close()
			return nil, fmt.Errorf("failed to call on_init: %w", err)
		}
	}

	logger.Info("loaded lua game mode", "path", scriptPath, "mode", name, "base", base.Name())
	return gm, nil
}

func settingsTable(cfg *config.Config) lua.Table {
	return lua.Table{
		"mode":            cfg.Game.Mode,
		"universe_size":   cfg.Game.UniverseSize,
		"starting_hp":     cfg.Game.StartingHP,
		"frames_per_shot": cfg.Game.FramesPerShot,
		"respawn_rate":    cfg.Game.RespawnRate,
		"max_powerups":    cfg.Game.MaxPowerUps,
	}
}

func (gm *LuaGameMode) Name() string {
	return gm.name
}

func (gm *LuaGameMode) AltEffect(w *world.World, rng *rand.Rand, t world.Tank) Effect {
	fallback := func() Effect { return gm.base.AltEffect(w, rng, t) }

	if !gm.vm.HasFunction("alt_effect") {
		return fallback()
	}

	unbind := gm.api.Bind(w)
	results, err := gm.vm.CallFunctionWithReturn("alt_effect", 1, t.ID, lua.TankTable(t))
	unbind()
	if err != nil {
		gm.logger.Error("lua gamemode alt_effect error", "error", err)
		return fallback()
	}

	name, ok := results[0].(string)
	if !ok {
		return fallback()
	}
	effect, err := ParseEffect(name)
	if err != nil {
		gm.logger.Warn("lua gamemode returned bad effect", "effect", name)
		return fallback()
	}
	return effect
}

func (gm *LuaGameMode) OnKill(w *world.World, killer, victim world.Tank) int {
	fallback := func() int { return gm.base.OnKill(w, killer, victim) }

	if !gm.vm.HasFunction("on_kill") {
		return fallback()
	}

	unbind := gm.api.Bind(w)
	results, err := gm.vm.CallFunctionWithReturn("on_kill", 1, killer.ID, victim.ID, lua.TankTable(killer), lua.TankTable(victim))
	unbind()
	if err != nil {
		gm.logger.Error("lua gamemode on_kill error", "error", err)
		return fallback()
	}

	points, ok := results[0].(float64)
	if !ok {
		return fallback()
	}
	return int(points)
}

func (gm *LuaGameMode) Close() {
	if gm.vm != nil {
		gm.vm.Close()
	}
	gm.base.Close()
}
