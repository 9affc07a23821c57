package lua

import (
	"log/slog"
	"math"
	"sync"

	"github.com/siohaza/tankwars/internal/world"

	"github.com/Shopify/go-lua"
)

// GameAPI exposes read access to the world to scripts. The world is bound
// only for the duration of a script call made from inside a tick.
type GameAPI struct {
	logger *slog.Logger

	mu    sync.Mutex
	world *world.World
}

func NewGameAPI(logger *slog.Logger) *GameAPI {
	if logger == nil {
		logger = slog.Default()
	}
	return &GameAPI{logger: logger}
}

// Bind makes w visible to script calls until the returned func is called.
func (api *GameAPI) Bind(w *world.World) func() {
	api.mu.Lock()
	api.world = w
	api.mu.Unlock()
	return func() {
		api.mu.Lock()
		api.world = nil
		api.mu.Unlock()
	}
}

func (api *GameAPI) current() *world.World {
	api.mu.Lock()
	defer api.mu.Unlock()
	return api.world
}

func (api *GameAPI) RegisterFunctions(vm *VM) {
	vm.RegisterFunction("log", api.log)
	vm.RegisterFunction("get_tank", api.getTank)
	vm.RegisterFunction("get_tank_name", api.getTankName)
	vm.RegisterFunction("get_tank_hp", api.getTankHP)
	vm.RegisterFunction("get_tank_score", api.getTankScore)
	vm.RegisterFunction("get_tank_count", api.getTankCount)
	vm.RegisterFunction("get_powerup_count", api.getPowerUpCount)
	vm.RegisterFunction("get_universe_size", api.getUniverseSize)
	vm.RegisterFunction("distance_2d", api.distance2D)
}

func (api *GameAPI) log(state *lua.State) int {
	msg, _ := state.ToString(1)
	api.logger.Info("lua", "message", msg)
	return 0
}

func (api *GameAPI) lookupTank(state *lua.State) (world.Tank, bool) {
	w := api.current()
	if w == nil {
		return world.Tank{}, false
	}
	id, _ := state.ToInteger(1)
	return w.Tank(id)
}

// TankTable is the Lua view of a tank.
func TankTable(t world.Tank) Table {
	return Table{
		"id":    t.ID,
		"name":  t.Name,
		"hp":    t.HP,
		"score": t.Score,
		"x":     t.Location.X,
		"y":     t.Location.Y,
		"alive": t.Alive(),
	}
}

func (api *GameAPI) getTank(state *lua.State) int {
	t, ok := api.lookupTank(state)
	if !ok {
		state.PushNil()
		return 1
	}
	if err := push(state, TankTable(t)); err != nil {
		state.PushNil()
	}
	return 1
}

func (api *GameAPI) getTankName(state *lua.State) int {
	t, ok := api.lookupTank(state)
	if !ok {
		state.PushString("")
		return 1
	}
	state.PushString(t.Name)
	return 1
}

func (api *GameAPI) getTankHP(state *lua.State) int {
	t, _ := api.lookupTank(state)
	state.PushInteger(t.HP)
	return 1
}

func (api *GameAPI) getTankScore(state *lua.State) int {
	t, _ := api.lookupTank(state)
	state.PushInteger(t.Score)
	return 1
}

func (api *GameAPI) getTankCount(state *lua.State) int {
	n := 0
	if w := api.current(); w != nil {
		n = w.TankCount()
	}
	state.PushInteger(n)
	return 1
}

func (api *GameAPI) getPowerUpCount(state *lua.State) int {
	n := 0
	if w := api.current(); w != nil {
		n = w.PowerUpCount()
	}
	state.PushInteger(n)
	return 1
}

func (api *GameAPI) getUniverseSize(state *lua.State) int {
	n := 0
	if w := api.current(); w != nil {
		n = w.Size
	}
	state.PushInteger(n)
	return 1
}

func (api *GameAPI) distance2D(state *lua.State) int {
	x1, _ := state.ToNumber(1)
	y1, _ := state.ToNumber(2)
	x2, _ := state.ToNumber(3)
	y2, _ := state.ToNumber(4)
	state.PushNumber(math.Hypot(x2-x1, y2-y1))
	return 1
}
