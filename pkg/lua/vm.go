package lua

import (
	"fmt"
	"sync"

	"github.com/Shopify/go-lua"
)

// VM is a sandboxed Lua state. Calls are serialized; the underlying state is
// not safe for concurrent use.
type VM struct {
	state *lua.State
	mu    sync.Mutex
}

func NewVM() *VM {
	state := lua.NewState()
	openSafeLibraries(state)
	return &VM{state: state}
}

func openSafeLibraries(state *lua.State) {
	lua.OpenLibraries(state)

	for _, name := range []string{"io", "os", "debug", "dofile", "loadfile", "require"} {
		state.PushNil()
		state.SetGlobal(name)
	}
}

func (vm *VM) LoadFile(path string) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if err := lua.DoFile(vm.state, path); err != nil {
		return fmt.Errorf("failed to load lua file %s: %w", path, err)
	}
	return nil
}

func (vm *VM) LoadString(code string) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if err := lua.DoString(vm.state, code); err != nil {
		return fmt.Errorf("failed to load lua string: %w", err)
	}
	return nil
}

func (vm *VM) Close() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.state.SetTop(0)
}

func (vm *VM) GetGlobalString(name string) (string, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	vm.state.Global(name)
	defer vm.state.Pop(1)
	if !vm.state.IsString(-1) {
		return "", fmt.Errorf("global %s is not a string", name)
	}
	value, _ := vm.state.ToString(-1)
	return value, nil
}

func (vm *VM) GetGlobalNumber(name string) (float64, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	vm.state.Global(name)
	defer vm.state.Pop(1)
	if !vm.state.IsNumber(-1) {
		return 0, fmt.Errorf("global %s is not a number", name)
	}
	value, _ := vm.state.ToNumber(-1)
	return value, nil
}

func (vm *VM) HasFunction(name string) bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	vm.state.Global(name)
	isFunc := vm.state.IsFunction(-1)
	vm.state.Pop(1)
	return isFunc
}

func (vm *VM) CallFunction(name string, args ...any) error {
	_, err := vm.CallFunctionWithReturn(name, 0, args...)
	return err
}

// CallFunctionWithReturn calls a global function and converts its results to
// string, float64, bool or nil.
func (vm *VM) CallFunctionWithReturn(name string, numReturns int, args ...any) ([]any, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	vm.state.Global(name)
	if !vm.state.IsFunction(-1) {
		vm.state.Pop(1)
		return nil, fmt.Errorf("global %s is not a function", name)
	}

	for _, arg := range args {
		if err := push(vm.state, arg); err != nil {
			vm.state.SetTop(0)
			return nil, err
		}
	}

	if err := vm.state.ProtectedCall(len(args), numReturns, 0); err != nil {
		vm.state.SetTop(0)
		return nil, fmt.Errorf("[Lua Error] function %s: %w", name, err)
	}

	results := make([]any, numReturns)
	for i := range numReturns {
		idx := i - numReturns
		switch {
		case vm.state.IsNil(idx):
			results[i] = nil
		case vm.state.TypeOf(idx) == lua.TypeString:
			value, _ := vm.state.ToString(idx)
			results[i] = value
		case vm.state.IsNumber(idx):
			value, _ := vm.state.ToNumber(idx)
			results[i] = value
		case vm.state.IsBoolean(idx):
			results[i] = vm.state.ToBoolean(idx)
		}
	}
	vm.state.Pop(numReturns)

	return results, nil
}

// Table is pushed to Lua as a table with string keys.
type Table map[string]any

func push(state *lua.State, arg any) error {
	switch v := arg.(type) {
	case nil:
		state.PushNil()
	case string:
		state.PushString(v)
	case int:
		state.PushInteger(v)
	case float64:
		state.PushNumber(v)
	case bool:
		state.PushBoolean(v)
	case Table:
		state.CreateTable(0, len(v))
		for key, value := range v {
			if err := push(state, value); err != nil {
				return err
			}
			state.SetField(-2, key)
		}
	default:
		return fmt.Errorf("unsupported argument type: %T", arg)
	}
	return nil
}

func (vm *VM) RegisterFunction(name string, fn lua.Function) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.state.Register(name, fn)
}

// SetGlobalTable publishes a read-only snapshot of values as a global table.
func (vm *VM) SetGlobalTable(name string, values Table) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if err := push(vm.state, values); err != nil {
		vm.state.SetTop(0)
		return err
	}
	vm.state.SetGlobal(name)
	return nil
}
