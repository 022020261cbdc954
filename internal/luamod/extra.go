package luamod

import (
	"os"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/alis-is/eli-os-extra/internal/luart"
)

// sleepSlice bounds one uninterrupted sleep so pending signals and
// interrupts are observed while a script sleeps.
const sleepSlice = 50 * time.Millisecond

// ExtraModule exposes small os conveniences to Lua as os.extra:
// sleep, chdir and cwd.
type ExtraModule struct {
	rt *luart.Runtime
}

// NewExtraModule creates the module.
func NewExtraModule(rt *luart.Runtime) *ExtraModule {
	return &ExtraModule{rt: rt}
}

// Name returns the module name.
func (m *ExtraModule) Name() string {
	return "os.extra"
}

// Install preloads the module and, when the os table exists, attaches
// sleep/chdir/cwd onto it directly.
func (m *ExtraModule) Install() {
	L := m.rt.L
	m.rt.PreloadModule(m.Name(), m.loader)
	if osTbl, ok := L.GetGlobal("os").(*lua.LTable); ok {
		L.SetField(osTbl, "sleep", L.NewFunction(m.luaSleep))
		L.SetField(osTbl, "chdir", L.NewFunction(m.luaChdir))
		L.SetField(osTbl, "cwd", L.NewFunction(m.luaCwd))
	}
}

func (m *ExtraModule) loader(L *lua.LState) int {
	mod := L.NewTable()
	L.SetField(mod, "sleep", L.NewFunction(m.luaSleep))
	L.SetField(mod, "chdir", L.NewFunction(m.luaChdir))
	L.SetField(mod, "cwd", L.NewFunction(m.luaCwd))
	L.Push(mod)
	return 1
}

// sleep(n [, divider])
//
// Sleeps n seconds, or n/divider seconds when a divider is given
// (sleep(500, 1000) sleeps half a second). The sleep is sliced so
// queued signals keep being dispatched while the script waits.
func (m *ExtraModule) luaSleep(L *lua.LState) int {
	n := float64(L.CheckNumber(1))
	divider := float64(L.OptNumber(2, 1))
	if divider <= 0 {
		L.ArgError(2, "divider must be positive")
		return 0
	}

	remaining := time.Duration(n / divider * float64(time.Second))
	for remaining > 0 {
		m.rt.Safepoint()
		slice := remaining
		if slice > sleepSlice {
			slice = sleepSlice
		}
		time.Sleep(slice)
		remaining -= slice
	}
	m.rt.Safepoint()
	return 0
}

// chdir(path)
//
// Changes the working directory. Returns nothing on success,
// (nil, message) on failure.
func (m *ExtraModule) luaChdir(L *lua.LState) int {
	m.rt.Step(1)
	path := L.CheckString(1)
	if err := os.Chdir(path); err != nil {
		return pushError(L, err)
	}
	return 0
}

// cwd() -> string
//
// Returns the working directory, or (nil, message) on failure.
func (m *ExtraModule) luaCwd(L *lua.LState) int {
	m.rt.Step(1)
	dir, err := os.Getwd()
	if err != nil {
		return pushError(L, err)
	}
	L.Push(lua.LString(dir))
	return 1
}
