// Package luart wraps gopher-lua for single-threaded embedding with
// host-declared safe points.
//
// gopher-lua has no debug-hook API, so the runtime cannot interrupt a
// chunk mid-instruction. Instead the host declares safe points: hooks
// registered with AddHook run at chunk boundaries and every N abstract
// steps, where a step is a Lua-to-Go boundary crossing reported through
// Step by the native modules. Asynchronous work (signal dispatch, script
// interruption) only ever happens inside those hooks, never while the
// interpreter's internal state may be mid-mutation.
//
// The LState is not goroutine-safe; all methods except Interrupt must be
// called from the goroutine that owns the runtime.
package luart
