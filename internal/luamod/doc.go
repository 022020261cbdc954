// Package luamod provides the Lua-facing modules of the runtime.
//
// Two modules are exposed, mirroring the surface scripts see as
// os.signal and os.extra:
//
//	local signal = require("os.signal")
//	signal.handle(signal.SIGTERM, function(signum, from_console)
//	    print("terminating")
//	end)
//	signal.raise(signal.SIGTERM)
//
// Module functions report OS-level failures in the (nil, message) pair
// convention; argument errors are raised immediately, before any OS
// state is touched.
package luamod
