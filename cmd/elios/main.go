// Package main is the entry point for the elios script runner.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	lua "github.com/yuin/gopher-lua"

	"github.com/alis-is/eli-os-extra/internal/config"
	"github.com/alis-is/eli-os-extra/internal/logger"
	"github.com/alis-is/eli-os-extra/internal/luamod"
	"github.com/alis-is/eli-os-extra/internal/luart"
	"github.com/alis-is/eli-os-extra/internal/signal"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// exitInterrupted mirrors the conventional 128+SIGINT shell exit code.
const exitInterrupted = 130

type options struct {
	ConfigPath  string
	Eval        string
	WatchConfig bool
	Script      string
	Args        []string
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		return 1
	}

	log, closer, level := logger.Build(cfg.Log)
	defer closer.Close()

	rt := luart.NewRuntime()
	defer rt.Close()

	ch := signal.NewChannel(signal.Kind(cfg.Queue.Kind), cfg.Queue.Capacity)
	sigmod := luamod.NewSignalModule(rt, ch, log)
	sigmod.Install()
	defer sigmod.Close()
	sigmod.SetCadence(cfg.Poll.Cadence)

	luamod.NewExtraModule(rt).Install()

	if opts.WatchConfig && opts.ConfigPath != "" {
		w, err := config.Watch(opts.ConfigPath, log, func(c config.Config) {
			level.Set(logger.ParseLevel(c.Log.Level))
			sigmod.RequestCadence(c.Poll.Cadence)
		})
		if err != nil {
			log.Warn("config watcher disabled", "error", err)
		} else {
			defer w.Close()
		}
	}

	setArgTable(rt.L, opts)

	if opts.Eval != "" {
		err = rt.DoString(opts.Eval)
	} else {
		err = rt.DoFile(opts.Script)
	}
	if err != nil {
		if errors.Is(err, luart.ErrInterrupted) {
			fmt.Fprintln(os.Stderr, "interrupted!")
			return exitInterrupted
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// setArgTable publishes the script path and its arguments through the
// conventional arg global: arg[0] is the script, arg[1..n] its
// arguments.
func setArgTable(L *lua.LState, opts options) {
	tbl := L.NewTable()
	tbl.RawSetInt(0, lua.LString(opts.Script))
	for i, a := range opts.Args {
		tbl.RawSetInt(i+1, lua.LString(a))
	}
	L.SetGlobal("arg", tbl)
}

func parseFlags() options {
	var opts options
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.Eval, "e", "", "Execute the given chunk instead of a script file")
	flag.BoolVar(&opts.WatchConfig, "watch-config", false, "Reload the configuration file on change")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "elios - Lua script runner with deferred signal handling\n\n")
		fmt.Fprintf(os.Stderr, "Usage: elios [options] script.lua [args...]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  elios script.lua            Run a script\n")
		fmt.Fprintf(os.Stderr, "  elios -e 'print(1)'         Run an inline chunk\n")
		fmt.Fprintf(os.Stderr, "  elios -c eli.toml app.lua   Run with a config file\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("elios %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	args := flag.Args()
	if opts.Eval == "" {
		if len(args) == 0 {
			flag.Usage()
			os.Exit(2)
		}
		opts.Script = args[0]
		opts.Args = args[1:]
	} else {
		opts.Args = args
	}

	return opts
}
