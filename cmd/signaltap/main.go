// SignalTap - PLC Tag Scanner
//
// A text user interface for discovering the tags of a PLC through its HTTP
// backend, watching their values, and republishing them to MQTT, Valkey and
// Kafka.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"signaltap/config"
	"signaltap/engine"
	"signaltap/logging"
	"signaltap/plcman"
	"signaltap/simulator"
	"signaltap/tui"
)

// Version is set at build time via -ldflags
var Version = "dev"

// Command line flags
var (
	configPath     = flag.String("config", config.DefaultPath(), "Path to configuration file")
	envFile        = flag.String("env", "", "Path to .env file (default: ./.env when present)")
	apiURL         = flag.String("api", "", "Backend API base URL (overrides config)")
	plcIP          = flag.String("ip", "", "PLC IP address (overrides config)")
	plcSlot        = flag.Int("slot", -1, "PLC slot (overrides config)")
	pollRate       = flag.Duration("poll", 0, "Value poll interval (overrides config)")
	noTUI          = flag.Bool("no-tui", false, "Disable the TUI (headless mode)")
	once           = flag.Bool("once", false, "Scan, read once, print a table and exit")
	filterText     = flag.String("filter", "", "Filter text for -once output")
	hideUnreadable = flag.Bool("hide-unreadable", false, "Hide unreadable tags")
	tagTypes       = flag.String("types", "", "Comma-separated tag types to show (default: config)")
	simulate       = flag.Bool("simulate", false, "Start a built-in simulated backend and use it")
	logFile        = flag.String("log", "", "Path to log file (optional)")
	logDebug       = flag.String("log-debug", "", "Enable debug logging to debug.log (optional component filter)")
	showVersion    = flag.Bool("version", false, "Show version and exit")
)

// withLogDebugDefault turns a bare -log-debug into -log-debug all.
func withLogDebugDefault(args []string) []string {
	for i, arg := range args {
		if arg != "--log-debug" && arg != "-log-debug" {
			continue
		}
		if i+1 >= len(args) || strings.HasPrefix(args[i+1], "-") {
			out := make([]string, 0, len(args)+1)
			out = append(out, args[:i+1]...)
			out = append(out, "all")
			return append(out, args[i+1:]...)
		}
		return args
	}
	return args
}

// splitTypes parses the -types flag.
func splitTypes(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func main() {
	os.Exit(runMain())
}

// runMain returns the process exit code so deferred cleanup runs.
func runMain() int {
	os.Args = append(os.Args[:1], withLogDebugDefault(os.Args[1:])...)
	flag.Parse()

	if *showVersion {
		fmt.Printf("signaltap %s\n", Version)
		return 0
	}

	if err := config.LoadEnvFile(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading env file: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 1
	}
	if err := cfg.ApplyEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error in environment: %v\n", err)
		return 1
	}
	applyFlags(cfg)

	ring := logging.NewRing(1000)
	fileLogger, debugLogger := setupLogging(cfg, ring)
	defer func() {
		if fileLogger != nil {
			fileLogger.Close()
		}
		debugLogger.Close()
	}()

	// Simulated backend
	var sim *simulator.Server
	if *simulate {
		sim = simulator.NewServer(simulator.NewPLC())
		if err := sim.Start("127.0.0.1:0"); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting simulator: %v\n", err)
			return 1
		}
		defer sim.Stop()
		cfg.API.BaseURL = sim.BaseURL()
		if cfg.Target.Address == "" {
			cfg.Target.Address = "192.168.1.10"
		}
		if *noTUI || *once {
			fmt.Printf("Simulated backend at %s\n", cfg.API.BaseURL)
		}
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 1
	}

	if *once {
		return runOnce(cfg, os.Stdout)
	}

	// the simulator address must not end up in the config file
	savePath := *configPath
	if *simulate {
		savePath = ""
	}
	return run(cfg, savePath, ring, fileLogger, *noTUI)
}

// applyFlags overrides config fields from flags (in memory only).
func applyFlags(cfg *config.Config) {
	if *apiURL != "" {
		cfg.API.BaseURL = *apiURL
	}
	if *plcIP != "" {
		cfg.Target.Address = *plcIP
	}
	if *plcSlot >= 0 {
		cfg.Target.Slot = *plcSlot
	}
	if *pollRate > 0 {
		cfg.PollRate = *pollRate
	}
	if *hideUnreadable {
		cfg.UI.HideUnreadable = true
	}
	if types := splitTypes(*tagTypes); len(types) > 0 {
		cfg.UI.TagTypes = types
	}
	if *logFile != "" {
		cfg.Log.File = *logFile
	}
}

// setupLogging opens the file and debug logs. The debug logger always exists
// so the ring hook feeding the Log page fires even without a debug file.
func setupLogging(cfg *config.Config, ring *logging.Ring) (*logging.FileLogger, *logging.DebugLogger) {
	var fileLogger *logging.FileLogger
	if cfg.Log.File != "" {
		fl, err := logging.NewFileLogger(cfg.Log.File)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to open log file: %v\n", err)
		} else {
			fileLogger = fl
		}
	}

	debugPath, filter := cfg.Log.DebugFile, cfg.Log.DebugFilter
	if *logDebug != "" {
		if debugPath == "" {
			debugPath = "debug.log"
		}
		filter = *logDebug
		if filter == "all" || filter == "true" || filter == "1" {
			filter = ""
		}
	}

	debugLogger, err := logging.NewDebugLogger(debugPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to open debug log: %v\n", err)
		debugLogger, _ = logging.NewDebugLogger("")
		debugPath = ""
	}
	debugLogger.SetFilter(filter)
	debugLogger.AddHook(ring)
	logging.SetGlobalDebugLogger(debugLogger)

	if debugPath != "" {
		if filter == "" {
			logging.DebugLog("config", "Debug logging enabled (all components) - writing to %s", debugPath)
		} else {
			logging.DebugLog("config", "Debug logging enabled (filter: %s) - writing to %s", filter, debugPath)
		}
	}
	return fileLogger, debugLogger
}

// run is the startup flow shared by TUI and headless modes. It returns the
// process exit code.
func run(cfg *config.Config, savePath string, ring *logging.Ring, fileLogger *logging.FileLogger, headless bool) int {
	logFn := func(format string, args ...interface{}) {
		if fileLogger != nil {
			fileLogger.Log(format, args...)
		}
		logging.DebugLog("engine", format, args...)
		if headless {
			fmt.Printf("%s %s\n", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
		}
	}

	eng := engine.New(engine.Config{
		AppConfig:     cfg,
		ConfigPath:    savePath,
		LogFunc:       logFn,
		StartServices: true,
	})
	eng.Start()

	if headless {
		return runHeadless(eng, cfg)
	}

	// Keep runtime errors (data races, panics) from corrupting the terminal.
	stderrPath := filepath.Join(filepath.Dir(*configPath), "signaltap-crash.log")
	if f, err := os.OpenFile(stderrPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
		redirectStderr(f)
		defer f.Close()
	}

	app := tui.NewApp(eng, ring)
	if cfg.Target.Address != "" && (*plcIP != "" || *simulate) {
		eng.SubmitScan(plcman.Target{Address: cfg.Target.Address, Slot: cfg.Target.Slot})
	}
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	app.Shutdown()
	return 0
}

// runHeadless scans the configured target, then logs each poll until
// interrupted.
func runHeadless(eng *engine.Engine, cfg *config.Config) int {
	defer eng.Stop()

	target := plcman.Target{Address: cfg.Target.Address, Slot: cfg.Target.Slot}
	if target.Address == "" {
		fmt.Fprintf(os.Stderr, "Error: no PLC address. Use -ip or %s.\n", config.EnvPLCIP)
		return 2
	}

	eng.Events.SubscribeTypes(func(e engine.Event) {
		switch p := e.Payload.(type) {
		case engine.ValuesEvent:
			if e.Type == engine.EventPollFailed {
				fmt.Printf("%s read failed: %s\n", e.Timestamp.Format("15:04:05"), p.Error)
				return
			}
			fmt.Printf("%s read %d values, %d published\n", e.Timestamp.Format("15:04:05"), p.Count, p.Published)
		}
	}, engine.EventValuesUpdated, engine.EventPollFailed)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.API.Timeout+5*time.Second)
	err := eng.Scan(ctx, target)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Println("Running in headless mode. Press Ctrl+C to stop.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	fmt.Printf("\nReceived %v, shutting down...\n", sig)

	done := make(chan struct{})
	go func() {
		eng.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}

	fmt.Println("Stopped")
	return 0
}
