package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/pthm-cable/robosim/config"
	"github.com/pthm-cable/robosim/game"
	"github.com/pthm-cable/robosim/sandbox"
	"github.com/pthm-cable/robosim/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	mode := flag.String("mode", "", "Match mode: single_bot, single_team or two_team (empty = use config)")
	blueAttacker := flag.String("blue-attacker", "", "Blue attacker strategy: attacker, defender, idle, js:<name> or a .js file")
	blueDefender := flag.String("blue-defender", "", "Blue defender strategy")
	yellowAttacker := flag.String("yellow-attacker", "", "Yellow attacker strategy")
	yellowDefender := flag.String("yellow-defender", "", "Yellow defender strategy")
	maxTicks := flag.Int64("max-ticks", 0, "Stop after N ticks (0 = until the match finishes)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = config, -1 = time-based)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for bookmark snapshot files")
	tracePath := flag.String("trace", "", "Write strategy trace records to this JSONL file")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	statsWindow := flag.Float64("stats-window", 0, "Stats window size in seconds (0 = use config)")
	debug := flag.Bool("debug", false, "Log routine referee decisions")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()
	if *mode != "" {
		cfg.Match.Mode = *mode
		if err := cfg.Finalize(); err != nil {
			slog.Error("invalid mode", "error", err)
			os.Exit(1)
		}
	}

	rngSeed := *seed
	if rngSeed == -1 {
		rngSeed = time.Now().UnixNano()
	}

	var tracer sandbox.Tracer
	if *tracePath != "" {
		w, err := telemetry.CreateJSONLSink(*tracePath)
		if err != nil {
			slog.Error("failed to open trace file", "error", err)
			os.Exit(1)
		}
		sink := telemetry.NewTraceSink(w, cfg.Telemetry.TraceBuffer)
		defer func() {
			if err := errors.Join(sink.Close(), w.Close()); err != nil {
				slog.Error("failed to close trace", "error", err)
			}
			slog.Info("trace closed", "written", sink.Written(), "dropped", sink.Dropped())
		}()
		tracer = sink
	}

	strategies := map[game.Slot]string{}
	for slot, ref := range map[game.Slot]string{
		game.SlotBlueAttacker:   *blueAttacker,
		game.SlotBlueDefender:   *blueDefender,
		game.SlotYellowAttacker: *yellowAttacker,
		game.SlotYellowDefender: *yellowDefender,
	} {
		if ref != "" {
			strategies[slot] = ref
		}
	}

	// Build match options
	opts := game.Options{
		Config:         cfg,
		Seed:           rngSeed,
		Strategies:     strategies,
		LogStats:       *logStats,
		StatsWindowSec: *statsWindow,
		OutputDir:      *outputDir,
		SnapshotDir:    *snapshotDir,
		Tracer:         tracer,
		Logger:         logger,
	}

	m, err := game.NewMatch(opts)
	if err != nil {
		slog.Error("failed to create match", "error", err)
		os.Exit(1)
	}

	limit := *maxTicks
	if limit == 0 && cfg.Match.HalfDuration <= 0 {
		slog.Error("unlimited halves need -max-ticks")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	slog.Info("starting headless match",
		"match", m.ID.String(),
		"mode", m.Mode().String(),
		"seed", m.Seed(),
		"max_ticks", limit,
	)

	start := time.Now()
	summary, runErr := m.Run(ctx, limit)
	if runErr != nil {
		slog.Warn("match interrupted", "tick", m.Tick(), "error", runErr)
	}
	if err := m.Close(); err != nil {
		slog.Error("failed to write output", "error", err)
	}

	slog.Info("match finished",
		"summary", summary,
		"wall_time", time.Since(start).Round(time.Millisecond).String(),
	)
}
