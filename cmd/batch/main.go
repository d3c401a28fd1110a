// Command batch plays many headless matches in parallel and writes one
// summary row per match.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/robosim/config"
	"github.com/pthm-cable/robosim/game"
	"github.com/pthm-cable/robosim/telemetry"
)

// batchOptions configures a batch run.
type batchOptions struct {
	Config     *config.Config
	Matches    int
	Parallel   int
	MaxTicks   int64
	BaseSeed   int64
	Strategies map[game.Slot]string
	OutputDir  string // per-match CSV output under <dir>/seed_<n> when set
}

// runBatch plays opts.Matches matches with consecutive seeds and returns their
// summaries in seed order. The first failing match cancels the rest.
func runBatch(ctx context.Context, opts batchOptions) ([]telemetry.Summary, error) {
	summaries := make([]telemetry.Summary, opts.Matches)
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Parallel, 1))
	for i := range opts.Matches {
		seed := opts.BaseSeed + int64(i)
		g.Go(func() error {
			matchOpts := game.Options{
				Config:     opts.Config,
				Seed:       seed,
				Strategies: opts.Strategies,
				Logger:     quiet,
			}
			if opts.OutputDir != "" {
				matchOpts.OutputDir = filepath.Join(opts.OutputDir, fmt.Sprintf("seed_%d", seed))
			}
			m, err := game.NewMatch(matchOpts)
			if err != nil {
				return fmt.Errorf("match %d: %w", i, err)
			}

			s, runErr := m.Run(ctx, opts.MaxTicks)
			if err := m.Close(); err != nil {
				slog.Error("failed to write match output", "match", m.ID.String(), "error", err)
			}
			if runErr != nil {
				return runErr
			}
			summaries[i] = s
			slog.Info("match done",
				"index", i,
				"seed", seed,
				"score_blue", s.ScoreBlue,
				"score_yellow", s.ScoreYellow,
				"winner", s.Winner,
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

// aggregate logs win counts and goal statistics across summaries.
func aggregate(summaries []telemetry.Summary) map[string]int {
	wins := map[string]int{"blue": 0, "yellow": 0, "draw": 0}
	blue := make([]float64, len(summaries))
	yellow := make([]float64, len(summaries))
	for i, s := range summaries {
		wins[s.Winner]++
		blue[i] = float64(s.ScoreBlue)
		yellow[i] = float64(s.ScoreYellow)
	}
	if len(summaries) > 0 {
		slog.Info("batch summary",
			"matches", len(summaries),
			"blue_wins", wins["blue"],
			"yellow_wins", wins["yellow"],
			"draws", wins["draw"],
			"blue_goals_mean", stat.Mean(blue, nil),
			"yellow_goals_mean", stat.Mean(yellow, nil),
		)
	}
	return wins
}

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	mode := flag.String("mode", "", "Match mode (empty = use config)")
	matches := flag.Int("matches", 8, "Number of matches to play")
	parallel := flag.Int("parallel", runtime.NumCPU(), "Matches to run at once")
	maxTicks := flag.Int64("max-ticks", 0, "Stop each match after N ticks (0 = until it finishes)")
	seed := flag.Int64("seed", 1, "Seed of the first match; later matches count up")
	outputDir := flag.String("output-dir", "", "Directory for summary.csv and per-match output")
	blueAttacker := flag.String("blue-attacker", "", "Blue attacker strategy")
	blueDefender := flag.String("blue-defender", "", "Blue defender strategy")
	yellowAttacker := flag.String("yellow-attacker", "", "Yellow attacker strategy")
	yellowDefender := flag.String("yellow-defender", "", "Yellow defender strategy")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *mode != "" {
		cfg.Match.Mode = *mode
		if err := cfg.Finalize(); err != nil {
			slog.Error("invalid mode", "error", err)
			os.Exit(1)
		}
	}
	if *maxTicks == 0 && cfg.Match.HalfDuration <= 0 {
		slog.Error("unlimited halves need -max-ticks")
		os.Exit(1)
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

	batchID := uuid.New()
	dir := ""
	if *outputDir != "" {
		dir = filepath.Join(*outputDir, batchID.String())
		if err := os.MkdirAll(dir, 0755); err != nil {
			slog.Error("failed to create output directory", "error", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	slog.Info("starting batch",
		"batch", batchID.String(),
		"matches", *matches,
		"parallel", *parallel,
		"mode", cfg.Derived.Mode.String(),
	)
	start := time.Now()
	summaries, err := runBatch(ctx, batchOptions{
		Config:     cfg,
		Matches:    *matches,
		Parallel:   *parallel,
		MaxTicks:   *maxTicks,
		BaseSeed:   *seed,
		Strategies: strategies,
		OutputDir:  dir,
	})
	if err != nil {
		slog.Error("batch failed", "error", err)
		os.Exit(1)
	}
	aggregate(summaries)

	if dir != "" {
		f, err := os.Create(filepath.Join(dir, "summary.csv"))
		if err != nil {
			slog.Error("failed to create summary", "error", err)
			os.Exit(1)
		}
		defer f.Close()
		if err := gocsv.MarshalFile(&summaries, f); err != nil {
			slog.Error("failed to write summary", "error", err)
			os.Exit(1)
		}
	}
	slog.Info("batch finished", "batch", batchID.String(), "wall_time", time.Since(start).Round(time.Millisecond).String())
}
