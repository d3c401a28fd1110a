// Command optimize runs CMA-ES over the reference strategy gains, scoring each
// candidate by playing it against the baseline gains.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/robosim/config"
)

// evalLog writes one optimize_log.csv row per evaluation and remembers the
// best clamped gains.
type evalLog struct {
	params *ParamVector
	w      *csv.Writer
	count  int
	best   float64
	bestX  []float64
}

func newEvalLog(w io.Writer, params *ParamVector) (*evalLog, error) {
	l := &evalLog{params: params, w: csv.NewWriter(w), best: math.Inf(1)}
	header := []string{"eval", "fitness", "territory"}
	for _, spec := range params.Specs {
		header = append(header, spec.Name)
	}
	if err := l.w.Write(header); err != nil {
		return nil, fmt.Errorf("writing log header: %w", err)
	}
	l.w.Flush()
	return l, l.w.Error()
}

// record logs a normalized candidate and its score.
func (l *evalLog) record(x []float64, fitness, territory float64) error {
	l.count++
	gains := l.params.Clamp(l.params.Denormalize(x))
	if fitness < l.best {
		l.best, l.bestX = fitness, gains
	}

	row := []string{
		strconv.Itoa(l.count),
		strconv.FormatFloat(fitness, 'f', 6, 64),
		strconv.FormatFloat(territory, 'f', 4, 64),
	}
	for _, v := range gains {
		row = append(row, strconv.FormatFloat(v, 'f', 6, 64))
	}
	if err := l.w.Write(row); err != nil {
		return err
	}
	l.w.Flush()
	return l.w.Error()
}

func main() {
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	maxTicks := flag.Int64("max-ticks", 36000, "Maximum match duration in ticks (cap)")
	seeds := flag.Int("seeds", 4, "Matches per evaluation, played in parallel")
	maxEvals := flag.Int("max-evals", 200, "Maximum number of evaluations")
	population := flag.Int("population", 0, "CMA-ES population size (0 = auto)")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if *outputDir == "" {
		slog.Error("-output is required")
		os.Exit(1)
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		slog.Error("failed to create output directory", "error", err)
		os.Exit(1)
	}
	baseCfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	params := NewParamVector()
	evalSeeds := make([]int64, *seeds)
	for i := range evalSeeds {
		evalSeeds[i] = int64(i*1000 + 42)
	}
	evaluator := NewFitnessEvaluator(params, *maxTicks, evalSeeds, baseCfg)

	logFile, err := os.Create(filepath.Join(*outputDir, "optimize_log.csv"))
	if err != nil {
		slog.Error("failed to create log file", "error", err)
		os.Exit(1)
	}
	defer logFile.Close()
	evals, err := newEvalLog(logFile, params)
	if err != nil {
		slog.Error("failed to start log", "error", err)
		os.Exit(1)
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			fitness := evaluator.Evaluate(params.Denormalize(x))
			if err := evals.record(x, fitness, evaluator.LastQuality()); err != nil {
				slog.Error("failed to write log row", "error", err)
			}
			slog.Info("evaluation",
				"eval", evals.count,
				"fitness", fitness,
				"territory", evaluator.LastQuality(),
				"best", evaluator.BestFitness(),
			)
			return fitness
		},
	}

	dim := params.Dim()
	popSize := *population
	if popSize == 0 {
		popSize = 4 + 3*dim/2
	}
	slog.Info("starting optimization", "params", dim, "population", popSize, "max_evals", *maxEvals, "seeds", *seeds)

	initX := params.Normalize(params.ExtractFromConfig(baseCfg))
	result, err := optimize.Minimize(problem, initX,
		&optimize.Settings{FuncEvaluations: *maxEvals},
		&optimize.CmaEsChol{InitStepSize: 0.3, Population: popSize},
	)
	if err != nil {
		slog.Warn("optimization ended", "error", err)
	}

	best := evals.bestX
	if best == nil && result != nil {
		best = params.Clamp(params.Denormalize(result.X))
	}
	if best == nil {
		slog.Error("no evaluation completed")
		os.Exit(1)
	}

	bestCfg := baseCfg.Clone()
	params.ApplyToConfig(bestCfg, best)
	for i, spec := range params.Specs {
		slog.Info("best gain", "path", spec.Path, "value", best[i])
	}
	out := filepath.Join(*outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(out); err != nil {
		slog.Error("failed to write best config", "error", err)
		os.Exit(1)
	}
	slog.Info("optimization complete", "evals", evals.count, "best_fitness", evals.best, "config", out)
}
