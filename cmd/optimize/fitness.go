package main

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pthm-cable/robosim/components"
	"github.com/pthm-cable/robosim/config"
	"github.com/pthm-cable/robosim/game"
	"github.com/pthm-cable/robosim/referee"
	"github.com/pthm-cable/robosim/sandbox"
	"github.com/pthm-cable/robosim/strategies"
)

// Fitness weights.
const (
	goalWeight      = 1.0
	territoryWeight = 0.5
	faultPenalty    = 0.01 // per fault per second of play

	sampleEvery = 10 // ticks between ball position samples
)

// FitnessEvaluator plays tuned blue strategies against baseline yellow ones
// and scores the result.
type FitnessEvaluator struct {
	params     *ParamVector
	maxTicks   int64
	seeds      []int64
	baseConfig *config.Config
	logger     *slog.Logger

	// Best run tracking
	mu          sync.Mutex
	bestFitness float64
	lastQuality float64 // territory from most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, maxTicks int64, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		maxTicks:    maxTicks,
		seeds:       seeds,
		baseConfig:  baseCfg,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		bestFitness: math.Inf(1),
	}
}

// LastQuality returns the mean territory score from the most recent evaluation.
func (fe *FitnessEvaluator) LastQuality() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastQuality
}

// BestFitness returns the lowest fitness seen so far.
func (fe *FitnessEvaluator) BestFitness() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestFitness
}

// runResult holds the results from a single match.
type runResult struct {
	goalDiff  int
	territory float64 // mean ball depth into the yellow half, [-1, 1]
	faults    int
	simTime   float64
}

// Evaluate computes fitness for a parameter vector (lower = better).
// Matches for all seeds run in parallel; the first failure aborts the rest
// and scores the vector as infinitely bad.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]runResult, len(fe.seeds))
	g, ctx := errgroup.WithContext(context.Background())
	for i, seed := range fe.seeds {
		g.Go(func() error {
			r, err := fe.runMatch(ctx, x, seed)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		slog.Error("evaluation failed", "error", err)
		return math.Inf(1)
	}

	var totalFitness, totalQuality float64
	for _, r := range results {
		totalFitness += fe.computeFitness(r)
		totalQuality += r.territory
	}
	n := float64(len(fe.seeds))
	avgFitness := totalFitness / n

	fe.mu.Lock()
	if avgFitness < fe.bestFitness {
		fe.bestFitness = avgFitness
	}
	fe.lastQuality = totalQuality / n
	fe.mu.Unlock()

	return avgFitness
}

// runMatch plays one headless two-team match with the blue team using the
// candidate gains.
func (fe *FitnessEvaluator) runMatch(ctx context.Context, x []float64, seed int64) (runResult, error) {
	cfg := fe.baseConfig.Clone()
	cfg.Match.Mode = config.ModeTwoTeam.String()
	fe.params.ApplyToConfig(cfg, x)

	baseline := fe.baseConfig.Strategies
	m, err := game.NewMatch(game.Options{
		Config: cfg,
		Seed:   seed,
		Logger: fe.logger,
		Controllers: map[game.Slot]sandbox.Controller{
			game.SlotYellowAttacker: strategies.Attacker(baseline),
			game.SlotYellowDefender: strategies.Defender(baseline),
		},
	})
	if err != nil {
		return runResult{}, err
	}
	defer m.Close()

	halfH := cfg.Field.InnerHeight / 2
	var depthSum float64
	var samples int
	for m.State().Phase != referee.PhaseFinished && m.Tick() < fe.maxTicks {
		if err := ctx.Err(); err != nil {
			return runResult{}, err
		}
		m.Step()
		if m.Tick()%sampleEvery != 0 || m.State().Phase != referee.PhasePlaying {
			continue
		}
		if snap := m.Snapshot(); snap.HasBall {
			// Blue attacks the north goal, toward -y.
			depthSum += -snap.Ball.Pos.Y / halfH
			samples++
		}
	}

	s := m.Summary()
	r := runResult{
		goalDiff: s.ScoreBlue - s.ScoreYellow,
		simTime:  s.SimTimeSec,
	}
	if samples > 0 {
		r.territory = clampUnit(depthSum / float64(samples))
	}
	for _, rs := range m.RobotStats() {
		if rs.Team == components.Blue.String() {
			r.faults += rs.Faults
		}
	}
	return r, nil
}

// computeFitness calculates the scalar fitness (lower = better).
// Formula: -(goalDiff + 0.5 × territory) + fault penalty
// Goals dominate; territory separates candidates with the same score.
func (fe *FitnessEvaluator) computeFitness(r runResult) float64 {
	f := -(goalWeight*float64(r.goalDiff) + territoryWeight*r.territory)
	if r.simTime > 0 {
		f += faultPenalty * float64(r.faults) / r.simTime
	}
	return f
}

// clampUnit clamps x to [-1, 1].
func clampUnit(x float64) float64 {
	return math.Max(-1, math.Min(1, x))
}
