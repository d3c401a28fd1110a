package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/pthm-cable/robosim/config"
	"github.com/pthm-cable/robosim/game"
	"github.com/pthm-cable/robosim/telemetry"
)

func shortConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	cfg.Match.Mode = "single_bot"
	cfg.Match.HalfDuration = 1
	cfg.Match.Halves = 1
	return cfg
}

func TestRunBatchSeedsInOrder(t *testing.T) {
	dir := t.TempDir()
	summaries, err := runBatch(context.Background(), batchOptions{
		Config:    shortConfig(t),
		Matches:   3,
		Parallel:  2,
		MaxTicks:  10000,
		BaseSeed:  5,
		OutputDir: dir,
	})
	if err != nil {
		t.Fatalf("runBatch: %v", err)
	}
	if len(summaries) != 3 {
		t.Fatalf("summaries = %d, want 3", len(summaries))
	}
	ids := map[string]bool{}
	for i, s := range summaries {
		if s.Seed != int64(5+i) {
			t.Errorf("summary %d seed = %d, want %d", i, s.Seed, 5+i)
		}
		if s.Mode != "single_bot" || s.Ticks == 0 {
			t.Errorf("summary %d = %+v", i, s)
		}
		ids[s.MatchID] = true
		if _, err := os.Stat(filepath.Join(dir, "seed_"+strconv.Itoa(5+i), "summary.csv")); err != nil {
			t.Errorf("match %d output: %v", i, err)
		}
	}
	if len(ids) != 3 {
		t.Errorf("match ids not unique: %v", ids)
	}
}

func TestRunBatchBadStrategy(t *testing.T) {
	_, err := runBatch(context.Background(), batchOptions{
		Config:     shortConfig(t),
		Matches:    2,
		Parallel:   1,
		BaseSeed:   1,
		Strategies: map[game.Slot]string{game.SlotBlueAttacker: "nope"},
	})
	if err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}

func TestRunBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := runBatch(ctx, batchOptions{
		Config:   shortConfig(t),
		Matches:  2,
		Parallel: 2,
		BaseSeed: 1,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestAggregateCountsWinners(t *testing.T) {
	wins := aggregate([]telemetry.Summary{
		{Winner: "blue", ScoreBlue: 2},
		{Winner: "blue", ScoreBlue: 1},
		{Winner: "draw"},
		{Winner: "yellow", ScoreYellow: 3},
	})
	if wins["blue"] != 2 || wins["yellow"] != 1 || wins["draw"] != 1 {
		t.Errorf("wins = %v", wins)
	}
}
