package game

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/robosim/config"
	"github.com/pthm-cable/robosim/kinematics"
	"github.com/pthm-cable/robosim/referee"
	"github.com/pthm-cable/robosim/sandbox"
	"github.com/pthm-cable/robosim/systems"
	"github.com/pthm-cable/robosim/telemetry"
	"github.com/pthm-cable/robosim/vision"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func loadConfig(t *testing.T, mode string) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	cfg.Match.Mode = mode
	return cfg
}

func newMatch(t *testing.T, opts Options) *Match {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = quiet
	}
	m, err := NewMatch(opts)
	if err != nil {
		t.Fatalf("NewMatch: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

type tracerFunc func(robot systems.RobotID, tick int64, rec map[string]any)

func (f tracerFunc) Trace(robot systems.RobotID, tick int64, rec map[string]any) {
	f(robot, tick, rec)
}

func forward() sandbox.Controller {
	return sandbox.Func(func(vision.WorldState, *sandbox.Cell) (systems.Action, error) {
		return systems.Action{Motors: kinematics.Mix(kinematics.Twist{Vx: 1})}, nil
	})
}

func TestModesCreateSlotRobots(t *testing.T) {
	tests := []struct {
		mode string
		want []Slot
	}{
		{"single_bot", []Slot{SlotBlueAttacker}},
		{"single_team", []Slot{SlotBlueAttacker, SlotBlueDefender}},
		{"two_team", []Slot{SlotBlueAttacker, SlotBlueDefender, SlotYellowAttacker, SlotYellowDefender}},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			m := newMatch(t, Options{Config: loadConfig(t, tt.mode)})
			f := m.Frame()
			if len(f.Robots) != len(tt.want) {
				t.Fatalf("robots = %d, want %d", len(f.Robots), len(tt.want))
			}
			for i, slot := range tt.want {
				r := f.Robots[i]
				if r.ID != systems.RobotID(i) || r.Team != slot.Team() || r.Role != slot.Role() {
					t.Errorf("robot %d = %v %v %v, want %v", i, r.ID, r.Team, r.Role, slot)
				}
			}
			if f.Phase != referee.PhaseKickoff || !f.HasBall {
				t.Errorf("phase %v has ball %v, want kickoff with ball", f.Phase, f.HasBall)
			}
		})
	}
}

func TestNewMatchErrors(t *testing.T) {
	t.Run("unknown strategy", func(t *testing.T) {
		_, err := NewMatch(Options{
			Logger:     quiet,
			Strategies: map[Slot]string{SlotBlueAttacker: "striker"},
		})
		if !errors.Is(err, sandbox.ErrNoStrategy) {
			t.Fatalf("err = %v, want ErrNoStrategy", err)
		}
		if !strings.Contains(err.Error(), "blue_attacker") {
			t.Errorf("error %q does not name the slot", err)
		}
	})
	t.Run("invalid dt", func(t *testing.T) {
		cfg := loadConfig(t, "two_team")
		cfg.Match.DT = 0
		if _, err := NewMatch(Options{Config: cfg, Logger: quiet}); err == nil {
			t.Fatal("expected config error")
		}
	})
	t.Run("unknown mode", func(t *testing.T) {
		cfg := loadConfig(t, "three_team")
		_, err := NewMatch(Options{Config: cfg, Logger: quiet})
		if !errors.Is(err, config.ErrUnknownMode) {
			t.Fatalf("err = %v, want ErrUnknownMode", err)
		}
	})
}

func TestSingleBotKicksOffImmediately(t *testing.T) {
	m := newMatch(t, Options{Config: loadConfig(t, "single_bot")})
	events := m.Step()
	if m.State().Phase != referee.PhasePlaying {
		t.Fatalf("phase = %v, want playing", m.State().Phase)
	}
	found := false
	for _, e := range events {
		if e.Kind == referee.EventPlay {
			found = true
		}
	}
	if !found {
		t.Errorf("events %v lack play", events)
	}
}

func TestRobotsHeldStillUntilPlay(t *testing.T) {
	controllers := map[Slot]sandbox.Controller{}
	for _, s := range Slots(config.ModeTwoTeam) {
		controllers[s] = forward()
	}
	m := newMatch(t, Options{Config: loadConfig(t, "two_team"), Controllers: controllers})

	m.Step()
	start := m.Frame().Robots
	for i := 0; i < 20; i++ {
		m.Step()
	}
	if m.State().Phase != referee.PhaseKickoff {
		t.Fatalf("phase = %v, want kickoff", m.State().Phase)
	}
	for i, r := range m.Frame().Robots {
		if r.Pos != start[i].Pos {
			t.Errorf("robot %d moved during kickoff: %v -> %v", r.ID, start[i].Pos, r.Pos)
		}
	}

	for i := 0; i < 60; i++ {
		m.Step()
	}
	if m.State().Phase == referee.PhaseKickoff {
		t.Fatal("kickoff never ended")
	}
	moved := r2.Norm(r2.Sub(m.Frame().Robots[0].Pos, start[0].Pos))
	if moved < 1 {
		t.Errorf("blue attacker moved %.2f cm after kickoff, want > 1", moved)
	}
}

func TestStrategyFaultIsolation(t *testing.T) {
	errBroken := errors.New("broken strategy")
	controllers := map[Slot]sandbox.Controller{
		SlotBlueAttacker: sandbox.Func(func(vision.WorldState, *sandbox.Cell) (systems.Action, error) {
			return systems.Action{}, errBroken
		}),
		SlotYellowAttacker: sandbox.Func(func(vision.WorldState, *sandbox.Cell) (systems.Action, error) {
			panic("boom")
		}),
	}
	m := newMatch(t, Options{Config: loadConfig(t, "two_team"), Controllers: controllers})

	const ticks = 200
	for i := 0; i < ticks; i++ {
		m.Step()
	}
	if m.State().Phase == referee.PhaseFinished || m.Tick() != ticks {
		t.Fatalf("match stopped at tick %d in %v", m.Tick(), m.State().Phase)
	}

	f := m.Frame()
	wantFault := map[systems.RobotID]bool{0: true, 1: false, 2: true, 3: false}
	for _, r := range f.Robots {
		if r.Fault != wantFault[r.ID] {
			t.Errorf("robot %d fault = %v (%q), want %v", r.ID, r.Fault, r.Error, wantFault[r.ID])
		}
	}
	if !strings.Contains(f.Robots[0].Error, "broken strategy") {
		t.Errorf("robot 0 error = %q", f.Robots[0].Error)
	}

	if got := m.SandboxStats().Faults; got != 2*ticks {
		t.Errorf("sandbox faults = %d, want %d", got, 2*ticks)
	}
	if got := m.Summary().Faults; got != 2*ticks {
		t.Errorf("summary faults = %d, want %d", got, 2*ticks)
	}
	stats := m.RobotStats()
	if stats[0].Faults != ticks || stats[1].Faults != 0 {
		t.Errorf("robot faults = %d, %d", stats[0].Faults, stats[1].Faults)
	}

	// Faulted robots receive the neutral action.
	snap := m.Snapshot()
	if cmd := snap.Robots[0].Command; cmd != (kinematics.Twist{}) {
		t.Errorf("faulted robot command = %+v, want zero", cmd)
	}
}

func TestDeterministicDigests(t *testing.T) {
	strategies := map[Slot]string{
		SlotYellowAttacker: "js:attacker",
		SlotYellowDefender: "js:defender",
	}
	run := func(seed int64) []uint64 {
		m := newMatch(t, Options{Config: loadConfig(t, "two_team"), Seed: seed, Strategies: strategies})
		digests := []uint64{m.Frame().Digest}
		for i := 0; i < 400; i++ {
			m.Step()
			digests = append(digests, m.Frame().Digest)
		}
		return digests
	}

	a, b := run(11), run(11)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("digest diverged at tick %d", i)
		}
	}
	if c := run(12); c[0] == a[0] {
		t.Error("different seeds produced the same kickoff")
	}
}

func TestRunUntilFinished(t *testing.T) {
	cfg := loadConfig(t, "single_bot")
	cfg.Match.HalfDuration = 2
	cfg.Match.Halves = 1
	m := newMatch(t, Options{Config: cfg})

	s, err := m.Run(context.Background(), 100000)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if m.State().Phase != referee.PhaseFinished {
		t.Fatalf("phase = %v, want finished", m.State().Phase)
	}
	if s.Ticks != m.Tick() || s.Ticks >= 100000 || s.Mode != "single_bot" {
		t.Errorf("summary = %+v", s)
	}

	tick := m.Tick()
	if events := m.Step(); events != nil || m.Tick() != tick {
		t.Error("finished match advanced")
	}
}

func TestRunStopsAtMaxTicksAndCancel(t *testing.T) {
	m := newMatch(t, Options{})
	if _, err := m.Run(context.Background(), 30); err != nil {
		t.Fatal(err)
	}
	if m.Tick() != 30 {
		t.Errorf("tick = %d, want 30", m.Tick())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Run(ctx, 60); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if m.Tick() != 30 {
		t.Errorf("cancelled run advanced to %d", m.Tick())
	}
}

func TestSetModeRebuildsRobots(t *testing.T) {
	m := newMatch(t, Options{Config: loadConfig(t, "two_team")})
	for i := 0; i < 10; i++ {
		m.Step()
	}
	if err := m.SetMode(config.ModeSingleBot); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	f := m.Frame()
	if len(f.Robots) != 1 || m.Mode() != config.ModeSingleBot {
		t.Fatalf("robots = %d mode = %v", len(f.Robots), m.Mode())
	}
	if f.Tick != 0 || f.Score != [2]int{} || f.Phase != referee.PhaseKickoff {
		t.Errorf("frame after mode change = %+v", f)
	}
}

func TestCallbacksAndTrace(t *testing.T) {
	var (
		mu     sync.Mutex
		traced []systems.RobotID
	)
	tracer := tracerFunc(func(robot systems.RobotID, tick int64, rec map[string]any) {
		mu.Lock()
		defer mu.Unlock()
		traced = append(traced, robot)
	})

	var kinds []referee.EventKind
	windows := 0
	m := newMatch(t, Options{
		Config:         loadConfig(t, "single_bot"),
		Strategies:     map[Slot]string{SlotBlueAttacker: "js:attacker"},
		Tracer:         tracer,
		StatsWindowSec: 0.5,
		EventCallback:  func(e referee.Event) { kinds = append(kinds, e.Kind) },
		StatsCallback:  func(telemetry.WindowStats) { windows++ },
	})
	for i := 0; i < 60; i++ {
		m.Step()
	}

	if len(kinds) < 2 || kinds[0] != referee.EventKickoff || kinds[1] != referee.EventPlay {
		t.Errorf("events = %v, want kickoff then play", kinds)
	}
	if windows != 2 {
		t.Errorf("stats windows = %d, want 2", windows)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(traced) != 60 || traced[0] != 0 {
		t.Errorf("trace records = %d, want 60 from robot 0", len(traced))
	}
}

func TestOutputFiles(t *testing.T) {
	dir := t.TempDir()
	m, err := NewMatch(Options{
		Config:         loadConfig(t, "two_team"),
		Logger:         quiet,
		OutputDir:      dir,
		StatsWindowSec: 0.5,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Run(context.Background(), 120); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	for _, name := range []string{"config.yaml", "telemetry.csv", "events.csv", "perf.csv", "robots.csv", "summary.csv"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
	events, err := os.ReadFile(filepath.Join(dir, "events.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(events), "kickoff") {
		t.Errorf("events.csv lacks the kickoff:\n%s", events)
	}
	summary, err := os.ReadFile(filepath.Join(dir, "summary.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(summary), m.ID.String()) {
		t.Errorf("summary.csv lacks the match id:\n%s", summary)
	}
}
