package game

import (
	"fmt"
	"log/slog"

	"github.com/pthm-cable/robosim/components"
	"github.com/pthm-cable/robosim/config"
	"github.com/pthm-cable/robosim/referee"
	"github.com/pthm-cable/robosim/sandbox"
	"github.com/pthm-cable/robosim/telemetry"
)

// Slot is a team and role position on the pitch. Robot ids follow slot order
// within the active mode.
type Slot uint8

const (
	SlotBlueAttacker Slot = iota
	SlotBlueDefender
	SlotYellowAttacker
	SlotYellowDefender
)

var slotNames = [...]string{"blue_attacker", "blue_defender", "yellow_attacker", "yellow_defender"}

func (s Slot) String() string {
	if int(s) < len(slotNames) {
		return slotNames[s]
	}
	return fmt.Sprintf("Slot(%d)", s)
}

// Team returns the slot's team.
func (s Slot) Team() components.Team {
	if s >= SlotYellowAttacker {
		return components.Yellow
	}
	return components.Blue
}

// Role returns the slot's role.
func (s Slot) Role() components.Role {
	if s == SlotBlueDefender || s == SlotYellowDefender {
		return components.Defender
	}
	return components.Attacker
}

// DefaultStrategy is the built-in strategy used when a slot has none.
func (s Slot) DefaultStrategy() string {
	if s.Role() == components.Defender {
		return "defender"
	}
	return "attacker"
}

// Slots returns the slots taking part in a mode, in robot id order.
func Slots(mode config.Mode) []Slot {
	switch mode {
	case config.ModeSingleBot:
		return []Slot{SlotBlueAttacker}
	case config.ModeSingleTeam:
		return []Slot{SlotBlueAttacker, SlotBlueDefender}
	}
	return []Slot{SlotBlueAttacker, SlotBlueDefender, SlotYellowAttacker, SlotYellowDefender}
}

// Options configures match creation.
type Options struct {
	Config *config.Config // nil = embedded defaults
	Seed   int64          // 0 = config match.seed

	// Strategies maps slots to strategy references understood by
	// strategies.Resolve. Controllers take precedence for the same slot.
	Strategies  map[Slot]string
	Controllers map[Slot]sandbox.Controller

	LogStats       bool    // Output periodic stats via slog
	StatsWindowSec float64 // 0 = config telemetry.stats_interval
	OutputDir      string  // Directory for CSV output (empty = disabled)
	SnapshotDir    string  // Directory for bookmark snapshots (empty = disabled)
	Tracer         sandbox.Tracer
	Logger         *slog.Logger

	StatsCallback func(telemetry.WindowStats)
	EventCallback func(referee.Event)
}
