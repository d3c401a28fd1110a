// Package telemetry records what happens in a match: referee decisions,
// strategy faults, windowed statistics, per-robot totals, timing and
// strategy traces.
package telemetry

import (
	"time"

	"github.com/pthm-cable/robosim/referee"
	"github.com/pthm-cable/robosim/sandbox"
	"github.com/pthm-cable/robosim/systems"
)

// EventType identifies telemetry events.
type EventType string

const (
	EventReferee    EventType = "referee"
	EventFault      EventType = "fault"
	EventOverBudget EventType = "over_budget"
)

// Event is one row of events.csv.
type Event struct {
	Type        EventType `csv:"type"`
	Tick        int64     `csv:"tick"`
	Half        int       `csv:"half"`
	Clock       float64   `csv:"clock"`
	Kind        string    `csv:"kind"`
	Team        string    `csv:"team"`
	Robot       int       `csv:"robot"` // -1 when no robot applies
	X           float64   `csv:"x"`
	Y           float64   `csv:"y"`
	ScoreBlue   int       `csv:"score_blue"`
	ScoreYellow int       `csv:"score_yellow"`
	Detail      string    `csv:"detail"`
}

// NewRefereeEvent converts a referee decision.
func NewRefereeEvent(e referee.Event) Event {
	ev := Event{
		Type:        EventReferee,
		Tick:        e.Tick,
		Half:        e.Half,
		Clock:       e.Clock,
		Kind:        e.Kind.String(),
		Robot:       -1,
		X:           e.Pos.X,
		Y:           e.Pos.Y,
		ScoreBlue:   e.Score[0],
		ScoreYellow: e.Score[1],
	}
	if e.HasTeam {
		ev.Team = e.Team.String()
	}
	return ev
}

// NewFaultEvent converts a failed strategy call.
func NewFaultEvent(f sandbox.Fault) Event {
	return Event{
		Type:   EventFault,
		Tick:   f.Tick,
		Kind:   "strategy_fault",
		Robot:  int(f.Robot),
		Detail: f.Err.Error(),
	}
}

// NewOverBudgetEvent records a strategy call that ran past its time budget.
func NewOverBudgetEvent(robot systems.RobotID, tick int64, elapsed time.Duration) Event {
	return Event{
		Type:   EventOverBudget,
		Tick:   tick,
		Kind:   "strategy_over_budget",
		Robot:  int(robot),
		Detail: elapsed.String(),
	}
}
