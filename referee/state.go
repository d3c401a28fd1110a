package referee

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/robosim/components"
)

// Phase is the match's rule phase.
type Phase uint8

const (
	PhaseSetup Phase = iota
	PhaseKickoff
	PhasePlaying
	PhaseOutOfBounds
	PhaseGoal
	PhaseHalfTime
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseSetup:
		return "setup"
	case PhaseKickoff:
		return "kickoff"
	case PhasePlaying:
		return "playing"
	case PhaseOutOfBounds:
		return "out_of_bounds"
	case PhaseGoal:
		return "goal"
	case PhaseHalfTime:
		return "half_time"
	case PhaseFinished:
		return "finished"
	}
	return "unknown"
}

// clockRuns reports whether match time advances in p.
func (p Phase) clockRuns() bool {
	return p == PhaseKickoff || p == PhasePlaying || p == PhaseOutOfBounds
}

// EventKind classifies referee decisions.
type EventKind uint8

const (
	EventKickoff EventKind = iota
	EventPlay
	EventGoal
	EventOutOfBounds
	EventLackOfProgress
	EventHalfTime
	EventFinished
)

func (k EventKind) String() string {
	switch k {
	case EventKickoff:
		return "kickoff"
	case EventPlay:
		return "play"
	case EventGoal:
		return "goal"
	case EventOutOfBounds:
		return "out_of_bounds"
	case EventLackOfProgress:
		return "lack_of_progress"
	case EventHalfTime:
		return "half_time"
	case EventFinished:
		return "finished"
	}
	return "unknown"
}

// Event is one referee decision.
//
// Team depends on Kind: the kicking team for a kickoff, the scorer for a goal
// and the last team to touch the ball for out-of-bounds. HasTeam is false when
// no team applies, such as a neutral restart or an untouched ball.
type Event struct {
	Kind    EventKind
	Tick    int64
	Half    int
	Clock   float64
	Team    components.Team
	HasTeam bool
	Pos     r2.Vec // ball or restart spot
	Score   [2]int
}

// GameState is the referee's public state.
type GameState struct {
	Phase     Phase
	Score     [2]int // indexed by team
	Half      int    // 1-based, 0 before Start
	Clock     float64
	Countdown float64 // seconds left in a timed phase

	KickoffTeam components.Team
	// Neutral marks a kickoff awarded to no team (lack-of-progress restart).
	Neutral bool
	// RestartSpot is where the ball was put for the pending restart.
	RestartSpot r2.Vec

	LastTouch    components.Team
	HasLastTouch bool
}

// Winner returns the leading team, or false on a draw.
func (s GameState) Winner() (components.Team, bool) {
	switch {
	case s.Score[components.Blue] > s.Score[components.Yellow]:
		return components.Blue, true
	case s.Score[components.Yellow] > s.Score[components.Blue]:
		return components.Yellow, true
	}
	return 0, false
}
