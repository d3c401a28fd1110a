package game

import (
	"github.com/pthm-cable/robosim/components"
	"github.com/pthm-cable/robosim/referee"
	"github.com/pthm-cable/robosim/telemetry"
)

// logRefereeEvent logs one referee decision. Scoring and restarts are Info,
// routine kickoffs and play resumptions are Debug.
func (m *Match) logRefereeEvent(e referee.Event) {
	attrs := []any{
		"match", m.ID.String(),
		"tick", e.Tick,
		"half", e.Half,
		"clock", e.Clock,
	}
	if e.HasTeam {
		attrs = append(attrs, "team", e.Team.String())
	}

	switch e.Kind {
	case referee.EventGoal:
		attrs = append(attrs, "score_blue", e.Score[components.Blue], "score_yellow", e.Score[components.Yellow])
		m.logger.Info("goal", attrs...)
	case referee.EventOutOfBounds, referee.EventLackOfProgress:
		attrs = append(attrs, "x", e.Pos.X, "y", e.Pos.Y)
		m.logger.Info(e.Kind.String(), attrs...)
	case referee.EventHalfTime, referee.EventFinished:
		attrs = append(attrs, "score_blue", e.Score[components.Blue], "score_yellow", e.Score[components.Yellow])
		m.logger.Info(e.Kind.String(), attrs...)
	default:
		m.logger.Debug(e.Kind.String(), attrs...)
	}
}

// logPhaseChange logs the referee phase when it differs from the last one seen.
func (m *Match) logPhaseChange() {
	p := m.referee.Phase()
	if p == m.lastPhase {
		return
	}
	m.logger.Debug("phase",
		"match", m.ID.String(),
		"tick", m.world.Tick(),
		"from", m.lastPhase.String(),
		"to", p.String(),
	)
	m.lastPhase = p
}

// logSummary logs the match totals.
func (m *Match) logSummary(s telemetry.Summary) {
	m.logger.Info("match summary", "summary", s)
}
