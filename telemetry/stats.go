package telemetry

import (
	"log/slog"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a time window.
type WindowStats struct {
	WindowStartTick int64   `csv:"-"`
	WindowEndTick   int64   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`
	Phase           string  `csv:"phase"`

	// Score at window end
	ScoreBlue   int `csv:"score_blue"`
	ScoreYellow int `csv:"score_yellow"`

	// Referee decisions during window
	GoalsBlue      int `csv:"goals_blue"`
	GoalsYellow    int `csv:"goals_yellow"`
	OutOfBounds    int `csv:"out_of_bounds"`
	LackOfProgress int `csv:"lack_of_progress"`
	Kickoffs       int `csv:"kickoffs"`

	// Ball play
	Touches       int     `csv:"touches"`
	Kicks         int     `csv:"kicks"`
	BallTravel    float64 `csv:"ball_travel"` // cm
	BallSpeedMean float64 `csv:"ball_speed_mean"`
	BallSpeedP50  float64 `csv:"ball_speed_p50"`
	BallSpeedP90  float64 `csv:"ball_speed_p90"`

	// Robots and strategies
	StuckTicks int `csv:"stuck_ticks"` // robot-ticks spent stuck
	Faults     int `csv:"faults"`
	OverBudget int `csv:"over_budget"`
}

// Percentile returns the p-th quantile of sorted values with linear
// interpolation. Returns 0 for an empty slice.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}
	return stat.Quantile(p, stat.LinInterp, sorted, nil)
}

// Distribution calculates the mean, median and 90th percentile of values.
func Distribution(values []float64) (mean, p50, p90 float64) {
	if len(values) == 0 {
		return 0, 0, 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return stat.Mean(sorted, nil), Percentile(sorted, 0.50), Percentile(sorted, 0.90)
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("window_start", s.WindowStartTick),
		slog.Int64("window_end", s.WindowEndTick),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.String("phase", s.Phase),
		slog.Int("score_blue", s.ScoreBlue),
		slog.Int("score_yellow", s.ScoreYellow),
		slog.Int("out_of_bounds", s.OutOfBounds),
		slog.Int("lack_of_progress", s.LackOfProgress),
		slog.Int("touches", s.Touches),
		slog.Int("kicks", s.Kicks),
		slog.Float64("ball_travel", s.BallTravel),
		slog.Float64("ball_speed_mean", s.BallSpeedMean),
		slog.Int("stuck_ticks", s.StuckTicks),
		slog.Int("faults", s.Faults),
		slog.Int("over_budget", s.OverBudget),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndTick,
		"sim_time", s.SimTimeSec,
		"phase", s.Phase,
		"score_blue", s.ScoreBlue,
		"score_yellow", s.ScoreYellow,
		"goals_blue", s.GoalsBlue,
		"goals_yellow", s.GoalsYellow,
		"out_of_bounds", s.OutOfBounds,
		"lack_of_progress", s.LackOfProgress,
		"touches", s.Touches,
		"kicks", s.Kicks,
		"ball_travel", s.BallTravel,
		"ball_speed_p90", s.BallSpeedP90,
		"stuck_ticks", s.StuckTicks,
		"faults", s.Faults,
		"over_budget", s.OverBudget,
	)
}

// Summary is the single row of summary.csv describing a finished match.
type Summary struct {
	MatchID        string  `csv:"match_id"`
	Mode           string  `csv:"mode"`
	Seed           int64   `csv:"seed"`
	Ticks          int64   `csv:"ticks"`
	SimTimeSec     float64 `csv:"sim_time"`
	ScoreBlue      int     `csv:"score_blue"`
	ScoreYellow    int     `csv:"score_yellow"`
	Winner         string  `csv:"winner"` // blue, yellow or draw
	OutOfBounds    int     `csv:"out_of_bounds"`
	LackOfProgress int     `csv:"lack_of_progress"`
	Touches        int     `csv:"touches"`
	Kicks          int     `csv:"kicks"`
	BallTravel     float64 `csv:"ball_travel"`
	Faults         int     `csv:"faults"`
	OverBudget     int     `csv:"over_budget"`
	TickUSMean     float64 `csv:"tick_us_mean"`
	TickUSStd      float64 `csv:"tick_us_std"`
	TickUSP90      float64 `csv:"tick_us_p90"`
}

// LogValue implements slog.LogValuer for structured logging.
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("match_id", s.MatchID),
		slog.String("mode", s.Mode),
		slog.Int64("ticks", s.Ticks),
		slog.Int("score_blue", s.ScoreBlue),
		slog.Int("score_yellow", s.ScoreYellow),
		slog.String("winner", s.Winner),
		slog.Int("faults", s.Faults),
		slog.Float64("tick_us_mean", s.TickUSMean),
	)
}
