package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkGoalFlurry BookmarkType = "goal_flurry"
	BookmarkLeadChange BookmarkType = "lead_change"
	BookmarkFaultBurst BookmarkType = "fault_burst"
	BookmarkStalemate  BookmarkType = "stalemate"
)

// Bookmark marks a window worth replaying.
type Bookmark struct {
	Type        BookmarkType `csv:"type"`
	Tick        int64        `csv:"tick"`
	Description string       `csv:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"tick", b.Tick,
		"description", b.Description,
	)
}

// BookmarkDetector flags interesting windows of a match.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	leader     int // sign of blue minus yellow at the last decided score
	stuckCount int // consecutive stalled windows
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 3 {
		historySize = 3
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark
	for _, check := range []func(WindowStats) *Bookmark{
		bd.checkGoalFlurry,
		bd.checkLeadChange,
		bd.checkFaultBurst,
		bd.checkStalemate,
	} {
		if b := check(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}
	bd.addToHistory(stats)
	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []WindowStats {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

func (bd *BookmarkDetector) checkGoalFlurry(stats WindowStats) *Bookmark {
	goals := stats.GoalsBlue + stats.GoalsYellow
	if goals < 2 {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkGoalFlurry,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("%d goals in one window, score %d-%d", goals, stats.ScoreBlue, stats.ScoreYellow),
	}
}

func (bd *BookmarkDetector) checkLeadChange(stats WindowStats) *Bookmark {
	lead := 0
	switch {
	case stats.ScoreBlue > stats.ScoreYellow:
		lead = 1
	case stats.ScoreYellow > stats.ScoreBlue:
		lead = -1
	}
	if lead == 0 {
		return nil
	}
	prev := bd.leader
	bd.leader = lead
	if prev == 0 || prev == lead {
		return nil
	}
	team := "blue"
	if lead < 0 {
		team = "yellow"
	}
	return &Bookmark{
		Type:        BookmarkLeadChange,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("%s takes the lead %d-%d", team, stats.ScoreBlue, stats.ScoreYellow),
	}
}

func (bd *BookmarkDetector) checkFaultBurst(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 2 || stats.Faults < 5 {
		return nil
	}

	var total int
	for _, h := range history {
		total += h.Faults
	}
	avg := float64(total) / float64(len(history))
	if float64(stats.Faults) <= avg*2.0 {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkFaultBurst,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("%d strategy faults against an average of %.1f", stats.Faults, avg),
	}
}

func (bd *BookmarkDetector) checkStalemate(stats WindowStats) *Bookmark {
	if stats.LackOfProgress == 0 && stats.Touches > 0 {
		bd.stuckCount = 0
		return nil
	}
	bd.stuckCount++
	if bd.stuckCount != 3 { // trigger once per run of stalled windows
		return nil
	}
	return &Bookmark{
		Type:        BookmarkStalemate,
		Tick:        stats.WindowEndTick,
		Description: "three windows without a touch or with play restarted for lack of progress",
	}
}
