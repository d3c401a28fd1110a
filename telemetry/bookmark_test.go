package telemetry

import "testing"

func hasBookmark(bms []Bookmark, typ BookmarkType) bool {
	for _, b := range bms {
		if b.Type == typ {
			return true
		}
	}
	return false
}

func TestBookmarkDetector_GoalFlurry(t *testing.T) {
	bd := NewBookmarkDetector(10)
	bms := bd.Check(WindowStats{WindowEndTick: 600, GoalsBlue: 1, GoalsYellow: 1, ScoreBlue: 1, ScoreYellow: 1, Touches: 4})
	if !hasBookmark(bms, BookmarkGoalFlurry) {
		t.Error("expected goal_flurry bookmark")
	}
}

func TestBookmarkDetector_LeadChange(t *testing.T) {
	bd := NewBookmarkDetector(10)
	windows := []WindowStats{
		{WindowEndTick: 100, ScoreBlue: 1, Touches: 1},
		{WindowEndTick: 200, ScoreBlue: 1, ScoreYellow: 1, Touches: 1},
		{WindowEndTick: 300, ScoreBlue: 1, ScoreYellow: 2, Touches: 1},
	}
	var got []Bookmark
	for _, w := range windows {
		got = bd.Check(w)
	}
	if !hasBookmark(got, BookmarkLeadChange) {
		t.Error("expected lead_change when yellow overtakes")
	}

	// The first lead is not a change.
	bd = NewBookmarkDetector(10)
	if hasBookmark(bd.Check(WindowStats{ScoreYellow: 1, Touches: 1}), BookmarkLeadChange) {
		t.Error("first lead reported as a change")
	}
}

func TestBookmarkDetector_FaultBurst(t *testing.T) {
	bd := NewBookmarkDetector(10)
	for i := 0; i < 4; i++ {
		bd.Check(WindowStats{WindowEndTick: int64(i * 600), Faults: 2, Touches: 1})
	}
	if !hasBookmark(bd.Check(WindowStats{WindowEndTick: 3000, Faults: 12, Touches: 1}), BookmarkFaultBurst) {
		t.Error("expected fault_burst bookmark")
	}
	if hasBookmark(bd.Check(WindowStats{WindowEndTick: 3600, Faults: 3, Touches: 1}), BookmarkFaultBurst) {
		t.Error("small fault count flagged as burst")
	}
}

func TestBookmarkDetector_StalemateTriggersOnce(t *testing.T) {
	bd := NewBookmarkDetector(10)
	count := 0
	for i := 0; i < 6; i++ {
		if hasBookmark(bd.Check(WindowStats{WindowEndTick: int64(i)}), BookmarkStalemate) {
			count++
		}
	}
	if count != 1 {
		t.Errorf("stalemate bookmarks = %d, want 1", count)
	}
}
