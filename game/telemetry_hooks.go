package game

import (
	"log/slog"

	"github.com/pthm-cable/robosim/telemetry"
)

// flushTelemetry checks if the stats window should be flushed and handles bookmarks.
func (m *Match) flushTelemetry() {
	tick := m.world.Tick()
	if !m.collector.ShouldFlush(tick) {
		return
	}

	// Flush the stats window
	stats := m.collector.Flush(tick, m.referee.State())
	perfStats := m.perfCollector.Stats()

	// Call stats callback if provided
	if m.statsCallback != nil {
		m.statsCallback(stats)
	}

	// Log stats if enabled (console output)
	if m.logStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	// Write to CSV if output manager is enabled
	if m.outputManager != nil {
		if err := m.outputManager.WriteTelemetry(stats); err != nil {
			slog.Error("failed to write telemetry", "error", err)
		}
		if err := m.outputManager.WritePerf(perfStats, stats.WindowEndTick); err != nil {
			slog.Error("failed to write perf", "error", err)
		}
		m.writeEvents()
	}

	// Check for bookmarks
	bookmarks := m.bookmarkDetector.Check(stats)
	for _, bm := range bookmarks {
		if m.logStats {
			bm.LogBookmark()
		}

		if m.outputManager != nil {
			if err := m.outputManager.WriteBookmark(bm); err != nil {
				slog.Error("failed to write bookmark", "error", err)
			}
		}

		// Save snapshot on bookmark
		if m.snapshotDir != "" || m.outputManager != nil {
			m.saveSnapshot(&bm)
		}
	}
}

// writeEvents appends buffered events to events.csv.
func (m *Match) writeEvents() {
	if m.outputManager == nil || len(m.events) == 0 {
		return
	}
	if err := m.outputManager.WriteEvents(m.events); err != nil {
		slog.Error("failed to write events", "error", err)
	}
	m.events = m.events[:0]
}

// saveSnapshot writes the current state to the snapshot directory, or under
// the output directory when none is set.
func (m *Match) saveSnapshot(bookmark *telemetry.Bookmark) {
	snapshot := m.createSnapshot(bookmark)

	var (
		path string
		err  error
	)
	if m.snapshotDir != "" {
		path, err = telemetry.SaveSnapshot(snapshot, m.snapshotDir)
	} else {
		path, err = m.outputManager.WriteSnapshot(snapshot)
	}
	if err != nil {
		slog.Error("failed to save snapshot", "error", err)
		return
	}

	slog.Info("snapshot saved", "path", path, "tick", snapshot.Tick)
}

// createSnapshot builds a snapshot from the current state.
func (m *Match) createSnapshot(bookmark *telemetry.Bookmark) *telemetry.Snapshot {
	snapshot := telemetry.NewSnapshot(m.ID.String(), m.cfg.Match.Seed, m.world.Snapshot(), m.referee.State())
	snapshot.Bookmark = bookmark
	return snapshot
}
