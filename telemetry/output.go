package telemetry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/robosim/config"
)

// csvFile appends gocsv rows to one file, writing the header once.
type csvFile struct {
	name          string
	f             *os.File
	headerWritten bool
}

func writeRows[T any](c *csvFile, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	var err error
	if !c.headerWritten {
		err = gocsv.Marshal(rows, c.f)
		c.headerWritten = true
	} else {
		err = gocsv.MarshalWithoutHeaders(rows, c.f)
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", c.name, err)
	}
	return nil
}

// OutputManager handles structured match output with CSV logging.
type OutputManager struct {
	dir       string
	telemetry *csvFile
	events    *csvFile
	perf      *csvFile
	bookmarks *csvFile
	robots    *csvFile
	summary   *csvFile
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}
	for _, target := range []struct {
		slot **csvFile
		name string
	}{
		{&om.telemetry, "telemetry.csv"},
		{&om.events, "events.csv"},
		{&om.perf, "perf.csv"},
		{&om.bookmarks, "bookmarks.csv"},
		{&om.robots, "robots.csv"},
		{&om.summary, "summary.csv"},
	} {
		f, err := os.Create(filepath.Join(dir, target.name))
		if err != nil {
			om.Close()
			return nil, fmt.Errorf("creating %s: %w", target.name, err)
		}
		*target.slot = &csvFile{name: target.name, f: f}
	}
	return om, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteTelemetry writes a window stats record to telemetry.csv.
func (om *OutputManager) WriteTelemetry(stats WindowStats) error {
	if om == nil {
		return nil
	}
	return writeRows(om.telemetry, []WindowStats{stats})
}

// WriteEvents appends rows to events.csv.
func (om *OutputManager) WriteEvents(events []Event) error {
	if om == nil {
		return nil
	}
	return writeRows(om.events, events)
}

// WritePerf writes a performance stats record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, windowEnd int64) error {
	if om == nil {
		return nil
	}
	return writeRows(om.perf, []PerfStatsCSV{stats.ToCSV(windowEnd)})
}

// WriteBookmark writes a bookmark record to bookmarks.csv.
func (om *OutputManager) WriteBookmark(b Bookmark) error {
	if om == nil {
		return nil
	}
	return writeRows(om.bookmarks, []Bookmark{b})
}

// WriteSnapshot saves a snapshot under the output directory's snapshots/.
func (om *OutputManager) WriteSnapshot(s *Snapshot) (string, error) {
	if om == nil {
		return "", nil
	}
	return SaveSnapshot(s, filepath.Join(om.dir, "snapshots"))
}

// WriteRobots writes the per-robot totals to robots.csv.
func (om *OutputManager) WriteRobots(stats []RobotStats) error {
	if om == nil {
		return nil
	}
	return writeRows(om.robots, stats)
}

// WriteSummary writes the match summary to summary.csv.
func (om *OutputManager) WriteSummary(s Summary) error {
	if om == nil {
		return nil
	}
	return writeRows(om.summary, []Summary{s})
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}
	var errs []error
	for _, c := range []*csvFile{om.telemetry, om.events, om.perf, om.bookmarks, om.robots, om.summary} {
		if c == nil {
			continue
		}
		if err := c.f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", c.name, err))
		}
	}
	return errors.Join(errs...)
}
