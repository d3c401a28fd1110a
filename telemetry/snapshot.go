package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pthm-cable/robosim/referee"
	"github.com/pthm-cable/robosim/systems"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot is a JSON record of a match moment, written alongside bookmarks
// for offline inspection.
type Snapshot struct {
	Version int    `json:"version"`
	MatchID string `json:"match_id"`
	Seed    int64  `json:"seed"`
	Tick    int64  `json:"tick"`

	Phase  string  `json:"phase"`
	Half   int     `json:"half"`
	Clock  float64 `json:"clock"`
	Score  [2]int  `json:"score"`
	Digest uint64  `json:"digest"`

	Robots []RobotSnapshot `json:"robots"`
	Ball   *BallSnapshot   `json:"ball,omitempty"`

	Bookmark *Bookmark `json:"bookmark,omitempty"`
}

// RobotSnapshot holds one robot's body state.
type RobotSnapshot struct {
	ID      int     `json:"id"`
	Team    string  `json:"team"`
	Role    string  `json:"role"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	VelX    float64 `json:"vel_x"`
	VelY    float64 `json:"vel_y"`
	Heading float64 `json:"heading"`
	Stuck   bool    `json:"stuck"`
}

// BallSnapshot holds the ball's state.
type BallSnapshot struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	VelX float64 `json:"vel_x"`
	VelY float64 `json:"vel_y"`
}

// NewSnapshot captures a physics snapshot and the referee state.
func NewSnapshot(matchID string, seed int64, snap *systems.Snapshot, state referee.GameState) *Snapshot {
	s := &Snapshot{
		Version: SnapshotVersion,
		MatchID: matchID,
		Seed:    seed,
		Tick:    snap.Tick,
		Phase:   state.Phase.String(),
		Half:    state.Half,
		Clock:   state.Clock,
		Score:   state.Score,
		Digest:  snap.Digest(),
		Robots:  make([]RobotSnapshot, 0, len(snap.Robots)),
	}
	for _, r := range snap.Robots {
		s.Robots = append(s.Robots, RobotSnapshot{
			ID:      int(r.ID),
			Team:    r.Team.String(),
			Role:    r.Role.String(),
			X:       r.Pos.X,
			Y:       r.Pos.Y,
			VelX:    r.Vel.X,
			VelY:    r.Vel.Y,
			Heading: r.Heading,
			Stuck:   r.Stuck,
		})
	}
	if snap.HasBall {
		s.Ball = &BallSnapshot{X: snap.Ball.Pos.X, Y: snap.Ball.Pos.Y, VelX: snap.Ball.Vel.X, VelY: snap.Ball.Vel.Y}
	}
	return s
}

// SaveSnapshot writes a snapshot to disk.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	name := fmt.Sprintf("snapshot_%d", snapshot.Tick)
	if snapshot.Bookmark != nil {
		name = fmt.Sprintf("snapshot_%d_%s", snapshot.Tick, snapshot.Bookmark.Type)
	}
	path := filepath.Join(dir, name+".json")

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snapshot, nil
}
