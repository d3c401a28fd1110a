// Package strategies provides reference robot strategies: Go controllers
// built as explicit state machines, and the same behaviours as JavaScript
// sources for the script sandbox.
package strategies

import (
	"embed"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/pthm-cable/robosim/config"
	"github.com/pthm-cable/robosim/kinematics"
	"github.com/pthm-cable/robosim/sandbox"
	"github.com/pthm-cable/robosim/systems"
	"github.com/pthm-cable/robosim/vision"
)

//go:embed scripts/*.js
var scripts embed.FS

// Factory builds a controller for one robot. Script factories create a new
// runtime per call so robots never share script state.
type Factory func(id systems.RobotID) (sandbox.Controller, error)

// Source returns an embedded script by name, e.g. "attacker".
func Source(name string) (string, error) {
	data, err := scripts.ReadFile("scripts/" + name + ".js")
	if err != nil {
		return "", fmt.Errorf("no embedded script %q", name)
	}
	return string(data), nil
}

// Resolve maps a strategy reference to a factory. References are a built-in
// Go strategy name (attacker, defender, idle), "js:<name>" for an embedded
// script, or a path to a .js file.
func Resolve(ref string, cfg *config.Config, tracer sandbox.Tracer) (Factory, error) {
	p := cfg.Strategies
	switch ref {
	case "attacker":
		return func(systems.RobotID) (sandbox.Controller, error) { return Attacker(p), nil }, nil
	case "defender":
		return func(systems.RobotID) (sandbox.Controller, error) { return Defender(p), nil }, nil
	case "idle", "none":
		return func(systems.RobotID) (sandbox.Controller, error) { return Idle(), nil }, nil
	}

	var name, src string
	switch {
	case strings.HasPrefix(ref, "js:"):
		name = strings.TrimPrefix(ref, "js:")
		s, err := Source(name)
		if err != nil {
			return nil, err
		}
		src = s
	case strings.HasSuffix(ref, ".js"):
		data, err := os.ReadFile(ref)
		if err != nil {
			return nil, fmt.Errorf("reading strategy: %w", err)
		}
		name, src = ref, string(data)
	default:
		return nil, fmt.Errorf("unknown strategy %q: %w", ref, sandbox.ErrNoStrategy)
	}

	prog, err := sandbox.Compile(name, src)
	if err != nil {
		return nil, err
	}
	timeout := time.Duration(cfg.Sandbox.HardTimeoutMs * float64(time.Millisecond))
	return func(id systems.RobotID) (sandbox.Controller, error) {
		return prog.Instantiate(sandbox.ScriptOptions{Robot: id, HardTimeout: timeout, Tracer: tracer})
	}, nil
}

// Idle always stops.
func Idle() sandbox.Controller {
	return sandbox.Func(func(vision.WorldState, *sandbox.Cell) (systems.Action, error) {
		return systems.Neutral(), nil
	})
}

func act(tw kinematics.Twist, kick bool) systems.Action {
	return systems.Action{Motors: kinematics.Mix(tw), Kick: kick}
}

func clampUnit(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

// wrapDeg wraps degrees to (-180, 180].
func wrapDeg(d float64) float64 {
	d = math.Mod(d, 360)
	if d > 180 {
		d -= 360
	} else if d <= -180 {
		d += 360
	}
	return d
}
