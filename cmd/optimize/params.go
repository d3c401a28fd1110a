// Package main provides CMA-ES optimization of the reference strategy gains.
package main

import (
	"github.com/pthm-cable/robosim/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// Attacker
			{Name: "search_turn", Path: "strategies.search_turn", Min: 0.1, Max: 1.0, Default: 0.35},
			{Name: "approach_speed", Path: "strategies.approach_speed", Min: 0.3, Max: 1.0, Default: 0.8},
			{Name: "turn_gain", Path: "strategies.turn_gain", Min: 0.005, Max: 0.06, Default: 0.02},
			{Name: "dribble_distance", Path: "strategies.dribble_distance", Min: 8, Max: 30, Default: 16},
			{Name: "dribble_speed", Path: "strategies.dribble_speed", Min: 0.2, Max: 1.0, Default: 0.6},
			{Name: "kick_angle", Path: "strategies.kick_angle", Min: 3, Max: 30, Default: 12},
			{Name: "kick_distance", Path: "strategies.kick_distance", Min: 20, Max: 120, Default: 60},
			// Defender
			{Name: "guard_distance", Path: "strategies.guard_distance", Min: 15, Max: 70, Default: 35},
			{Name: "guard_gain", Path: "strategies.guard_gain", Min: 0.005, Max: 0.1, Default: 0.03},
			// recover_ticks and memory_decay locked
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig applies parameter values to a Config struct.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	// Clamp values to ensure they're within bounds
	clamped := pv.Clamp(values)

	// Order must match Specs order
	s := &cfg.Strategies
	s.SearchTurn = clamped[0]
	s.ApproachSpeed = clamped[1]
	s.TurnGain = clamped[2]
	s.DribbleDistance = clamped[3]
	s.DribbleSpeed = clamped[4]
	s.KickAngle = clamped[5]
	s.KickDistance = clamped[6]
	s.GuardDistance = clamped[7]
	s.GuardGain = clamped[8]
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	s := cfg.Strategies
	return []float64{
		s.SearchTurn,
		s.ApproachSpeed,
		s.TurnGain,
		s.DribbleDistance,
		s.DribbleSpeed,
		s.KickAngle,
		s.KickDistance,
		s.GuardDistance,
		s.GuardGain,
	}
}
