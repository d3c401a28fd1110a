package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Derived.Mode != ModeTwoTeam {
		t.Errorf("default mode = %v, want two_team", cfg.Derived.Mode)
	}
	if math.Abs(cfg.Match.DT-1.0/60) > 1e-12 {
		t.Errorf("dt = %v, want 1/60", cfg.Match.DT)
	}
	if cfg.Ball.Radius != 2.1 {
		t.Errorf("ball radius = %v, want 2.1", cfg.Ball.Radius)
	}
	if math.Abs(cfg.Derived.MaxAngularRate-3*math.Pi) > 1e-9 {
		t.Errorf("max angular rate = %v rad/s, want 3pi", cfg.Derived.MaxAngularRate)
	}
	if cfg.Derived.OuterWidth != cfg.Field.InnerWidth+2*cfg.Field.Margin {
		t.Errorf("outer width not derived from margin")
	}
}

func TestLoadMergesUserFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "match.yaml")
	if err := os.WriteFile(path, []byte("match:\n  mode: single_bot\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Derived.Mode != ModeSingleBot {
		t.Errorf("mode = %v, want single_bot", cfg.Derived.Mode)
	}
	// Untouched keys keep their defaults.
	if cfg.Robot.MaxSpeed != 150 {
		t.Errorf("robot.max_speed = %v, want 150", cfg.Robot.MaxSpeed)
	}
}

func TestUnknownModeIsConfigError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("match:\n  mode: three_team\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("Load error = %v, want ErrUnknownMode", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero dt", func(c *Config) { c.Match.DT = 0 }},
		{"nan dt", func(c *Config) { c.Match.DT = math.NaN() }},
		{"no halves", func(c *Config) { c.Match.Halves = 0 }},
		{"goal wider than field", func(c *Config) { c.Field.GoalWidth = 500 }},
		{"notch deeper than body", func(c *Config) { c.Robot.NotchDepth = c.Robot.Radius }},
		{"bad first kickoff", func(c *Config) { c.Referee.FirstKickoff = "green" }},
		{"jitter past clearance", func(c *Config) { c.Referee.DropJitter = c.Referee.Clearance }},
		{"unknown unmix", func(c *Config) { c.Robot.Unmix = "exact" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			if err != nil {
				t.Fatal(err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"single_bot", ModeSingleBot},
		{"single-team", ModeSingleTeam},
		{"2v2", ModeTwoTeam},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if err != nil {
			t.Errorf("ParseMode(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if !ModeSingleBot.Simplified() || ModeTwoTeam.Simplified() {
		t.Error("only single_bot kickoffs are simplified")
	}
}
