package components

import (
	"math"
	"testing"
)

func TestContactRadius(t *testing.T) {
	b := Body{Radius: 9, NotchDepth: 3, NotchHalfAngle: math.Pi / 6}
	tests := []struct {
		name  string
		angle float64
		want  float64
	}{
		{"forward", 0, 6},
		{"inside notch right", 0.4, 6},
		{"inside notch left", -0.4, 6},
		{"outside notch", math.Pi / 2, 9},
		{"behind", math.Pi, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.ContactRadius(tt.angle); got != tt.want {
				t.Errorf("ContactRadius(%v) = %v, want %v", tt.angle, got, tt.want)
			}
		})
	}
}

func TestTeam(t *testing.T) {
	if Blue.Other() != Yellow || Yellow.Other() != Blue {
		t.Error("Other is not an involution")
	}
	if Blue.Side() != 1 || Yellow.Side() != -1 {
		t.Error("blue defends south, yellow north")
	}
	if got, err := ParseTeam("yellow"); err != nil || got != Yellow {
		t.Errorf("ParseTeam(yellow) = %v, %v", got, err)
	}
	if _, err := ParseTeam("red"); err == nil {
		t.Error("expected error for unknown team")
	}
}
