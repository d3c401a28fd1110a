package components

import "fmt"

// Team identifies a side. Blue defends the south goal and attacks north.
type Team uint8

const (
	Blue Team = iota
	Yellow
)

// Role identifies a robot's slot within its team.
type Role uint8

const (
	Attacker Role = iota
	Defender
)

// String returns the display name for a Team.
func (t Team) String() string {
	switch t {
	case Blue:
		return "blue"
	case Yellow:
		return "yellow"
	}
	return "unknown"
}

// Other returns the opposing team.
func (t Team) Other() Team {
	if t == Blue {
		return Yellow
	}
	return Blue
}

// Side returns +1 for the team defending the south (+y) goal and -1 for north.
func (t Team) Side() float64 {
	if t == Blue {
		return 1
	}
	return -1
}

// ParseTeam maps a team name to a Team.
func ParseTeam(s string) (Team, error) {
	switch s {
	case "blue":
		return Blue, nil
	case "yellow":
		return Yellow, nil
	}
	return 0, fmt.Errorf("unknown team %q", s)
}

// String returns the display name for a Role.
func (r Role) String() string {
	switch r {
	case Attacker:
		return "attacker"
	case Defender:
		return "defender"
	}
	return "unknown"
}
