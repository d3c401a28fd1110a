package components

// Robot holds per-robot identity, the command consumed this step and the
// derived sensor flags.
type Robot struct {
	ID   int
	Team Team
	Role Role

	// Robot-frame command unmixed from the last consumed action.
	CmdForward float64
	CmdStrafe  float64
	CmdTurn    float64
	Kick       bool

	BumperFront, BumperLeft, BumperRight bool
	LineFront, LineLeft, LineRight       bool

	Stuck        bool
	StuckWindows int      // consecutive windows judged stuck
	WindowTicks  int      // ticks accumulated in the current window
	Anchor       Position // position at the start of the window

	LastValid Position
}

// Ball holds ball-specific state.
type Ball struct {
	Radius    float64
	Mass      float64
	LastValid Position
}
