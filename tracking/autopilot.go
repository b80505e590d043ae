package tracking

// Centring constants
const (
	WidthTarget = 100.0 // Apparent size (px) at which pitch is neutral
	WidthFactor = 0.003
	YawFactor   = 1.6

	SearchVertical = -0.008 // Slight descent bias while searching
	SearchYaw      = 0.05   // Slow yaw rate while searching
)

// ControllerState is the history carried between frames of one autonomy session
type ControllerState struct {
	InvocationCount uint64

	PrevErrorX        float64
	PrevErrorY        float64
	PrevErrorDistance float64
	PrevErrorYaw      float64

	// Previous outputs are kept alongside the errors but PID does not use them.
	PrevOutputRoll     float64
	PrevOutputPitch    float64
	PrevOutputVertical float64
	PrevOutputYaw      float64
}

// Autopilot turns per-frame observations into control commands.
// It is not safe for concurrent use; give each session its own Autopilot.
type Autopilot struct {
	state ControllerState
	mode  Mode
}

// NewAutopilot creates an autopilot with zeroed history
func NewAutopilot() *Autopilot {
	return &Autopilot{mode: ModeIdle}
}

// SearchCommand is the command issued whenever no target is located
func SearchCommand() ControlCommand {
	return ControlCommand{Zap: 0, Roll: 0, Pitch: 0, Vertical: SearchVertical, Yaw: SearchYaw}
}

// Errors computes the centring errors of t inside a frame of the given size.
// frame must satisfy frame.Valid().
func Errors(t Target, frame FrameSize) AxisErrors {
	halfW := float64(frame.Width) / 2
	halfH := float64(frame.Height) / 2

	errX := (t.Center.X - halfW) / halfW
	return AxisErrors{
		X:        errX,
		Y:        -((t.Center.Y - halfH) / halfH),
		Distance: (t.ApparentSize - WidthTarget) * WidthFactor,
		Yaw:      errX * YawFactor,
	}
}

// Step runs one control cycle.
//
// Without a target the search command is returned and the error history is
// left as it was, so the next located frame differentiates against the last
// located frame. On the very first invocation no PID is evaluated and all
// outputs are zero because there is no history yet.
func (a *Autopilot) Step(obs Observation, frame FrameSize) ControlCommand {
	t, ok := obs.Target()
	if !ok {
		a.state.InvocationCount++
		a.mode = ModeSearch
		return SearchCommand()
	}

	e := Errors(t, frame)
	s := &a.state

	var roll, pitch, vertical, yaw float64
	if s.InvocationCount > 0 {
		roll = PID(s.PrevOutputRoll, e.X, s.PrevErrorX, GainsX)
		vertical = PID(s.PrevOutputVertical, e.Y, s.PrevErrorY, GainsY)
		pitch = PID(s.PrevOutputPitch, e.Distance, s.PrevErrorDistance, GainsDistance)
		yaw = PID(s.PrevOutputYaw, e.Yaw, s.PrevErrorYaw, GainsYaw)
	}

	s.PrevErrorX = e.X
	s.PrevErrorY = e.Y
	s.PrevErrorDistance = e.Distance
	s.PrevErrorYaw = e.Yaw
	s.PrevOutputRoll = roll
	s.PrevOutputPitch = pitch
	s.PrevOutputVertical = vertical
	s.PrevOutputYaw = yaw
	s.InvocationCount++

	a.mode = ModeTrack
	return ControlCommand{Zap: 0, Roll: roll, Pitch: pitch, Vertical: vertical, Yaw: yaw}
}

// State returns a copy of the current history
func (a *Autopilot) State() ControllerState {
	return a.state
}

// Mode reports the branch taken by the most recent Step
func (a *Autopilot) Mode() Mode {
	return a.mode
}
