package tracking

import "fmt"

// Mode represents what the autopilot did on its most recent step
type Mode int

const (
	ModeIdle Mode = iota // No step taken yet
	ModeSearch
	ModeTrack
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "IDLE"
	case ModeSearch:
		return "SEARCH"
	case ModeTrack:
		return "TRACK"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Point is a position in source-frame pixel coordinates
type Point struct {
	X float64
	Y float64
}

// Target is a single located face for one frame
type Target struct {
	Center       Point   // Pixel coordinates of the box centre
	ApparentSize float64 // Box width in pixels, a proxy for distance
}

// Observation is the locator's answer for one frame: either a target or nothing.
// The zero value is "no target".
type Observation struct {
	target  Target
	located bool
}

// NoTarget returns an observation with nothing located
func NoTarget() Observation {
	return Observation{}
}

// Located returns an observation carrying t
func Located(t Target) Observation {
	return Observation{target: t, located: true}
}

// Target returns the located target and whether one was present
func (o Observation) Target() (Target, bool) {
	return o.target, o.located
}

// IsLocated reports whether the observation carries a target
func (o Observation) IsLocated() bool {
	return o.located
}

func (o Observation) String() string {
	if !o.located {
		return "no target"
	}
	return fmt.Sprintf("target(cx=%.1f cy=%.1f size=%.1f)", o.target.Center.X, o.target.Center.Y, o.target.ApparentSize)
}

// FrameSize is the pixel geometry of the source frame. Width and Height must be > 0.
type FrameSize struct {
	Width  int
	Height int
}

// Valid reports whether both dimensions are positive
func (f FrameSize) Valid() bool {
	return f.Width > 0 && f.Height > 0
}

// Contains reports whether p lies inside the frame, edges included
func (f FrameSize) Contains(p Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X <= float64(f.Width) && p.Y <= float64(f.Height)
}

// ControlCommand is the per-frame output handed to the flight stack.
// Zap is a reserved channel and is always 0.
type ControlCommand struct {
	Zap      float64
	Roll     float64
	Pitch    float64
	Vertical float64 // Vertical thrust
	Yaw      float64
}

// Tuple returns the command in wire order: zap, roll, pitch, vertical, yaw
func (c ControlCommand) Tuple() (zap, roll, pitch, vertical, yaw float64) {
	return c.Zap, c.Roll, c.Pitch, c.Vertical, c.Yaw
}

func (c ControlCommand) String() string {
	return fmt.Sprintf("cmd(roll=%+.4f pitch=%+.4f vert=%+.4f yaw=%+.4f)", c.Roll, c.Pitch, c.Vertical, c.Yaw)
}

// AxisErrors holds the normalized centring errors for one located target
type AxisErrors struct {
	X        float64 // Positive right of centre
	Y        float64 // Positive above centre
	Distance float64 // Positive when the target looks larger (closer) than desired
	Yaw      float64
}
