// Package autopilot is the host-facing entry point: it turns one video frame
// plus flight telemetry into one control command, owning the controller state
// for the current autonomy session.
package autopilot

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"facepilot/detection"
	"facepilot/tracking"

	"gocv.io/x/gocv"
)

// Global debug functions for autopilot package
var (
	debugMsgFunc        func(string, string, ...string)
	debugMsgVerboseFunc func(string, string, ...string)
)

// SetDebugFunction allows main package to provide debug function
func SetDebugFunction(fn func(string, string, ...string)) {
	debugMsgFunc = fn
}

// SetDebugVerboseFunction allows main package to provide verbose debug function
func SetDebugVerboseFunction(fn func(string, string, ...string)) {
	debugMsgVerboseFunc = fn
}

func debugMsg(component, message string, sessionID ...string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message, sessionID...)
	}
}

func debugMsgVerbose(component, message string, sessionID ...string) {
	if debugMsgVerboseFunc != nil {
		debugMsgVerboseFunc(component, message, sessionID...)
	}
}

// Precondition violations. They indicate a broken host or locator contract
// and should be treated as fatal by the caller.
var (
	ErrInvalidFrame     = errors.New("invalid frame")
	ErrTargetOutOfFrame = errors.New("target centre outside frame")
)

// Telemetry is the flight state the host passes with every frame
type Telemetry struct {
	IsBellyCamera     bool
	IsAutonomyEnabled bool
	FlightState       int
	BatteryPercent    float64
	Pitch             float64
	Roll              float64
	YawAngle          float64
	Altitude          float64
	VelocityX         float64
	VelocityY         float64
}

// Hints converts the telemetry for locators that consume it
func (t Telemetry) Hints() detection.Hints {
	return detection.Hints{
		BatteryPercent: t.BatteryPercent,
		Autonomous:     t.IsAutonomyEnabled,
		IsBellyCamera:  t.IsBellyCamera,
		FlightState:    t.FlightState,
		Pitch:          t.Pitch,
		Roll:           t.Roll,
		YawAngle:       t.YawAngle,
		Altitude:       t.Altitude,
		VelocityX:      t.VelocityX,
		VelocityY:      t.VelocityY,
	}
}

// Result is everything decided for one frame
type Result struct {
	Command     tracking.ControlCommand
	Observation tracking.Observation
	Mode        tracking.Mode
	Frame       tracking.FrameSize
	Invocation  uint64 // Controller invocation count after this frame
}

// Agent serializes frames into the controller of the current session
type Agent struct {
	mu      sync.Mutex
	locator detection.Locator
	session *Session
	now     func() time.Time
}

// NewAgent creates an agent around locator. A session is started lazily by
// the first frame if StartSession has not been called.
func NewAgent(locator detection.Locator) *Agent {
	return &Agent{locator: locator, now: time.Now}
}

// StartSession begins a new autonomy session with fresh controller state and
// returns its ID. Any running session is discarded.
func (a *Agent) StartSession() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session = newSession(a.now())
	debugMsg("SESSION", "Autonomy session started", a.session.ID)
	return a.session.ID
}

// EndSession ends the running session and returns its summary.
// ok is false when no session was running.
func (a *Agent) EndSession() (sum Summary, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return Summary{}, false
	}
	sum = a.session.Summary(a.now())
	a.session = nil
	debugMsg("SESSION", sum.String(), sum.ID)
	return sum, true
}

// SessionID returns the ID of the running session, or "" when none is running
func (a *Agent) SessionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return ""
	}
	return a.session.ID
}

// ComputeCommand processes one packed BGR frame of width x height pixels and
// returns the control command for it.
func (a *Agent) ComputeCommand(frame []byte, width, height int, tel Telemetry) (tracking.ControlCommand, error) {
	if width <= 0 || height <= 0 {
		return tracking.ControlCommand{}, fmt.Errorf("%w: dimensions %dx%d", ErrInvalidFrame, width, height)
	}
	if want := width * height * detection.BytesPerPixel; len(frame) != want {
		return tracking.ControlCommand{}, fmt.Errorf("%w: %d bytes for %dx%d, want %d", ErrInvalidFrame, len(frame), width, height, want)
	}

	mat, err := detection.DecodeFrame(frame, width, height)
	if err != nil {
		return tracking.ControlCommand{}, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	defer mat.Close()

	res, err := a.ComputeMat(mat, tel)
	if err != nil {
		return tracking.ControlCommand{}, err
	}
	return res.Command, nil
}

// ComputeMat is ComputeCommand for hosts that already hold a decoded frame
func (a *Agent) ComputeMat(mat gocv.Mat, tel Telemetry) (Result, error) {
	size := tracking.FrameSize{Width: mat.Cols(), Height: mat.Rows()}
	if !size.Valid() {
		return Result{}, fmt.Errorf("%w: dimensions %dx%d", ErrInvalidFrame, size.Width, size.Height)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session == nil {
		a.session = newSession(a.now())
		debugMsg("SESSION", "Autonomy session started on first frame", a.session.ID)
	}
	s := a.session

	obs, err := a.locate(mat, tel)
	if err != nil {
		return Result{}, fmt.Errorf("locate target: %w", err)
	}
	if t, ok := obs.Target(); ok && !size.Contains(t.Center) {
		return Result{}, fmt.Errorf("%w: (%.1f, %.1f) in %dx%d", ErrTargetOutOfFrame, t.Center.X, t.Center.Y, size.Width, size.Height)
	}

	cmd := s.autopilot.Step(obs, size)
	s.record(obs, size, cmd)

	res := Result{
		Command:     cmd,
		Observation: obs,
		Mode:        s.autopilot.Mode(),
		Frame:       size,
		Invocation:  s.autopilot.State().InvocationCount,
	}
	debugMsgVerbose("AUTOPILOT", fmt.Sprintf("#%d %s %v -> %v (alt=%.2f bat=%.0f%% state=%d)",
		res.Invocation, res.Mode, obs, cmd, tel.Altitude, tel.BatteryPercent, tel.FlightState), s.ID)
	return res, nil
}

func (a *Agent) locate(mat gocv.Mat, tel Telemetry) (tracking.Observation, error) {
	if hl, ok := a.locator.(detection.HintedLocator); ok {
		return hl.LocateWithHints(mat, tel.Hints())
	}
	return a.locator.Locate(mat, tel.BatteryPercent, tel.IsAutonomyEnabled)
}

// Close releases the locator
func (a *Agent) Close() error {
	return a.locator.Close()
}
