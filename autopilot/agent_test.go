package autopilot

import (
	"errors"
	"sync"
	"testing"
	"time"

	"facepilot/detection"
	"facepilot/tracking"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

const (
	frameW = 320
	frameH = 240
)

// scriptedLocator returns queued observations in order, then no target
type scriptedLocator struct {
	mu        sync.Mutex
	queue     []tracking.Observation
	err       error
	calls     int
	lastBat   float64
	lastAuto  bool
	lastWidth int
	closed    bool
}

func (s *scriptedLocator) Locate(frame gocv.Mat, battery float64, autonomous bool) (tracking.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastBat = battery
	s.lastAuto = autonomous
	s.lastWidth = frame.Cols()
	if s.err != nil {
		return tracking.NoTarget(), s.err
	}
	if len(s.queue) == 0 {
		return tracking.NoTarget(), nil
	}
	obs := s.queue[0]
	s.queue = s.queue[1:]
	return obs, nil
}

func (s *scriptedLocator) Close() error { s.closed = true; return nil }

type hintedLocator struct {
	scriptedLocator
	hints detection.Hints
}

func (h *hintedLocator) LocateWithHints(frame gocv.Mat, hints detection.Hints) (tracking.Observation, error) {
	h.hints = hints
	return h.Locate(frame, hints.BatteryPercent, hints.Autonomous)
}

func blankFrame() []byte {
	return make([]byte, frameW*frameH*detection.BytesPerPixel)
}

func at(x, y, size float64) tracking.Observation {
	return tracking.Located(tracking.Target{Center: tracking.Point{X: x, Y: y}, ApparentSize: size})
}

var flying = Telemetry{IsAutonomyEnabled: true, BatteryPercent: 80, Altitude: 1.2}

func TestComputeCommand_InvalidFrame(t *testing.T) {
	agent := NewAgent(&scriptedLocator{})

	_, err := agent.ComputeCommand(blankFrame(), 0, frameH, flying)
	assert.ErrorIs(t, err, ErrInvalidFrame)

	_, err = agent.ComputeCommand(blankFrame(), frameW, -2, flying)
	assert.ErrorIs(t, err, ErrInvalidFrame)

	_, err = agent.ComputeCommand(blankFrame()[1:], frameW, frameH, flying)
	assert.ErrorIs(t, err, ErrInvalidFrame)

	assert.Empty(t, agent.SessionID(), "rejected frames do not start a session")
}

func TestComputeCommand_ControlSequence(t *testing.T) {
	loc := &scriptedLocator{queue: []tracking.Observation{
		at(160, 120, 100), // first frame: no PID
		at(160, 120, 100), // steady state
		tracking.NoTarget(),
		at(320, 120, 100), // right edge
	}}
	agent := NewAgent(loc)

	cmd, err := agent.ComputeCommand(blankFrame(), frameW, frameH, flying)
	require.NoError(t, err)
	assert.Equal(t, tracking.ControlCommand{}, cmd)
	assert.NotEmpty(t, agent.SessionID())
	assert.Equal(t, frameW, loc.lastWidth)
	assert.Equal(t, 80.0, loc.lastBat)
	assert.True(t, loc.lastAuto)

	cmd, err = agent.ComputeCommand(blankFrame(), frameW, frameH, flying)
	require.NoError(t, err)
	assert.Equal(t, tracking.ControlCommand{}, cmd)

	cmd, err = agent.ComputeCommand(blankFrame(), frameW, frameH, flying)
	require.NoError(t, err)
	assert.Equal(t, tracking.SearchCommand(), cmd)

	cmd, err = agent.ComputeCommand(blankFrame(), frameW, frameH, flying)
	require.NoError(t, err)
	want := tracking.ControlCommand{Roll: 0.08, Yaw: 0.416}
	if diff := cmp.Diff(want, cmd, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("right-edge command mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeMat_Result(t *testing.T) {
	agent := NewAgent(&scriptedLocator{queue: []tracking.Observation{at(10, 10, 60)}})
	mat := gocv.NewMatWithSize(frameH, frameW, gocv.MatTypeCV8UC3)
	defer mat.Close()

	res, err := agent.ComputeMat(mat, flying)
	require.NoError(t, err)
	assert.Equal(t, tracking.ModeTrack, res.Mode)
	assert.Equal(t, uint64(1), res.Invocation)
	assert.Equal(t, tracking.FrameSize{Width: frameW, Height: frameH}, res.Frame)
	assert.True(t, res.Observation.IsLocated())

	res, err = agent.ComputeMat(mat, flying)
	require.NoError(t, err)
	assert.Equal(t, tracking.ModeSearch, res.Mode)
	assert.Equal(t, uint64(2), res.Invocation)

	empty := gocv.NewMat()
	defer empty.Close()
	_, err = agent.ComputeMat(empty, flying)
	assert.ErrorIs(t, err, ErrInvalidFrame)
}

func TestComputeCommand_TargetOutOfFrame(t *testing.T) {
	loc := &scriptedLocator{queue: []tracking.Observation{at(400, 120, 100), at(160, 120, 100)}}
	agent := NewAgent(loc)

	_, err := agent.ComputeCommand(blankFrame(), frameW, frameH, flying)
	assert.ErrorIs(t, err, ErrTargetOutOfFrame)

	// The rejected frame did not advance the controller.
	cmd, err := agent.ComputeCommand(blankFrame(), frameW, frameH, flying)
	require.NoError(t, err)
	assert.Equal(t, tracking.ControlCommand{}, cmd)
}

func TestComputeCommand_LocatorError(t *testing.T) {
	boom := errors.New("camera glitch")
	agent := NewAgent(&scriptedLocator{err: boom})

	_, err := agent.ComputeCommand(blankFrame(), frameW, frameH, flying)
	assert.ErrorIs(t, err, boom)
}

func TestComputeCommand_ForwardsTelemetryToHintedLocator(t *testing.T) {
	loc := &hintedLocator{}
	agent := NewAgent(loc)

	tel := Telemetry{
		IsBellyCamera:     true,
		IsAutonomyEnabled: true,
		FlightState:       3,
		BatteryPercent:    55,
		Pitch:             0.1,
		Roll:              -0.2,
		YawAngle:          90,
		Altitude:          2.5,
		VelocityX:         0.3,
		VelocityY:         -0.4,
	}
	_, err := agent.ComputeCommand(blankFrame(), frameW, frameH, tel)
	require.NoError(t, err)

	assert.Equal(t, tel.Hints(), loc.hints)
	assert.True(t, loc.hints.IsBellyCamera)
	assert.Equal(t, 2.5, loc.hints.Altitude)
	assert.Equal(t, 55.0, loc.lastBat)
}

func TestSessions(t *testing.T) {
	loc := &scriptedLocator{}
	agent := NewAgent(loc)
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	agent.now = func() time.Time { return clock }

	_, ok := agent.EndSession()
	assert.False(t, ok)

	first := agent.StartSession()
	loc.queue = []tracking.Observation{at(160, 120, 100), at(240, 60, 150), tracking.NoTarget()}
	for i := 0; i < 3; i++ {
		_, err := agent.ComputeCommand(blankFrame(), frameW, frameH, flying)
		require.NoError(t, err)
	}

	clock = clock.Add(3 * time.Second)
	sum, ok := agent.EndSession()
	require.True(t, ok)
	assert.Equal(t, first, sum.ID)
	assert.Equal(t, 3*time.Second, sum.Duration)
	assert.Equal(t, uint64(3), sum.Frames)
	assert.Equal(t, uint64(2), sum.Detections)
	assert.InDelta(t, 2.0/3.0, sum.DetectionRatio, 1e-9)
	assert.InDelta(t, 0.25, sum.ErrorX.Mean, 1e-9) // errors 0 and 0.5
	assert.Empty(t, agent.SessionID())

	// A new session starts from zeroed controller history.
	second := agent.StartSession()
	assert.NotEqual(t, first, second)
	loc.queue = []tracking.Observation{at(300, 20, 30)}
	cmd, err := agent.ComputeCommand(blankFrame(), frameW, frameH, flying)
	require.NoError(t, err)
	assert.Equal(t, tracking.ControlCommand{}, cmd)
}

func TestComputeMat_SerializesConcurrentCallers(t *testing.T) {
	agent := NewAgent(&scriptedLocator{})
	mat := gocv.NewMatWithSize(frameH, frameW, gocv.MatTypeCV8UC3)
	defer mat.Close()

	const callers = 32
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := agent.ComputeMat(mat, flying)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	sum, ok := agent.EndSession()
	require.True(t, ok)
	assert.Equal(t, uint64(callers), sum.Frames)
}

func TestAgentClose(t *testing.T) {
	loc := &scriptedLocator{}
	require.NoError(t, NewAgent(loc).Close())
	assert.True(t, loc.closed)
}
