package autopilot

import (
	"fmt"
	"time"

	"facepilot/tracking"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"
)

// maxSamples bounds the per-axis history kept for the session summary
const maxSamples = 10000

// Session is one autonomy session: a controller with its own history plus
// bookkeeping for the end-of-session summary.
type Session struct {
	ID      string
	Started time.Time

	autopilot  *tracking.Autopilot
	frames     uint64
	detections uint64

	errX, errY, errDist, errYaw   []float64
	roll, pitch, vertical, yawCmd []float64
}

func newSession(now time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Started:   now,
		autopilot: tracking.NewAutopilot(),
	}
}

// record stores one frame's outcome
func (s *Session) record(obs tracking.Observation, frame tracking.FrameSize, cmd tracking.ControlCommand) {
	s.frames++
	if t, ok := obs.Target(); ok {
		s.detections++
		e := tracking.Errors(t, frame)
		s.errX = pushSample(s.errX, e.X)
		s.errY = pushSample(s.errY, e.Y)
		s.errDist = pushSample(s.errDist, e.Distance)
		s.errYaw = pushSample(s.errYaw, e.Yaw)
	}
	s.roll = pushSample(s.roll, cmd.Roll)
	s.pitch = pushSample(s.pitch, cmd.Pitch)
	s.vertical = pushSample(s.vertical, cmd.Vertical)
	s.yawCmd = pushSample(s.yawCmd, cmd.Yaw)
}

func pushSample(samples []float64, v float64) []float64 {
	if len(samples) >= maxSamples {
		copy(samples, samples[1:])
		samples = samples[:len(samples)-1]
	}
	return append(samples, v)
}

// AxisStats summarizes one axis
type AxisStats struct {
	Mean   float64
	StdDev float64
}

func axisStats(samples []float64) AxisStats {
	switch len(samples) {
	case 0:
		return AxisStats{}
	case 1:
		return AxisStats{Mean: samples[0]}
	}
	mean, std := stat.MeanStdDev(samples, nil)
	return AxisStats{Mean: mean, StdDev: std}
}

// Summary describes a finished or running session
type Summary struct {
	ID             string
	Duration       time.Duration
	Frames         uint64
	Detections     uint64
	DetectionRatio float64

	ErrorX, ErrorY, ErrorDistance, ErrorYaw AxisStats
	Roll, Pitch, Vertical, Yaw              AxisStats
}

// Summary computes statistics over the recorded frames
func (s *Session) Summary(now time.Time) Summary {
	sum := Summary{
		ID:            s.ID,
		Duration:      now.Sub(s.Started),
		Frames:        s.frames,
		Detections:    s.detections,
		ErrorX:        axisStats(s.errX),
		ErrorY:        axisStats(s.errY),
		ErrorDistance: axisStats(s.errDist),
		ErrorYaw:      axisStats(s.errYaw),
		Roll:          axisStats(s.roll),
		Pitch:         axisStats(s.pitch),
		Vertical:      axisStats(s.vertical),
		Yaw:           axisStats(s.yawCmd),
	}
	if s.frames > 0 {
		sum.DetectionRatio = float64(s.detections) / float64(s.frames)
	}
	return sum
}

func (s Summary) String() string {
	return fmt.Sprintf("session %s: %d frames in %v, %d with target (%.0f%%), err x=%.3f±%.3f y=%.3f±%.3f dist=%.3f±%.3f",
		s.ID, s.Frames, s.Duration.Round(time.Millisecond), s.Detections, s.DetectionRatio*100,
		s.ErrorX.Mean, s.ErrorX.StdDev, s.ErrorY.Mean, s.ErrorY.StdDev, s.ErrorDistance.Mean, s.ErrorDistance.StdDev)
}
