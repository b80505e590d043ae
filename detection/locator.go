package detection

import (
	"fmt"
	"image"

	"facepilot/tracking"

	"gocv.io/x/gocv"
)

// DefaultMinBatteryPercent is the battery level below which the locator stops
// reporting targets, leaving the vehicle in its search behaviour.
const DefaultMinBatteryPercent = 15.0

// Locator is the target-locating collaborator of the autopilot.
// A frame yields either a single target or tracking.NoTarget().
type Locator interface {
	Locate(frame gocv.Mat, batteryPercent float64, autonomous bool) (tracking.Observation, error)
	Close() error
}

// Hints carries the host telemetry that the control law itself does not use.
type Hints struct {
	BatteryPercent float64
	Autonomous     bool
	IsBellyCamera  bool
	FlightState    int
	Pitch          float64
	Roll           float64
	YawAngle       float64
	Altitude       float64
	VelocityX      float64
	VelocityY      float64
}

// HintedLocator is implemented by locators that want the full telemetry
type HintedLocator interface {
	Locator
	LocateWithHints(frame gocv.Mat, hints Hints) (tracking.Observation, error)
}

// LocatorConfig controls gating and filtering of detections
type LocatorConfig struct {
	MinBatteryPercent float64
	MinFaceWidth      int // px, smaller boxes are ignored
}

// FaceLocator locates the dominant face in a frame using an InferenceProvider
type FaceLocator struct {
	provider InferenceProvider
	cfg      LocatorConfig
}

// NewFaceLocator creates a locator on top of an initialized provider
func NewFaceLocator(provider InferenceProvider, cfg LocatorConfig) *FaceLocator {
	return &FaceLocator{provider: provider, cfg: cfg}
}

// Locate returns the widest face in frame, or no target when autonomy is off,
// the battery is below the configured floor, or nothing was detected.
func (fl *FaceLocator) Locate(frame gocv.Mat, batteryPercent float64, autonomous bool) (tracking.Observation, error) {
	if reason := gateReason(batteryPercent, autonomous, fl.cfg.MinBatteryPercent); reason != "" {
		debugMsg("LOCATOR", "Skipping detection: "+reason)
		return tracking.NoTarget(), nil
	}

	result, err := fl.provider.Detect(frame)
	if err != nil {
		return tracking.NoTarget(), fmt.Errorf("face detection: %w", err)
	}

	rects := filterRects(result.Rects, fl.cfg.MinFaceWidth)
	target, ok := SelectTarget(rects)
	if !ok {
		return tracking.NoTarget(), nil
	}
	if len(rects) > 1 {
		debugMsg("LOCATOR", fmt.Sprintf("%d faces detected, following widest (%.0fpx)", len(rects), target.ApparentSize))
	}
	return tracking.Located(target), nil
}

// Close releases the provider
func (fl *FaceLocator) Close() error {
	return fl.provider.Close()
}

// gateReason returns why detection should be skipped, or "" to proceed
func gateReason(batteryPercent float64, autonomous bool, minBattery float64) string {
	if !autonomous {
		return "autonomy disabled"
	}
	if batteryPercent < minBattery {
		return fmt.Sprintf("battery %.0f%% below %.0f%%", batteryPercent, minBattery)
	}
	return ""
}

func filterRects(rects []image.Rectangle, minWidth int) []image.Rectangle {
	if minWidth <= 0 {
		return rects
	}
	kept := rects[:0:0]
	for _, r := range rects {
		if r.Dx() >= minWidth {
			kept = append(kept, r)
		}
	}
	return kept
}

// SelectTarget picks the widest box and converts it into a target.
// Ties keep the first box seen.
func SelectTarget(rects []image.Rectangle) (tracking.Target, bool) {
	best := -1
	for i, r := range rects {
		if r.Empty() {
			continue
		}
		if best < 0 || r.Dx() > rects[best].Dx() {
			best = i
		}
	}
	if best < 0 {
		return tracking.Target{}, false
	}

	r := rects[best]
	return tracking.Target{
		Center: tracking.Point{
			X: float64(r.Min.X) + float64(r.Dx())/2,
			Y: float64(r.Min.Y) + float64(r.Dy())/2,
		},
		ApparentSize: float64(r.Dx()),
	}, true
}
