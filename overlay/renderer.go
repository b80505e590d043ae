package overlay

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"facepilot/pkg/history"
	"facepilot/tracking"

	"gocv.io/x/gocv"
)

// debugMsgFunc is set by main to route messages into the unified logger
var debugMsgFunc func(component, message string, sessionID ...string)

// SetDebugFunction allows main package to provide the debug logger
func SetDebugFunction(fn func(component, message string, sessionID ...string)) {
	debugMsgFunc = fn
}

func debugMsg(component, message string, sessionID ...string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message, sessionID...)
	}
}

var (
	white  = color.RGBA{255, 255, 255, 255}
	green  = color.RGBA{0, 255, 0, 255}
	yellow = color.RGBA{255, 255, 0, 255}
	orange = color.RGBA{255, 165, 0, 255}
	grey   = color.RGBA{160, 160, 160, 255}
	panel  = color.RGBA{30, 30, 30, 180}
)

// Renderer draws the autopilot HUD on debug frames
type Renderer struct {
	terminal      *history.Buffer
	terminalLines int
}

// NewRenderer creates a renderer. A non-nil terminal buffer enables the
// log panel in the top-left corner.
func NewRenderer(terminal *history.Buffer) *Renderer {
	return &Renderer{terminal: terminal, terminalLines: 12}
}

// Draw renders one frame's decision: frame centre, the target and its error
// vector, and the command that was sent.
func (r *Renderer) Draw(img *gocv.Mat, obs tracking.Observation, cmd tracking.ControlCommand, mode tracking.Mode) {
	if img.Empty() {
		return
	}
	frame := tracking.FrameSize{Width: img.Cols(), Height: img.Rows()}
	centre := image.Point{frame.Width / 2, frame.Height / 2}

	r.drawCrosshair(img, centre, 20)

	if t, ok := obs.Target(); ok {
		r.DrawTarget(img, t, frame, mode)
	}
	r.DrawCommandPanel(img, cmd, mode)

	if r.terminal != nil {
		r.DrawTerminal(img, r.terminal.Recent(r.terminalLines))
	}
}

// DrawTarget draws corner brackets around the face, a line from the frame
// centre to the face centre and the per-axis errors.
func (r *Renderer) DrawTarget(img *gocv.Mat, t tracking.Target, frame tracking.FrameSize, mode tracking.Mode) {
	centre := image.Point{frame.Width / 2, frame.Height / 2}
	pos := image.Point{int(math.Round(t.Center.X)), int(math.Round(t.Center.Y))}
	half := int(math.Round(t.ApparentSize / 2))
	rect := image.Rect(pos.X-half, pos.Y-half, pos.X+half, pos.Y+half)

	c := green
	if mode != tracking.ModeTrack {
		c = grey
	}
	length := half / 2
	if length < 6 {
		length = 6
	}
	drawCornerBrackets(img, rect, c, 2, length)
	gocv.Circle(img, pos, 4, c, -1)

	gocv.Line(img, centre, pos, yellow, 1)

	dx := float64(pos.X - centre.X)
	dy := float64(pos.Y - centre.Y)
	if math.Hypot(dx, dy) > 20 {
		mid := image.Point{(centre.X + pos.X) / 2, (centre.Y+pos.Y)/2 - 10}
		gocv.PutText(img, fmt.Sprintf("%.0fpx", math.Hypot(dx, dy)), mid, gocv.FontHersheySimplex, 0.4, yellow, 1)
	}

	e := tracking.Errors(t, frame)
	label := fmt.Sprintf("FACE %.0fpx  ex %+.2f ey %+.2f ed %+.2f", t.ApparentSize, e.X, e.Y, e.Distance)
	labelPos := image.Point{rect.Min.X, rect.Min.Y - 8}
	if labelPos.Y < 12 {
		labelPos.Y = rect.Max.Y + 16
	}
	gocv.PutText(img, label, labelPos, gocv.FontHersheySimplex, 0.45, c, 1)
}

// DrawCommandPanel draws the mode and the five command components in the
// bottom-left corner.
func (r *Renderer) DrawCommandPanel(img *gocv.Mat, cmd tracking.ControlCommand, mode tracking.Mode) {
	const w, h, lineHeight = 220, 110, 18
	x, y := 20, img.Rows()-h-20
	if y < 0 {
		y = 0
	}
	gocv.Rectangle(img, image.Rect(x, y, x+w, y+h), panel, -1)

	modeColor := orange
	if mode == tracking.ModeTrack {
		modeColor = green
	}
	gocv.PutText(img, mode.String(), image.Point{x + 8, y + lineHeight}, gocv.FontHersheySimplex, 0.55, modeColor, 2)

	rows := []struct {
		name  string
		value float64
	}{
		{"roll", cmd.Roll},
		{"pitch", cmd.Pitch},
		{"vert", cmd.Vertical},
		{"yaw", cmd.Yaw},
	}
	for i, row := range rows {
		p := image.Point{x + 8, y + lineHeight*(i+2)}
		gocv.PutText(img, fmt.Sprintf("%-5s %+.4f", row.name, row.value), p, gocv.FontHersheySimplex, 0.45, white, 1)
		drawBar(img, image.Point{x + 150, p.Y - 5}, 60, row.value)
	}
}

// DrawTerminal draws recent log lines on a translucent panel
func (r *Renderer) DrawTerminal(img *gocv.Mat, lines []string) {
	if len(lines) == 0 {
		return
	}
	const lineHeight = 14
	x, y := 20, 20
	w := img.Cols() / 2
	h := lineHeight*len(lines) + 10
	gocv.Rectangle(img, image.Rect(x, y, x+w, y+h), panel, -1)

	maxChars := w / 7
	for i, line := range lines {
		if maxChars > 3 && len(line) > maxChars {
			line = line[:maxChars-3] + "..."
		}
		gocv.PutText(img, line, image.Point{x + 6, y + 10 + lineHeight*(i+1) - 4}, gocv.FontHersheyPlain, 0.9, green, 1)
	}
}

func (r *Renderer) drawCrosshair(img *gocv.Mat, centre image.Point, size int) {
	gocv.Line(img, image.Point{centre.X - size, centre.Y}, image.Point{centre.X + size, centre.Y}, white, 2)
	gocv.Line(img, image.Point{centre.X, centre.Y - size}, image.Point{centre.X, centre.Y + size}, white, 2)
}

// drawBar draws a horizontal bar centred at origin, proportional to a value in [-1, 1]
func drawBar(img *gocv.Mat, origin image.Point, halfWidth int, value float64) {
	if value > 1 {
		value = 1
	} else if value < -1 {
		value = -1
	}
	gocv.Line(img, image.Point{origin.X, origin.Y - 4}, image.Point{origin.X, origin.Y + 4}, grey, 1)
	end := origin.X + int(math.Round(value*float64(halfWidth)))
	if end != origin.X {
		gocv.Line(img, origin, image.Point{end, origin.Y}, yellow, 3)
	}
}

func drawCornerBrackets(img *gocv.Mat, rect image.Rectangle, c color.RGBA, thickness, length int) {
	// Top-left
	gocv.Line(img, rect.Min, image.Point{rect.Min.X + length, rect.Min.Y}, c, thickness)
	gocv.Line(img, rect.Min, image.Point{rect.Min.X, rect.Min.Y + length}, c, thickness)
	// Top-right
	gocv.Line(img, image.Point{rect.Max.X, rect.Min.Y}, image.Point{rect.Max.X - length, rect.Min.Y}, c, thickness)
	gocv.Line(img, image.Point{rect.Max.X, rect.Min.Y}, image.Point{rect.Max.X, rect.Min.Y + length}, c, thickness)
	// Bottom-left
	gocv.Line(img, image.Point{rect.Min.X, rect.Max.Y}, image.Point{rect.Min.X + length, rect.Max.Y}, c, thickness)
	gocv.Line(img, image.Point{rect.Min.X, rect.Max.Y}, image.Point{rect.Min.X, rect.Max.Y - length}, c, thickness)
	// Bottom-right
	gocv.Line(img, rect.Max, image.Point{rect.Max.X - length, rect.Max.Y}, c, thickness)
	gocv.Line(img, rect.Max, image.Point{rect.Max.X, rect.Max.Y - length}, c, thickness)
}
