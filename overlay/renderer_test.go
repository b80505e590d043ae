package overlay

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"facepilot/pkg/history"
	"facepilot/tracking"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func blackFrame(t *testing.T) gocv.Mat {
	t.Helper()
	img := gocv.NewMatWithSize(360, 640, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { img.Close() })
	return img
}

func isBlack(img gocv.Mat, row, col int) bool {
	v := img.GetVecbAt(row, col)
	return v[0] == 0 && v[1] == 0 && v[2] == 0
}

func TestDraw_SearchFrame(t *testing.T) {
	img := blackFrame(t)
	r := NewRenderer(nil)
	r.Draw(&img, tracking.NoTarget(), tracking.SearchCommand(), tracking.ModeSearch)

	assert.False(t, isBlack(img, 180, 320), "crosshair at frame centre")
	assert.False(t, isBlack(img, 180, 335))
	assert.True(t, isBlack(img, 10, 630), "top-right corner untouched")
}

func TestDraw_TrackedTarget(t *testing.T) {
	img := blackFrame(t)
	r := NewRenderer(nil)
	target := tracking.Target{Center: tracking.Point{X: 480, Y: 100}, ApparentSize: 80}
	r.Draw(&img, tracking.Located(target), tracking.ControlCommand{Roll: 0.2, Yaw: 0.6}, tracking.ModeTrack)

	// Top-left bracket corner at (440, 60)
	assert.False(t, isBlack(img, 60, 440))
	assert.False(t, isBlack(img, 100, 480), "target centre dot")
}

func TestDraw_TerminalPanel(t *testing.T) {
	img := blackFrame(t)
	buf := history.NewBuffer(10)
	buf.Add("[LINK] serial link started")

	NewRenderer(buf).Draw(&img, tracking.NoTarget(), tracking.SearchCommand(), tracking.ModeSearch)
	assert.False(t, isBlack(img, 22, 22), "terminal background drawn")

	plain := blackFrame(t)
	NewRenderer(nil).Draw(&plain, tracking.NoTarget(), tracking.SearchCommand(), tracking.ModeSearch)
	assert.True(t, isBlack(plain, 22, 22))
}

func TestDraw_EmptyMat(t *testing.T) {
	img := gocv.NewMat()
	defer img.Close()
	assert.NotPanics(t, func() {
		NewRenderer(nil).Draw(&img, tracking.NoTarget(), tracking.SearchCommand(), tracking.ModeSearch)
	})
}

func TestJpegPath(t *testing.T) {
	at := time.Date(2025, 1, 1, 15, 4, 5, 0, time.Local)
	got := JpegPath("/tmp/frames", "post", 42, at)
	assert.Equal(t, filepath.Join("/tmp/frames", "2025-01-01_03PM", "20250101_150405.000_post_frame_42.jpg"), got)

	midnight := time.Date(2025, 1, 1, 0, 30, 0, 0, time.Local)
	assert.Contains(t, JpegPath("d", "pre", 1, midnight), "2025-01-01_12AM")
	noon := time.Date(2025, 1, 1, 12, 30, 0, 0, time.Local)
	assert.Contains(t, JpegPath("d", "pre", 1, noon), "2025-01-01_12PM")
}

func TestSaveJpegFrame(t *testing.T) {
	img := blackFrame(t)

	path, err := SaveJpegFrame(img, "", "pre", 1, time.Now())
	require.NoError(t, err)
	assert.Empty(t, path)

	dir := t.TempDir()
	path, err = SaveJpegFrame(img, dir, "pre", 7, time.Now())
	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}
