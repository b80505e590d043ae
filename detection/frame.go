package detection

import (
	"fmt"

	"gocv.io/x/gocv"
)

// BytesPerPixel is the size of one packed BGR pixel
const BytesPerPixel = 3

// DecodeFrame wraps a packed 8-bit, 3-channel buffer (row-major, height rows
// of width pixels) as a Mat. The caller owns the returned Mat and must Close it.
func DecodeFrame(buf []byte, width, height int) (gocv.Mat, error) {
	if width <= 0 || height <= 0 {
		return gocv.NewMat(), fmt.Errorf("invalid frame geometry %dx%d", width, height)
	}
	if want := width * height * BytesPerPixel; len(buf) != want {
		return gocv.NewMat(), fmt.Errorf("frame buffer is %d bytes, want %d for %dx%d", len(buf), want, width, height)
	}

	mat, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC3, buf)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("decode frame: %w", err)
	}
	return mat, nil
}

// IsValidFrame reports whether m is a non-empty 3-channel 8-bit image
func IsValidFrame(m gocv.Mat) bool {
	if m.Empty() {
		return false
	}
	return m.Type() == gocv.MatTypeCV8UC3 && m.Channels() == 3 && m.Cols() > 0 && m.Rows() > 0
}
