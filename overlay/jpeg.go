package overlay

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gocv.io/x/gocv"
)

// JpegPath builds the file name for a saved frame. Files are grouped into
// one subdirectory per hour, named like 2025-01-01_03PM.
func JpegPath(directory, prefix string, invocation uint64, now time.Time) string {
	hour12 := now.Hour() % 12
	if hour12 == 0 {
		hour12 = 12
	}
	ampm := "AM"
	if now.Hour() >= 12 {
		ampm = "PM"
	}
	subdir := fmt.Sprintf("%s_%02d%s", now.Format("2006-01-02"), hour12, ampm)
	filename := fmt.Sprintf("%s_%s_frame_%d.jpg", now.Format("20060102_150405.000"), prefix, invocation)
	return filepath.Join(directory, subdir, filename)
}

// SaveJpegFrame writes frame under directory and returns the file path.
// An empty directory disables saving.
func SaveJpegFrame(frame gocv.Mat, directory, prefix string, invocation uint64, now time.Time) (string, error) {
	if directory == "" {
		return "", nil
	}
	path := JpegPath(directory, prefix, invocation, now)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create JPEG directory: %w", err)
	}
	if !gocv.IMWrite(path, frame) {
		return "", fmt.Errorf("failed to write %s", path)
	}
	debugMsg("JPEG", "Saved "+path)
	return path, nil
}
