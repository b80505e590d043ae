package detection

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Cascade tuning
const (
	cascadeScaleFactor  = 1.1
	cascadeMinNeighbors = 5
	cascadeMinFace      = 24 // px
)

// CascadeProvider finds faces with an OpenCV Haar cascade on the CPU
type CascadeProvider struct {
	classifier gocv.CascadeClassifier
	path       string
	loaded     bool
	mu         sync.Mutex
}

// Initialize loads the cascade XML
func (cp *CascadeProvider) Initialize(cfg ModelConfig) error {
	cp.classifier = gocv.NewCascadeClassifier()
	if !cp.classifier.Load(cfg.CascadePath) {
		cp.classifier.Close()
		return fmt.Errorf("failed to load cascade from %s", cfg.CascadePath)
	}
	cp.path = cfg.CascadePath
	cp.loaded = true
	return nil
}

// Detect runs the cascade on an equalized grayscale copy of frame
func (cp *CascadeProvider) Detect(frame gocv.Mat) (*DetectionResult, error) {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	if !cp.loaded {
		return nil, fmt.Errorf("cascade provider not initialized")
	}
	if frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	gocv.EqualizeHist(gray, &gray)

	rects := cp.classifier.DetectMultiScaleWithParams(gray, cascadeScaleFactor, cascadeMinNeighbors, 0,
		image.Pt(cascadeMinFace, cascadeMinFace), image.Pt(0, 0))

	confidences := make([]float64, len(rects))
	for i := range confidences {
		confidences[i] = 1.0
	}

	return &DetectionResult{Rects: rects, Confidences: confidences}, nil
}

// Close releases the classifier
func (cp *CascadeProvider) Close() error {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if !cp.loaded {
		return nil
	}
	cp.loaded = false
	return cp.classifier.Close()
}

// GetProviderInfo returns provider information
func (cp *CascadeProvider) GetProviderInfo() ProviderInfo {
	return ProviderInfo{Type: "CASCADE", Backend: "CPU", Model: cp.path}
}
