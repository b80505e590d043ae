package detection

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// SSD face model input geometry and mean (res10_300x300)
const (
	dnnInputSize = 300
)

var dnnMean = gocv.NewScalar(104.0, 177.0, 123.0, 0)

// DNNProvider runs an SSD face detector through the OpenCV DNN module.
// UseCUDA selects the CUDA backend; otherwise the default CPU backend is used.
type DNNProvider struct {
	UseCUDA bool

	net           gocv.Net
	model         string
	minConfidence float64
	loaded        bool
	mu            sync.Mutex
}

// Initialize initializes the provider with model files
func (dp *DNNProvider) Initialize(cfg ModelConfig) error {
	dp.net = gocv.ReadNet(cfg.DNNModelPath, cfg.DNNConfigPath)
	if dp.net.Empty() {
		return fmt.Errorf("failed to load face network from %s and %s", cfg.DNNModelPath, cfg.DNNConfigPath)
	}

	if dp.UseCUDA {
		if err := dp.net.SetPreferableBackend(gocv.NetBackendCUDA); err != nil {
			dp.net.Close()
			return fmt.Errorf("set CUDA backend: %w", err)
		}
		if err := dp.net.SetPreferableTarget(gocv.NetTargetCUDA); err != nil {
			dp.net.Close()
			return fmt.Errorf("set CUDA target: %w", err)
		}
	} else {
		dp.net.SetPreferableBackend(gocv.NetBackendDefault)
		dp.net.SetPreferableTarget(gocv.NetTargetCPU)
	}

	dp.model = cfg.DNNModelPath
	dp.minConfidence = cfg.MinConfidence
	if dp.minConfidence <= 0 {
		dp.minConfidence = 0.5
	}
	dp.loaded = true
	return nil
}

// Detect performs face detection on a frame
func (dp *DNNProvider) Detect(frame gocv.Mat) (*DetectionResult, error) {
	dp.mu.Lock()
	defer dp.mu.Unlock()

	if !dp.loaded {
		return nil, fmt.Errorf("dnn provider not initialized")
	}
	if frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	blob := gocv.BlobFromImage(frame, 1.0, image.Pt(dnnInputSize, dnnInputSize), dnnMean, false, false)
	defer blob.Close()

	dp.net.SetInput(blob, "")
	output := dp.net.Forward("")
	defer output.Close()

	// Output is 1x1xNx7: [image, class, score, left, top, right, bottom], coordinates normalized
	detections := gocv.GetBlobChannel(output, 0, 0)
	defer detections.Close()

	frameW := float32(frame.Cols())
	frameH := float32(frame.Rows())
	bounds := image.Rect(0, 0, frame.Cols(), frame.Rows())

	var rects []image.Rectangle
	var confidences []float64
	for r := 0; r < detections.Rows(); r++ {
		confidence := float64(detections.GetFloatAt(r, 2))
		if confidence < dp.minConfidence {
			continue
		}

		left := int(detections.GetFloatAt(r, 3) * frameW)
		top := int(detections.GetFloatAt(r, 4) * frameH)
		right := int(detections.GetFloatAt(r, 5) * frameW)
		bottom := int(detections.GetFloatAt(r, 6) * frameH)

		rect := image.Rect(left, top, right, bottom).Intersect(bounds)
		if rect.Empty() {
			continue
		}
		rects = append(rects, rect)
		confidences = append(confidences, confidence)
	}

	return &DetectionResult{Rects: rects, Confidences: confidences}, nil
}

// Close releases the network
func (dp *DNNProvider) Close() error {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if !dp.loaded {
		return nil
	}
	dp.loaded = false
	return dp.net.Close()
}

// GetProviderInfo returns provider information
func (dp *DNNProvider) GetProviderInfo() ProviderInfo {
	backend := "CPU"
	if dp.UseCUDA {
		backend = "CUDA"
	}
	return ProviderInfo{Type: "DNN", Backend: backend, Model: dp.model}
}
